// Package report reads scanner exports and writes validation results.
package report

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"github.com/jayjOnly/VA-Validator/models"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
)

const (
	ColPluginID = "pluginID"
	ColHost     = "IP address"
	ColPort     = "port"
	ColStatus   = "validation_status"
	ColDetails  = "details"

	// NoPort is written in place of port 0.
	NoPort = "N/A"
)

var bom = []byte("\xEF\xBB\xBF")

// RowError describes an input row that was skipped.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// ReadFile reads findings from the CSV file at path.
func ReadFile(path string) ([]models.Finding, []*RowError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read reads findings from a CSV export. The header must name the
// pluginID, IP address and port columns; other columns are ignored.
// Malformed rows are returned as RowErrors and skipped, the error return is
// reserved for unreadable input.
func Read(r io.Reader) ([]models.Finding, []*RowError, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(bom)); err == nil && bytes.Equal(head, bom) {
		br.Discard(len(bom))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, errors.New("input is empty")
		}
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	cols, err := columns(header)
	if err != nil {
		return nil, nil, err
	}

	var (
		findings []models.Finding
		skipped  []*RowError
	)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				skipped = append(skipped, &RowError{Line: pe.Line, Err: pe.Err})
				continue
			}
			return nil, nil, fmt.Errorf("reading input: %w", err)
		}
		if blank(row) {
			continue
		}
		line, _ := cr.FieldPos(0)

		f, err := finding(row, cols)
		if err != nil {
			skipped = append(skipped, &RowError{Line: line, Err: err})
			continue
		}
		findings = append(findings, f)
	}

	return findings, skipped, nil
}

type layout struct {
	pluginID, host, port int
}

func columns(header []string) (layout, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}

	var (
		l       layout
		missing []string
	)
	for name, dst := range map[string]*int{ColPluginID: &l.pluginID, ColHost: &l.host, ColPort: &l.port} {
		i, ok := idx[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		*dst = i
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return layout{}, fmt.Errorf("missing required column(s): %s", strings.Join(missing, ", "))
	}
	return l, nil
}

func finding(row []string, l layout) (models.Finding, error) {
	field := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	port, err := parsePort(field(l.port))
	if err != nil {
		return models.Finding{}, err
	}

	f := models.Finding{
		PluginID: field(l.pluginID),
		Host:     field(l.host),
		Port:     port,
	}
	if err := f.Validate(); err != nil {
		return models.Finding{}, err
	}
	return f, nil
}

// parsePort accepts integers and integral floats such as "443.0". An empty
// or N/A value is the port-less sentinel 0.
func parsePort(s string) (int, error) {
	if s == "" || strings.EqualFold(s, NoPort) {
		return 0, nil
	}
	if p, err := strconv.Atoi(s); err == nil {
		return p, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) {
		return int(f), nil
	}
	return 0, fmt.Errorf("invalid port %q", s)
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
