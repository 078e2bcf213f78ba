package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"github.com/jayjOnly/VA-Validator/models"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Result is the JSON document describing a run.
type Result struct {
	RunID   string          `json:"run_id,omitempty"`
	Summary models.Summary  `json:"summary"`
	Records []models.Record `json:"records"`
}

// NewResult builds a Result for records.
func NewResult(runID string, records []models.Record) Result {
	return Result{
		RunID:   runID,
		Summary: models.Summarize(records),
		Records: records,
	}
}

// Format is an output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts csv and json, case insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", s)
	}
}

// WriteFile writes res to path in the given format, creating the parent
// directory when missing.
func WriteFile(path string, format Format, res Result) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}

	switch format {
	case FormatJSON:
		err = WriteJSON(f, res)
	default:
		err = WriteCSV(f, res.Records)
	}
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteCSV writes one row per record with the human status label.
func WriteCSV(w io.Writer, records []models.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{ColPluginID, ColHost, ColPort, ColStatus, ColDetails}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, r := range records {
		port := NoPort
		if r.Port > 0 {
			port = strconv.Itoa(r.Port)
		}
		if err := cw.Write([]string{r.PluginID, r.Host, port, r.Status.Label(), r.Detail}); err != nil {
			return fmt.Errorf("writing %s: %w", r.Finding(), err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteJSON writes res as indented JSON.
func WriteJSON(w io.Writer, res Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	return nil
}
