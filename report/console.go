package report

import (
	"fmt"
	"github.com/jayjOnly/VA-Validator/models"
	"github.com/jayjOnly/VA-Validator/plugin"
	"github.com/pterm/pterm"
	"strconv"
	"sync"
	"time"
)

const maxDetailWidth = 80

// SummaryTable renders the per status counts.
func SummaryTable(s models.Summary) (string, error) {
	data := pterm.TableData{{"Status", "Count"}}
	for _, st := range models.Statuses() {
		data = append(data, []string{st.Label(), strconv.Itoa(s.Count(st))})
	}
	data = append(data, []string{"Total", strconv.Itoa(s.Total)})

	return render(data)
}

// RecordsTable renders one row per record.
func RecordsTable(records []models.Record) (string, error) {
	data := pterm.TableData{{"Plugin", "Host", "Port", "Status", "Duration", "Details"}}
	for _, r := range records {
		port := NoPort
		if r.Port > 0 {
			port = strconv.Itoa(r.Port)
		}
		data = append(data, []string{
			r.PluginID,
			r.Host,
			port,
			r.Status.Label(),
			r.Duration.Round(time.Millisecond).String(),
			truncate(r.Detail, maxDetailWidth),
		})
	}
	return render(data)
}

// PluginsTable renders the registry listing.
func PluginsTable(infos []plugin.Info) (string, error) {
	data := pterm.TableData{{"ID", "Name", "Description"}}
	for _, i := range infos {
		data = append(data, []string{i.ID, i.Name, i.Description})
	}
	return render(data)
}

func render(data pterm.TableData) (string, error) {
	out, err := pterm.DefaultTable.
		WithHasHeader(true).
		WithBoxed(false).
		WithData(data).
		Srender()
	if err != nil {
		return "", fmt.Errorf("failed to render table: %w", err)
	}
	return out, nil
}

// truncate shortens s to n runes on a single line.
func truncate(s string, n int) string {
	r := []rune(s)
	for i, c := range r {
		if c == '\n' || c == '\r' {
			r[i] = ' '
		}
	}
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-3]) + "..."
}

// PrintSummary prints the summary table with a headline.
func PrintSummary(s models.Summary, elapsed time.Duration) error {
	table, err := SummaryTable(s)
	if err != nil {
		return err
	}
	pterm.Success.Printf("Validated %d finding(s) in %s\n", s.Total, elapsed.Round(time.Millisecond))
	pterm.Println(table)
	return nil
}

// Progress shows a progress bar advanced once per completed record.
type Progress struct {
	mu  sync.Mutex
	bar *pterm.ProgressbarPrinter
}

// StartProgress starts a progress bar for total records. When the terminal
// cannot host it, the returned Progress is a no-op.
func StartProgress(title string, total int) *Progress {
	if total == 0 {
		return &Progress{}
	}
	bar, err := pterm.DefaultProgressbar.
		WithTotal(total).
		WithTitle(title).
		WithRemoveWhenDone(true).
		Start()
	if err != nil {
		return &Progress{}
	}
	return &Progress{bar: bar}
}

// Add advances the bar. It matches the dispatcher record callback.
func (p *Progress) Add(r models.Record) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		return
	}
	p.bar.UpdateTitle(r.Finding().String())
	p.bar.Increment()
}

// Stop removes the bar.
func (p *Progress) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		return
	}
	p.bar.Stop()
	p.bar = nil
}
