package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Finding defines a single scanner finding to be re-validated.
type Finding struct {
	PluginID string `json:"plugin_id"` // PluginID routes the finding to its check.
	Host     string `json:"host"`
	Port     int    `json:"port"` // 0 for port-less protocols.
}

// Validate checks the finding carries everything needed for routing.
func (f *Finding) Validate() error {
	if len(strings.TrimSpace(f.PluginID)) == 0 {
		return errors.New("missing plugin id")
	}
	if len(strings.TrimSpace(f.Host)) == 0 {
		return errors.New("missing host")
	}
	if f.Port < 0 || f.Port > 65535 {
		return fmt.Errorf("port %d out of range", f.Port)
	}
	return nil
}

// String returns a short form used in logs.
func (f Finding) String() string {
	return fmt.Sprintf("%s@%s:%d", f.PluginID, f.Host, f.Port)
}

// Status is the normalized outcome of a validation.
type Status string

const (
	StatusConfirmed       Status = "confirmed"
	StatusNotReproducible Status = "not_reproducible"
	StatusIndeterminate   Status = "indeterminate"
	StatusFailed          Status = "failed"
	StatusNotRegistered   Status = "not_registered"
)

// Statuses returns every status in report order.
func Statuses() []Status {
	return []Status{
		StatusConfirmed,
		StatusNotReproducible,
		StatusIndeterminate,
		StatusFailed,
		StatusNotRegistered,
	}
}

// Label returns the human readable label used in reports.
func (s Status) Label() string {
	switch s {
	case StatusConfirmed:
		return "Validated"
	case StatusNotReproducible:
		return "Not Vulnerable"
	case StatusIndeterminate:
		return "Indeterminate"
	case StatusFailed:
		return "Error"
	case StatusNotRegistered:
		return "Plugin Not Found"
	default:
		return string(s)
	}
}

// ParseStatus accepts either the status value or its label.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses() {
		if strings.EqualFold(s, string(st)) || strings.EqualFold(s, st.Label()) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Record defines the uniform result of validating one Finding.
type Record struct {
	PluginID string        `json:"plugin_id"`
	Host     string        `json:"host"`
	Port     int           `json:"port"`
	Status   Status        `json:"status"`
	Detail   string        `json:"detail"`
	Duration time.Duration `json:"duration"`
}

// Finding returns the finding the record was produced for.
func (r *Record) Finding() Finding {
	return Finding{PluginID: r.PluginID, Host: r.Host, Port: r.Port}
}

// Summary holds the per status counts of a batch.
type Summary struct {
	Total  int            `json:"total"`
	Counts map[Status]int `json:"counts"`
}

// Summarize counts records by status.
func Summarize(records []Record) Summary {
	s := Summary{
		Total:  len(records),
		Counts: make(map[Status]int, len(Statuses())),
	}
	for _, st := range Statuses() {
		s.Counts[st] = 0
	}
	for _, r := range records {
		s.Counts[r.Status]++
	}
	return s
}

// Count returns the number of records with the given status.
func (s Summary) Count(st Status) int {
	return s.Counts[st]
}
