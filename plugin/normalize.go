package plugin

import (
	"fmt"
	"github.com/jayjOnly/VA-Validator/models"
	"github.com/jayjOnly/VA-Validator/toolerr"
	"strings"
)

// Normalize maps a plugin's verdict, or the error it returned, into a Record.
func Normalize(f models.Finding, v Verdict, err error) models.Record {
	r := models.Record{
		PluginID: f.PluginID,
		Host:     f.Host,
		Port:     f.Port,
	}

	if err != nil {
		msg := strings.TrimSpace(err.Error())
		if len(msg) == 0 {
			msg = fmt.Sprintf("%T with an empty message", err)
		}

		if toolerr.IsIndeterminate(err) {
			r.Status = models.StatusIndeterminate
		} else {
			r.Status = models.StatusFailed
		}
		r.Detail = msg
		return r
	}

	detail := strings.TrimSpace(v.Detail)
	switch v.Outcome {
	case OutcomeConfirmed:
		r.Status = models.StatusConfirmed
		if detail == "" {
			detail = "vulnerable condition confirmed"
		}
	case OutcomeNotReproducible:
		r.Status = models.StatusNotReproducible
		if detail == "" {
			detail = "vulnerable condition not observed"
		}
	case OutcomeIndeterminate:
		r.Status = models.StatusIndeterminate
		if detail == "" {
			detail = "check could not reach a conclusion"
		}
	default:
		r.Status = models.StatusIndeterminate
		detail = "check returned no verdict"
	}
	r.Detail = detail
	return r
}

// notRegistered builds the record for a finding nobody can validate.
func notRegistered(f models.Finding) models.Record {
	return models.Record{
		PluginID: f.PluginID,
		Host:     f.Host,
		Port:     f.Port,
		Status:   models.StatusNotRegistered,
		Detail:   fmt.Sprintf("no plugin registered for id %q", f.PluginID),
	}
}

// indeterminate builds a record for a probe that never produced a verdict.
func indeterminate(f models.Finding, format string, args ...any) models.Record {
	return models.Record{
		PluginID: f.PluginID,
		Host:     f.Host,
		Port:     f.Port,
		Status:   models.StatusIndeterminate,
		Detail:   fmt.Sprintf(format, args...),
	}
}
