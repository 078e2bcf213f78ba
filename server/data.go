package server

import (
	"fmt"
	"github.com/jayjOnly/VA-Validator/database"
	"github.com/jayjOnly/VA-Validator/models"
	"github.com/jayjOnly/VA-Validator/plugin"
)

const maxFindings = 10000

// response defines the basic HTTP response returned by the server.
type response struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// ValidateRequestAPI defines the JSON structure for incoming validation requests.
type ValidateRequestAPI struct {
	Findings []models.Finding `json:"findings"`
	Workers  int              `json:"workers"`
}

// Validate checks the request before anything is dispatched.
func (vr *ValidateRequestAPI) Validate() error {
	if len(vr.Findings) == 0 {
		return fmt.Errorf("no findings provided")
	}
	if len(vr.Findings) > maxFindings {
		return fmt.Errorf("too many findings, at most %d per request", maxFindings)
	}
	if vr.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	for i := range vr.Findings {
		if err := vr.Findings[i].Validate(); err != nil {
			return fmt.Errorf("finding %d: %w", i, err)
		}
	}
	return nil
}

// ValidateResponse defines the JSON structure for validation responses.
type ValidateResponse struct {
	RunID   string          `json:"run_id"`
	Summary models.Summary  `json:"summary"`
	Records []models.Record `json:"records"`
}

type PluginsResponse struct {
	Count   int           `json:"count"`
	Plugins []plugin.Info `json:"plugins"`
}

type RunsResponse struct {
	Runs []database.Run `json:"runs"`
}
