package server

import (
	"errors"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/jayjOnly/VA-Validator/database"
	"github.com/jayjOnly/VA-Validator/models"
	"github.com/jayjOnly/VA-Validator/plugin"
	"github.com/sirupsen/logrus"
	"strconv"
	"time"
)

const defaultRunsLimit = 20

// Store persists validation runs.
type Store interface {
	SaveRun(r database.Run) error
	ListRuns(limit int) ([]database.Run, error)
	FetchRun(runID string) (database.Run, error)
}

// Handler defines an HTTP handler.
type Handler struct {
	pm    *plugin.Manager // pm defines the *plugin.Manager used to route findings.
	store Store           // store is nil when run history is disabled.
	opts  plugin.Options
}

// ValidateHandler defines the handler for the /validate endpoint.
func (h *Handler) ValidateHandler(ctx fiber.Ctx) error {
	br := response{
		Error:   true,
		Message: "Invalid data provided.",
	}

	var data ValidateRequestAPI

	if err := ctx.Bind().Body(&data); err != nil {
		return ctx.Status(fiber.StatusUnprocessableEntity).JSON(br)
	}

	if err := data.Validate(); err != nil {
		br.Message = err.Error()
		return ctx.Status(fiber.StatusUnprocessableEntity).JSON(br)
	}

	// A request may lower the configured pool size, never raise it
	opts := h.opts
	opts.OnRecord = nil
	if opts.Workers == 0 {
		opts.Workers = plugin.DefaultWorkers
	}
	if data.Workers > 0 && data.Workers < opts.Workers {
		opts.Workers = data.Workers
	}

	d, err := plugin.NewDispatcher(h.pm, opts)
	if err != nil {
		logrus.Errorf("building dispatcher: %v", err)
		br.Message = "Unexpected internal error occurred."
		return ctx.Status(fiber.StatusInternalServerError).JSON(br)
	}

	started := time.Now()
	records, err := d.Dispatch(ctx.Context(), data.Findings)
	if err != nil {
		logrus.Errorf("dispatching: %v", err)
		br.Message = "Unexpected internal error occurred."
		return ctx.Status(fiber.StatusInternalServerError).JSON(br)
	}

	resp := ValidateResponse{
		RunID:   uuid.NewString(),
		Summary: models.Summarize(records),
		Records: records,
	}

	if h.store != nil {
		run := database.Run{
			RunID:     resp.RunID,
			Source:    "api:" + ctx.IP(),
			Workers:   opts.Workers,
			StartedAt: started,
			Duration:  time.Since(started),
			Summary:   resp.Summary,
			Records:   records,
		}
		if err := h.store.SaveRun(run); err != nil {
			logrus.Errorf("saving run %s: %v", resp.RunID, err)
			br.Message = "Unexpected internal error occurred."
			return ctx.Status(fiber.StatusInternalServerError).JSON(br)
		}
	}

	return ctx.Status(fiber.StatusOK).JSON(resp)
}

// PluginsHandler defines the handler for the /plugins endpoint.
func (h *Handler) PluginsHandler(ctx fiber.Ctx) error {
	return ctx.Status(fiber.StatusOK).JSON(PluginsResponse{
		Count:   h.pm.Count(),
		Plugins: h.pm.List(),
	})
}

// RunsHandler defines the handler for the /runs endpoint.
func (h *Handler) RunsHandler(ctx fiber.Ctx) error {
	if h.store == nil {
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(response{Error: true, Message: "Run history is disabled."})
	}

	limit := defaultRunsLimit
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return ctx.Status(fiber.StatusUnprocessableEntity).JSON(response{Error: true, Message: "Invalid limit."})
		}
		limit = n
	}

	runs, err := h.store.ListRuns(limit)
	if err != nil {
		logrus.Errorf("listing runs: %v", err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(response{Error: true, Message: "Unexpected internal error occurred."})
	}
	return ctx.Status(fiber.StatusOK).JSON(RunsResponse{Runs: runs})
}

// RunHandler defines the handler for the /runs/:id endpoint.
func (h *Handler) RunHandler(ctx fiber.Ctx) error {
	if h.store == nil {
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(response{Error: true, Message: "Run history is disabled."})
	}

	run, err := h.store.FetchRun(ctx.Params("id"))
	if errors.Is(err, database.ErrRunNotFound) {
		return ctx.Status(fiber.StatusNotFound).JSON(response{Error: true, Message: "Run not found."})
	}
	if err != nil {
		logrus.Errorf("fetching run: %v", err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(response{Error: true, Message: "Unexpected internal error occurred."})
	}
	return ctx.Status(fiber.StatusOK).JSON(run)
}
