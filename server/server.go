package server

import (
	"context"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/jayjOnly/VA-Validator/plugin"
	"github.com/sirupsen/logrus"
)

// Config defines how the API is served.
type Config struct {
	Listen       string
	AllowOrigins []string
	Options      plugin.Options // Dispatch options applied to every request.
}

// New prepares the fiber app. store may be nil to disable run history.
func New(pm *plugin.Manager, store Store, cfg Config) *fiber.App {
	return newApp(context.Background(), pm, store, cfg)
}

// newApp builds the app with base as the parent of every request context,
// so cancelling base stops the probes of in-flight validations.
func newApp(base context.Context, pm *plugin.Manager, store Store, cfg Config) *fiber.App {
	h := Handler{pm: pm, store: store, opts: cfg.Options}

	app := fiber.New()
	app.Use(func(c fiber.Ctx) error {
		c.SetContext(base)
		return c.Next()
	})
	if len(cfg.AllowOrigins) > 0 {
		app.Use(cors.New(cors.Config{
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Content-Type", "Origin", "Accept"},
			AllowOrigins: cfg.AllowOrigins,
		}))
	}

	// Define routes
	app.Post("/validate", h.ValidateHandler)
	app.Get("/plugins", h.PluginsHandler)
	app.Get("/runs", h.RunsHandler)
	app.Get("/runs/:id", h.RunHandler)

	return app
}

// Start serves the API until ctx is cancelled.
func Start(ctx context.Context, pm *plugin.Manager, store Store, cfg Config) error {
	app := newApp(ctx, pm, store, cfg)

	go func() {
		<-ctx.Done()
		if err := app.Shutdown(); err != nil {
			logrus.Warnf("shutting down server: %v", err)
		}
	}()

	logrus.Infof("serving %d plugin(s) on %s", pm.Count(), cfg.Listen)
	return app.Listen(cfg.Listen)
}
