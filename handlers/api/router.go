package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mailfan/blacklist"
	"mailfan/config"
	"mailfan/engine"
	"mailfan/middleware"
	"mailfan/storage"
	"mailfan/utils"
)

// NewApp builds the HTTP application: middleware stack, error mapping, and
// the full route table. main owns listening; tests drive it via app.Test.
func NewApp(cfg *config.Config, store *storage.Store, eng *engine.Engine, client *blacklist.Client) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(middleware.Metrics())
	app.Use(middleware.RateLimiter(cfg.Server))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	mailHandler := NewMailHandler(store, eng)
	labelHandler := NewLabelHandler(store)
	blacklistHandler := NewBlacklistHandler(client)

	protected := app.Group("", middleware.RequireAuth(cfg.Server.JWTSecret))

	protected.Post("/mails", mailHandler.CreateMail)
	protected.Get("/mails", mailHandler.GetMails)
	protected.Get("/mails/search", mailHandler.SearchMails)
	protected.Get("/mails/:id", mailHandler.GetMailByID)
	protected.Patch("/mails/:id", mailHandler.UpdateMail)
	protected.Delete("/mails/:id", mailHandler.DeleteMail)
	protected.Patch("/mails/:id/label", mailHandler.UpdateMailLabels)
	protected.Patch("/mails/:id/labels", mailHandler.UpdateMailLabels)

	protected.Get("/labels", labelHandler.GetLabels)
	protected.Post("/labels", labelHandler.CreateLabel)
	protected.Get("/labels/:id", labelHandler.GetLabel)
	protected.Patch("/labels/:id", labelHandler.RenameLabel)
	protected.Delete("/labels/:id", labelHandler.DeleteLabel)

	protected.Post("/blacklist", blacklistHandler.AddURL)
	protected.Delete("/blacklist/*", blacklistHandler.RemoveURL)

	return app
}

// errorHandler converts AppError (and plain fiber errors) to the JSON error
// envelope.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if appErr, ok := err.(*utils.AppError); ok {
		code = appErr.Code
		if code >= 500 {
			utils.Log.Errorw("request failed", "kind", appErr.Kind, "error", appErr.Error())
		}
		body := fiber.Map{"error": appErr.Message}
		if len(appErr.Context) > 0 {
			body["details"] = appErr.Context
		}
		return c.Status(code).JSON(body)
	}
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
