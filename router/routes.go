package router

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	handler "github.com/krishkalaria12/snap-gallery/handlers"
	"github.com/krishkalaria12/snap-gallery/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// errorHandler renders errors that escape handlers, such as an oversized
// body or an unknown route, in the same envelope the handlers use.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"status":  "error",
		"message": message,
		"error":   message,
		"data":    nil,
	})
}

// New builds the fiber app with every route wired to h.
func New(h *handler.Handler, gatherer prometheus.Gatherer, log *zap.Logger, bodyLimit int) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "snap-gallery",
		BodyLimit:             bodyLimit,
		ErrorHandler:          errorHandler,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(log))

	SetupRoutes(app, h)

	app.Get("/healthz", handler.Health)
	if gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return app
}

func SetupRoutes(app *fiber.App, h *handler.Handler) {
	app.Get("/", h.ListImages)
	app.Get("/upload", h.UploadPage)
	app.Post("/upload-image", h.UploadImage)
	app.Post("/delete-image", h.DeleteImage)
	app.Get("/serve_image/:blob", h.ServeImage)
}
