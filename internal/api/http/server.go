package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/spec-kit/idea-service/internal/observability"
)

// NewApp creates the fiber application with global middlewares installed.
// Routes are attached separately through RegisterRoutes.
func NewApp(name string, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               name,
		ErrorHandler:          ErrorHandler(logger),
		DisableStartupMessage: true,
		BodyLimit:             1 << 20,
	})
	app.Use(requestid.New())
	RegisterMiddlewares(app, logger, metrics, timeout)
	return app
}
