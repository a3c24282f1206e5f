package web

import (
	"embed"
	"html/template"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"yashubustudio/simmatch/simmatch"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Server wires the handlers onto a fiber application.
type Server struct {
	app  *fiber.App
	addr string
}

// NewServer builds the application for svc using the server section of cfg.
func NewServer(svc Comparer, cfg simmatch.Config, logs *log.Logger) *Server {
	cfg.ApplyDefaults()
	app := fiber.New(fiber.Config{
		AppName:               "simmatch",
		BodyLimit:             cfg.Server.MaxUploadMB * 1024 * 1024,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
		},
	})
	app.Use(recover.New())
	app.Use(logger.New())

	store := NewResultStore(time.Duration(cfg.Server.ResultTTLMinutes) * time.Minute)
	handler := NewHandler(svc, store, logs)

	app.Get("/", handler.Index)
	app.Post("/compare", handler.CompareForm)
	app.Get("/healthz", handler.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1")
	api.Post("/compare", handler.CompareAPI)
	api.Get("/results/:id", handler.GetResult)
	api.Get("/results/:id/download", handler.Download)

	return &Server{app: app, addr: cfg.Server.Addr}
}

// App exposes the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until Shutdown is called.
func (s *Server) Listen() error {
	return s.app.Listen(s.addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
