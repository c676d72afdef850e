package http_handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anthanhphan/go-kv-store/internal/storage/port"
	sdklogger "github.com/anthanhphan/gosdk/logger"
)

// Server exposes the key-value operations over REST, plus health and metrics.
type Server struct {
	app     *fiber.App
	addr    string
	service port.KVService
}

func NewServer(addr string, bodyLimit int, service port.KVService) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit:             bodyLimit,
		Immutable:             true,
		UnescapePath:          true,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())

	s := &Server{
		app:     app,
		addr:    addr,
		service: service,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/healthz", s.handleHealth)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	s.app.Get("/kv/:key", s.handleGet)
	s.app.Put("/kv/:key", s.handleSet)
	s.app.Delete("/kv/:key", s.handleRemove)
}

func (s *Server) Start() error {
	return s.app.Listen(s.addr)
}

func (s *Server) Stop(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) sendJSONError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleGet(c *fiber.Ctx) error {
	key := c.Params("key")
	value, found, err := s.service.Get(c.Context(), key)
	if err != nil {
		sdklogger.Warnw("HTTP get failed", "key", key, "error", err.Error())
		return s.sendJSONError(c, fiber.StatusInternalServerError, err.Error())
	}
	if !found {
		return s.sendJSONError(c, fiber.StatusNotFound, port.ErrKeyNotFound.Error())
	}
	return c.JSON(fiber.Map{
		"key":   key,
		"value": value,
	})
}

func (s *Server) handleSet(c *fiber.Ctx) error {
	key := c.Params("key")
	if err := s.service.Set(c.Context(), key, string(c.Body())); err != nil {
		sdklogger.Warnw("HTTP set failed", "key", key, "error", err.Error())
		return s.sendJSONError(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleRemove(c *fiber.Ctx) error {
	key := c.Params("key")
	err := s.service.Remove(c.Context(), key)
	switch {
	case err == nil:
		return c.SendStatus(fiber.StatusNoContent)
	case errors.Is(err, port.ErrKeyNotFound):
		return s.sendJSONError(c, fiber.StatusNotFound, err.Error())
	default:
		sdklogger.Warnw("HTTP remove failed", "key", key, "error", err.Error())
		return s.sendJSONError(c, fiber.StatusInternalServerError, err.Error())
	}
}
