// Package api serves stored job records over HTTP with fiber.
package api

import (
	_ "embed"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/amishk599/statejobs/internal/model"
)

// MaxLimit caps the number of records a single list request returns.
const MaxLimit = 500

//go:embed web/index.html
var indexHTML []byte

// Options configures the read API.
type Options struct {
	DefaultLimit int // records returned when ?limit is absent, default 20
}

type server struct {
	store        model.JobStore
	defaultLimit int
	logger       *slog.Logger
}

// NewApp builds the fiber application exposing the read API and the browser UI.
func NewApp(store model.JobStore, opts Options, logger *slog.Logger) *fiber.App {
	s := &server{store: store, defaultLimit: opts.DefaultLimit, logger: logger}
	if s.defaultLimit <= 0 {
		s.defaultLimit = 20
	}
	s.defaultLimit = min(s.defaultLimit, MaxLimit)

	app := fiber.New(fiber.Config{
		AppName:               "statejobs",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{AllowOrigins: "*", AllowMethods: "GET,HEAD,OPTIONS"}))
	app.Use(s.accessLog)

	app.Get("/", s.index)
	app.Get("/healthz", s.health)
	app.Get("/api/jobs", s.listJobs)
	app.Get("/api/jobs/:id", s.getJob)
	return app
}

func (s *server) accessLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		status = fe.Code
	case err != nil:
		status = fiber.StatusInternalServerError
	}
	s.logger.Info("http request",
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"duration", time.Since(start).Round(time.Microsecond),
	)
	return err
}

func (s *server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	} else {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

func (s *server) index(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	return c.Send(indexHTML)
}

func (s *server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// listJobs returns the newest postings by publish date.
// Query: limit (1..500), enriched=true to keep only records with an extraction.
func (s *server) listJobs(c *fiber.Ctx) error {
	limit := s.defaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(n, MaxLimit)
	}
	enriched := c.QueryBool("enriched", false)

	jobs, err := s.store.ListRecent(c.UserContext(), limit, enriched)
	if err != nil {
		return err
	}
	if jobs == nil {
		jobs = []model.JobRecord{}
	}
	return c.JSON(jobs)
}

func (s *server) getJob(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "id must be a positive integer")
	}

	job, err := s.store.Get(c.UserContext(), id)
	if errors.Is(err, model.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "job not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(job)
}
