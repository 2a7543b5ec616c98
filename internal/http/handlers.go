// Package http holds the cartridge handlers of the tracker API.
package http

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"tracker/internal/cache"
	"tracker/internal/cruncher"
	"tracker/internal/views"
)

// errBadRequest marks input errors the client can fix.
var errBadRequest = errors.New("bad request")

// Handlers carries the dependencies every action needs.
type Handlers struct {
	Views    *views.Store
	Cruncher *cruncher.Cruncher
	Cache    cache.Store
	Logger   *slog.Logger
	Location *time.Location
}

func (h *Handlers) location() *time.Location {
	if h.Location == nil {
		return time.UTC
	}
	return h.Location
}

// fail maps err to a status code and writes {"error": ...}.
func (h *Handlers) fail(c *cartridge.Context, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, cruncher.ErrInvalidRange):
		status = fiber.StatusBadRequest
	case errors.Is(err, gorm.ErrRecordNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, cruncher.ErrStorageUnavailable):
		status = fiber.StatusServiceUnavailable
	}

	if status >= fiber.StatusInternalServerError {
		h.Logger.Error("Request failed",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Any("error", err))
	}

	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}
