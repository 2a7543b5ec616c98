package http

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"tracker/internal/metrics"
	"tracker/internal/views"
)

type trackableRequest struct {
	Type string `json:"type"`
	ID   uint   `json:"id"`
}

// RecordViewRequest is the body of POST /api/v1/views. Fields left empty are
// taken from the request headers where one exists.
type RecordViewRequest struct {
	URL            string             `json:"url"`
	Referer        string             `json:"referer"`
	Method         string             `json:"method"`
	Path           string             `json:"path"`
	UserAgent      string             `json:"user_agent"`
	AcceptLanguage string             `json:"accept_language"`
	Locale         string             `json:"locale"`
	UserID         *uint              `json:"user_id"`
	RequestTime    *int64             `json:"request_time"`
	AppTime        *float64           `json:"app_time"`
	Memory         *int64             `json:"memory"`
	Trackables     []trackableRequest `json:"trackables"`
}

func (r *RecordViewRequest) input(c *cartridge.Context) (views.RecordInput, error) {
	if r.URL == "" {
		return views.RecordInput{}, badRequest("url is required")
	}
	if r.Referer == "" {
		r.Referer = c.Get(fiber.HeaderReferer)
	}
	if r.UserAgent == "" {
		r.UserAgent = c.Get(fiber.HeaderUserAgent)
	}
	if r.AcceptLanguage == "" {
		r.AcceptLanguage = c.Get(fiber.HeaderAcceptLanguage)
	}
	if r.Locale == "" {
		r.Locale = localeFromAcceptLanguage(r.AcceptLanguage)
	}
	if err := validateLocale(r.Locale); err != nil {
		return views.RecordInput{}, err
	}

	input := views.RecordInput{
		UserID:             r.UserID,
		HTTPReferer:        r.Referer,
		URL:                r.URL,
		RequestMethod:      r.Method,
		RequestPath:        r.Path,
		HTTPUserAgent:      r.UserAgent,
		HTTPAcceptLanguage: r.AcceptLanguage,
		Locale:             r.Locale,
		RequestTime:        r.RequestTime,
		AppTime:            r.AppTime,
		Memory:             r.Memory,
	}
	for _, t := range r.Trackables {
		if t.Type == "" || t.ID == 0 {
			return views.RecordInput{}, badRequest("trackables need a type and a positive id")
		}
		input.Trackables = append(input.Trackables, views.TrackableRef{Type: t.Type, ID: t.ID})
	}
	return input, nil
}

// RecordViewAction persists one page view.
func (h *Handlers) RecordViewAction(c *cartridge.Context) error {
	var req RecordViewRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, badRequest("invalid request body"))
	}

	input, err := req.input(c)
	if err != nil {
		return h.fail(c, err)
	}

	view, err := h.Views.Record(c.UserContext(), input)
	if errors.Is(err, views.ErrTrackingDisabled) {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"recorded": false})
	}
	if err != nil {
		return h.fail(c, err)
	}

	metrics.ViewsRecorded.Inc()
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":       view.ID,
		"recorded": true,
	})
}

// AttachViewAction links an existing view to a trackable.
func (h *Handlers) AttachViewAction(c *cartridge.Context) error {
	trackableType := c.Params("type")
	id, err := parseUint("id", c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	viewID, err := parseUint("viewID", c.Params("viewID"))
	if err != nil {
		return h.fail(c, err)
	}

	ref := views.TrackableRef{Type: trackableType, ID: id}
	if err := h.Views.Attach(c.UserContext(), ref, viewID); err != nil {
		return h.fail(c, err)
	}

	h.Logger.Debug("Attached site view",
		slog.String("trackable_type", ref.Type),
		slog.Uint64("trackable_id", uint64(ref.ID)),
		slog.Uint64("view_id", uint64(viewID)))

	return c.JSON(fiber.Map{"attached": true})
}
