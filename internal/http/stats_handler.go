package http

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"tracker/internal/cruncher"
)

// SummaryResponse is the body of GET /api/v1/stats/summary.
type SummaryResponse struct {
	LastVisited *time.Time `json:"last_visited"`
	Total       int64      `json:"total"`
	Today       int64      `json:"today"`
}

// StatsSummaryAction returns the last visit, the total and today's count.
func (h *Handlers) StatsSummaryAction(c *cartridge.Context) error {
	f, err := h.filter(c)
	if err != nil {
		return h.fail(c, err)
	}
	ctx := c.UserContext()

	var resp SummaryResponse
	if last, ok, err := h.Cruncher.LastVisited(ctx, f); err != nil {
		return h.fail(c, err)
	} else if ok {
		resp.LastVisited = &last
	}

	if resp.Total, err = h.Cruncher.TotalVisitCount(ctx, f); err != nil {
		return h.fail(c, err)
	}
	if resp.Today, err = h.Cruncher.TodayCount(ctx, f); err != nil {
		return h.fail(c, err)
	}

	return c.JSON(resp)
}

// StatsBetweenAction counts views in [from, until]. until defaults to now.
func (h *Handlers) StatsBetweenAction(c *cartridge.Context) error {
	f, err := h.filter(c)
	if err != nil {
		return h.fail(c, err)
	}

	from, err := h.instant(c, "from")
	if err != nil {
		return h.fail(c, err)
	}
	if from.IsZero() {
		return h.fail(c, badRequest("from is required"))
	}
	until, err := h.endInstant(c, "until")
	if err != nil {
		return h.fail(c, err)
	}

	count, err := h.Cruncher.CountInBetween(c.UserContext(), from, until, f)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(fiber.Map{
		"from":  from,
		"until": until,
		"count": count,
	})
}

// StatsRelativeAction counts views in the unit-long window ending at end.
func (h *Handlers) StatsRelativeAction(c *cartridge.Context) error {
	unit, err := unitParam(c)
	if err != nil {
		return h.fail(c, err)
	}
	f, err := h.filter(c)
	if err != nil {
		return h.fail(c, err)
	}
	end, err := h.instant(c, "end")
	if err != nil {
		return h.fail(c, err)
	}

	count, err := h.Cruncher.RelativeCount(c.UserContext(), unit, end, f)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(fiber.Map{
		"unit":  unit.String(),
		"count": count,
	})
}

// StatsDayAction counts views on one calendar day, today by default.
func (h *Handlers) StatsDayAction(c *cartridge.Context) error {
	f, err := h.filter(c)
	if err != nil {
		return h.fail(c, err)
	}
	day, err := h.instant(c, "day")
	if err != nil {
		return h.fail(c, err)
	}

	count, err := h.Cruncher.CountForDay(c.UserContext(), day, f)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(fiber.Map{"count": count})
}

// StatsSeriesAction returns one count per unit between from and until, oldest first.
func (h *Handlers) StatsSeriesAction(c *cartridge.Context) error {
	unit, err := unitParam(c)
	if err != nil {
		return h.fail(c, err)
	}
	f, err := h.filter(c)
	if err != nil {
		return h.fail(c, err)
	}

	from, err := h.instant(c, "from")
	if err != nil {
		return h.fail(c, err)
	}
	if from.IsZero() {
		return h.fail(c, badRequest("from is required"))
	}
	until, err := h.endInstant(c, "until")
	if err != nil {
		return h.fail(c, err)
	}

	series, err := h.Cruncher.CountPer(c.UserContext(), unit, from, until, f)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(fiber.Map{
		"unit":   unit.String(),
		"labels": series.Labels,
		"counts": series.Counts,
		"total":  series.Total(),
	})
}

// CachePurgeAction drops every cached range count.
func (h *Handlers) CachePurgeAction(c *cartridge.Context) error {
	purged, err := h.Cache.Purge(c.UserContext())
	if err != nil {
		return h.fail(c, &cruncher.StorageError{Store: cruncher.CacheStore, Op: "purge", Err: err})
	}

	h.Logger.Info("Purged range count cache", slog.Int64("purged", purged))
	return c.JSON(fiber.Map{"purged": purged})
}
