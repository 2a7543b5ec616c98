// Package seeder fills the database with sample site views.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"tracker/internal/views"
)

var (
	sampleLocales = []string{"en", "en", "en", "tr", "de", "fr"}
	samplePaths   = []string{"/", "/pricing", "/blog", "/posts/1", "/posts/2", "/posts/3", "/about"}
	sampleAgents  = []string{
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	}
	sampleReferers = []string{"", "", "https://www.google.com/", "https://news.ycombinator.com/", "https://twitter.com/"}
)

// Seeder records generated views through a views.Store
type Seeder struct {
	Store     *views.Store
	Logger    *slog.Logger
	ViewCount int
	// Days spreads views over the last Days days
	Days int
	Host string

	rng *rand.Rand
	now func() time.Time
}

// NewSeeder creates a new seeder instance
func NewSeeder(store *views.Store, logger *slog.Logger, viewCount int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		Store:     store,
		Logger:    logger,
		ViewCount: viewCount,
		Days:      90,
		Host:      "example.com",
		rng:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 42)),
		now:       time.Now,
	}
}

func pick[T any](rng *rand.Rand, items []T) T {
	return items[rng.IntN(len(items))]
}

// Run records ViewCount views. Post pages are attached to a "post" trackable.
func (s *Seeder) Run(ctx context.Context) error {
	start := time.Now()
	s.Logger.Info("Seeding site views...", slog.Int("viewCount", s.ViewCount), slog.Int("days", s.Days))

	if s.Days < 1 {
		return fmt.Errorf("seeder needs at least one day, got %d", s.Days)
	}

	now := s.now()
	window := time.Duration(s.Days) * 24 * time.Hour

	for i := 0; i < s.ViewCount; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		path := pick(s.rng, samplePaths)
		input := views.RecordInput{
			URL:                "https://" + s.Host + path,
			HTTPReferer:        pick(s.rng, sampleReferers),
			RequestMethod:      "GET",
			RequestPath:        path,
			HTTPUserAgent:      pick(s.rng, sampleAgents),
			HTTPAcceptLanguage: "en-US,en;q=0.9",
			Locale:             pick(s.rng, sampleLocales),
			CreatedAt:          now.Add(-time.Duration(s.rng.Int64N(int64(window)))),
		}

		var postID uint
		if _, err := fmt.Sscanf(path, "/posts/%d", &postID); err == nil {
			input.Trackables = []views.Trackable{views.TrackableRef{Type: "post", ID: postID}}
		}

		if _, err := s.Store.Record(ctx, input); err != nil {
			return fmt.Errorf("failed to record view %d: %w", i, err)
		}
	}

	s.Logger.Info("Seeding completed successfully",
		slog.Int("viewCount", s.ViewCount),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}
