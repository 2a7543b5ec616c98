package cruncher

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"tracker/internal/pkg/async"
	"tracker/internal/timeframe"
)

// TimeSeries holds one count per calendar bucket, oldest first. Labels[i]
// is the end instant Counts[i] was computed for.
type TimeSeries struct {
	Unit   timeframe.Unit `json:"-"`
	Labels []time.Time    `json:"labels"`
	Counts []int64        `json:"counts"`
}

// Len returns the number of buckets.
func (s TimeSeries) Len() int { return len(s.Counts) }

// Total sums every bucket.
func (s TimeSeries) Total() int64 {
	var total int64
	for _, n := range s.Counts {
		total += n
	}
	return total
}

// labels returns the bucket labels of a series over (from, until], newest
// first. The first label is the start of until's day and each next one is
// one unit before the previous label, stopping once a label would no longer
// be after from. There is always at least one label.
//
// Stepping is cumulative, so a month-end clamp carries forward: Mar 31 steps
// to Feb 29 and then to Jan 29, not Jan 31.
func labels(unit timeframe.Unit, from, until time.Time) []time.Time {
	label := timeframe.StartOfDay(until)

	out := []time.Time{label}
	for {
		label = timeframe.Sub(label, unit, 1)
		if !label.After(from) {
			return out
		}
		out = append(out, label)
	}
}

// CountPer splits (from, until] into unit-long buckets and counts each one
// with RelativeCount. A zero until means now. A degenerate range still
// yields one bucket, ending at the start of until's day.
func (c *Cruncher) CountPer(ctx context.Context, unit timeframe.Unit, from, until time.Time, f Filter) (TimeSeries, error) {
	if !unit.Valid() {
		return TimeSeries{}, fmt.Errorf("unsupported time unit: %v", unit)
	}
	if from.IsZero() {
		return TimeSeries{}, fmt.Errorf("%w: series needs a start", ErrInvalidRange)
	}
	if until.IsZero() {
		until = c.now()
	}

	ends := labels(unit, from, until)
	counts, err := c.bucketCounts(ctx, unit, ends, f)
	if err != nil {
		return TimeSeries{}, err
	}

	slices.Reverse(ends)
	slices.Reverse(counts)

	c.observer.Buckets(unit.String(), len(ends))
	c.logger.Debug("Computed time series",
		slog.String("unit", unit.String()),
		slog.Int("buckets", len(ends)),
		slog.Time("from", from),
		slog.Time("until", until))

	return TimeSeries{Unit: unit, Labels: ends, Counts: counts}, nil
}

func (c *Cruncher) bucketCounts(ctx context.Context, unit timeframe.Unit, ends []time.Time, f Filter) ([]int64, error) {
	counts := make([]int64, len(ends))

	if c.concurrency <= 1 || len(ends) == 1 {
		for i, end := range ends {
			n, err := c.RelativeCount(ctx, unit, end, f)
			if err != nil {
				return nil, err
			}
			counts[i] = n
		}
		return counts, nil
	}

	tasks := make([]async.Task[int64], len(ends))
	for i, end := range ends {
		tasks[i] = async.Task[int64]{
			Index: i,
			Execute: func(ctx context.Context) (int64, error) {
				return c.RelativeCount(ctx, unit, end, f)
			},
		}
	}

	for _, result := range async.NewPool[int64](c.concurrency).Execute(ctx, tasks) {
		if result.Err != nil {
			return nil, result.Err
		}
		counts[result.Index] = result.Data
	}
	return counts, nil
}

func (c *Cruncher) CountPerMonth(ctx context.Context, from, until time.Time, f Filter) (TimeSeries, error) {
	return c.CountPer(ctx, timeframe.Month, from, until, f)
}

func (c *Cruncher) CountPerWeek(ctx context.Context, from, until time.Time, f Filter) (TimeSeries, error) {
	return c.CountPer(ctx, timeframe.Week, from, until, f)
}

func (c *Cruncher) CountPerDay(ctx context.Context, from, until time.Time, f Filter) (TimeSeries, error) {
	return c.CountPer(ctx, timeframe.Day, from, until, f)
}
