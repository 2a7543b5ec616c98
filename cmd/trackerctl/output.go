package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"tracker/internal/cruncher"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

type relativeCount struct {
	Unit  string `json:"unit" yaml:"unit"`
	Count int64  `json:"count" yaml:"count"`
}

type statsReport struct {
	Locale      string          `json:"locale,omitempty" yaml:"locale,omitempty"`
	LastVisited *time.Time      `json:"last_visited" yaml:"last_visited"`
	Total       int64           `json:"total" yaml:"total"`
	Today       int64           `json:"today" yaml:"today"`
	Relative    []relativeCount `json:"relative" yaml:"relative"`
}

type seriesPoint struct {
	Label time.Time `json:"label" yaml:"label"`
	Count int64     `json:"count" yaml:"count"`
}

type seriesReport struct {
	Unit   string        `json:"unit" yaml:"unit"`
	Total  int64         `json:"total" yaml:"total"`
	Points []seriesPoint `json:"points" yaml:"points"`
}

func newSeriesReport(s cruncher.TimeSeries) seriesReport {
	report := seriesReport{Unit: s.Unit.String(), Total: s.Total()}
	for i := range s.Labels {
		report.Points = append(report.Points, seriesPoint{Label: s.Labels[i], Count: s.Counts[i]})
	}
	return report
}

// resolveFormat falls back to a table on a terminal and JSON when piped.
func resolveFormat(requested string, out *os.File) string {
	if requested != "" {
		return strings.ToLower(requested)
	}
	if term.IsTerminal(int(out.Fd())) {
		return formatTable
	}
	return formatJSON
}

func render(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case formatTable:
		return renderTable(w, v)
	default:
		return fmt.Errorf("unknown format %q: expected table, json or yaml", format)
	}
}

func renderTable(w io.Writer, v any) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	switch r := v.(type) {
	case statsReport:
		if r.Locale != "" {
			fmt.Fprintf(tw, "locale\t%s\n", r.Locale)
		}
		last := "never"
		if r.LastVisited != nil {
			last = r.LastVisited.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "last visited\t%s\n", last)
		fmt.Fprintf(tw, "total\t%d\n", r.Total)
		fmt.Fprintf(tw, "today\t%d\n", r.Today)
		for _, rc := range r.Relative {
			fmt.Fprintf(tw, "last %s\t%d\n", rc.Unit, rc.Count)
		}
	case seriesReport:
		fmt.Fprintf(tw, "%s\tcount\n", r.Unit)
		for _, p := range r.Points {
			fmt.Fprintf(tw, "%s\t%d\n", p.Label.Format("2006-01-02"), p.Count)
		}
		fmt.Fprintf(tw, "total\t%d\n", r.Total)
	default:
		return fmt.Errorf("no table layout for %T", v)
	}

	return tw.Flush()
}
