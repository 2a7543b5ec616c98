package main

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"tracker/internal/cruncher"
	"tracker/internal/timeframe"
)

func TestParseArgs(t *testing.T) {
	name, args := parseArgs(nil)
	assert.Equal(t, "help", name)
	assert.Empty(t, args)

	name, args = parseArgs([]string{"series", "day", "-from", "2024-03-01"})
	assert.Equal(t, "series", name)
	assert.Equal(t, []string{"day", "-from", "2024-03-01"}, args)
}

func TestFindCommand(t *testing.T) {
	for _, cmd := range commands {
		assert.Same(t, cmd, findCommand(cmd.Name()))
		assert.NotEmpty(t, cmd.Description())
	}
	assert.Nil(t, findCommand("create-admin-user"))
}

func TestPrintUsageListsCommands(t *testing.T) {
	var buf bytes.Buffer
	printUsage(&buf)

	for _, cmd := range commands {
		assert.Contains(t, buf.String(), cmd.Name())
	}
}

func sampleStats() statsReport {
	last := time.Date(2024, 3, 15, 13, 0, 0, 0, time.UTC)
	return statsReport{
		LastVisited: &last,
		Total:       5,
		Today:       2,
		Relative:    []relativeCount{{Unit: "day", Count: 2}, {Unit: "week", Count: 4}},
	}
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, formatJSON, sampleStats()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, float64(5), decoded["total"])
	assert.Equal(t, "2024-03-15T13:00:00Z", decoded["last_visited"])
	assert.NotContains(t, decoded, "locale")
}

func TestRenderYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, formatYAML, sampleStats()))

	var decoded struct {
		Total    int64 `yaml:"total"`
		Relative []struct {
			Unit  string `yaml:"unit"`
			Count int64  `yaml:"count"`
		} `yaml:"relative"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, int64(5), decoded.Total)
	require.Len(t, decoded.Relative, 2)
	assert.Equal(t, "week", decoded.Relative[1].Unit)
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, formatTable, sampleStats()))

	out := buf.String()
	assert.Contains(t, out, "last visited  2024-03-15T13:00:00Z")
	assert.Contains(t, out, "last week")

	buf.Reset()
	series := cruncher.TimeSeries{
		Unit:   timeframe.Day,
		Labels: []time.Time{time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		Counts: []int64{1, 3},
	}
	require.NoError(t, render(&buf, formatTable, newSeriesReport(series)))
	assert.Contains(t, buf.String(), "2024-03-15  3")
	assert.Contains(t, buf.String(), "total       4")
}

func TestRenderRejectsUnknownFormat(t *testing.T) {
	assert.Error(t, render(&bytes.Buffer{}, "xml", sampleStats()))
	assert.Error(t, render(&bytes.Buffer{}, formatTable, 42))
}

func TestResolveFormat(t *testing.T) {
	assert.Equal(t, formatYAML, resolveFormat("YAML", os.Stdout))

	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, formatJSON, resolveFormat("", f))
}
