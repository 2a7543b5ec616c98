package cruncher

import (
	"strconv"
	"strings"
	"time"
)

const keyPrefix = "tracker.between."

// MakeKey derives the cache key of a range count. An empty tag or locale
// drops its segment. Bounds are truncated to whole seconds, so two ranges
// differing only below a second share a key. Locale casing is kept as given.
func MakeKey(from, until time.Time, locale, tag string) string {
	var b strings.Builder
	b.Grow(len(keyPrefix) + len(tag) + len(locale) + 24)

	b.WriteString(keyPrefix)
	if tag != "" {
		b.WriteString(tag)
		b.WriteByte('.')
	}
	if locale != "" {
		b.WriteString(locale)
		b.WriteByte('.')
	}
	b.WriteString(strconv.FormatInt(from.Unix(), 10))
	b.WriteByte('-')
	b.WriteString(strconv.FormatInt(until.Unix(), 10))
	return b.String()
}
