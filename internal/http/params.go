package http

import (
	"fmt"
	"strconv"
	"time"

	"github.com/karloscodes/cartridge"
	"golang.org/x/text/language"

	"tracker/internal/cruncher"
	"tracker/internal/timeframe"
	"tracker/internal/views"
)

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// validateLocale accepts any well-formed BCP 47 tag and returns it unchanged.
func validateLocale(locale string) error {
	if locale == "" {
		return nil
	}
	if _, err := language.Parse(locale); err != nil {
		return badRequest("invalid locale %q", locale)
	}
	return nil
}

// localeFromAcceptLanguage returns the preferred tag of an Accept-Language header.
func localeFromAcceptLanguage(header string) string {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return ""
	}
	return tags[0].String()
}

// parseUint reads a positive integer route or query parameter.
func parseUint(name, value string) (uint, error) {
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil || n == 0 {
		return 0, badRequest("%s must be a positive integer", name)
	}
	return uint(n), nil
}

// trackableRef reads the trackable_type and trackable_id query parameters. ok
// is false when neither is set.
func trackableRef(c *cartridge.Context) (ref views.TrackableRef, ok bool, err error) {
	trackableType, rawID := c.Query("trackable_type"), c.Query("trackable_id")
	if trackableType == "" && rawID == "" {
		return views.TrackableRef{}, false, nil
	}
	if trackableType == "" || rawID == "" {
		return views.TrackableRef{}, false, badRequest("trackable_type and trackable_id go together")
	}
	id, err := parseUint("trackable_id", rawID)
	if err != nil {
		return views.TrackableRef{}, false, err
	}
	return views.TrackableRef{Type: trackableType, ID: id}, true, nil
}

// filter builds the cruncher filter of a stats request. A trackable scope
// without an explicit tag is tagged "<type>.<id>" so its cached counts never
// share keys with site wide ones.
func (h *Handlers) filter(c *cartridge.Context) (cruncher.Filter, error) {
	f := cruncher.Filter{
		Locale: c.Query("locale"),
		Tag:    c.Query("tag"),
	}
	if err := validateLocale(f.Locale); err != nil {
		return cruncher.Filter{}, err
	}

	ref, ok, err := trackableRef(c)
	if err != nil {
		return cruncher.Filter{}, err
	}
	if ok {
		f.Scope = h.Views.ForTrackable(ref)
		if f.Tag == "" {
			f.Tag = fmt.Sprintf("%s.%d", ref.Type, ref.ID)
		}
	}
	return f, nil
}

func (h *Handlers) instant(c *cartridge.Context, name string) (time.Time, error) {
	t, err := timeframe.ParseInstant(c.Query(name), h.location())
	if err != nil {
		return time.Time{}, badRequest("%s: %v", name, err)
	}
	return t, nil
}

func (h *Handlers) endInstant(c *cartridge.Context, name string) (time.Time, error) {
	t, err := timeframe.ParseEndInstant(c.Query(name), h.location())
	if err != nil {
		return time.Time{}, badRequest("%s: %v", name, err)
	}
	return t, nil
}

func unitParam(c *cartridge.Context) (timeframe.Unit, error) {
	unit, err := timeframe.ParseUnit(c.Params("unit"))
	if err != nil {
		return 0, badRequest("%v", err)
	}
	return unit, nil
}
