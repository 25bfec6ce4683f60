// Package timestamp turns client-supplied timestamp strings into the canonical
// stored form and expands stored values for display in a viewer's timezone.
package timestamp

import (
	"strings"
	"time"
	_ "time/tzdata"

	apperrors "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Errors"
)

const (
	// Canonical is the stored_timestamp layout
	Canonical = "2006-01-02 15:04:05"

	// StoreLayout is the fixed-width UTC layout of server-assigned time columns.
	// Lexical order of values equals time order.
	StoreLayout = "2006-01-02 15:04:05.000000"

	// DisplayLayout is the human-formatted viewer string
	DisplayLayout = "2006-01-02 15:04:05 MST"

	// OffsetLayout renders a zone offset as +hhmm
	OffsetLayout = "-0700"
)

// gatewayLayouts are accepted in addition to Canonical. Parsed in UTC unless the
// input carries its own offset.
var gatewayLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02-15:04:05",
	"Mon-01-02-2006--15:04:05",
	"2006/01/02 15:04:05",
}

// Display is a stored timestamp expanded for one viewer zone
type Display struct {
	UTC       string `json:"utc"`
	Local     string `json:"local"`
	Formatted string `json:"formatted"`
	Timezone  string `json:"timezone"`
}

// Normalize produces stored_timestamp from a raw client value.
// Whitespace runs collapse to one space; empty input becomes receivedAt; any
// recognised layout is re-emitted as Canonical in UTC; anything else is kept raw.
func Normalize(raw string, receivedAt time.Time) string {
	cleaned := strings.Join(strings.Fields(raw), " ")
	if cleaned == "" {
		return receivedAt.UTC().Format(Canonical)
	}
	if t, ok := parse(cleaned); ok {
		return t.UTC().Format(Canonical)
	}
	return raw
}

// Parse reads a canonical or ISO timestamp; zone-less values are taken as UTC
func Parse(s string) (time.Time, bool) {
	return parse(strings.Join(strings.Fields(s), " "))
}

func parse(s string) (time.Time, bool) {
	if t, err := time.ParseInLocation(Canonical, s, time.UTC); err == nil {
		return t, true
	}
	for _, layout := range gatewayLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ForViewer expands a stored timestamp into the viewer's zone.
// It never fails: an unknown zone or unparsable value yields the raw value in
// every field with timezone UTC.
func ForViewer(ts string, zone string) Display {
	loc, err := ValidateZone(zone)
	if err != nil {
		return fallback(ts)
	}
	t, ok := Parse(ts)
	if !ok {
		return fallback(ts)
	}
	return expand(t, loc, zone)
}

// ForViewerTime is ForViewer for a time the server already holds
func ForViewerTime(t time.Time, zone string) Display {
	loc, err := ValidateZone(zone)
	if err != nil {
		return fallback(t.UTC().Format(time.RFC3339))
	}
	return expand(t, loc, zone)
}

func expand(t time.Time, loc *time.Location, zone string) Display {
	local := t.In(loc)
	return Display{
		UTC:       t.UTC().Format(time.RFC3339),
		Local:     local.Format(time.RFC3339),
		Formatted: local.Format(DisplayLayout),
		Timezone:  strings.TrimSpace(zone),
	}
}

func fallback(raw string) Display {
	return Display{UTC: raw, Local: raw, Formatted: raw, Timezone: "UTC"}
}

// ValidateZone loads a user-supplied IANA zone name.
// "Local" is rejected since it names whatever the host happens to use.
func ValidateZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "Local" {
		return nil, apperrors.NewInvalidTimezone(name, nil)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, apperrors.NewInvalidTimezone(name, err)
	}
	return loc, nil
}

// ResolveZone is ValidateZone with a silent UTC fallback, for display paths
func ResolveZone(name string) (*time.Location, string) {
	loc, err := ValidateZone(name)
	if err != nil {
		return time.UTC, "UTC"
	}
	return loc, strings.TrimSpace(name)
}

// FormatStore renders a server time for a TEXT time column
func FormatStore(t time.Time) string {
	return t.UTC().Format(StoreLayout)
}

// ParseStore reads a TEXT time column written by FormatStore
func ParseStore(s string) (time.Time, error) {
	return time.ParseInLocation(StoreLayout, s, time.UTC)
}
