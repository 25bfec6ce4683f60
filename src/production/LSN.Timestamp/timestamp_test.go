package timestamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Errors"
)

var received = time.Date(2025, 3, 14, 9, 26, 53, 589000000, time.UTC)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"canonical", "2025-03-14 08:00:00", "2025-03-14 08:00:00"},
		{"doubled space", "2025-03-14  08:00:00", "2025-03-14 08:00:00"},
		{"padded", "  2025-03-14 08:00:00\t", "2025-03-14 08:00:00"},
		{"fractional seconds", "2025-03-14 08:00:00.123", "2025-03-14 08:00:00"},
		{"iso utc", "2025-03-14T08:00:00Z", "2025-03-14 08:00:00"},
		{"iso with offset", "2025-03-14T10:00:00+02:00", "2025-03-14 08:00:00"},
		{"iso zone-less", "2025-03-14T08:00:00", "2025-03-14 08:00:00"},
		{"gateway dashed", "2025-03-14-08:00:00", "2025-03-14 08:00:00"},
		{"empty uses receive time", "", "2025-03-14 09:26:53"},
		{"blank uses receive time", "   ", "2025-03-14 09:26:53"},
		{"unparsable kept raw", "uptime 4711", "uptime 4711"},
		{"raw not trimmed when unparsable", " 14/03/25 ", " 14/03/25 "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw, received))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	once := Normalize("2025-03-14   08:00:00", received)
	assert.Equal(t, once, Normalize(once, received.Add(time.Hour)))
}

func TestForViewer(t *testing.T) {
	d := ForViewer("2025-01-15 12:00:00", "America/New_York")

	assert.Equal(t, "2025-01-15T12:00:00Z", d.UTC)
	assert.Equal(t, "2025-01-15T07:00:00-05:00", d.Local)
	assert.Equal(t, "2025-01-15 07:00:00 EST", d.Formatted)
	assert.Equal(t, "America/New_York", d.Timezone)
}

func TestForViewerFailsSoft(t *testing.T) {
	t.Run("unknown zone", func(t *testing.T) {
		d := ForViewer("2025-01-15 12:00:00", "Not/AZone")
		assert.Equal(t, Display{UTC: "2025-01-15 12:00:00", Local: "2025-01-15 12:00:00", Formatted: "2025-01-15 12:00:00", Timezone: "UTC"}, d)
	})
	t.Run("unparsable value", func(t *testing.T) {
		d := ForViewer("garbage", "Europe/Berlin")
		assert.Equal(t, "garbage", d.UTC)
		assert.Equal(t, "garbage", d.Formatted)
		assert.Equal(t, "UTC", d.Timezone)
	})
}

func TestValidateZone(t *testing.T) {
	loc, err := ValidateZone("Asia/Kolkata")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc.String())

	for _, name := range []string{"", "Local", "Not/AZone"} {
		_, err := ValidateZone(name)
		assert.True(t, apperrors.Is(err, apperrors.KindInvalidTimezone), name)
	}
}

func TestResolveZoneFallsBackToUTC(t *testing.T) {
	loc, name := ResolveZone("Mars/Olympus")
	assert.Equal(t, time.UTC, loc)
	assert.Equal(t, "UTC", name)
}

func TestStoreLayoutSortsLexically(t *testing.T) {
	a := FormatStore(received)
	b := FormatStore(received.Add(time.Microsecond))
	c := FormatStore(received.Add(10 * time.Hour))

	assert.Less(t, a, b)
	assert.Less(t, b, c)

	back, err := ParseStore(a)
	require.NoError(t, err)
	assert.True(t, back.Equal(received))
}
