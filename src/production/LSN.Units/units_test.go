package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnit(t *testing.T) {
	for in, want := range map[string]Unit{"F": Fahrenheit, "f": Fahrenheit, "Fahrenheit": Fahrenheit, " c ": Celsius, "CELSIUS": Celsius} {
		got, err := ParseUnit(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseUnit("K")
	assert.Error(t, err)
}

func TestKnownPoints(t *testing.T) {
	assert.InDelta(t, 0.0, FahrenheitToCelsius(32), 1e-9)
	assert.InDelta(t, 100.0, FahrenheitToCelsius(212), 1e-9)
	assert.InDelta(t, -40.0, CelsiusToFahrenheit(-40), 1e-9)
	assert.InDelta(t, 24.0, FahrenheitToCelsius(75.2), 1e-9)
	assert.Equal(t, 20.0, Round1(FahrenheitToCelsius(68.0)))
}

func TestRoundTripWithinDisplayRounding(t *testing.T) {
	for f := -40.0; f <= 140.0; f += 0.1 {
		in := Round1(f)
		back := Round1(Convert(Convert(in, Fahrenheit, Celsius), Celsius, Fahrenheit))
		assert.InDelta(t, in, back, 1e-9, "input %.1f", in)
	}
}

func TestConvertSameUnitAndNil(t *testing.T) {
	assert.Equal(t, 21.5, Convert(21.5, Celsius, Celsius))
	assert.Nil(t, ConvertPtr(nil, Fahrenheit, Celsius))

	v := 212.0
	got := ConvertPtr(&v, Fahrenheit, Celsius)
	require.NotNil(t, got)
	assert.InDelta(t, 100.0, *got, 1e-9)
	assert.Equal(t, 212.0, v)
}
