package units

import (
	"fmt"
	"math"
	"strings"
)

// Unit is a temperature scale
type Unit string

const (
	Celsius    Unit = "C"
	Fahrenheit Unit = "F"
)

// ParseUnit accepts F, C, fahrenheit and celsius in any case
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "c", "celsius":
		return Celsius, nil
	case "f", "fahrenheit":
		return Fahrenheit, nil
	}
	return "", fmt.Errorf("unknown temperature unit %q", s)
}

// FahrenheitToCelsius converts with C = (F - 32) * 5/9
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// CelsiusToFahrenheit converts with F = C * 9/5 + 32
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// Convert moves v from one scale to another; same-scale input is returned unchanged
func Convert(v float64, from, to Unit) float64 {
	switch {
	case from == to:
		return v
	case from == Fahrenheit && to == Celsius:
		return FahrenheitToCelsius(v)
	case from == Celsius && to == Fahrenheit:
		return CelsiusToFahrenheit(v)
	}
	return v
}

// Round1 rounds half away from zero to one decimal place
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// ConvertPtr is Convert over an optional measurement
func ConvertPtr(v *float64, from, to Unit) *float64 {
	if v == nil {
		return nil
	}
	out := Convert(*v, from, to)
	return &out
}
