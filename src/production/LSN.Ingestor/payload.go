package ingestor

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	apperrors "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Errors"
	units "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Units"
)

// Payload is one inbound reading as a flat record of named fields.
// Unknown fields are ignored.
type Payload map[string]interface{}

// temperatureField pairs a payload key with the unit it implies.
// An empty unit defers to temperature_unit or the deployment input unit.
type temperatureField struct {
	key  string
	unit units.Unit
}

var temperatureFields = []temperatureField{
	{"temperature_f", units.Fahrenheit},
	{"temperature_c", units.Celsius},
	{"temperature", ""},
}

var (
	pressureKeys        = []string{"pressure_hpa", "pressure"}
	sourceTimestampKeys = []string{"timestamp", "gateway_timestamp"}
)

// fieldErrors collects per-field type problems so one response names them all
type fieldErrors []string

func (e *fieldErrors) add(field string) {
	*e = append(*e, field)
}

func (e fieldErrors) err() error {
	if len(e) == 0 {
		return nil
	}
	return apperrors.NewValidation("Invalid field values", e...)
}

// nodeID accepts a string or an integral number
func (p Payload) nodeID(errs *fieldErrors) string {
	raw, ok := p["node_id"]
	if !ok || raw == nil {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	case int:
		return strconv.Itoa(v)
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return v.String()
		}
	}
	errs.add("node_id")
	return ""
}

// number reads an optional measurement given as a JSON number or numeric string
func (p Payload) number(key string, errs *fieldErrors) *float64 {
	raw, ok := p[key]
	if !ok || raw == nil {
		return nil
	}
	var out float64
	switch v := raw.(type) {
	case float64:
		out = v
	case int:
		out = float64(v)
	case int64:
		out = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			errs.add(key)
			return nil
		}
		out = f
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			errs.add(key)
			return nil
		}
		out = f
	default:
		errs.add(key)
		return nil
	}
	if math.IsNaN(out) || math.IsInf(out, 0) {
		errs.add(key)
		return nil
	}
	return &out
}

func (p Payload) integer(key string, errs *fieldErrors) *int64 {
	f := p.number(key, errs)
	if f == nil {
		return nil
	}
	if *f != math.Trunc(*f) {
		errs.add(key)
		return nil
	}
	v := int64(*f)
	return &v
}

// text reads an optional string; numbers are rendered without exponent
func (p Payload) text(key string, errs *fieldErrors) *string {
	raw, ok := p[key]
	if !ok || raw == nil {
		return nil
	}
	switch v := raw.(type) {
	case string:
		return &v
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		return &s
	case json.Number:
		s := v.String()
		return &s
	}
	errs.add(key)
	return nil
}

// firstNumber returns the value of the first present key
func (p Payload) firstNumber(keys []string, errs *fieldErrors) *float64 {
	for _, key := range keys {
		if v := p.number(key, errs); v != nil {
			return v
		}
	}
	return nil
}

func (p Payload) firstText(keys []string, errs *fieldErrors) *string {
	for _, key := range keys {
		if v := p.text(key, errs); v != nil && strings.TrimSpace(*v) != "" {
			return v
		}
	}
	return nil
}

// temperature resolves the aliased temperature fields and converts to the store unit
func (p Payload) temperature(input, storage units.Unit, errs *fieldErrors) *float64 {
	for _, field := range temperatureFields {
		v := p.number(field.key, errs)
		if v == nil {
			continue
		}
		unit := field.unit
		if unit == "" {
			unit = input
			if declared := p.text("temperature_unit", errs); declared != nil {
				parsed, err := units.ParseUnit(*declared)
				if err != nil {
					errs.add("temperature_unit")
					return nil
				}
				unit = parsed
			}
		}
		converted := units.Convert(*v, unit, storage)
		return &converted
	}
	return nil
}
