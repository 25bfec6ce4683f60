package query

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	lsnmodels "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Models"
	timestamp "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Timestamp"
)

// ExportFilename names an export attachment
func ExportFilename(days int, ext string) string {
	return fmt.Sprintf("sensor_data_%dd.%s", days, ext)
}

// WriteCSV writes a header row then one row per reading in lsnmodels.ExportColumns order.
// Absent values are empty cells.
func WriteCSV(w io.Writer, rows []lsnmodels.Reading) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(lsnmodels.ExportColumns); err != nil {
		return err
	}
	record := make([]string, len(lsnmodels.ExportColumns))
	for i := range rows {
		for j, v := range exportValues(&rows[i]) {
			record[j] = cell(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes a JSON array of objects whose keys follow lsnmodels.ExportColumns.
// encoding/json sorts map keys, so objects are emitted field by field.
func WriteJSON(w io.Writer, rows []lsnmodels.Reading) error {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i := range rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for j, v := range exportValues(&rows[i]) {
			if j > 0 {
				buf.WriteByte(',')
			}
			key, _ := json.Marshal(lsnmodels.ExportColumns[j])
			buf.Write(key)
			buf.WriteByte(':')
			val, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("export row %d: %w", rows[i].ID, err)
			}
			buf.Write(val)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	_, err := w.Write(buf.Bytes())
	return err
}

// exportValues lines up with lsnmodels.ExportColumns
func exportValues(r *lsnmodels.Reading) []interface{} {
	return []interface{}{
		r.ID,
		r.NodeID,
		r.SourceTimestamp,
		r.NodeTimestamp,
		r.StoredTimestamp,
		r.Temperature,
		r.Humidity,
		r.Pressure,
		r.BatteryVoltage,
		r.RSSI,
		r.SNR,
		r.HeatIndex,
		r.DewPoint,
		r.CollectionCycle,
		r.GatewayID,
		r.ReceivedAt.Format(timestamp.StoreLayout),
	}
}

func cell(v interface{}) string {
	switch x := v.(type) {
	case int64:
		return strconv.FormatInt(x, 10)
	case string:
		return x
	case *string:
		if x == nil {
			return ""
		}
		return *x
	case *float64:
		if x == nil {
			return ""
		}
		return strconv.FormatFloat(*x, 'f', -1, 64)
	case *int64:
		if x == nil {
			return ""
		}
		return strconv.FormatInt(*x, 10)
	}
	return fmt.Sprint(v)
}
