package lsningestor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayload(t *testing.T) {
	payload, err := DecodePayload([]byte(`  {"node_id": 1001, "temperature": 22.50}` + "\n"))
	require.NoError(t, err)
	assert.Equal(t, json.Number("1001"), payload["node_id"])
	assert.Equal(t, json.Number("22.50"), payload["temperature"])

	for _, raw := range []string{"", "   ", "LoRa init ok", "[1,2]", `{"node_id":`} {
		_, err := DecodePayload([]byte(raw))
		assert.ErrorIs(t, err, ErrNotJSON, raw)
	}
}

func TestNodeIDOf(t *testing.T) {
	assert.Equal(t, "1001", NodeIDOf(map[string]interface{}{"node_id": json.Number("1001")}))
	assert.Equal(t, "n-7", NodeIDOf(map[string]interface{}{"nodeId": " n-7 "}))
	assert.Equal(t, "42", NodeIDOf(map[string]interface{}{"id": float64(42)}))
	assert.Equal(t, "unknown", NodeIDOf(map[string]interface{}{"node_id": ""}))
	assert.Equal(t, "unknown", NodeIDOf(map[string]interface{}{}))
}

func TestParseTopic(t *testing.T) {
	gw, node, ok := ParseTopic("lora/gw-01/1001")
	require.True(t, ok)
	assert.Equal(t, "gw-01", gw)
	assert.Equal(t, "1001", node)

	for _, topic := range []string{"lora/gw-01", "lora//1001", "lora/gw-01/1001/extra", ""} {
		_, _, ok := ParseTopic(topic)
		assert.False(t, ok, topic)
	}
}

func TestFillIDsKeepsPayloadValues(t *testing.T) {
	payload := map[string]interface{}{"temperature": json.Number("21")}
	FillIDs(payload, "gw-01", "1001")
	assert.Equal(t, "gw-01", payload["gateway_id"])
	assert.Equal(t, "1001", payload["node_id"])

	payload = map[string]interface{}{"gateway_id": "gw-02", "node_id": json.Number("7")}
	FillIDs(payload, "gw-01", "1001")
	assert.Equal(t, "gw-02", payload["gateway_id"])
	assert.Equal(t, json.Number("7"), payload["node_id"])
}
