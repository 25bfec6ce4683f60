package lsningestor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotJSON marks gateway output that is not a JSON object
var ErrNotJSON = errors.New("payload is not a JSON object")

// DecodePayload parses one gateway message, keeping numbers exact
func DecodePayload(raw []byte) (map[string]interface{}, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, ErrNotJSON
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload map[string]interface{}
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJSON, err)
	}
	return payload, nil
}

// NodeIDOf returns the node identifier carried by a payload, or "unknown"
func NodeIDOf(payload map[string]interface{}) string {
	for _, key := range []string{"node_id", "nodeId", "id"} {
		switch v := payload[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return "unknown"
}

// ParseTopic splits lora/<gateway_id>/<node_id>. Either part may be a
// wildcard segment in the subscription but is always concrete on delivery.
func ParseTopic(topic string) (gatewayID, nodeID string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// FillIDs sets gateway_id and node_id from the topic when the payload lacks them
func FillIDs(payload map[string]interface{}, gatewayID, nodeID string) {
	if _, ok := payload["gateway_id"]; !ok && gatewayID != "" {
		payload["gateway_id"] = gatewayID
	}
	if NodeIDOf(payload) == "unknown" && nodeID != "" {
		payload["node_id"] = nodeID
	}
}
