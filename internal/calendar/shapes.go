package calendar

import (
	"bytes"
	"encoding/json"

	calendar "google.golang.org/api/calendar/v3"
)

// Shape names the location the event list was found at.
type Shape string

// Shapes are tried in this order; the first that matches wins.
const (
	// ShapeContentText is a tool result whose first text content holds a
	// JSON document with items or data.items.
	ShapeContentText Shape = "content-text"
	ShapeItems       Shape = "items"
	ShapeDataItems   Shape = "data.items"
	ShapeArray       Shape = "array"
	// ShapeNone means no shape matched; the list is empty.
	ShapeNone Shape = "none"
)

type shapeProbe struct {
	shape Shape
	find  func(json.RawMessage) (json.RawMessage, bool)
}

var shapeProbes = []shapeProbe{
	{ShapeContentText, findContentText},
	{ShapeItems, findItems},
	{ShapeDataItems, findDataItems},
	{ShapeArray, findArray},
}

// ExtractEvents locates the event array in a tool result. A payload that
// matches no known shape yields no events and ShapeNone. Array entries that
// are not event objects are skipped.
func ExtractEvents(payload json.RawMessage) ([]*calendar.Event, Shape) {
	for _, probe := range shapeProbes {
		raw, ok := probe.find(payload)
		if !ok {
			continue
		}
		return decodeEvents(raw), probe.shape
	}
	return nil, ShapeNone
}

func findContentText(payload json.RawMessage) (json.RawMessage, bool) {
	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if json.Unmarshal(payload, &result) != nil || len(result.Content) == 0 {
		return nil, false
	}
	text := result.Content[0].Text
	if text == "" {
		return nil, false
	}
	inner := json.RawMessage(text)
	if !json.Valid(inner) {
		return nil, false
	}
	if items, ok := findItems(inner); ok {
		return items, true
	}
	if items, ok := findDataItems(inner); ok {
		return items, true
	}
	// Parsed text is authoritative even without an event array.
	return json.RawMessage("[]"), true
}

func findItems(payload json.RawMessage) (json.RawMessage, bool) {
	var obj struct {
		Items json.RawMessage `json:"items"`
	}
	if json.Unmarshal(payload, &obj) != nil || !isArray(obj.Items) {
		return nil, false
	}
	return obj.Items, true
}

func findDataItems(payload json.RawMessage) (json.RawMessage, bool) {
	var obj struct {
		Data json.RawMessage `json:"data"`
	}
	if json.Unmarshal(payload, &obj) != nil || len(obj.Data) == 0 {
		return nil, false
	}
	return findItems(obj.Data)
}

func findArray(payload json.RawMessage) (json.RawMessage, bool) {
	return payload, isArray(payload)
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '[' && json.Valid(raw)
}

func decodeEvents(raw json.RawMessage) []*calendar.Event {
	var entries []json.RawMessage
	if json.Unmarshal(raw, &entries) != nil {
		return nil
	}
	events := make([]*calendar.Event, 0, len(entries))
	for _, entry := range entries {
		entry = bytes.TrimSpace(entry)
		if len(entry) == 0 || entry[0] != '{' {
			continue
		}
		var ev calendar.Event
		if json.Unmarshal(entry, &ev) != nil {
			continue
		}
		events = append(events, &ev)
	}
	return events
}
