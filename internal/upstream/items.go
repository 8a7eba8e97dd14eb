package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Shape describes how the feed serialized the item payload.
type Shape int

const (
	ShapeEmpty Shape = iota // absent, null or a placeholder string
	ShapeOne                // a single object
	ShapeMany               // an array of objects
)

func (s Shape) String() string {
	switch s {
	case ShapeOne:
		return "one"
	case ShapeMany:
		return "many"
	default:
		return "empty"
	}
}

// RawFields is one upstream row with its original field names.
type RawFields map[string]any

// Items is the tagged result of decoding the feed's items wrapper.
type Items struct {
	Shape Shape
	rows  []RawFields
}

// List returns the rows regardless of the shape they arrived in.
func (it Items) List() []RawFields {
	if len(it.rows) == 0 {
		return []RawFields{}
	}
	out := make([]RawFields, len(it.rows))
	copy(out, it.rows)
	return out
}

// decodeItems normalizes body.items. The feed sends "" when there are no
// results, {"item": {...}} for exactly one and {"item": [...]} for several.
func decodeItems(raw json.RawMessage) (Items, error) {
	raw = bytes.TrimSpace(raw)
	if isBlank(raw) {
		return Items{Shape: ShapeEmpty}, nil
	}
	if raw[0] != '{' {
		// Placeholder strings and other scalars carry no rows.
		return Items{Shape: ShapeEmpty}, nil
	}

	var wrapper struct {
		Item json.RawMessage `json:"item"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return Items{}, fmt.Errorf("decode items wrapper: %w", err)
	}

	item := bytes.TrimSpace(wrapper.Item)
	switch {
	case isBlank(item):
		return Items{Shape: ShapeEmpty}, nil
	case item[0] == '{':
		row, err := decodeRow(item)
		if err != nil {
			return Items{}, fmt.Errorf("decode single item: %w", err)
		}
		return Items{Shape: ShapeOne, rows: []RawFields{row}}, nil
	case item[0] == '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(item, &elems); err != nil {
			return Items{}, fmt.Errorf("decode item array: %w", err)
		}
		rows := make([]RawFields, 0, len(elems))
		for _, elem := range elems {
			elem = bytes.TrimSpace(elem)
			if len(elem) == 0 || elem[0] != '{' {
				continue
			}
			row, err := decodeRow(elem)
			if err != nil {
				continue
			}
			rows = append(rows, row)
		}
		return Items{Shape: ShapeMany, rows: rows}, nil
	default:
		return Items{Shape: ShapeEmpty}, nil
	}
}

func decodeRow(raw json.RawMessage) (RawFields, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var row RawFields
	if err := dec.Decode(&row); err != nil {
		return nil, err
	}
	return row, nil
}

func isBlank(raw []byte) bool {
	s := string(raw)
	return s == "" || s == "null" || s == `""`
}

// String returns the field formatted as text, or "" when it is missing or
// not a scalar.
func (f RawFields) String(key string) string {
	switch v := f[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Trimmed is String with surrounding whitespace removed.
func (f RawFields) Trimmed(key string) string {
	return strings.TrimSpace(f.String(key))
}

// Int64 parses an integer field, accepting thousands separators ("15,500").
// ok is false when the field is missing or not an integer.
func (f RawFields) Int64(key string) (n int64, ok bool) {
	s := strings.ReplaceAll(f.Trimmed(key), ",", "")
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Int64Ptr is Int64 returning nil for missing values.
func (f RawFields) Int64Ptr(key string) *int64 {
	n, ok := f.Int64(key)
	if !ok {
		return nil
	}
	return &n
}
