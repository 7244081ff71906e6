package composer

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

const labelSeparator = ":"

// ValueCodec converts a field value to and from its stored form.
type ValueCodec interface {
	Encode(value any) (any, error)
	Decode(stored any) (any, error)
}

// JSONCodec stores structured values as a JSON string.
type JSONCodec struct{}

func (JSONCodec) Encode(value any) (any, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}

	return string(b), nil
}

func (JSONCodec) Decode(stored any) (any, error) {
	s, ok := stored.(string)
	if !ok {
		return stored, nil
	}

	var value any
	if err := json.Unmarshal([]byte(s), &value); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}

	return value, nil
}

// FacetCodec converts extracted facet values into filter values, and
// filter values back into a value and a display label.
type FacetCodec interface {
	Encode(value any) []string
	Decode(encoded string, localize func(string) string) (value, label string)
}

// PlainCodec uses the value as its own label.
type PlainCodec struct{}

func (PlainCodec) Encode(value any) []string {
	return encodeStrings(value)
}

func (PlainCodec) Decode(encoded string, _ func(string) string) (string, string) {
	return encoded, encoded
}

// LabeledCodec handles "value:label" strings.
type LabeledCodec struct{}

func (LabeledCodec) Encode(value any) []string {
	return encodeStrings(value)
}

func (LabeledCodec) Decode(encoded string, _ func(string) string) (string, string) {
	value, label, found := strings.Cut(encoded, labelSeparator)
	if !found {
		return encoded, encoded
	}

	return value, label
}

// BooleanFacetCodec exposes a boolean value as a facet. False values are
// dropped unless FalseValue is set. Labels are message ids.
type BooleanFacetCodec struct {
	TrueLabel  string
	FalseValue string
	FalseLabel string
}

const booleanTrueValue = "true"

func (c BooleanFacetCodec) Encode(value any) []string {
	b, ok := value.(bool)
	if !ok {
		return nil
	}

	switch {
	case b:
		return []string{booleanTrueValue}
	case c.FalseValue != "":
		return []string{c.FalseValue}
	default:
		return nil
	}
}

func (c BooleanFacetCodec) Decode(encoded string, localize func(string) string) (string, string) {
	label := encoded

	switch encoded {
	case booleanTrueValue:
		label = c.TrueLabel
	case c.FalseValue:
		label = c.FalseLabel
	}

	if localize != nil && label != "" {
		label = localize(label)
	}

	return encoded, label
}

func encodeStrings(value any) []string {
	var values []string

	for _, s := range stringsOf(value) {
		if s = strings.TrimSpace(s); s != "" && !slices.Contains(values, s) {
			values = append(values, s)
		}
	}

	return values
}
