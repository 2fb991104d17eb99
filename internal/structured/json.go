package structured

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidJSON = errors.New("structured: invalid json")

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.ToAny())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Parse decodes one JSON document into a Value. Numbers become float64.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if dec.More() {
		return Value{}, fmt.Errorf("%w: trailing data", ErrInvalidJSON)
	}
	return FromAny(raw), nil
}

// MustParse is Parse for literals in tests and tables.
func MustParse(data string) Value {
	v, err := Parse([]byte(data))
	if err != nil {
		panic(err)
	}
	return v
}
