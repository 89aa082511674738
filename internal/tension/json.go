package tension

import (
	"encoding/json"
	"fmt"
	"math"
)

// Number is a float64 whose JSON form carries NaN and infinities as the
// strings "NaN", "+Inf" and "-Inf". Finite values encode as plain numbers.
type Number float64

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	switch {
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	case math.IsInf(f, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(f)
}

// UnmarshalJSON implements json.Unmarshaler. It accepts plain numbers and
// the strings written by MarshalJSON.
func (n *Number) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch s {
		case "NaN":
			*n = Number(math.NaN())
		case "+Inf", "Inf":
			*n = Number(math.Inf(1))
		case "-Inf":
			*n = Number(math.Inf(-1))
		default:
			return fmt.Errorf("invalid number %q", s)
		}
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// MarshalJSON encodes the table with non-finite values as strings.
func (v Values) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	m := make(map[string]Number, len(v))
	for id, val := range v {
		m[id] = Number(val)
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes a table written by MarshalJSON or a plain JSON
// object of numbers.
func (v *Values) UnmarshalJSON(data []byte) error {
	var m map[string]Number
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if m == nil {
		*v = nil
		return nil
	}
	out := make(Values, len(m))
	for id, n := range m {
		out[id] = float64(n)
	}
	*v = out
	return nil
}
