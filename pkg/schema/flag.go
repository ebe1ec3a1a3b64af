package schema

import (
	"bytes"
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// Flag is a boolean that the server encodes as 0/1.
type Flag bool

func parseFlag(s string) Flag {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

func (f *Flag) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = false
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = parseFlag(s)
		return nil
	}
	if bytes.Equal(b, []byte("true")) || bytes.Equal(b, []byte("false")) {
		*f = Flag(bytes.Equal(b, []byte("true")))
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = n != 0
	return nil
}

func (f Flag) MarshalYAML() (any, error) {
	if f {
		return 1, nil
	}
	return 0, nil
}

func (f *Flag) UnmarshalYAML(n *yaml.Node) error {
	*f = parseFlag(n.Value)
	return nil
}
