package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// SystemMessageKey is used for messages that can not be split into key/value pairs
const SystemMessageKey string = "SystemMessage"

// Metadata is an ordered string to string map that marshals its keys in the
// order they were first added.
type Metadata struct {
	keys   []string
	values map[string]string
}

func NewMetadata() *Metadata {
	return &Metadata{values: map[string]string{}}
}

func (m *Metadata) Set(key, value string) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

func (m *Metadata) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *Metadata) Keys() []string {
	return append([]string{}, m.keys...)
}

func (m *Metadata) Len() int {
	return len(m.keys)
}

func (m *Metadata) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')

	for idx, k := range m.keys {
		if idx > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	t, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := t.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("metadata must be a json object")
	}

	m.keys = nil
	m.values = map[string]string{}

	for dec.More() {
		t, err = dec.Token()
		if err != nil {
			return err
		}
		key, _ := t.(string)

		var value string
		if err = dec.Decode(&value); err != nil {
			return fmt.Errorf("metadata value for %s must be a string: %w", key, err)
		}

		m.Set(key, value)
	}

	_, err = dec.Token()
	return err
}

// ParseMetadata splits a message in the form "key1:value1,key2:value2" into
// metadata. Values may contain ':' but not ','. A message that does not follow
// the format is returned verbatim under SystemMessageKey. A nil message
// returns nil.
func ParseMetadata(message *string) *Metadata {
	if message == nil {
		return nil
	}

	segments := strings.Split(*message, ",")

	md := NewMetadata()
	wellFormed := true

	for _, segment := range segments {
		key, value, found := strings.Cut(segment, ":")
		key = strings.TrimSpace(key)

		if !found || key == "" {
			wellFormed = false
			break
		}

		md.Set(key, value)
	}

	if wellFormed {
		return md
	}

	fallback := NewMetadata()
	fallback.Set(SystemMessageKey, *message)
	return fallback
}
