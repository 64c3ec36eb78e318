package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindAny      Kind = "any"
	KindArray    Kind = "array"
	KindBool     Kind = "bool"
	KindDateTime Kind = "datetime"
	KindInteger  Kind = "integer"
	KindNumber   Kind = "number"
	KindObject   Kind = "object"
	KindString   Kind = "string"
	KindUUID     Kind = "uuid"
)

// ValueType describes the shape a json value must have to be accepted
type ValueType struct {
	Kind   Kind
	Elem   *ValueType
	Fields []Field
}

type Field struct {
	Name string
	Type ValueType
}

// ParseValueType parses type names such as "string", "uuid" or "integer[]"
func ParseValueType(name string) (ValueType, error) {
	name = strings.TrimSpace(name)

	if elemName, ok := strings.CutSuffix(name, "[]"); ok {
		elem, err := ParseValueType(elemName)
		if err != nil {
			return ValueType{}, err
		}
		return ValueType{Kind: KindArray, Elem: &elem}, nil
	}

	switch k := Kind(strings.ToLower(name)); k {
	case KindAny, KindBool, KindDateTime, KindInteger, KindNumber, KindString, KindUUID:
		return ValueType{Kind: k}, nil
	case "":
		return ValueType{Kind: KindAny}, nil
	}

	return ValueType{}, fmt.Errorf("unknown value type %q", name)
}

func (vt ValueType) String() string {
	if vt.Kind == KindArray && vt.Elem != nil {
		return vt.Elem.String() + "[]"
	}
	return string(vt.Kind)
}

func (vt ValueType) field(name string) (Field, bool) {
	for _, f := range vt.Fields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return Field{}, false
}

// Decode converts a value produced by a json.Decoder with UseNumber enabled
// into the go type matching this ValueType.
func (vt ValueType) Decode(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch vt.Kind {
	case KindAny:
		return v, nil

	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}

	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}

	case KindInteger:
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				return i, nil
			}
		}

	case KindNumber:
		if n, ok := v.(json.Number); ok {
			if f, err := n.Float64(); err == nil {
				return f, nil
			}
		}

	case KindUUID:
		if s, ok := v.(string); ok {
			if id, err := uuid.Parse(s); err == nil {
				return id, nil
			}
		}

	case KindDateTime:
		if s, ok := v.(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return t, nil
			}
		}

	case KindArray:
		if arr, ok := v.([]any); ok {
			result := make([]any, 0, len(arr))
			for idx, item := range arr {
				decoded, err := vt.Elem.Decode(item)
				if err != nil {
					return nil, fmt.Errorf("[%d]: %w", idx, err)
				}
				result = append(result, decoded)
			}
			return result, nil
		}

	case KindObject:
		if obj, ok := v.(map[string]any); ok {
			result := make(map[string]any, len(obj))
			for k, item := range obj {
				f, found := vt.field(k)
				if !found {
					return nil, fmt.Errorf("property '%s' is not defined", k)
				}
				decoded, err := f.Type.Decode(item)
				if err != nil {
					return nil, fmt.Errorf("property '%s': %w", f.Name, err)
				}
				result[f.Name] = decoded
			}
			return result, nil
		}
	}

	return nil, fmt.Errorf("error converting value %s to type '%s'", describe(v), vt.String())
}

func describe(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// Coerce is like Decode but also accepts values that already have the go type
// matching this ValueType, such as values taken from a decoded record.
func (vt ValueType) Coerce(v any) (any, error) {
	switch t := v.(type) {
	case int64:
		if vt.Kind == KindInteger {
			return t, nil
		}
		if vt.Kind == KindNumber {
			return float64(t), nil
		}
	case float64:
		if vt.Kind == KindNumber {
			return t, nil
		}
	case uuid.UUID:
		if vt.Kind == KindUUID {
			return t, nil
		}
	case time.Time:
		if vt.Kind == KindDateTime {
			return t, nil
		}
	case []any:
		if vt.Kind == KindArray {
			result := make([]any, 0, len(t))
			for idx, item := range t {
				coerced, err := vt.Elem.Coerce(item)
				if err != nil {
					return nil, fmt.Errorf("[%d]: %w", idx, err)
				}
				result = append(result, coerced)
			}
			return result, nil
		}
	}

	return vt.Decode(v)
}
