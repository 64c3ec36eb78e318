package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// IDField is the name of the identifier every record type has
const IDField string = "ID"

// Resolver maps record type names to their schemas
type Resolver interface {
	Resolve(recordType string) (*Schema, bool)
}

// Record is a decoded record keyed by field name
type Record map[string]any

// ID returns the identifier of the record or uuid.Nil if it has none
func (r Record) ID() uuid.UUID {
	id, _ := r[IDField].(uuid.UUID)
	return id
}

// Schema describes a record type and the filter types that can be used when
// reading it.
type Schema struct {
	name    string
	record  ValueType
	filters map[string]FilterType
}

// FilterType is a named filter whose parameter is decoded as Parameter and
// then applied as Operation on Property. Filters with an object parameter
// compare each parameter field with the record field of the same name.
type FilterType struct {
	Name      string
	Parameter ValueType
	Property  string
	Operation string
}

func (s *Schema) Name() string {
	return s.name
}

// Fields returns the canonical field names of the record type, ID first
func (s *Schema) Fields() []string {
	names := make([]string, 0, len(s.record.Fields))
	for _, f := range s.record.Fields {
		names = append(names, f.Name)
	}
	return names
}

// Field returns the canonical name and type of a field, matched without regard to case
func (s *Schema) Field(name string) (Field, bool) {
	return s.record.field(name)
}

// FilterType returns the filter type with the given name
func (s *Schema) FilterType(name string) (FilterType, bool) {
	ft, ok := s.filters[name]
	return ft, ok
}

// DecodeRecord decodes a single json object into a Record of this type. Errors
// may contain values from the input and must not be shown to clients.
func (s *Schema) DecodeRecord(raw json.RawMessage) (Record, error) {
	var v any

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("error converting value %s to type '%s': %w", string(raw), s.name, err)
	}

	if _, ok := v.(map[string]any); !ok {
		return nil, fmt.Errorf("error converting value %s to type '%s'", string(raw), s.name)
	}

	decoded, err := s.record.Decode(v)
	if err != nil {
		return nil, fmt.Errorf("error converting value %s to type '%s': %w", string(raw), s.name, err)
	}

	return Record(decoded.(map[string]any)), nil
}

// DecodeParameter decodes the raw value of a filter of the given type
func (ft FilterType) DecodeParameter(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("filter '%s' requires a parameter value of type %s", ft.Name, ft.Parameter.String())
	}

	var v any

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("filter parameter: '%s'. %w", string(raw), err)
	}

	decoded, err := ft.Parameter.Decode(v)
	if err != nil {
		return nil, fmt.Errorf("filter parameter: '%s'. %w", string(raw), err)
	}

	return decoded, nil
}

// Registry is a Resolver built from record type definitions
type Registry struct {
	schemas map[string]*Schema
}

func NewRegistry(definitions []RecordTypeDefinition) (*Registry, error) {
	r := &Registry{schemas: map[string]*Schema{}}

	for _, def := range definitions {
		s, err := newSchema(def)
		if err != nil {
			return nil, fmt.Errorf("record type %s: %w", def.Name, err)
		}

		if _, exists := r.schemas[s.name]; exists {
			return nil, fmt.Errorf("record type %s is defined more than once", s.name)
		}

		r.schemas[s.name] = s
	}

	return r, nil
}

func (r *Registry) Resolve(recordType string) (*Schema, bool) {
	s, ok := r.schemas[recordType]
	return s, ok
}

// RecordTypes returns the names of all registered record types in sorted order
func (r *Registry) RecordTypes() []string {
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func newSchema(def RecordTypeDefinition) (*Schema, error) {
	if strings.TrimSpace(def.Name) == "" {
		return nil, fmt.Errorf("record type name must not be empty")
	}

	s := &Schema{
		name:    def.Name,
		record:  ValueType{Kind: KindObject, Fields: []Field{{Name: IDField, Type: ValueType{Kind: KindUUID}}}},
		filters: map[string]FilterType{},
	}

	for _, fd := range def.Fields {
		if _, exists := s.record.field(fd.Name); exists {
			return nil, fmt.Errorf("field %s is defined more than once", fd.Name)
		}

		vt, err := fd.valueType()
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", fd.Name, err)
		}

		s.record.Fields = append(s.record.Fields, Field{Name: fd.Name, Type: vt})
	}

	for _, fd := range def.Filters {
		ft, err := newFilterType(s, fd)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", fd.Name, err)
		}
		s.filters[ft.Name] = ft
	}

	return s, nil
}

func newFilterType(s *Schema, fd FilterDefinition) (FilterType, error) {
	var err error

	ft := FilterType{
		Name:      fd.Name,
		Property:  fd.Property,
		Operation: fd.Operation,
	}

	if len(fd.Fields) > 0 {
		ft.Parameter = ValueType{Kind: KindObject}
		for _, f := range fd.Fields {
			rf, ok := s.Field(f.Name)
			if !ok {
				return ft, fmt.Errorf("property %s is not defined on %s", f.Name, s.name)
			}
			vt, err := f.valueType()
			if err != nil {
				return ft, fmt.Errorf("field %s: %w", f.Name, err)
			}
			ft.Parameter.Fields = append(ft.Parameter.Fields, Field{Name: rf.Name, Type: vt})
		}
		ft.Property = ""
		ft.Operation = "equals"
		return ft, nil
	}

	ft.Parameter, err = ParseValueType(fd.Parameter)
	if err != nil {
		return ft, err
	}

	if ft.Property == "" {
		ft.Property = IDField
	}

	f, ok := s.Field(ft.Property)
	if !ok {
		return ft, fmt.Errorf("property %s is not defined on %s", ft.Property, s.name)
	}
	ft.Property = f.Name

	if ft.Operation == "" {
		ft.Operation = "equals"
		if ft.Parameter.Kind == KindArray {
			ft.Operation = "in"
		}
	}

	return ft, nil
}
