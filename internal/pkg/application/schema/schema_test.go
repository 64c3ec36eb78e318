package schema

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/matryer/is"
)

func TestResolveKnownAndUnknownRecordTypes(t *testing.T) {
	is, registry := setupRegistryTest(t)

	s, ok := registry.Resolve("Bookstore.Book")
	is.True(ok)
	is.Equal(s.Name(), "Bookstore.Book")
	is.Equal(s.Fields(), []string{"ID", "Name", "NumberOfPages", "Published", "AuthorID"})

	_, ok = registry.Resolve("NotAType")
	is.True(!ok) // unknown record types should not resolve

	_, ok = registry.Resolve("bookstore.book")
	is.True(!ok) // record type names are case sensitive
}

func TestDecodeRecordConvertsFieldsToTheirTypes(t *testing.T) {
	is, registry := setupRegistryTest(t)
	s, _ := registry.Resolve("Bookstore.Book")

	id := uuid.New()
	r, err := s.DecodeRecord(json.RawMessage(`{"id":"` + id.String() + `","name":"Dune","NumberOfPages":412,"Published":"1965-08-01T00:00:00Z"}`))
	is.NoErr(err)

	is.Equal(r.ID(), id)
	is.Equal(r["Name"], "Dune")
	is.Equal(r["NumberOfPages"], int64(412))
	is.Equal(r["Published"], time.Date(1965, 8, 1, 0, 0, 0, 0, time.UTC))
}

func TestDecodeRecordFailsWithValueInError(t *testing.T) {
	is, registry := setupRegistryTest(t)
	s, _ := registry.Resolve("Bookstore.Book")

	_, err := s.DecodeRecord(json.RawMessage(`0`))
	is.True(err != nil)
	is.Equal(err.Error(), "error converting value 0 to type 'Bookstore.Book'")

	_, err = s.DecodeRecord(json.RawMessage(`{"NumberOfPages":"many"}`))
	is.True(err != nil)
	is.True(strings.Contains(err.Error(), `"many"`)) // decoder detail should name the offending value

	_, err = s.DecodeRecord(json.RawMessage(`{"Colour":"red"}`))
	is.True(err != nil)
	is.True(strings.Contains(err.Error(), "property 'Colour' is not defined"))
}

func TestFilterTypesDecodeTheirParameters(t *testing.T) {
	is, registry := setupRegistryTest(t)
	s, _ := registry.Resolve("Bookstore.Book")

	ft, ok := s.FilterType("Guid[]")
	is.True(ok)
	is.Equal(ft.Property, "ID")
	is.Equal(ft.Operation, "in")

	id := uuid.New()
	v, err := ft.DecodeParameter(json.RawMessage(`["` + id.String() + `"]`))
	is.NoErr(err)
	is.Equal(v, []any{id})

	_, err = ft.DecodeParameter(json.RawMessage(`[42]`))
	is.True(err != nil)

	ft, ok = s.FilterType("ByAuthor")
	is.True(ok)
	v, err = ft.DecodeParameter(json.RawMessage(`{"authorid":"` + id.String() + `"}`))
	is.NoErr(err)
	is.Equal(v, map[string]any{"AuthorID": id})
}

func TestNewRegistryRejectsBadDefinitions(t *testing.T) {
	is := is.New(t)

	_, err := NewRegistry([]RecordTypeDefinition{{Name: "A", Fields: []FieldDefinition{{Name: "X", Type: "colour"}}}})
	is.True(err != nil) // unknown field type

	_, err = NewRegistry([]RecordTypeDefinition{{Name: "A"}, {Name: "A"}})
	is.True(err != nil) // duplicate record type

	_, err = NewRegistry([]RecordTypeDefinition{{Name: "A", Filters: []FilterDefinition{{Name: "F", Parameter: "string", Property: "Missing"}}}})
	is.True(err != nil) // filter on undefined property
}

func TestParseValueType(t *testing.T) {
	is := is.New(t)

	vt, err := ParseValueType("uuid[]")
	is.NoErr(err)
	is.Equal(vt.Kind, KindArray)
	is.Equal(vt.Elem.Kind, KindUUID)
	is.Equal(vt.String(), "uuid[]")

	vt, err = ParseValueType("Integer")
	is.NoErr(err)
	is.Equal(vt.Kind, KindInteger)
}

func setupRegistryTest(t *testing.T) (*is.I, *Registry) {
	is := is.New(t)

	registry, err := NewRegistry([]RecordTypeDefinition{
		{
			Name: "Bookstore.Book",
			Fields: []FieldDefinition{
				{Name: "Name", Type: "string"},
				{Name: "NumberOfPages", Type: "integer"},
				{Name: "Published", Type: "datetime"},
				{Name: "AuthorID", Type: "uuid"},
			},
			Filters: []FilterDefinition{
				{Name: "Guid[]", Parameter: "uuid[]"},
				{Name: "ByAuthor", Fields: []FieldDefinition{{Name: "AuthorID", Type: "uuid"}}},
			},
		},
	})
	is.NoErr(err)

	return is, registry
}
