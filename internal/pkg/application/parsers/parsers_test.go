package parsers

import (
	"errors"
	"testing"

	"github.com/diwise/json-commands/internal/pkg/application/schema"
	jcerrors "github.com/diwise/json-commands/pkg/jsoncommands/errors"
	"github.com/matryer/is"
)

func setupParserTest(t *testing.T) (*is.I, *schema.Registry) {
	is := is.New(t)

	registry, err := schema.NewRegistry([]schema.RecordTypeDefinition{
		{
			Name: "Bookstore.Book",
			Fields: []schema.FieldDefinition{
				{Name: "Name", Type: "string"},
				{Name: "NumberOfPages", Type: "integer"},
				{Name: "AuthorID", Type: "uuid"},
			},
			Filters: []schema.FilterDefinition{
				{Name: "Guid[]", Parameter: "uuid[]"},
				{Name: "ByAuthor", Fields: []schema.FieldDefinition{{Name: "AuthorID", Type: "uuid"}}},
			},
		},
		{
			Name: "Bookstore.Author",
			Fields: []schema.FieldDefinition{
				{Name: "Name", Type: "string"},
			},
		},
	})
	is.NoErr(err)

	return is, registry
}

func clientError(is *is.I, err error) *jcerrors.ClientError {
	var ce *jcerrors.ClientError
	is.True(errors.As(err, &ce)) // expected a client error
	return ce
}
