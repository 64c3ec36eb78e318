package parsers

import (
	"errors"
	"testing"

	jcerrors "github.com/diwise/json-commands/pkg/jsoncommands/errors"
	"github.com/matryer/is"
)

func TestPositionedErrorWithoutLogDetail(t *testing.T) {
	is := is.New(t)

	r := NewReader([]byte("[\n  {}"))
	is.NoErr(r.Next())
	is.NoErr(r.Next())

	err := positionedError(r, "There is an empty command.", "", jcerrors.WithKind(jcerrors.ErrEmptyCommand))
	is.True(errors.Is(err, jcerrors.ErrEmptyCommand))
	is.Equal(err.Error(), "There is an empty command. At line 2, position 3.")

	ce := clientError(is, err)
	is.Equal(ce.LogDetail(), "")
}

func TestPositionedErrorWithLogDetail(t *testing.T) {
	is := is.New(t)

	r := NewReader([]byte("[\n  {}"))
	is.NoErr(r.Next())

	err := positionedError(r, "Invalid JSON format.", "value 'secret' is not a number")
	is.Equal(err.Error(), "Invalid JSON format. At line 1, position 1. See the server log for more details on the error.")

	ce := clientError(is, err)
	is.Equal(ce.LogDetail(), "value 'secret' is not a number")
}
