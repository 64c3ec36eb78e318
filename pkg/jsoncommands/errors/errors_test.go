package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/matryer/is"
)

func TestClientErrorDefaultsToBadRequest(t *testing.T) {
	is := is.New(t)

	err := NewDuplicateOperationError("There are multiple 'Insert' operations.")

	var ce *ClientError
	is.True(errors.As(err, &ce))
	is.Equal(ce.StatusCode(), http.StatusBadRequest)
	is.True(errors.Is(err, ErrClient))
	is.True(errors.Is(err, ErrDuplicateOperation))
	is.True(!errors.Is(err, ErrMalformedRequest))
}

func TestClientErrorKeepsLogDetailOutOfMessage(t *testing.T) {
	is := is.New(t)

	err := NewMalformedRequestError("Invalid JSON format.", WithLogDetail("value 'secret' is not a number"))

	var ce *ClientError
	is.True(errors.As(err, &ce))
	is.Equal(err.Error(), "Invalid JSON format.")
	is.Equal(ce.LogDetail(), "value 'secret' is not a number")
}

func TestCommandSummarySurvivesWrapping(t *testing.T) {
	is := is.New(t)

	err := WithCommandSummary(NewAlreadyExistsError("exists"), "Save Bookstore.Book")
	err = fmt.Errorf("execute failed: %w", err)

	is.Equal(CommandSummary(err), "Save Bookstore.Book")
	is.True(errors.Is(err, ErrAlreadyExists))
}

func TestUserErrorFormatsParameters(t *testing.T) {
	is := is.New(t)

	ue := NewUserError("TestErrorMessage %d", 1000).WithSystemMessage("Property:Code")

	is.Equal(ue.Error(), "TestErrorMessage 1000")
	is.Equal(*ue.SystemMessage(), "Property:Code")
	is.True(errors.Is(ue, ErrUser))
}

func TestNewErrorFromResponse(t *testing.T) {
	is := is.New(t)

	err := NewErrorFromResponse(http.StatusBadRequest, []byte(`{"Error":{"Message":"bad","Metadata":{"SystemMessage":"x"}}}`))
	is.True(errors.Is(err, ErrClient))
	is.Equal(err.Error(), "bad")

	err = NewErrorFromResponse(http.StatusInternalServerError, []byte(`{"Error":{"Message":"Internal server error occurred."}}`))
	var se *ServerError
	is.True(errors.As(err, &se))
	is.Equal(se.StatusCode(), http.StatusInternalServerError)
}
