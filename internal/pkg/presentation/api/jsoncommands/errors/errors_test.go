package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/diwise/json-commands/internal/pkg/presentation/api/jsoncommands/localization"
	jcerrors "github.com/diwise/json-commands/pkg/jsoncommands/errors"
	"github.com/matryer/is"
)

func TestClientErrorGetsGenericUserMessage(t *testing.T) {
	is, b := setupBuilderTest(t, false)

	err := jcerrors.NewMalformedRequestError("Invalid JSON format. At line 1, position 2. See the server log for more details on the error.",
		jcerrors.WithLogDetail("error converting value \"secret-value\""))

	desc := b.Build(err, "", "")
	is.Equal(desc.StatusCode, http.StatusBadRequest)
	is.Equal(desc.Level, slog.LevelInfo)

	body := marshal(is, desc.Response)
	is.Equal(body, `{"Error":{"Message":"`+localization.InvalidRequest+`","Metadata":{"SystemMessage":"Invalid JSON format. At line 1, position 2. See the server log for more details on the error."}}}`)
	is.True(!strings.Contains(body, "secret-value")) // log detail must not reach the client

	is.True(strings.Contains(desc.LogMessage, "secret-value"))
}

func TestClientErrorWithOtherStatusShowsItsMessage(t *testing.T) {
	is, b := setupBuilderTest(t, false)

	desc := b.Build(jcerrors.NewClientError("Deleting a record that does not exist in database.", jcerrors.WithStatusCode(http.StatusNotFound)), "", "sv")
	is.Equal(desc.StatusCode, http.StatusNotFound)
	is.True(strings.Contains(marshal(is, desc.Response), "Posten som tas bort finns inte i databasen."))
}

func TestNotAuthenticatedIsRemappedTo401(t *testing.T) {
	is, b := setupBuilderTest(t, false)

	desc := b.Build(jcerrors.NewNotAuthenticatedError(), "", "")
	is.Equal(desc.StatusCode, http.StatusUnauthorized)
	is.True(strings.Contains(marshal(is, desc.Response), `"Message":"User is not authenticated."`))
}

func TestUserErrorIsLocalizedWithParameters(t *testing.T) {
	is, b := setupBuilderTest(t, false)

	err := jcerrors.NewUserError("The book %s is out of stock.", "Dune").WithSystemMessage("DataStructure:Bookstore.Book,Property:Stock")

	desc := b.Build(err, "", "")
	is.Equal(desc.StatusCode, http.StatusBadRequest)
	is.Equal(desc.Level, slog.LevelDebug)
	is.Equal(marshal(is, desc.Response), `{"Error":{"Message":"The book Dune is out of stock.","Metadata":{"DataStructure":"Bookstore.Book","Property":"Stock"}}}`)
	is.True(strings.Contains(desc.LogMessage, "SystemMessage: DataStructure:Bookstore.Book,Property:Stock"))
}

func TestUserErrorInLegacyFormat(t *testing.T) {
	is, b := setupBuilderTest(t, true)

	desc := b.Build(jcerrors.NewUserError("test1").WithSystemMessage("test2"), "", "")
	is.Equal(marshal(is, desc.Response), `{"UserMessage":"test1","SystemMessage":"test2"}`)
}

func TestInternalErrorNeverShowsItsMessage(t *testing.T) {
	is, b := setupBuilderTest(t, false)

	err := jcerrors.WithCommandSummary(fmt.Errorf("connection to secret-host refused"), "Save Bookstore.Book (Insert 1)")

	desc := b.Build(err, jcerrors.CommandSummary(err), "")
	is.Equal(desc.StatusCode, http.StatusInternalServerError)
	is.Equal(desc.Level, slog.LevelError)

	body := marshal(is, desc.Response)
	is.Equal(body, `{"Error":{"Message":"Internal server error occurred. See server log for more information. (*errors.errorString, 2024-03-01T12:30:00)"}}`)

	is.True(strings.Contains(desc.LogMessage, "connection to secret-host refused"))
	is.True(strings.Contains(desc.LogMessage, "Command: Save Bookstore.Book (Insert 1)"))
}

func TestInternalErrorInLegacyFormat(t *testing.T) {
	is, b := setupBuilderTest(t, true)

	desc := b.Build(errors.New("boom"), "", "")
	is.Equal(marshal(is, desc.Response), `{"UserMessage":null,"SystemMessage":"Internal server error occurred. See server log for more information. (*errors.errorString, 2024-03-01T12:30:00)"}`)
}

func marshal(is *is.I, v any) string {
	b, err := json.Marshal(v)
	is.NoErr(err)
	return string(b)
}

func setupBuilderTest(t *testing.T, legacy bool) (*is.I, *ResponseBuilder) {
	is := is.New(t)

	b := NewResponseBuilder(legacy, localization.New())
	b.now = func() time.Time { return time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC) }

	return is, b
}
