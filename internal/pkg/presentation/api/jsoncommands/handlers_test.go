package jsoncommands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/diwise/json-commands/internal/pkg/application/commands"
	app "github.com/diwise/json-commands/internal/pkg/application/jsoncommands"
	"github.com/diwise/json-commands/internal/pkg/application/schema"
	"github.com/diwise/json-commands/internal/pkg/infrastructure/database/memory"
	"github.com/diwise/json-commands/internal/pkg/presentation/api/jsoncommands/localization"
	"github.com/diwise/json-commands/pkg/jsoncommands"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/matryer/is"
)

func TestWriteAndReadBack(t *testing.T) {
	is, ts := setupTest(t, nil, nil)
	defer ts.Close()

	dune, emma, ulysses := uuid.New(), uuid.New(), uuid.New()

	resp, body := newTestRequest(is, ts, http.MethodPost, "/jc/write", fmt.Sprintf(
		`[{"Bookstore.Book": {"Insert": [{"ID": "%s", "Name": "Dune", "NumberOfPages": 412}, {"ID": "%s", "Name": "Emma", "NumberOfPages": 474}, {"ID": "%s", "Name": "Ulysses", "NumberOfPages": 730}]}}]`,
		dune, emma, ulysses,
	))
	is.Equal(resp.StatusCode, http.StatusOK) // insert failed
	is.Equal(body, "")

	resp, _ = newTestRequest(is, ts, http.MethodPost, "/jc/write", fmt.Sprintf(
		`[{"Bookstore.Book": {"Delete": [{"ID": "%s"}], "Update": [{"ID": "%s", "Name": "Emma", "NumberOfPages": 500}]}}]`,
		dune, emma,
	))
	is.Equal(resp.StatusCode, http.StatusOK) // delete and update failed

	resp, body = newTestRequest(is, ts, http.MethodPost, "/jc/read",
		`[{"Bookstore.Book": {"Sort": ["-NumberOfPages"], "ReadTotalCount": true, "Skip": 1, "Top": 1}}]`)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(resp.Header.Get("Content-Type"), "application/json; charset=utf-8")

	response := jsoncommands.ReadResponse{}
	is.NoErr(json.Unmarshal([]byte(body), &response))

	is.Equal(len(response.Data), 1)
	is.Equal(*response.Data[0].TotalCount, 2)
	is.Equal(len(response.Data[0].Records), 1)
	is.Equal(response.Data[0].Records[0]["ID"], emma.String())
	is.Equal(response.Data[0].Records[0]["NumberOfPages"], float64(500))
}

func TestReadWithQueryParameter(t *testing.T) {
	is, ts := setupTest(t, nil, nil)
	defer ts.Close()

	resp, _ := newTestRequest(is, ts, http.MethodPost, "/jc/write",
		`[{"Bookstore.Author": {"Insert": [{"Name": "Jane Austen"}]}}]`)
	is.Equal(resp.StatusCode, http.StatusOK)

	q := url.QueryEscape(`[{"Bookstore.Author": {"ReadRecords": false, "ReadTotalCount": true}}, {"Bookstore.Book": {}}]`)
	resp, body := newTestRequest(is, ts, http.MethodGet, "/jc/read?q="+q, "")
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(body, `{"Data":[{"TotalCount":1},{"Records":[]}]}`)
}

func TestReadWithoutQueryParameterFails(t *testing.T) {
	is, ts := setupTest(t, nil, nil)
	defer ts.Close()

	resp, body := newTestRequest(is, ts, http.MethodGet, "/jc/read", "")
	is.Equal(resp.StatusCode, http.StatusBadRequest)
	is.Equal(body, `{"UserMessage":"`+localization.InvalidRequest+`","SystemMessage":"Query parameter 'q' is required."}`)
}

func TestWriteWithTrailingContentFails(t *testing.T) {
	is, ts := setupTest(t, nil, nil)
	defer ts.Close()

	resp, body := newTestRequest(is, ts, http.MethodPost, "/jc/write", `[] garbage`)
	is.Equal(resp.StatusCode, http.StatusBadRequest)
	is.True(strings.Contains(body, "Unexpected JSON text after the end of JSON array. At line 1, position "))
}

func TestWriteKeepsInvalidValuesOutOfTheResponse(t *testing.T) {
	is, ts := setupTest(t, nil, nil)
	defer ts.Close()

	resp, body := newTestRequest(is, ts, http.MethodPost, "/jc/write",
		`[{"Bookstore.Book": {"Insert": [{"NumberOfPages": "secret-value"}]}}]`)
	is.Equal(resp.StatusCode, http.StatusBadRequest)
	is.True(strings.Contains(body, "See the server log for more details on the error."))
	is.True(!strings.Contains(body, "secret-value")) // submitted values must not be returned
}

func TestDeletingAMissingRecordIsReportedAsNotFound(t *testing.T) {
	is, ts := setupTest(t, nil, nil)
	defer ts.Close()

	resp, body := newTestRequest(is, ts, http.MethodPost, "/jc/write",
		fmt.Sprintf(`[{"Bookstore.Book": {"Delete": [{"ID": "%s"}]}}]`, uuid.New()))
	is.Equal(resp.StatusCode, http.StatusBadRequest)
	is.True(strings.Contains(body, "Deleting a record that does not exist in database."))
}

func TestWriteWithoutTokenIsNotAuthenticated(t *testing.T) {
	is, ts := setupTest(t, nil, nil)
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/jc/write", bytes.NewBufferString(`[]`))
	req.Header.Add("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	is.NoErr(err)
	defer resp.Body.Close()

	is.Equal(resp.StatusCode, http.StatusUnauthorized)
}

func TestReadOfRestrictedRecordTypeIsForbidden(t *testing.T) {
	is, ts := setupTest(t, nil, nil)
	defer ts.Close()

	resp, _ := newTestRequest(is, ts, http.MethodPost, "/jc/read", `[{"Bookstore.Salary": {}}]`)
	is.Equal(resp.StatusCode, http.StatusForbidden)
}

func TestWriteWithWrongContentTypeReturnsUnsupportedMediaType(t *testing.T) {
	is, ts := setupTest(t, nil, nil)
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/jc/write", bytes.NewBufferString(`[]`))
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Add("Authorization", "Bearer reader-and-writer")

	resp, err := http.DefaultClient.Do(req)
	is.NoErr(err)
	defer resp.Body.Close()

	is.Equal(resp.StatusCode, http.StatusUnsupportedMediaType)
}

func TestWriteCanHandleInternalError(t *testing.T) {
	executor := &commands.ExecutorMock{
		ExecuteFunc: func(ctx context.Context, cmds []commands.Command) ([]commands.Result, error) {
			return nil, errors.New("connection refused")
		},
	}

	is, ts := setupTest(t, executor, nil)
	defer ts.Close()

	resp, body := newTestRequest(is, ts, http.MethodPost, "/jc/write", `[{"Bookstore.Author": {"Insert": [{"Name": "Jane Austen"}]}}]`)
	is.Equal(resp.StatusCode, http.StatusInternalServerError)
	is.True(strings.Contains(body, "Internal server error occurred. See server log for more information. (*errors.errorString, "))
	is.True(!strings.Contains(body, "connection refused")) // internal details must not be returned
}

func TestWritesAreRateLimited(t *testing.T) {
	is, ts := setupTest(t, nil, func(cfg *app.APIConfig) {
		cfg.WriteRateLimit = 1
	})
	defer ts.Close()

	resp, _ := newTestRequest(is, ts, http.MethodPost, "/jc/write", `[]`)
	is.Equal(resp.StatusCode, http.StatusOK)

	resp, _ = newTestRequest(is, ts, http.MethodPost, "/jc/write", `[]`)
	is.Equal(resp.StatusCode, http.StatusTooManyRequests)

	resp, _ = newTestRequest(is, ts, http.MethodPost, "/jc/read", `[]`)
	is.Equal(resp.StatusCode, http.StatusOK) // reads should not be limited
}

func TestTooLargeBodyIsRejected(t *testing.T) {
	is, ts := setupTest(t, nil, func(cfg *app.APIConfig) {
		cfg.MaxBodySize = 16
	})
	defer ts.Close()

	resp, _ := newTestRequest(is, ts, http.MethodPost, "/jc/write", `[{"Bookstore.Author": {"Insert": [{"Name": "Jane Austen"}]}}]`)
	is.Equal(resp.StatusCode, http.StatusRequestEntityTooLarge)
}

func setupTest(t *testing.T, executor commands.Executor, configure func(*app.APIConfig)) (*is.I, *httptest.Server) {
	is := is.New(t)
	ctx := context.Background()

	cfg, err := app.LoadConfiguration(bytes.NewBufferString(configFile))
	is.NoErr(err)

	if configure != nil {
		configure(&cfg.API)
	}

	registry, err := schema.NewRegistry(cfg.RecordTypes)
	is.NoErr(err)

	if executor == nil {
		executor = memory.New(registry)
	}

	jc, err := app.NewWithRegistry(ctx, *cfg, registry, executor)
	is.NoErr(err)

	r := chi.NewRouter()
	is.NoErr(RegisterHandlers(ctx, r, cfg.API, bytes.NewBufferString(opaModule), jc))

	return is, httptest.NewServer(r)
}

func newTestRequest(is *is.I, ts *httptest.Server, method, path, body string) (*http.Response, string) {
	req, _ := http.NewRequest(method, ts.URL+path, bytes.NewBufferString(body))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Authorization", "Bearer reader-and-writer")

	resp, err := http.DefaultClient.Do(req)
	is.NoErr(err) // http request failed
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	is.NoErr(err) // failed to read response body

	return resp, string(respBody)
}

const configFile string = `
recordTypes:
  - name: Bookstore.Book
    fields:
    - name: Name
      type: string
    - name: NumberOfPages
      type: integer
  - name: Bookstore.Author
    fields:
    - name: Name
      type: string
  - name: Bookstore.Salary
    fields:
    - name: Amount
      type: number
api:
  legacyErrorResponse: true
`

const opaModule string = `
package example.authz

default allow := false

allow = response {
    input.token != ""
    not restricted
    response := {
    }
}

restricted {
    input.types[_] == "Bookstore.Salary"
}
`
