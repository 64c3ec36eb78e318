package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"

	"github.com/diwise/json-commands/pkg/jsoncommands"
	jcerrors "github.com/diwise/json-commands/pkg/jsoncommands/errors"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type JSONCommandsClient interface {
	Write(ctx context.Context, request jsoncommands.WriteRequest) error
	Read(ctx context.Context, request jsoncommands.ReadRequest) (*jsoncommands.ReadResponse, error)
}

func Debug(enabled string) func(*jcClient) {
	return func(c *jcClient) {
		c.debug = (enabled == "true")
	}
}

func Token(token string) func(*jcClient) {
	return func(c *jcClient) {
		c.token = token
	}
}

func AcceptLanguage(language string) func(*jcClient) {
	return func(c *jcClient) {
		c.language = language
	}
}

func NewJSONCommandsClient(baseURL string, options ...func(*jcClient)) JSONCommandsClient {
	c := &jcClient{
		baseURL: baseURL,
		httpClient: http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	for _, option := range options {
		option(c)
	}

	return c
}

const TraceAttributeCommandCount string = "jc.command-count"

var tracer = otel.Tracer("json-commands-client")

type jcClient struct {
	baseURL    string
	token      string
	language   string
	debug      bool
	httpClient http.Client
}

func (c *jcClient) Write(ctx context.Context, request jsoncommands.WriteRequest) error {
	var err error

	ctx, span := tracer.Start(ctx, "write",
		trace.WithAttributes(attribute.Int(TraceAttributeCommandCount, len(request))),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if request == nil {
		request = jsoncommands.WriteRequest{}
	}

	response, responseBody, err := c.post(ctx, "/jc/write", request)
	if err != nil {
		return err
	}

	if response.StatusCode != http.StatusOK {
		err = jcerrors.NewErrorFromResponse(response.StatusCode, responseBody)
		return err
	}

	return nil
}

func (c *jcClient) Read(ctx context.Context, request jsoncommands.ReadRequest) (*jsoncommands.ReadResponse, error) {
	var err error

	ctx, span := tracer.Start(ctx, "read",
		trace.WithAttributes(attribute.Int(TraceAttributeCommandCount, len(request))),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if request == nil {
		request = jsoncommands.ReadRequest{}
	}

	response, responseBody, err := c.post(ctx, "/jc/read", request)
	if err != nil {
		return nil, err
	}

	if response.StatusCode != http.StatusOK {
		err = jcerrors.NewErrorFromResponse(response.StatusCode, responseBody)
		return nil, err
	}

	result := &jsoncommands.ReadResponse{}
	err = json.Unmarshal(responseBody, result)
	if err != nil {
		err = fmt.Errorf("failed to unmarshal read response: %w", err)
		return nil, err
	}

	return result, nil
}

func (c *jcClient) post(ctx context.Context, path string, request any) (*http.Response, []byte, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Add("Content-Type", "application/json")

	if c.token != "" {
		req.Header.Add("Authorization", "Bearer "+c.token)
	}

	if c.language != "" {
		req.Header.Add("Accept-Language", c.language)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to send request: %w", err)
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if c.debug && resp.StatusCode >= http.StatusBadRequest {
		reqbytes, _ := httputil.DumpRequest(req, false)
		respbytes, _ := httputil.DumpResponse(resp, false)

		log := logging.GetFromContext(ctx)
		log.Error("request failed", "request", string(reqbytes), "response", string(respbytes))
	}

	return resp, respBody, nil
}
