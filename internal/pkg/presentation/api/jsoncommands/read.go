package jsoncommands

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"github.com/diwise/json-commands/internal/pkg/application/commands"
	app "github.com/diwise/json-commands/internal/pkg/application/jsoncommands"
	"github.com/diwise/json-commands/internal/pkg/presentation/api/jsoncommands/auth"
	jcreporting "github.com/diwise/json-commands/internal/pkg/presentation/api/jsoncommands/errors"
	"github.com/diwise/json-commands/pkg/jsoncommands"
	jcerrors "github.com/diwise/json-commands/pkg/jsoncommands/errors"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

// NewReadHandler handles a batch of read commands, either in the body of a
// POST request or in the q parameter of a GET request
func NewReadHandler(jc app.JSONCommands, authenticator auth.Enticator, reporter *jcreporting.ResponseBuilder) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "read")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		labeler, _ := otelhttp.LabelerFromContext(ctx)
		defer func() { addLabelIfError(err, labeler) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logging.GetFromContext(ctx), ctx)

		var body []byte

		if r.Method == http.MethodGet {
			q := r.URL.Query().Get("q")
			if q == "" {
				err = jcerrors.NewClientError("Query parameter 'q' is required.")
				reporter.Report(ctx, w, r, err)
				return
			}
			body = []byte(q)
		} else {
			body, err = readBody(r)
			if err != nil {
				reporter.Report(ctx, w, r, err)
				return
			}
		}

		cmds, err := jc.ParseReadCommands(body)
		if err != nil {
			reporter.Report(ctx, w, r, err)
			return
		}

		recordTypes := readRecordTypes(cmds)
		span.SetAttributes(attribute.String(TraceAttributeRecordTypes, strings.Join(recordTypes, ",")))

		err = authenticator.CheckAccess(ctx, r, recordTypes)
		if err != nil {
			log.Warn("access not granted", "err", err.Error())
			reporter.Report(ctx, w, r, err)
			return
		}

		results, err := jc.Read(ctx, cmds)
		if err != nil {
			reporter.Report(ctx, w, r, err)
			return
		}

		responseBody, err := json.Marshal(newReadResponse(results))
		if err != nil {
			log.Error("failed to marshal read response", "err", err.Error())
			reporter.Report(ctx, w, r, err)
			return
		}

		w.Header().Add("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(responseBody)
	})
}

func newReadResponse(results []*commands.ReadResult) jsoncommands.ReadResponse {
	response := jsoncommands.ReadResponse{
		Data: make([]jsoncommands.ReadCommandResponse, 0, len(results)),
	}

	for _, result := range results {
		rcr := jsoncommands.ReadCommandResponse{TotalCount: result.TotalCount}

		if result.Records != nil {
			rcr.Records = make([]jsoncommands.Record, 0, len(result.Records))
			for _, record := range result.Records {
				rcr.Records = append(rcr.Records, jsoncommands.Record(record))
			}
		}

		response.Data = append(response.Data, rcr)
	}

	return response
}

func readRecordTypes(cmds []commands.ReadCommand) []string {
	recordTypes := []string{}
	for _, cmd := range cmds {
		if !slices.Contains(recordTypes, cmd.Entity) {
			recordTypes = append(recordTypes, cmd.Entity)
		}
	}
	return recordTypes
}
