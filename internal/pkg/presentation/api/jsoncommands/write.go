package jsoncommands

import (
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/diwise/json-commands/internal/pkg/application/commands"
	app "github.com/diwise/json-commands/internal/pkg/application/jsoncommands"
	"github.com/diwise/json-commands/internal/pkg/presentation/api/jsoncommands/auth"
	jcreporting "github.com/diwise/json-commands/internal/pkg/presentation/api/jsoncommands/errors"
	jcerrors "github.com/diwise/json-commands/pkg/jsoncommands/errors"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

// NewWriteHandler handles POST requests with a batch of write commands
func NewWriteHandler(jc app.JSONCommands, authenticator auth.Enticator, reporter *jcreporting.ResponseBuilder) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "write")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		labeler, _ := otelhttp.LabelerFromContext(ctx)
		defer func() { addLabelIfError(err, labeler) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logging.GetFromContext(ctx), ctx)

		body, err := readBody(r)
		if err != nil {
			reporter.Report(ctx, w, r, err)
			return
		}

		cmds, err := jc.ParseWriteCommands(body)
		if err != nil {
			reporter.Report(ctx, w, r, err)
			return
		}

		recordTypes := writtenRecordTypes(cmds)
		span.SetAttributes(attribute.String(TraceAttributeRecordTypes, strings.Join(recordTypes, ",")))

		err = authenticator.CheckAccess(ctx, r, recordTypes)
		if err != nil {
			log.Warn("access not granted", "err", err.Error())
			reporter.Report(ctx, w, r, err)
			return
		}

		err = jc.Write(ctx, cmds)
		if err != nil {
			reporter.Report(ctx, w, r, err)
			return
		}

		w.WriteHeader(http.StatusOK)
	})
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, jcerrors.NewClientError("The request body is too large.", jcerrors.WithStatusCode(http.StatusRequestEntityTooLarge))
		}
		return nil, err
	}
	return body, nil
}

func writtenRecordTypes(cmds []commands.WriteCommand) []string {
	recordTypes := []string{}
	for _, cmd := range cmds {
		if !slices.Contains(recordTypes, cmd.Entity) {
			recordTypes = append(recordTypes, cmd.Entity)
		}
	}
	return recordTypes
}
