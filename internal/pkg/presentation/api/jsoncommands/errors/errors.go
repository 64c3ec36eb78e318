package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/diwise/json-commands/internal/pkg/presentation/api/jsoncommands/localization"
	jcerrors "github.com/diwise/json-commands/pkg/jsoncommands/errors"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
)

// ErrorDescription is everything needed to respond to, and log, a failed request
type ErrorDescription struct {
	StatusCode int
	Response   any
	Level      slog.Level
	LogMessage string
}

type ResponseBuilder struct {
	legacy    bool
	localizer *localization.Localizer
	now       func() time.Time
}

func NewResponseBuilder(legacy bool, localizer *localization.Localizer) *ResponseBuilder {
	return &ResponseBuilder{
		legacy:    legacy,
		localizer: localizer,
		now:       time.Now,
	}
}

// Build classifies err and describes the response and log entry for it. The
// response never contains the log only detail of the error.
func (b *ResponseBuilder) Build(err error, commandSummary, acceptLanguage string) ErrorDescription {
	var ce *jcerrors.ClientError
	var ue *jcerrors.UserError

	desc := ErrorDescription{}

	var userMessage, systemMessage *string

	switch {
	case errors.As(err, &ce):
		desc.StatusCode = ce.StatusCode()
		if ce.Error() == jcerrors.UserNotAuthenticated && desc.StatusCode == http.StatusBadRequest {
			desc.StatusCode = http.StatusUnauthorized
		}

		msg := ce.Error()
		if desc.StatusCode == http.StatusBadRequest {
			msg = localization.InvalidRequest
		}

		userMessage = ptr(b.localizer.Localize(acceptLanguage, msg))
		systemMessage = ptr(ce.Error())
		desc.Level = slog.LevelInfo

	case errors.As(err, &ue):
		desc.StatusCode = ue.StatusCode()
		userMessage = ptr(b.localizer.Localize(acceptLanguage, ue.UserMessage(), ue.MessageParameters()...))
		systemMessage = ue.SystemMessage()
		desc.Level = slog.LevelDebug

	default:
		desc.StatusCode = http.StatusInternalServerError
		systemMessage = ptr(fmt.Sprintf(
			"Internal server error occurred. See server log for more information. (%s, %s)",
			errorType(err), b.now().Format("2006-01-02T15:04:05"),
		))
		desc.Level = slog.LevelError
	}

	desc.Response = jcerrors.NewErrorResponse(userMessage, systemMessage, b.legacy)
	desc.LogMessage = logMessage(err, ce, ue, commandSummary)

	return desc
}

// Report builds the error description for err, logs it and writes the response
func (b *ResponseBuilder) Report(ctx context.Context, w http.ResponseWriter, r *http.Request, err error) {
	desc := b.Build(err, jcerrors.CommandSummary(err), r.Header.Get("Accept-Language"))

	logging.GetFromContext(ctx).Log(ctx, desc.Level, desc.LogMessage, "status", desc.StatusCode)

	jcerrors.WriteErrorResponse(w, desc.StatusCode, desc.Response)
}

func logMessage(err error, ce *jcerrors.ClientError, ue *jcerrors.UserError, commandSummary string) string {
	parts := []string{fmt.Sprintf("%s: %s", errorType(err), err.Error())}

	if ce != nil && ce.LogDetail() != "" {
		parts = append(parts, ce.LogDetail())
	}

	if ue != nil && ue.SystemMessage() != nil {
		parts = append(parts, "SystemMessage: "+*ue.SystemMessage())
	}

	if commandSummary != "" {
		parts = append(parts, "Command: "+commandSummary)
	}

	return strings.Join(parts, "|")
}

// errorType names the innermost error in the chain
func errorType(err error) string {
	for {
		inner := errors.Unwrap(err)
		if inner == nil {
			return fmt.Sprintf("%T", err)
		}
		err = inner
	}
}

func ptr(s string) *string {
	return &s
}
