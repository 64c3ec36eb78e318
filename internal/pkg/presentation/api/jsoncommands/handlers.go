package jsoncommands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	app "github.com/diwise/json-commands/internal/pkg/application/jsoncommands"
	"github.com/diwise/json-commands/internal/pkg/presentation/api/jsoncommands/auth"
	"github.com/diwise/json-commands/internal/pkg/presentation/api/jsoncommands/errors"
	"github.com/diwise/json-commands/internal/pkg/presentation/api/jsoncommands/localization"
	jcerrors "github.com/diwise/json-commands/pkg/jsoncommands/errors"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const TraceAttributeRecordTypes string = "jc.record-types"

var tracer = otel.Tracer("json-commands/jc")

func RegisterHandlers(ctx context.Context, r chi.Router, cfg app.APIConfig, policies io.Reader, jc app.JSONCommands) error {

	authenticator, err := auth.NewAuthenticator(ctx, policies)
	if err != nil {
		return fmt.Errorf("failed to create api authenticator: %w", err)
	}

	reporter := errors.NewResponseBuilder(cfg.LegacyErrorResponse, localization.New())

	r.Route("/jc", func(r chi.Router) {
		r.Use(
			Logger(logging.GetFromContext(ctx)),
			MaxBodySize(cfg.MaxBodySize),
		)

		r.With(
			RateLimit(cfg.WriteRateLimit, reporter),
			RequiredContentTypes([]string{"application/json"}),
		).Post("/write", NewWriteHandler(jc, authenticator, reporter))

		r.With(
			RequiredContentTypes([]string{"application/json"}),
		).Post("/read", NewReadHandler(jc, authenticator, reporter))

		r.Get("/read", NewReadHandler(jc, authenticator, reporter))
	})

	return nil
}

func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			_, ctx, _ = o11y.AddTraceIDToLoggerAndStoreInContext(
				trace.SpanFromContext(ctx),
				logger,
				ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func MaxBodySize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit rejects requests above requestsPerSecond. A limit of zero or less disables it.
func RateLimit(requestsPerSecond float64, reporter *errors.ResponseBuilder) func(http.Handler) http.Handler {
	if requestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), max(1, int(requestsPerSecond)))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				reporter.Report(r.Context(), w, r, jcerrors.NewTooManyRequestsError("Too many requests."))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RequiredContentTypes(validTypes []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			contentType := r.Header.Get("Content-Type")
			isValidContentType := true

			if len(contentType) > 0 {
				isValidContentType = false

				for _, t := range validTypes {
					if strings.HasPrefix(contentType, t) {
						isValidContentType = true
						break
					}
				}
			}

			if isValidContentType {
				next.ServeHTTP(w, r)
			} else {
				http.Error(w, "unsupported media type", http.StatusUnsupportedMediaType)
			}
		})
	}
}

func addLabelIfError(err error, labeler *otelhttp.Labeler) {
	if err != nil && labeler != nil {
		labeler.Add(attribute.Bool("jc.failed", true))
	}
}
