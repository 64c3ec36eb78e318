package jsoncommands

import (
	"context"
	"fmt"

	"github.com/diwise/json-commands/internal/pkg/application/commands"
	"github.com/diwise/json-commands/internal/pkg/application/notifications"
	"github.com/diwise/json-commands/internal/pkg/application/parsers"
	"github.com/diwise/json-commands/internal/pkg/application/schema"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

// JSONCommands parses write and read batches and executes them as a single unit
type JSONCommands interface {
	ParseWriteCommands(body []byte) ([]commands.WriteCommand, error)
	ParseReadCommands(body []byte) ([]commands.ReadCommand, error)

	Write(ctx context.Context, cmds []commands.WriteCommand) error
	Read(ctx context.Context, cmds []commands.ReadCommand) ([]*commands.ReadResult, error)

	Start() error
	Stop() error
}

var tracer = otel.Tracer("json-commands/app")

type app struct {
	registry   *schema.Registry
	writer     *parsers.WriteCommandParser
	normalizer *parsers.ReadCommandNormalizer
	executor   commands.Executor
	notifier   notifications.Notifier
}

func New(ctx context.Context, cfg Config, executor commands.Executor) (JSONCommands, error) {
	registry, err := schema.NewRegistry(cfg.RecordTypes)
	if err != nil {
		return nil, fmt.Errorf("invalid record type configuration: %w", err)
	}

	return NewWithRegistry(ctx, cfg, registry, executor)
}

// NewWithRegistry is like New but uses an already created registry, so that
// it can be shared with the executor.
func NewWithRegistry(ctx context.Context, cfg Config, registry *schema.Registry, executor commands.Executor) (JSONCommands, error) {
	var notifier notifications.Notifier

	if cfg.Notifications.Endpoint != "" {
		notifier, _ = notifications.NewNotifier(ctx, cfg.Notifications.Endpoint)
	}

	return &app{
		registry:   registry,
		writer:     parsers.NewWriteCommandParser(registry),
		normalizer: parsers.NewReadCommandNormalizer(registry),
		executor:   executor,
		notifier:   notifier,
	}, nil
}

func (a *app) ParseWriteCommands(body []byte) ([]commands.WriteCommand, error) {
	return a.writer.Parse(body)
}

func (a *app) ParseReadCommands(body []byte) ([]commands.ReadCommand, error) {
	specs, err := parsers.DecodeReadCommands(body)
	if err != nil {
		return nil, err
	}

	return a.normalizer.Normalize(specs)
}

func (a *app) Write(ctx context.Context, cmds []commands.WriteCommand) (err error) {
	ctx, span := tracer.Start(ctx, "write")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	batch := make([]commands.Command, 0, len(cmds))
	for idx := range cmds {
		cmds[idx].Insert = withIDs(cmds[idx].Insert)
		batch = append(batch, cmds[idx])
	}

	_, err = a.executor.Execute(ctx, batch)
	if err != nil {
		return err
	}

	logging.GetFromContext(ctx).Debug("write batch executed", "commands", len(cmds))

	if a.notifier != nil {
		a.notifier.BatchCommitted(ctx, cmds)
	}

	return nil
}

func (a *app) Read(ctx context.Context, cmds []commands.ReadCommand) (results []*commands.ReadResult, err error) {
	ctx, span := tracer.Start(ctx, "read")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	batch := make([]commands.Command, 0, len(cmds))
	for _, cmd := range cmds {
		batch = append(batch, cmd)
	}

	executed, err := a.executor.Execute(ctx, batch)
	if err != nil {
		return nil, err
	}

	results = make([]*commands.ReadResult, 0, len(executed))
	for _, r := range executed {
		rr, ok := r.(*commands.ReadResult)
		if !ok {
			return nil, fmt.Errorf("unexpected result type %T from read command", r)
		}
		results = append(results, rr)
	}

	return results, nil
}

func (a *app) Start() error {
	if a.notifier != nil {
		return a.notifier.Start()
	}

	return nil
}

func (a *app) Stop() error {
	if a.notifier != nil {
		return a.notifier.Stop()
	}

	return nil
}

// withIDs gives every record without an identifier a new one
func withIDs(records []schema.Record) []schema.Record {
	for _, r := range records {
		if r.ID() == uuid.Nil {
			r[schema.IDField] = uuid.New()
		}
	}
	return records
}
