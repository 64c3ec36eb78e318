package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/diwise/json-commands/internal/pkg/application/commands"
	"github.com/diwise/json-commands/internal/pkg/application/schema"
	"github.com/diwise/json-commands/internal/pkg/infrastructure/database"
	"github.com/diwise/json-commands/pkg/jsoncommands/errors"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("json-commands/database/memory")

type table struct {
	ids  []uuid.UUID
	rows map[uuid.UUID]schema.Record
}

func newTable() *table {
	return &table{rows: map[uuid.UUID]schema.Record{}}
}

func (t *table) clone() *table {
	return &table{
		ids:  slices.Clone(t.ids),
		rows: maps.Clone(t.rows),
	}
}

// Database keeps all records in memory. Each batch is applied to a copy of
// the affected tables that replaces the current tables only if every command
// in the batch succeeds.
type Database struct {
	mu       sync.RWMutex
	resolver schema.Resolver
	tables   map[string]*table
}

func New(resolver schema.Resolver) *Database {
	return &Database{
		resolver: resolver,
		tables:   map[string]*table{},
	}
}

func (db *Database) Execute(ctx context.Context, cmds []commands.Command) (results []commands.Result, err error) {
	ctx, span := tracer.Start(ctx, "execute")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	readOnly := !slices.ContainsFunc(cmds, func(c commands.Command) bool {
		_, ok := c.(commands.WriteCommand)
		return ok
	})

	if readOnly {
		db.mu.RLock()
		defer db.mu.RUnlock()
	} else {
		db.mu.Lock()
		defer db.mu.Unlock()
	}

	b := &batch{
		tables:  maps.Clone(db.tables),
		touched: map[string]bool{},
	}

	results = make([]commands.Result, 0, len(cmds))

	for _, cmd := range cmds {
		var result commands.Result

		switch c := cmd.(type) {
		case commands.WriteCommand:
			result, err = b.save(c)
		case commands.ReadCommand:
			result, err = b.read(db.resolver, c)
		default:
			err = fmt.Errorf("unsupported command type %T", cmd)
		}

		if err != nil {
			return nil, errors.WithCommandSummary(err, cmd.Summary())
		}

		results = append(results, result)
	}

	if !readOnly {
		db.tables = b.tables
		logging.GetFromContext(ctx).Debug("batch committed", "commands", len(cmds), "tables", len(b.touched))
	}

	return results, nil
}

type batch struct {
	tables  map[string]*table
	touched map[string]bool
}

// table returns a table that is safe to modify within this batch
func (b *batch) table(recordType string) *table {
	t, ok := b.tables[recordType]
	if !ok {
		t = newTable()
	} else if !b.touched[recordType] {
		t = t.clone()
	}

	b.tables[recordType] = t
	b.touched[recordType] = true

	return t
}

func (b *batch) save(cmd commands.WriteCommand) (commands.Result, error) {
	t := b.table(cmd.Entity)

	for _, r := range cmd.Delete {
		id := r.ID()
		if _, ok := t.rows[id]; !ok {
			return nil, errors.NewNotFoundError("Deleting a record that does not exist in database.")
		}
		delete(t.rows, id)
		t.ids = slices.DeleteFunc(t.ids, func(other uuid.UUID) bool { return other == id })
	}

	for _, r := range cmd.Update {
		id := r.ID()
		if _, ok := t.rows[id]; !ok {
			return nil, errors.NewNotFoundError("Updating a record that does not exist in database.")
		}
		t.rows[id] = maps.Clone(r)
	}

	for _, r := range cmd.Insert {
		record := maps.Clone(r)

		id := record.ID()
		if id == uuid.Nil {
			id = uuid.New()
			record[schema.IDField] = id
		}

		if _, ok := t.rows[id]; ok {
			return nil, errors.NewAlreadyExistsError("Inserting a record that already exists in database.")
		}

		t.rows[id] = record
		t.ids = append(t.ids, id)
	}

	return commands.WriteResult{
		Deleted:  len(cmd.Delete),
		Updated:  len(cmd.Update),
		Inserted: len(cmd.Insert),
	}, nil
}

func (b *batch) read(resolver schema.Resolver, cmd commands.ReadCommand) (commands.Result, error) {
	q, err := database.NewQuery(resolver, cmd)
	if err != nil {
		return nil, err
	}

	matching := []schema.Record{}

	if t, ok := b.tables[q.Schema.Name()]; ok {
		for _, id := range t.ids {
			r := t.rows[id]
			if matchesAll(r, q.Conditions) {
				matching = append(matching, r)
			}
		}
	}

	if len(q.OrderBy) > 0 {
		slices.SortStableFunc(matching, func(a, b schema.Record) int {
			for _, o := range q.OrderBy {
				c := database.Compare(a[o.Field.Name], b[o.Field.Name])
				if o.Descending {
					c = -c
				}
				if c != 0 {
					return c
				}
			}
			return 0
		})
	}

	totalCount := len(matching)

	var records []schema.Record
	if q.ReadRecords {
		records = page(matching, q.Skip, q.Top)
		for i := range records {
			records[i] = maps.Clone(records[i])
		}
	}

	return commands.NewReadResult(cmd, records, totalCount), nil
}

// page returns the records after skip, at most top of them if top is not zero
func page(records []schema.Record, skip, top int) []schema.Record {
	if skip >= len(records) {
		return []schema.Record{}
	}

	records = records[skip:]

	if top > 0 && top < len(records) {
		records = records[:top]
	}

	return slices.Clone(records)
}

func matchesAll(r schema.Record, conditions []database.Condition) bool {
	for _, c := range conditions {
		if !matches(r[c.Field.Name], c) {
			return false
		}
	}
	return true
}

func matches(v any, c database.Condition) bool {
	switch c.Operation {
	case database.Equals:
		return database.Compare(v, c.Value) == 0
	case database.NotEquals:
		return database.Compare(v, c.Value) != 0
	case database.In, database.NotIn:
		found := false
		if v != nil {
			values, _ := c.Value.([]any)
			found = slices.ContainsFunc(values, func(other any) bool { return database.Compare(v, other) == 0 })
		}
		return found == (c.Operation == database.In)
	}

	if v == nil {
		return false
	}

	if c.Operation.IsTextSearch() {
		s, _ := v.(string)
		text, _ := c.Value.(string)
		s, text = strings.ToLower(s), strings.ToLower(text)

		switch c.Operation {
		case database.Contains:
			return strings.Contains(s, text)
		case database.StartsWith:
			return strings.HasPrefix(s, text)
		default:
			return strings.HasSuffix(s, text)
		}
	}

	cmp := database.Compare(v, c.Value)

	switch c.Operation {
	case database.Less:
		return cmp < 0
	case database.LessEqual:
		return cmp <= 0
	case database.Greater:
		return cmp > 0
	case database.GreaterEqual:
		return cmp >= 0
	}

	return false
}
