package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"

	"github.com/diwise/json-commands/internal/pkg/application/commands"
	"github.com/diwise/json-commands/internal/pkg/application/schema"
	"github.com/diwise/json-commands/internal/pkg/infrastructure/database"
	"github.com/diwise/json-commands/pkg/jsoncommands/errors"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("json-commands/database/postgres")

// Database stores records as jsonb documents. Each batch runs in a single transaction.
type Database struct {
	pool     *pgxpool.Pool
	resolver schema.Resolver
}

func Connect(ctx context.Context, cfg Config, resolver schema.Resolver) (*Database, error) {
	pool, err := pgxpool.New(ctx, cfg.ConnStr())
	if err != nil {
		return nil, err
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, err
	}

	db := &Database{pool: pool, resolver: resolver}

	err = db.initialize(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return db, nil
}

func (db *Database) initialize(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS records (
			seq BIGSERIAL,
			type TEXT NOT NULL,
			id UUID NOT NULL,
			data JSONB NOT NULL,
			PRIMARY KEY (type, id)
		);`)

	return err
}

func (db *Database) Close() {
	db.pool.Close()
}

func (db *Database) Execute(ctx context.Context, cmds []commands.Command) (results []commands.Result, err error) {
	ctx, span := tracer.Start(ctx, "execute")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}

	results = make([]commands.Result, 0, len(cmds))

	for _, cmd := range cmds {
		var result commands.Result

		switch c := cmd.(type) {
		case commands.WriteCommand:
			result, err = save(ctx, tx, c)
		case commands.ReadCommand:
			result, err = db.read(ctx, tx, c)
		default:
			err = fmt.Errorf("unsupported command type %T", cmd)
		}

		if err != nil {
			tx.Rollback(ctx)
			return nil, errors.WithCommandSummary(err, cmd.Summary())
		}

		results = append(results, result)
	}

	err = tx.Commit(ctx)
	if err != nil {
		return nil, err
	}

	logging.GetFromContext(ctx).Debug("batch committed", "commands", len(cmds))

	return results, nil
}

func save(ctx context.Context, tx pgx.Tx, cmd commands.WriteCommand) (commands.Result, error) {
	for _, r := range cmd.Delete {
		tag, err := tx.Exec(ctx, `DELETE FROM records WHERE type=$1 AND id=$2::uuid;`, cmd.Entity, r.ID().String())
		if err != nil {
			return nil, err
		}
		if tag.RowsAffected() == 0 {
			return nil, errors.NewNotFoundError("Deleting a record that does not exist in database.")
		}
	}

	for _, r := range cmd.Update {
		data, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}

		tag, err := tx.Exec(ctx, `UPDATE records SET data=$3::jsonb WHERE type=$1 AND id=$2::uuid;`, cmd.Entity, r.ID().String(), string(data))
		if err != nil {
			return nil, err
		}
		if tag.RowsAffected() == 0 {
			return nil, errors.NewNotFoundError("Updating a record that does not exist in database.")
		}
	}

	for _, r := range cmd.Insert {
		record := maps.Clone(r)

		id := record.ID()
		if id == uuid.Nil {
			id = uuid.New()
			record[schema.IDField] = id
		}

		data, err := json.Marshal(record)
		if err != nil {
			return nil, err
		}

		tag, err := tx.Exec(ctx, `INSERT INTO records(type, id, data) VALUES ($1, $2::uuid, $3::jsonb) ON CONFLICT (type, id) DO NOTHING;`, cmd.Entity, id.String(), string(data))
		if err != nil {
			return nil, err
		}
		if tag.RowsAffected() == 0 {
			return nil, errors.NewAlreadyExistsError("Inserting a record that already exists in database.")
		}
	}

	return commands.WriteResult{
		Deleted:  len(cmd.Delete),
		Updated:  len(cmd.Update),
		Inserted: len(cmd.Insert),
	}, nil
}

func (db *Database) read(ctx context.Context, tx pgx.Tx, cmd commands.ReadCommand) (commands.Result, error) {
	q, err := database.NewQuery(db.resolver, cmd)
	if err != nil {
		return nil, err
	}

	totalCount := 0

	if q.ReadTotalCount {
		sql, args := countRecords(q)
		err = tx.QueryRow(ctx, sql, args...).Scan(&totalCount)
		if err != nil {
			return nil, fmt.Errorf("failed to count records: %w", err)
		}
	}

	var records []schema.Record

	if q.ReadRecords {
		records, err = queryRecords(ctx, tx, q)
		if err != nil {
			return nil, err
		}
	}

	return commands.NewReadResult(cmd, records, totalCount), nil
}

func queryRecords(ctx context.Context, tx pgx.Tx, q *database.Query) ([]schema.Record, error) {
	sql, args := selectRecords(q)

	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]schema.Record, 0)

	for rows.Next() {
		var data []byte
		err := rows.Scan(&data)
		if err != nil {
			return nil, err
		}

		r, err := q.Schema.DecodeRecord(data)
		if err != nil {
			return nil, fmt.Errorf("stored record does not match its record type: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}
