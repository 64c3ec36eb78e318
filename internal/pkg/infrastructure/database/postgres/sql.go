package postgres

import (
	"fmt"
	"strings"

	"github.com/diwise/json-commands/internal/pkg/application/schema"
	"github.com/diwise/json-commands/internal/pkg/infrastructure/database"
	"github.com/google/uuid"
)

type statement struct {
	args []any
}

// param adds v as a positional argument and returns its placeholder
func (s *statement) param(v any, kind schema.Kind) string {
	cast := ""

	switch t := v.(type) {
	case uuid.UUID:
		v = t.String()
		cast = "::uuid"
	default:
		if kind == schema.KindUUID {
			cast = "::uuid"
		}
	}

	s.args = append(s.args, v)
	return fmt.Sprintf("$%d%s", len(s.args), cast)
}

// column returns the sql expression for a field, converted to a type that
// compares the same way as the field values do
func column(f schema.Field) string {
	if f.Name == schema.IDField {
		return "id"
	}

	expr := fmt.Sprintf("(data->>'%s')", strings.ReplaceAll(f.Name, "'", "''"))

	switch f.Type.Kind {
	case schema.KindInteger:
		return expr + "::bigint"
	case schema.KindNumber:
		return expr + "::double precision"
	case schema.KindBool:
		return expr + "::boolean"
	case schema.KindDateTime:
		return expr + "::timestamptz"
	case schema.KindUUID:
		return expr + "::uuid"
	}

	return expr
}

var comparisons = map[database.Operation]string{
	database.Less:         "<",
	database.LessEqual:    "<=",
	database.Greater:      ">",
	database.GreaterEqual: ">=",
}

func (s *statement) condition(c database.Condition) string {
	col := column(c.Field)
	kind := c.Field.Type.Kind

	switch c.Operation {
	case database.Equals:
		if c.Value == nil {
			return col + " IS NULL"
		}
		return fmt.Sprintf("%s = %s", col, s.param(c.Value, kind))

	case database.NotEquals:
		if c.Value == nil {
			return col + " IS NOT NULL"
		}
		return fmt.Sprintf("(%s IS NULL OR %s <> %s)", col, col, s.param(c.Value, kind))

	case database.In, database.NotIn:
		values, _ := c.Value.([]any)
		if len(values) == 0 {
			if c.Operation == database.In {
				return "FALSE"
			}
			return "TRUE"
		}

		placeholders := make([]string, 0, len(values))
		for _, v := range values {
			placeholders = append(placeholders, s.param(v, kind))
		}
		list := strings.Join(placeholders, ", ")

		if c.Operation == database.In {
			return fmt.Sprintf("%s IN (%s)", col, list)
		}
		return fmt.Sprintf("(%s IS NULL OR %s NOT IN (%s))", col, col, list)

	case database.Contains, database.StartsWith, database.EndsWith:
		text, _ := c.Value.(string)
		pattern := escapeLike(text)

		switch c.Operation {
		case database.Contains:
			pattern = "%" + pattern + "%"
		case database.StartsWith:
			pattern = pattern + "%"
		default:
			pattern = "%" + pattern
		}

		return fmt.Sprintf("%s ILIKE %s", col, s.param(pattern, schema.KindString))
	}

	return fmt.Sprintf("%s %s %s", col, comparisons[c.Operation], s.param(c.Value, kind))
}

func escapeLike(text string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(text)
}

func (s *statement) where(q *database.Query) string {
	conditions := []string{"type = " + s.param(q.Schema.Name(), schema.KindString)}

	for _, c := range q.Conditions {
		conditions = append(conditions, s.condition(c))
	}

	return strings.Join(conditions, " AND ")
}

func countRecords(q *database.Query) (string, []any) {
	s := &statement{}
	sql := "SELECT count(*) FROM records WHERE " + s.where(q)
	return sql, s.args
}

func selectRecords(q *database.Query) (string, []any) {
	s := &statement{}

	var sb strings.Builder
	sb.WriteString("SELECT data FROM records WHERE ")
	sb.WriteString(s.where(q))
	sb.WriteString(" ORDER BY ")

	for _, o := range q.OrderBy {
		if o.Descending {
			sb.WriteString(column(o.Field) + " DESC NULLS LAST, ")
		} else {
			sb.WriteString(column(o.Field) + " ASC NULLS FIRST, ")
		}
	}
	sb.WriteString("seq")

	if q.Skip > 0 {
		sb.WriteString(" OFFSET " + s.param(q.Skip, schema.KindInteger))
	}

	if q.Top > 0 {
		sb.WriteString(" LIMIT " + s.param(q.Top, schema.KindInteger))
	}

	return sb.String(), s.args
}
