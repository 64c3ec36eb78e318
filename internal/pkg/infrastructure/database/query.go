package database

import (
	"bytes"
	"cmp"
	"fmt"
	"strings"
	"time"

	"github.com/diwise/json-commands/internal/pkg/application/commands"
	"github.com/diwise/json-commands/internal/pkg/application/schema"
	"github.com/diwise/json-commands/pkg/jsoncommands/errors"
	"github.com/google/uuid"
)

type Operation string

const (
	Equals       Operation = "equals"
	NotEquals    Operation = "notequals"
	Less         Operation = "less"
	LessEqual    Operation = "lessequal"
	Greater      Operation = "greater"
	GreaterEqual Operation = "greaterequal"
	In           Operation = "in"
	NotIn        Operation = "notin"
	Contains     Operation = "contains"
	StartsWith   Operation = "startswith"
	EndsWith     Operation = "endswith"
)

var operations = []Operation{Equals, NotEquals, Less, LessEqual, Greater, GreaterEqual, In, NotIn, Contains, StartsWith, EndsWith}

func parseOperation(name string) (Operation, bool) {
	for _, op := range operations {
		if strings.EqualFold(name, string(op)) {
			return op, true
		}
	}
	return "", false
}

func (op Operation) IsTextSearch() bool {
	return op == Contains || op == StartsWith || op == EndsWith
}

// Condition is a filter where the value has been converted to the type of the field
type Condition struct {
	Field     schema.Field
	Operation Operation
	Value     any
}

type Order struct {
	Field      schema.Field
	Descending bool
}

// Query is a read command resolved against the schema of its record type
type Query struct {
	Schema         *schema.Schema
	Conditions     []Condition
	OrderBy        []Order
	ReadRecords    bool
	ReadTotalCount bool
	Skip           int
	Top            int
}

// NewQuery resolves the properties, operations and values of a read command.
// Any error is a client error.
func NewQuery(resolver schema.Resolver, cmd commands.ReadCommand) (*Query, error) {
	s, ok := resolver.Resolve(cmd.Entity)
	if !ok {
		return nil, errors.NewUnknownEntityError(fmt.Sprintf("Incorrect entity name '%s'.", cmd.Entity))
	}

	if cmd.Skip < 0 || cmd.Top < 0 {
		return nil, errors.NewMalformedRequestError("Skip and Top must not be negative.")
	}

	q := &Query{
		Schema:         s,
		ReadRecords:    cmd.ReadRecords,
		ReadTotalCount: cmd.ReadTotalCount,
		Skip:           cmd.Skip,
		Top:            cmd.Top,
	}

	for _, f := range cmd.Filters {
		c, err := newCondition(s, f)
		if err != nil {
			return nil, err
		}
		q.Conditions = append(q.Conditions, c)
	}

	for _, o := range cmd.OrderBy {
		field, ok := s.Field(o.Property)
		if !ok {
			return nil, unknownProperty(s, o.Property)
		}
		q.OrderBy = append(q.OrderBy, Order{Field: field, Descending: o.Descending})
	}

	return q, nil
}

func newCondition(s *schema.Schema, f commands.Filter) (Condition, error) {
	field, ok := s.Field(f.Property)
	if !ok {
		return Condition{}, unknownProperty(s, f.Property)
	}

	op, ok := parseOperation(f.Operation)
	if !ok {
		return Condition{}, errors.NewMalformedRequestError(fmt.Sprintf("Filter operation '%s' is not supported.", f.Operation))
	}

	valueType := field.Type

	switch {
	case op == In || op == NotIn:
		valueType = schema.ValueType{Kind: schema.KindArray, Elem: &field.Type}
	case op.IsTextSearch():
		if field.Type.Kind != schema.KindString {
			return Condition{}, errors.NewMalformedRequestError(fmt.Sprintf("Filter operation '%s' can only be used on text properties.", op))
		}
	}

	value, err := valueType.Coerce(f.Value)
	if err != nil {
		return Condition{}, errors.NewMalformedRequestError(
			fmt.Sprintf("Filter value for property '%s' does not match its type.", field.Name),
			errors.WithLogDetail(err.Error()),
		)
	}

	if value == nil && op != Equals && op != NotEquals {
		return Condition{}, errors.NewMalformedRequestError(fmt.Sprintf("Filter operation '%s' requires a value.", op))
	}

	return Condition{Field: field, Operation: op, Value: value}, nil
}

func unknownProperty(s *schema.Schema, property string) error {
	return errors.NewMalformedRequestError(fmt.Sprintf("Property '%s' is not available on record type '%s'.", property, s.Name()))
}

// Compare orders two values of the same field type. Missing values come first.
func Compare(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}

	switch x := a.(type) {
	case int64:
		if y, ok := b.(int64); ok {
			return cmp.Compare(x, y)
		}
	case float64:
		if y, ok := b.(float64); ok {
			return cmp.Compare(x, y)
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}
	case uuid.UUID:
		if y, ok := b.(uuid.UUID); ok {
			return bytes.Compare(x[:], y[:])
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	}

	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
