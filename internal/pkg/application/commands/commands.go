package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/diwise/json-commands/internal/pkg/application/schema"
)

type Operation string

const (
	Insert Operation = "Insert"
	Update Operation = "Update"
	Delete Operation = "Delete"
)

// Operations lists the supported operations in the order they are reported to clients
var Operations = []Operation{Delete, Update, Insert}

// ParseOperation matches name against the supported operations without regard to case
func ParseOperation(name string) (Operation, bool) {
	for _, op := range Operations {
		if strings.EqualFold(name, string(op)) {
			return op, true
		}
	}
	return "", false
}

//go:generate moq -rm -out executor_mock.go . Executor

// Executor runs a batch of commands within a single transaction. Results are
// returned in the same order as the commands.
type Executor interface {
	Execute(ctx context.Context, cmds []Command) ([]Result, error)
}

type Command interface {
	RecordType() string
	Summary() string
}

// WriteCommand saves records of a single record type. A nil slice means that
// the operation was not requested, which is not the same as an empty slice.
type WriteCommand struct {
	Entity string
	Delete []schema.Record
	Update []schema.Record
	Insert []schema.Record
}

func (wc WriteCommand) RecordType() string { return wc.Entity }

func (wc WriteCommand) Summary() string {
	parts := []string{}
	for _, p := range []struct {
		op      Operation
		records []schema.Record
	}{{Delete, wc.Delete}, {Update, wc.Update}, {Insert, wc.Insert}} {
		if p.records != nil {
			parts = append(parts, fmt.Sprintf("%s %d", p.op, len(p.records)))
		}
	}
	return fmt.Sprintf("Save %s (%s)", wc.Entity, strings.Join(parts, ", "))
}

// Records returns the records for a single operation
func (wc WriteCommand) Records(op Operation) []schema.Record {
	switch op {
	case Insert:
		return wc.Insert
	case Update:
		return wc.Update
	case Delete:
		return wc.Delete
	}
	return nil
}

type Filter struct {
	Property  string
	Operation string
	Value     any
	// FilterType is the name of the specific filter this filter was resolved from, if any
	FilterType string
}

type OrderBy struct {
	Property   string
	Descending bool
}

// NewOrderBy expands a sort key where a leading '-' means descending order
func NewOrderBy(sortKey string) OrderBy {
	property, descending := strings.CutPrefix(sortKey, "-")
	return OrderBy{Property: property, Descending: descending}
}

type ReadCommand struct {
	Entity         string
	Filters        []Filter
	OrderBy        []OrderBy
	ReadRecords    bool
	ReadTotalCount bool
	Skip           int
	Top            int
}

func (rc ReadCommand) RecordType() string { return rc.Entity }

func (rc ReadCommand) Summary() string {
	return fmt.Sprintf("Read %s (filters %d, skip %d, top %d)", rc.Entity, len(rc.Filters), rc.Skip, rc.Top)
}
