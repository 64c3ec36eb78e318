package commands

import "github.com/diwise/json-commands/internal/pkg/application/schema"

type Result interface{}

type WriteResult struct {
	Deleted  int
	Updated  int
	Inserted int
}

// ReadResult holds the outcome of a ReadCommand. Records is nil when records
// were not requested and TotalCount is nil when the count was not requested.
type ReadResult struct {
	Records    []schema.Record
	TotalCount *int
}

func NewReadResult(cmd ReadCommand, records []schema.Record, totalCount int) *ReadResult {
	rr := &ReadResult{}

	if cmd.ReadRecords {
		rr.Records = records
		if rr.Records == nil {
			rr.Records = []schema.Record{}
		}
	}

	if cmd.ReadTotalCount {
		rr.TotalCount = &totalCount
	}

	return rr
}
