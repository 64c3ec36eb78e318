package jsoncommands

import "encoding/json"

// Record is a single record as it is sent over the wire
type Record map[string]any

// ReadResponse is the body of a successful read, with one entry per read
// command in the same order as the commands were given
type ReadResponse struct {
	Data []ReadCommandResponse `json:"Data"`
}

// ReadCommandResponse holds the result of a single read command. Records and
// TotalCount are nil when they were not requested.
type ReadCommandResponse struct {
	Records    []Record `json:"Records"`
	TotalCount *int     `json:"TotalCount"`
}

func (r ReadCommandResponse) MarshalJSON() ([]byte, error) {
	m := map[string]any{}

	if r.Records != nil {
		m["Records"] = r.Records
	}

	if r.TotalCount != nil {
		m["TotalCount"] = *r.TotalCount
	}

	return json.Marshal(m)
}

// Filter is a filter criteria in a read command. Either Property and Operation
// or Filter should be set.
type Filter struct {
	Property  string `json:"Property,omitempty"`
	Operation string `json:"Operation,omitempty"`
	Filter    string `json:"Filter,omitempty"`
	Value     any    `json:"Value,omitempty"`
}

// ReadCommand is a read command for a single record type
type ReadCommand struct {
	Filters        []Filter `json:"Filters,omitempty"`
	Sort           []string `json:"Sort,omitempty"`
	ReadRecords    bool     `json:"ReadRecords"`
	ReadTotalCount bool     `json:"ReadTotalCount"`
	Skip           int      `json:"Skip,omitempty"`
	Top            int      `json:"Top,omitempty"`
}

// WriteCommand saves records of a single record type. Operations that are nil
// are left out of the request.
type WriteCommand struct {
	Delete []Record `json:"Delete,omitempty"`
	Update []Record `json:"Update,omitempty"`
	Insert []Record `json:"Insert,omitempty"`
}

// WriteRequest is a batch of write commands, each keyed by its record type
type WriteRequest []map[string]WriteCommand

func (wr *WriteRequest) Add(recordType string, cmd WriteCommand) *WriteRequest {
	*wr = append(*wr, map[string]WriteCommand{recordType: cmd})
	return wr
}

// ReadRequest is a batch of read commands, each keyed by its record type
type ReadRequest []map[string]ReadCommand

func (rr *ReadRequest) Add(recordType string, cmd ReadCommand) *ReadRequest {
	*rr = append(*rr, map[string]ReadCommand{recordType: cmd})
	return rr
}
