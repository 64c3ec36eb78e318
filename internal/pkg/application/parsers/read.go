package parsers

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/diwise/json-commands/internal/pkg/application/commands"
	"github.com/diwise/json-commands/internal/pkg/application/schema"
	"github.com/diwise/json-commands/pkg/jsoncommands/errors"
)

const invalidReadRequest string = "The request has invalid JSON format. See the server log for more information."

// ReadCommandSpec is a read command as it is sent by clients, before the
// filters have been resolved against the record type.
type ReadCommandSpec struct {
	Filters        []FilterCriteria `json:"Filters,omitempty"`
	Sort           []string         `json:"Sort,omitempty"`
	ReadRecords    bool             `json:"ReadRecords"`
	ReadTotalCount bool             `json:"ReadTotalCount"`
	Skip           int              `json:"Skip"`
	Top            int              `json:"Top"`
}

func (rcs *ReadCommandSpec) UnmarshalJSON(data []byte) error {
	type readCommandSpec ReadCommandSpec

	spec := readCommandSpec{ReadRecords: true}
	if err := json.Unmarshal(data, &spec); err != nil {
		return err
	}

	*rcs = ReadCommandSpec(spec)
	return nil
}

// FilterCriteria is either a generic filter on a property, or a specific
// filter that names one of the filter types of the record type.
type FilterCriteria struct {
	Property  string          `json:"Property,omitempty"`
	Operation string          `json:"Operation,omitempty"`
	Filter    string          `json:"Filter,omitempty"`
	Value     json.RawMessage `json:"Value,omitempty"`
}

func (fc FilterCriteria) IsSpecific() bool {
	return fc.Filter != ""
}

// DecodeReadCommands decodes a read batch in the form [{"<record type>": {...}}, ...]
func DecodeReadCommands(data []byte) ([]map[string]ReadCommandSpec, error) {
	var cmds []map[string]ReadCommandSpec

	if err := json.Unmarshal(data, &cmds); err != nil {
		return nil, errors.NewMalformedRequestError(invalidReadRequest, errors.WithLogDetail(err.Error()))
	}

	if cmds == nil {
		return nil, errors.NewMalformedRequestError(invalidReadRequest, errors.WithLogDetail("the request body is null"))
	}

	return cmds, nil
}

type ReadCommandNormalizer struct {
	resolver schema.Resolver
}

func NewReadCommandNormalizer(resolver schema.Resolver) *ReadCommandNormalizer {
	return &ReadCommandNormalizer{resolver: resolver}
}

// Normalize resolves the record type and filters of each read command. The
// returned commands are in the same order as the input.
func (n *ReadCommandNormalizer) Normalize(specs []map[string]ReadCommandSpec) ([]commands.ReadCommand, error) {
	result := make([]commands.ReadCommand, 0, len(specs))

	for _, entry := range specs {
		if len(entry) != 1 {
			return nil, errors.NewMalformedRequestError(fmt.Sprintf(
				"Each read command in the array can have only one entity specified (%d found). To read multiple entities, add another element to the commands array.",
				len(entry),
			))
		}

		for entity, spec := range entry {
			cmd, err := n.normalize(entity, spec)
			if err != nil {
				return nil, err
			}
			result = append(result, cmd)
		}
	}

	return result, nil
}

func (n *ReadCommandNormalizer) normalize(entity string, spec ReadCommandSpec) (commands.ReadCommand, error) {
	s, ok := n.resolver.Resolve(entity)
	if !ok {
		return commands.ReadCommand{}, errors.NewUnknownEntityError(fmt.Sprintf("Incorrect entity name '%s'.", entity))
	}

	cmd := commands.ReadCommand{
		Entity:         s.Name(),
		ReadRecords:    spec.ReadRecords,
		ReadTotalCount: spec.ReadTotalCount,
		Skip:           spec.Skip,
		Top:            spec.Top,
	}

	for _, fc := range spec.Filters {
		filters, err := resolveFilter(s, fc)
		if err != nil {
			return commands.ReadCommand{}, err
		}
		cmd.Filters = append(cmd.Filters, filters...)
	}

	for _, key := range spec.Sort {
		cmd.OrderBy = append(cmd.OrderBy, commands.NewOrderBy(key))
	}

	return cmd, nil
}

func resolveFilter(s *schema.Schema, fc FilterCriteria) ([]commands.Filter, error) {
	if !fc.IsSpecific() {
		value, err := decodeGenericValue(fc.Value)
		if err != nil {
			return nil, errors.NewMalformedRequestError(invalidReadRequest, errors.WithLogDetail(err.Error()))
		}

		return []commands.Filter{{
			Property:  fc.Property,
			Operation: fc.Operation,
			Value:     value,
		}}, nil
	}

	ft, ok := s.FilterType(fc.Filter)
	if !ok {
		return nil, errors.NewMalformedRequestError(fmt.Sprintf("Filter type '%s' is not available for this record type.", fc.Filter))
	}

	value, err := ft.DecodeParameter(fc.Value)
	if err != nil {
		return nil, errors.NewMalformedRequestError(invalidReadRequest, errors.WithLogDetail(fmt.Sprintf("%s: %s", ft.Name, err.Error())))
	}

	if ft.Parameter.Kind != schema.KindObject {
		return []commands.Filter{{
			Property:   ft.Property,
			Operation:  ft.Operation,
			Value:      value,
			FilterType: ft.Name,
		}}, nil
	}

	fields, _ := value.(map[string]any)
	filters := make([]commands.Filter, 0, len(ft.Parameter.Fields))

	for _, f := range ft.Parameter.Fields {
		v, ok := fields[f.Name]
		if !ok {
			continue
		}
		filters = append(filters, commands.Filter{
			Property:   f.Name,
			Operation:  ft.Operation,
			Value:      v,
			FilterType: ft.Name,
		})
	}

	return filters, nil
}

func decodeGenericValue(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	var v any

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("filter value: '%s'. %w", string(raw), err)
	}

	return v, nil
}
