package parsers

import (
	"encoding/json"
	"fmt"

	"github.com/diwise/json-commands/internal/pkg/application/commands"
	"github.com/diwise/json-commands/internal/pkg/application/schema"
	"github.com/diwise/json-commands/pkg/jsoncommands/errors"
)

// WriteCommandParser parses write batches in the form
//
//	[{"<record type>": {"Insert": [...], "Update": [...], "Delete": [...]}}, ...]
//
// decoding each record with the schema of its record type.
type WriteCommandParser struct {
	resolver schema.Resolver
}

func NewWriteCommandParser(resolver schema.Resolver) *WriteCommandParser {
	return &WriteCommandParser{resolver: resolver}
}

// Parse returns one WriteCommand per command block, in the order they were
// given. Any error is a *errors.ClientError.
func (p *WriteCommandParser) Parse(body []byte) ([]commands.WriteCommand, error) {
	wp := &writeParser{
		r:        NewReader(body),
		resolver: p.resolver,
	}

	if err := wp.next(); err != nil {
		return nil, err
	}

	if wp.r.Token().Kind == EOF {
		return nil, wp.clientError("Empty JSON.")
	}

	cmds, err := wp.readArrayOfCommands()
	if err != nil {
		return nil, err
	}

	if err = wp.readEnd("array"); err != nil {
		return nil, err
	}

	return cmds, nil
}

type writeParser struct {
	r        *Reader
	resolver schema.Resolver
}

func (wp *writeParser) readArrayOfCommands() ([]commands.WriteCommand, error) {
	if _, err := wp.readToken(StartArray); err != nil {
		return nil, err
	}

	cmds := []commands.WriteCommand{}

	for wp.r.Token().Kind != EndArray {
		cmd, err := wp.readCommand(len(cmds))
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}

	// the closing bracket is left as the current token, readEnd consumes what follows it
	return cmds, nil
}

func (wp *writeParser) readCommand(index int) (commands.WriteCommand, error) {
	if _, err := wp.readToken(StartObject); err != nil {
		return commands.WriteCommand{}, err
	}

	if wp.r.Token().Kind != PropertyName {
		return commands.WriteCommand{}, wp.clientError("There is an empty command.", errors.WithKind(errors.ErrEmptyCommand))
	}

	entity, err := wp.readPropertyName()
	if err != nil {
		return commands.WriteCommand{}, err
	}

	s, ok := wp.resolver.Resolve(entity)
	if !ok {
		return commands.WriteCommand{}, wp.clientError(fmt.Sprintf("Incorrect entity name '%s'.", entity), errors.WithKind(errors.ErrUnknownEntity))
	}

	builder := newWriteCommandBuilder(entity)

	if err = wp.readOperations(index, s, builder); err != nil {
		return commands.WriteCommand{}, err
	}

	if wp.r.Token().Kind == PropertyName {
		return commands.WriteCommand{}, wp.clientError(
			"Each write command should contain only one entity name. For other entity type, add a separate command to the commands array.",
			errors.WithKind(errors.ErrMultipleRecordTypes),
		)
	}

	if _, err = wp.readToken(EndObject); err != nil {
		return commands.WriteCommand{}, err
	}

	return builder.build()
}

func (wp *writeParser) readOperations(index int, s *schema.Schema, builder *writeCommandBuilder) error {
	if _, err := wp.readToken(StartObject); err != nil {
		return err
	}

	for wp.r.Token().Kind != EndObject {
		name, err := wp.readPropertyName()
		if err != nil {
			return err
		}

		op, ok := commands.ParseOperation(name)
		if !ok {
			return wp.clientError(
				fmt.Sprintf("Operation '%s' doesn't exist! The allowed operations are Delete, Update and Insert (in any casing).", name),
				errors.WithKind(errors.ErrInvalidOperation),
			)
		}

		path := fmt.Sprintf("[%d]['%s'].%s", index, s.Name(), name)

		records, err := wp.readRecords(path, s)
		if err != nil {
			return err
		}

		builder.add(op, records)
	}

	_, err := wp.readToken(EndObject)
	return err
}

func (wp *writeParser) readRecords(path string, s *schema.Schema) ([]schema.Record, error) {
	if wp.r.Token().Kind != StartArray {
		return nil, wp.unexpectedToken(StartArray)
	}

	records := []schema.Record{}

	for wp.r.More() {
		var raw json.RawMessage

		if err := wp.r.DecodeValue(&raw); err != nil {
			return nil, wp.invalidJSON(err.Error())
		}

		record, err := s.DecodeRecord(raw)
		if err != nil {
			line, column := wp.r.Position()
			detail := fmt.Sprintf("%s. Path '%s[%d]', line %d, position %d.", err.Error(), path, len(records), line, column)
			return nil, wp.invalidJSON(detail)
		}

		records = append(records, record)
	}

	if err := wp.next(); err != nil {
		return nil, err
	}

	if _, err := wp.readToken(EndArray); err != nil {
		return nil, err
	}

	return records, nil
}

// readEnd expects the current token to end the document and nothing but
// whitespace to follow it
func (wp *writeParser) readEnd(lastType string) error {
	err := wp.r.Next()
	if err != nil || wp.r.Token().Kind != EOF {
		return wp.clientError(
			fmt.Sprintf("Unexpected JSON text after the end of JSON %s.", lastType),
			errors.WithKind(errors.ErrTrailingContent),
		)
	}
	return nil
}

func (wp *writeParser) readToken(kind TokenKind) (Token, error) {
	tok := wp.r.Token()
	if tok.Kind != kind {
		return tok, wp.unexpectedToken(kind)
	}

	return tok, wp.next()
}

func (wp *writeParser) readPropertyName() (string, error) {
	tok, err := wp.readToken(PropertyName)
	if err != nil {
		return "", err
	}

	name, _ := tok.Value.(string)
	return name, nil
}

func (wp *writeParser) next() error {
	if err := wp.r.Next(); err != nil {
		return wp.invalidJSON(err.Error())
	}
	return nil
}

func (wp *writeParser) unexpectedToken(expected TokenKind) error {
	return wp.clientError(fmt.Sprintf("Expected token type %s. Provided token is %s.", expected, wp.r.Token().Kind))
}

func (wp *writeParser) invalidJSON(logDetail string) error {
	return positionedError(wp.r, "Invalid JSON format.", logDetail)
}

// clientError adds the current position to msg. Messages must only describe
// the structure of the request, data from the request goes in the log detail.
func (wp *writeParser) clientError(msg string, options ...errors.ClientErrorOption) error {
	return positionedError(wp.r, msg, "", options...)
}

type operationItems struct {
	op      commands.Operation
	records []schema.Record
}

// writeCommandBuilder collects the operations of a command block and checks
// that no operation is given more than once when the command is built.
type writeCommandBuilder struct {
	entity     string
	operations []operationItems
}

func newWriteCommandBuilder(entity string) *writeCommandBuilder {
	return &writeCommandBuilder{entity: entity}
}

func (b *writeCommandBuilder) add(op commands.Operation, records []schema.Record) {
	b.operations = append(b.operations, operationItems{op: op, records: records})
}

func (b *writeCommandBuilder) build() (commands.WriteCommand, error) {
	cmd := commands.WriteCommand{Entity: b.entity}

	for _, o := range b.operations {
		var target *[]schema.Record

		switch o.op {
		case commands.Delete:
			target = &cmd.Delete
		case commands.Update:
			target = &cmd.Update
		case commands.Insert:
			target = &cmd.Insert
		}

		if *target != nil {
			return commands.WriteCommand{}, errors.NewDuplicateOperationError(
				fmt.Sprintf("There are multiple '%s' operations. Please combine them into a single operation with multiple records.", o.op),
			)
		}

		*target = o.records
	}

	return cmd, nil
}
