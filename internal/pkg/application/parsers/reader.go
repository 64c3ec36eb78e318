package parsers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"unicode/utf8"
)

type TokenKind int

const (
	None TokenKind = iota
	StartArray
	EndArray
	StartObject
	EndObject
	PropertyName
	Value
	EOF
)

func (k TokenKind) String() string {
	switch k {
	case StartArray:
		return "StartArray"
	case EndArray:
		return "EndArray"
	case StartObject:
		return "StartObject"
	case EndObject:
		return "EndObject"
	case PropertyName:
		return "PropertyName"
	case Value:
		return "Value"
	case EOF:
		return "EOF"
	}
	return "None"
}

type Token struct {
	Kind  TokenKind
	Value any
}

type frame struct {
	object    bool
	expectKey bool
}

// Reader is a forward only reader over a json document that keeps track of
// the current token and its position. A Reader is not safe for concurrent use.
type Reader struct {
	body   []byte
	dec    *json.Decoder
	tok    Token
	stack  []frame
	offset int64
}

func NewReader(body []byte) *Reader {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	return &Reader{
		body: body,
		dec:  dec,
	}
}

// Token returns the current token
func (r *Reader) Token() Token {
	return r.tok
}

// Next advances the reader by one token. When the end of the input is reached
// the current token becomes EOF.
func (r *Reader) Next() error {
	t, err := r.dec.Token()
	if errors.Is(err, io.EOF) {
		r.offset = r.dec.InputOffset()
		r.tok = Token{Kind: EOF}
		return nil
	}
	if err != nil {
		r.errorAt(err)
		return err
	}

	r.offset = r.dec.InputOffset()

	if d, ok := t.(json.Delim); ok {
		switch d {
		case '[':
			r.valueRead()
			r.stack = append(r.stack, frame{})
			r.tok = Token{Kind: StartArray}
		case '{':
			r.valueRead()
			r.stack = append(r.stack, frame{object: true, expectKey: true})
			r.tok = Token{Kind: StartObject}
		case ']':
			r.pop()
			r.tok = Token{Kind: EndArray}
		case '}':
			r.pop()
			r.tok = Token{Kind: EndObject}
		}
		return nil
	}

	if top := r.top(); top != nil && top.object && top.expectKey {
		top.expectKey = false
		r.tok = Token{Kind: PropertyName, Value: t}
		return nil
	}

	r.valueRead()
	r.tok = Token{Kind: Value, Value: t}
	return nil
}

// More reports whether there is another element in the current array or object
func (r *Reader) More() bool {
	return r.dec.More()
}

// DecodeValue decodes the complete value that follows the current token into
// v. The current token is left unchanged, call Next to continue reading.
func (r *Reader) DecodeValue(v any) error {
	if err := r.dec.Decode(v); err != nil {
		r.errorAt(err)
		return err
	}

	r.offset = r.dec.InputOffset()
	r.valueRead()
	return nil
}

// Position returns the one based line and the column of the last consumed character
func (r *Reader) Position() (line, column int) {
	offset := min(max(int(r.offset), 0), len(r.body))
	consumed := r.body[:offset]

	line = 1 + bytes.Count(consumed, []byte{'\n'})
	lineStart := bytes.LastIndexByte(consumed, '\n') + 1
	column = utf8.RuneCount(consumed[lineStart:])

	return line, column
}

func (r *Reader) errorAt(err error) {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	if errors.As(err, &syntaxErr) {
		r.offset = syntaxErr.Offset
	} else if errors.As(err, &typeErr) {
		r.offset = typeErr.Offset
	} else {
		r.offset = r.dec.InputOffset()
	}
}

func (r *Reader) top() *frame {
	if len(r.stack) == 0 {
		return nil
	}
	return &r.stack[len(r.stack)-1]
}

func (r *Reader) pop() {
	if len(r.stack) > 0 {
		r.stack = r.stack[:len(r.stack)-1]
	}
}

// a value inside an object is always followed by a key or the end of the object
func (r *Reader) valueRead() {
	if top := r.top(); top != nil && top.object {
		top.expectKey = true
	}
}
