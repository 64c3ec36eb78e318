package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrClient = fmt.Errorf("client error")
var ErrUser = fmt.Errorf("user error")

var ErrMalformedRequest = fmt.Errorf("malformed request")
var ErrUnknownEntity = fmt.Errorf("unknown entity")
var ErrInvalidOperation = fmt.Errorf("invalid operation")
var ErrDuplicateOperation = fmt.Errorf("duplicate operation")
var ErrEmptyCommand = fmt.Errorf("empty command")
var ErrMultipleRecordTypes = fmt.Errorf("multiple record types in one command")
var ErrTrailingContent = fmt.Errorf("trailing content")
var ErrAlreadyExists = fmt.Errorf("already exists")
var ErrNotFound = fmt.Errorf("not found")
var ErrNotAuthenticated = fmt.Errorf("not authenticated")
var ErrTooManyRequests = fmt.Errorf("too many requests")

// UserNotAuthenticated is the message convention used by error producers that
// are unable to set a status code of their own.
const UserNotAuthenticated string = "User is not authenticated."

// ClientError is raised when a request is invalid. Its message is safe to show
// to the client, any data from the request belongs in the log detail.
type ClientError struct {
	msg       string
	code      int
	target    error
	logDetail string
}

func (ce *ClientError) Error() string { return ce.msg }

func (ce *ClientError) Is(target error) bool {
	return target == ErrClient || target == ce.target
}

// StatusCode returns the http status code carried by the error, 400 if none was set
func (ce *ClientError) StatusCode() int {
	if ce.code != 0 {
		return ce.code
	}
	return http.StatusBadRequest
}

// LogDetail returns additional information that must only be written to the server log
func (ce *ClientError) LogDetail() string { return ce.logDetail }

type ClientErrorOption func(*ClientError)

func WithStatusCode(code int) ClientErrorOption {
	return func(ce *ClientError) {
		ce.code = code
	}
}

func WithLogDetail(detail string) ClientErrorOption {
	return func(ce *ClientError) {
		ce.logDetail = detail
	}
}

func WithKind(target error) ClientErrorOption {
	return func(ce *ClientError) {
		ce.target = target
	}
}

func NewClientError(msg string, options ...ClientErrorOption) error {
	ce := &ClientError{
		msg:    msg,
		target: ErrMalformedRequest,
	}

	for _, option := range options {
		option(ce)
	}

	return ce
}

func NewMalformedRequestError(msg string, options ...ClientErrorOption) error {
	return NewClientError(msg, options...)
}

func NewUnknownEntityError(msg string) error {
	return NewClientError(msg, WithKind(ErrUnknownEntity))
}

func NewInvalidOperationError(msg string) error {
	return NewClientError(msg, WithKind(ErrInvalidOperation))
}

func NewDuplicateOperationError(msg string) error {
	return NewClientError(msg, WithKind(ErrDuplicateOperation))
}

func NewEmptyCommandError(msg string) error {
	return NewClientError(msg, WithKind(ErrEmptyCommand))
}

func NewMultipleRecordTypesError(msg string) error {
	return NewClientError(msg, WithKind(ErrMultipleRecordTypes))
}

func NewTrailingContentError(msg string) error {
	return NewClientError(msg, WithKind(ErrTrailingContent))
}

func NewAlreadyExistsError(msg string) error {
	return NewClientError(msg, WithKind(ErrAlreadyExists))
}

func NewNotFoundError(msg string) error {
	return NewClientError(msg, WithKind(ErrNotFound))
}

func NewNotAuthenticatedError() error {
	return NewClientError(UserNotAuthenticated, WithKind(ErrNotAuthenticated))
}

func NewTooManyRequestsError(msg string) error {
	return NewClientError(msg, WithKind(ErrTooManyRequests), WithStatusCode(http.StatusTooManyRequests))
}

// UserError is an intentional business rule violation. The user message is a
// format string that is localized before it is shown, the system message is
// an optional machine readable detail.
type UserError struct {
	msg           string
	params        []any
	systemMessage *string
	code          int
}

func (ue *UserError) Error() string {
	if len(ue.params) == 0 {
		return ue.msg
	}
	return fmt.Sprintf(ue.msg, ue.params...)
}

func (ue *UserError) Is(target error) bool { return target == ErrUser }

func (ue *UserError) UserMessage() string      { return ue.msg }
func (ue *UserError) MessageParameters() []any { return ue.params }
func (ue *UserError) SystemMessage() *string   { return ue.systemMessage }
func (ue *UserError) WithSystemMessage(msg string) *UserError {
	ue.systemMessage = &msg
	return ue
}

func (ue *UserError) WithStatusCode(code int) *UserError {
	ue.code = code
	return ue
}

func (ue *UserError) StatusCode() int {
	if ue.code != 0 {
		return ue.code
	}
	return http.StatusBadRequest
}

func NewUserError(msg string, params ...any) *UserError {
	return &UserError{
		msg:    msg,
		params: params,
	}
}

type commandError struct {
	err     error
	summary string
}

func (c commandError) Error() string { return c.err.Error() }
func (c commandError) Unwrap() error { return c.err }

// WithCommandSummary attaches a description of the command that was executing
// when err occurred. The summary is only ever written to the server log.
func WithCommandSummary(err error, summary string) error {
	if err == nil {
		return nil
	}
	return commandError{err: err, summary: summary}
}

// CommandSummary returns the outermost command summary attached to err, if any
func CommandSummary(err error) string {
	var ce commandError
	if errors.As(err, &ce) {
		return ce.summary
	}
	return ""
}
