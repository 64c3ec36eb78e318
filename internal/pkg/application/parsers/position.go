package parsers

import (
	"fmt"

	"github.com/diwise/json-commands/pkg/jsoncommands/errors"
)

const seeServerLog string = " See the server log for more details on the error."

// positionedError adds the current position of r to msg. A non empty log
// detail is attached to the error and the client is told to look in the log.
func positionedError(r *Reader, msg, logDetail string, options ...errors.ClientErrorOption) error {
	line, column := r.Position()
	msg = fmt.Sprintf("%s At line %d, position %d.", msg, line, column)

	if logDetail != "" {
		msg += seeServerLog
		options = append(options, errors.WithLogDetail(logDetail))
	}

	return errors.NewClientError(msg, options...)
}
