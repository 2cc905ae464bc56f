package bulk

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ruslano69/sqlbulk/pkg/adapters/mssql"
)

// Error kinds. Every error returned by Build or Commit wraps exactly one
// of them, so callers can branch with errors.Is.
var (
	// ErrConfiguration is an invalid operation setup. Always raised before I/O,
	// except for checks that need destination metadata.
	ErrConfiguration = errors.New("configuration error")
	// ErrIdentityConfiguration is a write to an identity column that was not
	// declared, or a server rejection of one.
	ErrIdentityConfiguration = errors.New("identity configuration error")
	// ErrTypeMapping is a row field type outside the supported set.
	ErrTypeMapping = errors.New("type mapping error")
	// ErrWriteback is a failure to store generated keys into the rows.
	// The destination has already been modified when it is returned.
	ErrWriteback = errors.New("identity write-back error")
	// ErrTransfer is a failure of the bulk transfer channel.
	ErrTransfer = errors.New("bulk transfer error")
	// ErrExecution is any other failure while talking to the server.
	ErrExecution = errors.New("execution error")
)

// Error describes a failed Build or Commit.
type Error struct {
	Kind  error  // one of the Err* kinds
	Op    string // operation kind, e.g. "upsert"
	Table string // qualified destination name
	State State  // last state reached before the failure
	Code  int32  // server error number, 0 if none
	Rows  int64  // affected rows, set for ErrWriteback
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("bulk: ")
	sb.WriteString(e.Kind.Error())
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if e.Code != 0 {
		fmt.Fprintf(&sb, " (server error %d)", e.Code)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap exposes both the kind and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func configError(format string, args ...any) *Error {
	return &Error{Kind: ErrConfiguration, Msg: fmt.Sprintf(format, args...)}
}

// translate wraps a backend failure. Server errors listed as identity
// violations become ErrIdentityConfiguration regardless of the step that
// hit them; everything else keeps the step's kind.
func translate(kind error, state State, msg string, err error) *Error {
	var be *Error
	if errors.As(err, &be) {
		return be
	}

	e := &Error{Kind: kind, State: state, Msg: msg, Err: err}
	class, code := mssql.Classify(err)
	e.Code = code
	if class == mssql.ClassIdentity {
		e.Kind = ErrIdentityConfiguration
	}
	return e
}

// Retryable reports whether a failed Commit can be repeated unchanged:
// the server rolled back a deadlock victim or hit a lock timeout before
// the destination was reconciled. Inside a caller transaction a deadlock
// rolls back the whole transaction, so the caller has to restart it.
func Retryable(err error) bool {
	var be *Error
	if !errors.As(err, &be) || be.State >= StateReconciled {
		return false
	}
	class, _ := mssql.Classify(be.Err)
	return class.Transient()
}

// kindLabel is the metrics label of an error kind.
func kindLabel(err error) string {
	switch {
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrIdentityConfiguration):
		return "identity"
	case errors.Is(err, ErrTypeMapping):
		return "type_mapping"
	case errors.Is(err, ErrWriteback):
		return "writeback"
	case errors.Is(err, ErrTransfer):
		return "transfer"
	default:
		return "execution"
	}
}
