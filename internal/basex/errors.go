package basex

import (
	"errors"
	"fmt"
	"time"

	"github.com/ca-srg/treesearch/internal/types"
)

// ConnectionError is returned when a component's BaseX server cannot be
// reached or refuses the credentials. It names enough of the topology to
// find the broken server.
type ConnectionError struct {
	Type      types.ErrorType `json:"type"`
	Corpus    string          `json:"corpus,omitempty"`
	Component string          `json:"component,omitempty"`
	Host      string          `json:"host"`
	Port      int             `json:"port"`
	Err       error           `json:"-"`
	Timestamp time.Time       `json:"timestamp"`
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("[%s] could not connect to database server: %s, %s, %s, %d: %v",
		e.Type, e.Corpus, e.Component, e.Host, e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// NewConnectionError wraps a dial or authentication failure.
func NewConnectionError(corpus, component string, info types.ServerInfo, err error) *ConnectionError {
	errType := types.ErrorTypeBaseXConnection
	if errors.Is(err, ErrAuthentication) {
		errType = types.ErrorTypeBaseXAuth
	}
	return &ConnectionError{
		Type:      errType,
		Corpus:    corpus,
		Component: component,
		Host:      info.Host,
		Port:      info.Port,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// QueryError is returned when the server rejects or fails a query. It keeps
// the exact query text so an operator can rerun it by hand.
type QueryError struct {
	Type      types.ErrorType `json:"type"`
	Database  string          `json:"database,omitempty"`
	Query     string          `json:"query"`
	Message   string          `json:"message"`
	Err       error           `json:"-"`
	Timestamp time.Time       `json:"timestamp"`
}

func (e *QueryError) Error() string {
	if e.Database != "" {
		return fmt.Sprintf("[%s] could not execute query on %s: %s", e.Type, e.Database, e.Message)
	}
	return fmt.Sprintf("[%s] could not execute query: %s", e.Type, e.Message)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError wraps a failed query. Server-side failures and transport
// failures share this type; Type tells them apart.
func NewQueryError(query string, err error) *QueryError {
	errType := types.ErrorTypeBaseXProtocol
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		errType = types.ErrorTypeBaseXQuery
	}
	return &QueryError{
		Type:      errType,
		Query:     query,
		Message:   err.Error(),
		Err:       err,
		Timestamp: time.Now(),
	}
}

// WithDatabase records the database the query targeted.
func (e *QueryError) WithDatabase(database string) *QueryError {
	e.Database = database
	return e
}

// ServerError is the error message reported by the BaseX server.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return e.Message
}

// ErrAuthentication is returned when the server rejects the credentials.
var ErrAuthentication = errors.New("access denied")

// ErrClosed is returned when a closed session is used.
var ErrClosed = errors.New("session is closed")
