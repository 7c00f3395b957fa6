package zorm

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure cases
var (
	// ErrRecordNotFound is returned when a single-row fetch matches nothing
	ErrRecordNotFound = errors.New("zorm: record not found")

	// ErrUndefinedAttribute is returned when a name is neither a relation nor a column of the record
	ErrUndefinedAttribute = errors.New("zorm: undefined attribute")

	// ErrAmbiguousRelation is returned when a model declares one relation name under two kinds
	ErrAmbiguousRelation = errors.New("zorm: ambiguous relation name")

	// ErrUnknownModel is returned when the model factory cannot resolve a model name
	ErrUnknownModel = errors.New("zorm: unknown model")

	// ErrInvalidConfig is returned when a model or relation declaration is incomplete
	ErrInvalidConfig = errors.New("zorm: invalid relation config")

	// ErrInvalidRelation is returned when a relation kind has no resolver
	ErrInvalidRelation = errors.New("zorm: invalid relation type")

	// ErrNoConnection is returned when a record or query is not bound to a connection
	ErrNoConnection = errors.New("zorm: no connection")

	// ErrMissingTable is returned by schema validation when an inferred table does not exist
	ErrMissingTable = errors.New("zorm: table not found in database")

	// ErrMissingColumn is returned by schema validation when an inferred column does not exist
	ErrMissingColumn = errors.New("zorm: column not found in database")
)

// QueryError wraps database errors with query context for better debugging
type QueryError struct {
	Query     string // The SQL query that failed
	Args      []any  // The query arguments
	Operation string // Operation type: SELECT, COUNT, SCAN
	Err       error  // The underlying error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("zorm: %s failed: %v\nQuery: %s\nArgs: %s",
		e.Operation, e.Err, e.Query, formatArgs(e.Args))
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// RelationError wraps relation resolution failures with context
type RelationError struct {
	Relation string // Name of the relation
	Model    string // Logical name of the owning model
	Err      error  // The underlying error
}

func (e *RelationError) Error() string {
	return fmt.Sprintf("zorm: relation '%s' error on model %s: %v",
		e.Relation, e.Model, e.Err)
}

func (e *RelationError) Unwrap() error {
	return e.Err
}

// WrapQueryError wraps a database error with query context
func WrapQueryError(operation, query string, args []any, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrRecordNotFound
	}

	return &QueryError{
		Query:     query,
		Args:      args,
		Operation: operation,
		Err:       err,
	}
}

// WrapRelationError wraps a relation error with context
func WrapRelationError(relation, model string, err error) error {
	if err == nil {
		return nil
	}

	var relErr *RelationError
	if errors.As(err, &relErr) && relErr.Relation == relation && relErr.Model == model {
		return err
	}

	return &RelationError{
		Relation: relation,
		Model:    model,
		Err:      err,
	}
}

// IsNotFound checks if the error is ErrRecordNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound) || errors.Is(err, sql.ErrNoRows)
}

// IsUndefinedAttribute checks if the error is ErrUndefinedAttribute
func IsUndefinedAttribute(err error) bool {
	return errors.Is(err, ErrUndefinedAttribute)
}

// formatArgs formats query arguments for error messages
func formatArgs(args []any) string {
	if len(args) == 0 {
		return "[]"
	}

	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = fmt.Sprintf("%v", arg)
	}

	result := "[" + strings.Join(parts, ", ") + "]"
	if len(result) > 200 {
		return result[:197] + "...]"
	}
	return result
}
