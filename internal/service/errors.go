package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Leganyst/restaurant-platform/internal/statemachine"
)

// Error kinds. Match with errors.Is(err, ErrConflict) and so on.
var (
	ErrNotFound              = errors.New("not found")
	ErrConflict              = errors.New("conflict")
	ErrInvalidRequest        = errors.New("invalid request")
	ErrInvalidTransition     = errors.New("invalid transition")
	ErrReconciliationWarning = errors.New("reconciliation warning")
)

// Error carries the operation, the entity and enough context to diagnose a
// failure without re-querying storage.
type Error struct {
	Kind   error
	Op     string
	Entity string
	ID     string
	Detail string
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Entity != "" {
		b.WriteString(": ")
		b.WriteString(e.Entity)
		if e.ID != "" {
			b.WriteString(" ")
			b.WriteString(e.ID)
		}
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%s", k, e.Fields[k])
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// KindOf returns the taxonomy sentinel of err, or nil for storage and
// context failures.
func KindOf(err error) error {
	for _, k := range []error{ErrNotFound, ErrConflict, ErrInvalidRequest, ErrInvalidTransition, ErrReconciliationWarning} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

func notFound(op, entity, id string) *Error {
	return &Error{Kind: ErrNotFound, Op: op, Entity: entity, ID: id}
}

func conflict(op, entity, id, detail string, fields map[string]string) *Error {
	return &Error{Kind: ErrConflict, Op: op, Entity: entity, ID: id, Detail: detail, Fields: fields}
}

func invalidRequest(op, detail string, err error) *Error {
	return &Error{Kind: ErrInvalidRequest, Op: op, Detail: detail, Err: err}
}

func invalidTransition(op, entity, id string, err error) *Error {
	e := &Error{Kind: ErrInvalidTransition, Op: op, Entity: entity, ID: id, Err: err}
	var te *statemachine.TransitionError
	if errors.As(err, &te) {
		e.Fields = map[string]string{"from": te.From, "to": te.To}
	}
	return e
}

func transitionRefused(op, entity, id, from, to, detail string) *Error {
	return &Error{
		Kind:   ErrInvalidTransition,
		Op:     op,
		Entity: entity,
		ID:     id,
		Detail: detail,
		Fields: map[string]string{"from": from, "to": to},
	}
}

func reconciliationWarning(op, entity, id, detail string, fields map[string]string) *Error {
	return &Error{Kind: ErrReconciliationWarning, Op: op, Entity: entity, ID: id, Detail: detail, Fields: fields}
}

// storageError wraps a failure of the storage collaborator; the operation is
// aborted and nothing is retried.
func storageError(op string, err error) error {
	return fmt.Errorf("%s: storage: %w", op, err)
}

// txError passes taxonomy errors raised inside a transaction through and
// wraps everything else as a storage failure.
func txError(op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return storageError(op, err)
}
