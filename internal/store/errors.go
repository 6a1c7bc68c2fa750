package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/tbourn/miele-backoffice/internal/remote"
)

var (
	// ErrNotFound reports that the record no longer exists remotely; the
	// cache is stale and retrying will not help.
	ErrNotFound = remote.ErrNotFound

	// ErrInvalidInput wraps translation failures of a patch.
	ErrInvalidInput = errors.New("invalid input")
)

// Operation names used in errors, logs and metrics.
const (
	OpList   = "list"
	OpGet    = "get"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpSearch = "search"
)

// OpError is returned by single-record actions. Err keeps the cause so
// errors.Is(err, ErrNotFound) works through it.
type OpError struct {
	Entity string
	Op     string
	ID     string
	Err    error
}

func (e *OpError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s %s: %v", e.Entity, e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Entity, e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// Messages are the user-facing strings written to State.Error.
type Messages struct {
	List           string
	Search         string
	Get            string
	NotFound       string
	Create         string
	Update         string
	UpdateNotFound string
	Delete         string
	InvalidInput   string
	Timeout        string
}

// DefaultMessages returns the Portuguese defaults.
func DefaultMessages() Messages {
	return Messages{
		List:           "Erro ao carregar os registros.",
		Search:         "Erro ao buscar registros.",
		Get:            "Erro ao carregar o registro.",
		NotFound:       "Registro não encontrado.",
		Create:         "Erro ao criar o registro.",
		Update:         "Erro ao atualizar o registro.",
		UpdateNotFound: "Registro não encontrado. O registro pode ter sido excluído por outro usuário.",
		Delete:         "Erro ao excluir o registro.",
		InvalidInput:   "Dados inválidos.",
		Timeout:        "O servidor não respondeu: tempo esgotado.",
	}
}

func (m Messages) withDefaults() Messages {
	d := DefaultMessages()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&m.List, d.List)
	fill(&m.Search, d.Search)
	fill(&m.Get, d.Get)
	fill(&m.NotFound, d.NotFound)
	fill(&m.Create, d.Create)
	fill(&m.Update, d.Update)
	fill(&m.UpdateNotFound, d.UpdateNotFound)
	fill(&m.Delete, d.Delete)
	fill(&m.InvalidInput, d.InvalidInput)
	fill(&m.Timeout, d.Timeout)
	return m
}

// message picks the State.Error text for a failed op.
func (m Messages) message(op string, err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return m.InvalidInput
	case errors.Is(err, context.DeadlineExceeded):
		return m.Timeout
	case errors.Is(err, ErrNotFound):
		if op == OpUpdate {
			return m.UpdateNotFound
		}
		return m.NotFound
	}
	switch op {
	case OpList:
		return m.List
	case OpSearch:
		return m.Search
	case OpGet:
		return m.Get
	case OpCreate:
		return m.Create
	case OpUpdate:
		return m.Update
	case OpDelete:
		return m.Delete
	}
	return m.List
}

// outcome is the metrics label for err.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	}
	return "error"
}
