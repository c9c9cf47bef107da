// Package validation checks a change set against its schema before any
// storage call is made.
package validation

import (
	"errors"
	"fmt"

	"cqlmapper/internal/changeset"
	"cqlmapper/internal/schema"
)

// ErrValidation matches every *ValidationError via errors.Is.
var ErrValidation = errors.New("validation failed")

// Reasons reported by ValidationError.
const (
	ReasonUnknownColumn       = "unknown column"
	ReasonPrimaryKeyImmutable = "primary key immutable"
	ReasonPrimaryKeyMissing   = "primary key missing"
	ReasonRequiredMissing     = "required column missing"
	ReasonInvalidValue        = "invalid value"
)

// Mode selects which rules apply to a change set.
type Mode int

const (
	// ModeCreate validates the write that creates a row: key columns may be
	// written and required columns must hold a value.
	ModeCreate Mode = iota
	// ModeSave validates a full save of a row that may already exist.
	ModeSave
	// ModeUpdate validates a partial update.
	ModeUpdate
)

func (m Mode) String() string {
	switch m {
	case ModeCreate:
		return "create"
	case ModeSave:
		return "save"
	case ModeUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// ValidationError describes why a change set was rejected.
type ValidationError struct {
	Table  string
	Column string
	Reason string
	Detail string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Reason, e.Column)
	if e.Table != "" {
		msg = fmt.Sprintf("%s: %s.%s", e.Reason, e.Table, e.Column)
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Validate checks cs against s. The first violation found is returned; the
// checks run in column order so the result is deterministic.
//
// Required columns must all be present in ModeCreate. A save or a partial
// write may omit required columns that already hold a value in storage, but
// a save that explicitly writes null to one is rejected.
func Validate(s *schema.Schema, cs changeset.ChangeSet, mode Mode) error {
	for _, name := range cs.Names() {
		col, ok := s.Column(name)
		if !ok {
			return &ValidationError{Table: s.Table(), Column: name, Reason: ReasonUnknownColumn}
		}
		if col.PrimaryKey && mode != ModeCreate {
			return &ValidationError{Table: s.Table(), Column: name, Reason: ReasonPrimaryKeyImmutable}
		}
		if !col.Type.Valid(cs.Columns[name]) {
			return &ValidationError{
				Table:  s.Table(),
				Column: name,
				Reason: ReasonInvalidValue,
				Detail: fmt.Sprintf("%T is not a %s", cs.Columns[name], col.Type),
			}
		}
	}

	for _, name := range s.PrimaryKey() {
		v, ok := cs.Key.Value(name)
		if !ok || v == nil {
			return &ValidationError{Table: s.Table(), Column: name, Reason: ReasonPrimaryKeyMissing}
		}
		col, _ := s.Column(name)
		if !col.Type.Valid(v) {
			return &ValidationError{
				Table:  s.Table(),
				Column: name,
				Reason: ReasonInvalidValue,
				Detail: fmt.Sprintf("%T is not a %s", v, col.Type),
			}
		}
	}

	if mode == ModeCreate || mode == ModeSave {
		for _, col := range s.Columns() {
			if !col.Required || col.PrimaryKey {
				continue
			}
			v, ok := cs.Columns[col.Name]
			if mode == ModeSave && !ok {
				continue
			}
			if v == nil {
				return &ValidationError{Table: s.Table(), Column: col.Name, Reason: ReasonRequiredMissing}
			}
		}
	}
	return nil
}
