package mapper

import (
	"context"

	"cqlmapper/internal/entity"
	"cqlmapper/internal/storage"
	"cqlmapper/internal/validation"
)

// Record is one entity instance bound to its model.
type Record struct {
	model *Model
	inst  *entity.Instance
}

// Set assigns a column locally; the value is written by the next Save or Update.
func (r *Record) Set(column string, value any) error {
	return r.inst.Set(column, value)
}

// Get returns the current value of a column.
func (r *Record) Get(column string) (any, bool) {
	return r.inst.Get(column)
}

// Values returns a copy of every column currently holding a value.
func (r *Record) Values() map[string]any {
	return r.inst.Values()
}

// Dirty returns the columns assigned since the last write.
func (r *Record) Dirty() []string {
	return r.inst.Dirty()
}

// Persisted reports whether the record was loaded from or written to storage.
func (r *Record) Persisted() bool {
	return r.inst.Persisted()
}

// Key returns the row key of the record.
func (r *Record) Key() storage.RowKey {
	return r.inst.Key()
}

// Bind copies the record values into dst, a pointer to the model's declaration struct.
func (r *Record) Bind(dst any) error {
	return r.inst.Bind(dst)
}

// Instance exposes the underlying entity state.
func (r *Record) Instance() *entity.Instance {
	return r.inst
}

// Save writes the record unconditionally.
//
// A record whose key was generated locally, or one built by Model.Create,
// is created: every column is written and required columns are enforced. Any
// other record may address an existing row it never read, so only confirmed
// and explicitly assigned columns are written and required columns are not
// checked.
func (r *Record) Save(ctx context.Context) error {
	cs := r.inst.FullSaveChangeset()
	mode := validation.ModeSave
	if cs.Create {
		mode = validation.ModeCreate
	}
	if err := r.model.validate(ctx, cs, mode); err != nil {
		return err
	}
	res, err := r.model.executor.Execute(ctx, cs)
	if err != nil {
		return err
	}
	if !res.Elided {
		r.inst.MarkPersisted(cs)
	}
	return nil
}

// Update writes a partial change. With overrides, exactly those columns are
// written; without, exactly the columns assigned since the last write. When
// nothing would change, no write is issued. Unknown columns and primary-key
// columns are rejected with a *validation.ValidationError before any write.
func (r *Record) Update(ctx context.Context, overrides map[string]any) error {
	cs := r.inst.PartialUpdateChangeset(overrides)
	if err := r.model.validate(ctx, cs, validation.ModeUpdate); err != nil {
		return err
	}
	res, err := r.model.executor.Execute(ctx, cs)
	if err != nil {
		return err
	}
	if !res.Elided {
		r.inst.MarkPersisted(cs)
	}
	return nil
}
