package entity

import (
	"cqlmapper/internal/changeset"
)

// FullSaveChangeset returns the writes for an unconditional save, after
// resolving defaults.
//
// When the save creates the row every column holding a value is written,
// key columns and resolved defaults included. Otherwise only the columns
// assigned since the last sync are written; loaded values and locally
// resolved defaults are left to storage. Key columns are written only when
// reassigned after the first sync, and validation rejects them.
func (i *Instance) FullSaveChangeset() changeset.ChangeSet {
	i.MaterializeDefaults()

	cs := changeset.ChangeSet{
		Table:   i.schema.Table(),
		Key:     i.Key(),
		Columns: make(map[string]any),
		Create:  i.Creating(),
	}
	for _, col := range i.schema.Columns() {
		v, ok := i.values[col.Name]
		if !ok {
			continue
		}
		if cs.Create {
			if v != nil {
				cs.Columns[col.Name] = v
			}
			continue
		}
		if !i.IsDirty(col.Name) {
			continue
		}
		if col.PrimaryKey && !i.persisted {
			continue
		}
		cs.Columns[col.Name] = v
	}
	return cs
}

// PartialUpdateChangeset returns the writes for an update.
//
// With overrides the change set holds exactly those columns. On a persisted
// instance an override equal to the confirmed value of a clean column is
// dropped, since it would not change the row. Override keys are not checked
// here; unknown and key columns are left for validation to reject.
//
// Without overrides the change set holds exactly the dirty columns. Key
// columns assigned before the first write address the row and are not
// written; key columns assigned after it are included so validation rejects
// them. Defaults are never resolved on this path.
func (i *Instance) PartialUpdateChangeset(overrides map[string]any) changeset.ChangeSet {
	cs := changeset.ChangeSet{
		Table:   i.schema.Table(),
		Key:     i.Key(),
		Columns: make(map[string]any),
	}

	if len(overrides) > 0 {
		for name, value := range overrides {
			col, known := i.schema.Column(name)
			if !known {
				cs.Columns[name] = value
				continue
			}
			if v, err := col.Type.Coerce(value); err == nil {
				value = v
			}
			if !col.PrimaryKey && i.persisted && !i.IsDirty(name) {
				current, has := i.values[name]
				if has && i.origin[name] == originLoaded && col.Type.Equal(current, value) {
					continue
				}
			}
			cs.Columns[name] = value
		}
		return cs
	}

	for name := range i.dirty {
		if i.schema.IsPrimaryKey(name) && !i.persisted {
			continue
		}
		cs.Columns[name] = i.values[name]
	}
	return cs
}

// MarkPersisted records a successful write of cs. Written columns become
// confirmed and clean; key columns are confirmed as the row's identity.
// Dirty columns that cs did not cover stay dirty. Defaults resolved locally
// but not written are discarded, since storage may hold another value.
func (i *Instance) MarkPersisted(cs changeset.ChangeSet) {
	for name, o := range i.origin {
		if _, written := cs.Columns[name]; o == originDefault && !written {
			delete(i.values, name)
			delete(i.origin, name)
		}
	}
	for name, v := range cs.Columns {
		if !i.schema.Has(name) {
			continue
		}
		i.values[name] = v
		i.origin[name] = originLoaded
		delete(i.dirty, name)
	}
	for _, part := range cs.Key {
		i.values[part.Column] = part.Value
		i.origin[part.Column] = originLoaded
		delete(i.dirty, part.Column)
	}
	i.key = append(i.key[:0:0], cs.Key...)
	i.persisted = true
	i.create = false
}
