package mapper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cqlmapper/internal/storage"
	"cqlmapper/internal/storage/memstore"
	"cqlmapper/internal/validation"
)

type updateModel struct {
	Partition uuid.UUID `cql:"partition,primary_key,partition_key,default=uuid"`
	Cluster   uuid.UUID `cql:"cluster,primary_key,default=uuid"`
	Count     *int      `cql:"count"`
	Text      *string   `cql:"text,index"`
}

func (updateModel) TableName() string { return "test_update_model" }

type updateDefaultModel struct {
	Partition uuid.UUID `cql:"partition,primary_key,partition_key,default=uuid"`
	Cluster   uuid.UUID `cql:"cluster,primary_key,default=uuid"`
	Count     *int      `cql:"count"`
	Text      *string   `cql:"text,index"`
	DefText   string    `cql:"def_text,default='default text'"`
}

func (updateDefaultModel) TableName() string { return "test_update_default_model" }

type updateRequiredModel struct {
	Partition uuid.UUID `cql:"partition,primary_key,partition_key,default=uuid"`
	Cluster   uuid.UUID `cql:"cluster,primary_key,default=uuid"`
	Count     *int      `cql:"count"`
	Text      *string   `cql:"text,index"`
	ReqText   string    `cql:"req_text,required"`
}

func (updateRequiredModel) TableName() string { return "test_update_required_model" }

func newModel(t *testing.T, store storage.Store, decl any) *Model {
	t.Helper()
	m, err := NewModel(store, decl)
	require.NoError(t, err)
	require.NoError(t, m.Sync(context.Background()))
	t.Cleanup(func() { _ = m.Drop(context.Background()) })
	return m
}

func keyOf(t *testing.T, r *Record) map[string]any {
	t.Helper()
	p, ok := r.Get("partition")
	require.True(t, ok)
	c, ok := r.Get("cluster")
	require.True(t, ok)
	return map[string]any{"partition": p, "cluster": c}
}

func TestUpdate_DirtyColumnsMergeWithConcurrentSave(t *testing.T) {
	ctx := context.Background()
	m := newModel(t, memstore.New(), updateModel{})

	m0, err := m.Create(ctx, map[string]any{"count": 5, "text": "monkey"})
	require.NoError(t, err)

	m1, err := m.Get(ctx, keyOf(t, m0))
	require.NoError(t, err)
	require.NoError(t, m1.Set("count", 6))
	require.NoError(t, m1.Save(ctx))

	require.NoError(t, m0.Set("text", "monkey land"))
	require.NoError(t, m0.Update(ctx, nil))

	m2, err := m.Get(ctx, keyOf(t, m0))
	require.NoError(t, err)
	count, _ := m2.Get("count")
	text, _ := m2.Get("text")
	assert.Equal(t, int64(6), count)
	assert.Equal(t, "monkey land", text)
	assert.Empty(t, m0.Dirty())
}

func TestUpdate_OverridesMergeWithConcurrentSave(t *testing.T) {
	ctx := context.Background()
	m := newModel(t, memstore.New(), updateModel{})

	m0, err := m.Create(ctx, map[string]any{"count": 5, "text": "monkey"})
	require.NoError(t, err)

	m1, err := m.Get(ctx, keyOf(t, m0))
	require.NoError(t, err)
	require.NoError(t, m1.Set("count", 6))
	require.NoError(t, m1.Save(ctx))

	require.NoError(t, m0.Update(ctx, map[string]any{"text": "monkey land"}))
	text, _ := m0.Get("text")
	assert.Equal(t, "monkey land", text, "overrides are applied locally")

	m2, err := m.Get(ctx, keyOf(t, m0))
	require.NoError(t, err)
	count, _ := m2.Get("count")
	text, _ = m2.Get("text")
	assert.Equal(t, int64(6), count)
	assert.Equal(t, "monkey land", text)
}

func TestBlindWrite_DefaultsDoNotClobber(t *testing.T) {
	for _, tc := range []struct {
		name  string
		write func(ctx context.Context, r *Record) error
	}{
		{"save", func(ctx context.Context, r *Record) error {
			if err := r.Set("text", "monkey land"); err != nil {
				return err
			}
			return r.Save(ctx)
		}},
		{"update", func(ctx context.Context, r *Record) error {
			return r.Update(ctx, map[string]any{"text": "monkey land"})
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			m := newModel(t, memstore.New(), updateDefaultModel{})

			m0, err := m.Create(ctx, map[string]any{"count": 5, "text": "monkey"})
			require.NoError(t, err)
			key := keyOf(t, m0)

			m1, err := m.New(key)
			require.NoError(t, err)
			require.NoError(t, m1.Set("def_text", "changed text"))
			require.NoError(t, m1.Save(ctx))

			m2, err := m.New(key)
			require.NoError(t, err)
			require.NoError(t, tc.write(ctx, m2))

			m3, err := m.Get(ctx, key)
			require.NoError(t, err)
			defText, _ := m3.Get("def_text")
			text, _ := m3.Get("text")
			count, _ := m3.Get("count")
			assert.Equal(t, "changed text", defText)
			assert.Equal(t, "monkey land", text)
			assert.Equal(t, int64(5), count)
		})
	}
}

func TestBlindWrite_RequiredNotEnforced(t *testing.T) {
	ctx := context.Background()
	m := newModel(t, memstore.New(), updateRequiredModel{})

	m0, err := m.Create(ctx, map[string]any{"count": 5, "text": "monkey", "req_text": "rt"})
	require.NoError(t, err)
	key := keyOf(t, m0)

	m1, err := m.New(key)
	require.NoError(t, err)
	require.NoError(t, m1.Set("text", "monkey land"))
	require.NoError(t, m1.Save(ctx))

	m2, err := m.New(key)
	require.NoError(t, err)
	require.NoError(t, m2.Update(ctx, map[string]any{"text": "monkey land 2"}))

	row, err := m.Get(ctx, key)
	require.NoError(t, err)
	req, _ := row.Get("req_text")
	text, _ := row.Get("text")
	assert.Equal(t, "rt", req)
	assert.Equal(t, "monkey land 2", text)
}

func TestCreate_RequiresRequiredColumns(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	m := newModel(t, store, updateRequiredModel{})

	_, err := m.Create(ctx, map[string]any{"text": "monkey"})
	var verr *validation.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, validation.ReasonRequiredMissing, verr.Reason)
	assert.Equal(t, "req_text", verr.Column)
	assert.Zero(t, store.Writes())
}

func TestUpdate_NoopIssuesNoWrite(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	m := newModel(t, store, updateModel{})

	m0, err := m.Create(ctx, map[string]any{"count": 5, "text": "monkey"})
	require.NoError(t, err)
	writes := store.Writes()

	require.NoError(t, m0.Update(ctx, nil))
	assert.Equal(t, writes, store.Writes())

	require.NoError(t, m0.Update(ctx, map[string]any{"count": 5}))
	assert.Equal(t, writes, store.Writes())

	require.NoError(t, m0.Update(ctx, map[string]any{"count": 7}))
	assert.Equal(t, writes+1, store.Writes())
}

func TestUpdate_LoadedRecordNoopIssuesNoWrite(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	m := newModel(t, store, updateModel{})

	m0, err := m.Create(ctx, map[string]any{"count": 5, "text": "monkey"})
	require.NoError(t, err)
	m1, err := m.Get(ctx, keyOf(t, m0))
	require.NoError(t, err)
	writes := store.Writes()

	require.NoError(t, m1.Update(ctx, nil))
	require.NoError(t, m1.Update(ctx, map[string]any{"text": "monkey", "count": 5}))
	assert.Equal(t, writes, store.Writes())
}

func TestUpdate_Rejections(t *testing.T) {
	for _, tc := range []struct {
		name      string
		overrides map[string]any
		reason    string
		column    string
	}{
		{"unknown column", map[string]any{"numbers": 20}, validation.ReasonUnknownColumn, "numbers"},
		{"partition key", map[string]any{"partition": uuid.New()}, validation.ReasonPrimaryKeyImmutable, "partition"},
		{"clustering key", map[string]any{"cluster": uuid.New()}, validation.ReasonPrimaryKeyImmutable, "cluster"},
		{"invalid value", map[string]any{"count": "many"}, validation.ReasonInvalidValue, "count"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			store := memstore.New()
			m := newModel(t, store, updateModel{})

			m0, err := m.Create(ctx, map[string]any{"count": 5, "text": "monkey"})
			require.NoError(t, err)
			writes := store.Writes()

			err = m0.Update(ctx, tc.overrides)
			require.Error(t, err)
			assert.ErrorIs(t, err, validation.ErrValidation)
			var verr *validation.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.reason, verr.Reason)
			assert.Equal(t, tc.column, verr.Column)
			assert.Equal(t, writes, store.Writes(), "rejected updates issue no write")
		})
	}
}

func TestUpdate_AssignedKeyChangeRejected(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	m := newModel(t, store, updateModel{})

	m0, err := m.Create(ctx, map[string]any{"count": 5})
	require.NoError(t, err)
	writes := store.Writes()

	require.NoError(t, m0.Set("partition", uuid.New()))
	err = m0.Update(ctx, nil)
	assert.ErrorIs(t, err, validation.ErrValidation)
	assert.Equal(t, writes, store.Writes())
}

func TestUpdate_OnlyOverridesAreWritten(t *testing.T) {
	ctx := context.Background()
	m := newModel(t, memstore.New(), updateModel{})

	m0, err := m.Create(ctx, map[string]any{"count": 5, "text": "monkey"})
	require.NoError(t, err)
	require.NoError(t, m0.Set("text", "pending"))

	require.NoError(t, m0.Update(ctx, map[string]any{"count": 8}))
	assert.Equal(t, []string{"text"}, m0.Dirty(), "assigned columns outside the overrides stay dirty")

	row, err := m.Get(ctx, keyOf(t, m0))
	require.NoError(t, err)
	text, _ := row.Get("text")
	count, _ := row.Get("count")
	assert.Equal(t, "monkey", text)
	assert.Equal(t, int64(8), count)
}

func TestSave_UnchangedRecordIsElided(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	m := newModel(t, store, updateModel{})

	m0, err := m.Create(ctx, map[string]any{"count": 5, "text": "monkey"})
	require.NoError(t, err)
	m1, err := m.Get(ctx, keyOf(t, m0))
	require.NoError(t, err)
	writes := store.Writes()

	require.NoError(t, m0.Save(ctx))
	require.NoError(t, m1.Save(ctx))
	assert.Equal(t, writes, store.Writes())
	assert.True(t, m0.Persisted())
}

func TestPersist_DisjointColumnsMerge(t *testing.T) {
	save := func(ctx context.Context, r *Record, column string, value any) error {
		if err := r.Set(column, value); err != nil {
			return err
		}
		return r.Save(ctx)
	}
	update := func(ctx context.Context, r *Record, column string, value any) error {
		return r.Update(ctx, map[string]any{column: value})
	}
	type persistFunc func(ctx context.Context, r *Record, column string, value any) error

	for _, tc := range []struct {
		name          string
		first, second persistFunc
	}{
		{"save then save", save, save},
		{"save then update", save, update},
		{"update then save", update, save},
		{"update then update", update, update},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			m := newModel(t, memstore.New(), updateModel{})

			m0, err := m.Create(ctx, map[string]any{"count": 5, "text": "monkey"})
			require.NoError(t, err)
			key := keyOf(t, m0)

			a, err := m.Get(ctx, key)
			require.NoError(t, err)
			b, err := m.Get(ctx, key)
			require.NoError(t, err)

			require.NoError(t, tc.first(ctx, a, "count", 6))
			require.NoError(t, tc.second(ctx, b, "text", "monkey land"))

			got, err := m.Get(ctx, key)
			require.NoError(t, err)
			count, _ := got.Get("count")
			text, _ := got.Get("text")
			assert.Equal(t, int64(6), count)
			assert.Equal(t, "monkey land", text)
		})
	}
}

func TestSave_RequiredColumnSetToNullRejected(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	m := newModel(t, store, updateRequiredModel{})

	m0, err := m.Create(ctx, map[string]any{"req_text": "rt"})
	require.NoError(t, err)
	writes := store.Writes()

	require.NoError(t, m0.Set("req_text", nil))
	err = m0.Save(ctx)
	var verr *validation.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, validation.ReasonRequiredMissing, verr.Reason)
	assert.Equal(t, "req_text", verr.Column)
	assert.Equal(t, writes, store.Writes())

	got, err := m.Get(ctx, keyOf(t, m0))
	require.NoError(t, err)
	req, _ := got.Get("req_text")
	assert.Equal(t, "rt", req)
}

func TestBlindUpdate_DoesNotReportUnconfirmedDefault(t *testing.T) {
	ctx := context.Background()
	m := newModel(t, memstore.New(), updateDefaultModel{})

	m0, err := m.Create(ctx, map[string]any{"count": 5})
	require.NoError(t, err)
	key := keyOf(t, m0)
	require.NoError(t, m0.Update(ctx, map[string]any{"def_text": "changed text"}))

	blind, err := m.New(key)
	require.NoError(t, err)
	require.NoError(t, blind.Update(ctx, map[string]any{"text": "monkey land"}))

	_, ok := blind.Get("def_text")
	assert.False(t, ok, "the stored value is unknown to a blind record")

	got, err := m.Get(ctx, key)
	require.NoError(t, err)
	defText, _ := got.Get("def_text")
	assert.Equal(t, "changed text", defText)
}

func TestSave_KeyOnlyBlindRecordIsElided(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	m := newModel(t, store, updateDefaultModel{})

	rec, err := m.New(map[string]any{"partition": uuid.New(), "cluster": uuid.New()})
	require.NoError(t, err)
	require.NoError(t, rec.Save(ctx))

	assert.Zero(t, store.Writes())
	assert.False(t, rec.Persisted())
	assert.Zero(t, store.Rows("test_update_default_model"))
}

func TestCreate_WritesDefaultsAndKey(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	m := newModel(t, store, updateDefaultModel{})

	rec, err := m.Create(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), store.Writes())
	assert.Equal(t, 1, store.Rows("test_update_default_model"))

	got, err := m.Get(ctx, keyOf(t, rec))
	require.NoError(t, err)
	defText, _ := got.Get("def_text")
	assert.Equal(t, "default text", defText)

	var bound updateDefaultModel
	require.NoError(t, got.Bind(&bound))
	assert.Equal(t, "default text", bound.DefText)
	assert.Nil(t, bound.Count)
	assert.NotEqual(t, uuid.Nil, bound.Partition)
}

func TestGet_DoesNotExist(t *testing.T) {
	ctx := context.Background()
	m := newModel(t, memstore.New(), updateModel{})

	_, err := m.Get(ctx, map[string]any{"partition": uuid.New(), "cluster": uuid.New()})
	assert.ErrorIs(t, err, ErrDoesNotExist)
	var dne *DoesNotExistError
	require.ErrorAs(t, err, &dne)
	assert.Equal(t, "test_update_model", dne.Table)
}

func TestGet_InvalidKey(t *testing.T) {
	ctx := context.Background()
	m := newModel(t, memstore.New(), updateModel{})

	for _, key := range []map[string]any{
		{"partition": uuid.New()},
		{"partition": uuid.New(), "cluster": uuid.New(), "count": 1},
		{"partition": uuid.New(), "cluster": uuid.New(), "nope": 1},
		{"partition": "not-a-uuid", "cluster": uuid.New()},
	} {
		_, err := m.Get(ctx, key)
		assert.ErrorIs(t, err, validation.ErrValidation, "%v", key)
	}
}

type failingStore struct {
	*memstore.Store
	err error
}

func (f *failingStore) Write(ctx context.Context, w storage.Write) error {
	_ = f.Store.Write(ctx, w)
	return f.err
}

func TestUpdate_StorageErrorPropagatesAndKeepsDirty(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("unavailable")
	inner := memstore.New()
	store := &failingStore{Store: inner}
	m := newModel(t, store, updateModel{})

	m0, err := m.Create(ctx, map[string]any{"count": 5})
	require.NoError(t, err)

	store.err = boom
	require.NoError(t, m0.Set("text", "monkey land"))
	err = m0.Update(ctx, nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"text"}, m0.Dirty())
	assert.Equal(t, int64(2), inner.Writes(), "one attempt, no retry")
}

func TestWithClock_TimestampsOrderWrites(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m, err := NewModel(store, updateModel{}, WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)
	require.NoError(t, m.Sync(ctx))

	rec, err := m.Create(ctx, map[string]any{"count": 1})
	require.NoError(t, err)
	require.NoError(t, rec.Update(ctx, map[string]any{"count": 2}))
	require.NoError(t, rec.Update(ctx, map[string]any{"count": 3}))

	got, err := m.Get(ctx, keyOf(t, rec))
	require.NoError(t, err)
	count, _ := got.Get("count")
	assert.Equal(t, int64(3), count, "a frozen clock still yields increasing timestamps")
}
