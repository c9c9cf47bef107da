package schema

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type label string

func TestTypeCoerce(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	ts := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.FixedZone("X", 3600))
	n := 42

	tests := []struct {
		name     string
		typ      Type
		input    any
		expected any
	}{
		{"text from string", TypeText, "hi", "hi"},
		{"text from bytes", TypeText, []byte("hi"), "hi"},
		{"text from named string", TypeText, label("tag"), "tag"},
		{"int from int", TypeInt, 5, int64(5)},
		{"int from int32", TypeInt, int32(-7), int64(-7)},
		{"int from uint16", TypeInt, uint16(9), int64(9)},
		{"int from pointer", TypeInt, &n, int64(42)},
		{"float from float32", TypeFloat, float32(1.5), float64(1.5)},
		{"float from int", TypeFloat, 3, float64(3)},
		{"bool", TypeBool, true, true},
		{"uuid from string", TypeUUID, id.String(), id},
		{"uuid from uuid", TypeUUID, id, id},
		{"uuid from 16 bytes", TypeUUID, id[:], id},
		{"timestamp normalised", TypeTimestamp, ts, ts.UTC().Truncate(time.Microsecond)},
		{"nil stays nil", TypeInt, nil, nil},
		{"nil pointer stays nil", TypeInt, (*int)(nil), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.typ.Coerce(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.True(t, tt.typ.Valid(got))
		})
	}
}

func TestTypeCoerce_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		typ   Type
		input any
	}{
		{"text from int", TypeText, 1},
		{"int from string", TypeInt, "5"},
		{"int from float", TypeInt, 1.5},
		{"bool from int", TypeBool, 1},
		{"uuid from garbage", TypeUUID, "not-a-uuid"},
		{"timestamp from string", TypeTimestamp, "2024-01-01"},
		{"uint overflow", TypeInt, uint64(1 << 63)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.typ.Coerce(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestTypeValid(t *testing.T) {
	assert.True(t, TypeInt.Valid(nil))
	assert.True(t, TypeInt.Valid(int64(1)))
	assert.False(t, TypeInt.Valid(1), "only canonical int64 is valid")
	assert.False(t, TypeText.Valid(5))
	assert.False(t, TypeUUID.Valid("6ba7b810-9dad-11d1-80b4-00c04fd430c8"))
}

func TestTypeEqual(t *testing.T) {
	a := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := a.In(time.FixedZone("Y", 7200))

	assert.True(t, TypeTimestamp.Equal(a, b))
	assert.True(t, TypeInt.Equal(int64(1), int64(1)))
	assert.False(t, TypeInt.Equal(int64(1), int64(2)))
	assert.True(t, TypeText.Equal(nil, nil))
	assert.False(t, TypeText.Equal(nil, ""))
}

func TestTypeParseLiteral(t *testing.T) {
	v, err := TypeInt.ParseLiteral("12")
	require.NoError(t, err)
	assert.Equal(t, int64(12), v)

	v, err = TypeBool.ParseLiteral("true")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = TypeText.ParseLiteral("draft")
	require.NoError(t, err)
	assert.Equal(t, "draft", v)

	v, err = TypeTimestamp.ParseLiteral("2024-01-02T03:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), v)

	_, err = TypeInt.ParseLiteral("twelve")
	assert.Error(t, err)
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "text", TypeText.String())
	assert.Equal(t, "uuid", TypeUUID.String())
	assert.Equal(t, "unknown", Type(99).String())
}
