package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"TestUpdateModel", "test_update_models"},
		{"User", "users"},
		{"Category", "categories"},
		{"Person", "people"},
		{"OrderItem", "order_items"},
		{"HTTPLog", "http_logs"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, TableName(tt.input))
		})
	}
}

func TestColumnName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Count", "count"},
		{"DefText", "def_text"},
		{"UserID", "user_id"},
		{"HTTPServer", "http_server"},
		{"createdAt", "created_at"},
		{"Value2", "value2"},
		{"already_snake", "already_snake"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ColumnName(tt.input))
		})
	}
}
