package naming

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// TableName derives a storage table name from a Go type name.
// Example: "TestUpdateModel" -> "test_update_models"
func TableName(typeName string) string {
	snake := ToSnakeCase(typeName)
	if snake == "" {
		return ""
	}
	idx := strings.LastIndex(snake, "_")
	return snake[:idx+1] + inflection.Plural(snake[idx+1:])
}

// ColumnName derives a column name from a Go struct field name.
// Example: "DefText" -> "def_text", "UserID" -> "user_id"
func ColumnName(fieldName string) string {
	return ToSnakeCase(fieldName)
}

// ToSnakeCase converts PascalCase or camelCase to snake_case, keeping
// acronyms together ("HTTPServer" -> "http_server").
func ToSnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && runes[i-1] != '_' {
				prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
