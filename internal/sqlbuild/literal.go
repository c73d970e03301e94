package sqlbuild

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Literal renders a value as a SQL literal. Used only when parameter binding
// is deliberately off (explain output, logging); execution always binds.
func Literal(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if t {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return quoteString(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		parts := make([]string, len(t))
		for i, item := range t {
			parts[i] = Literal(item)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case map[string]any:
		return quoteString(jsonText(t))
	default:
		return quoteString(fmt.Sprintf("%v", t))
	}
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func jsonText(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
