package params

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Substitute replaces every placeholder of template that has a value in
// values with its string form. Placeholders without a value are left as
// literal text.
func Substitute(template string, values map[string]any) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(token string) string {
		v, ok := values[token[1:len(token)-1]]
		if !ok {
			return token
		}
		return Format(v)
	})
}

// Format renders a resolved value the way it appears in a prompt: sequences
// are joined with ", ", integral floats lose their fraction and maps use
// their fmt representation.
func Format(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []string:
		return strings.Join(t, ", ")
	case float64:
		return formatFloat(t)
	case float32:
		return formatFloat(float64(t))
	case fmt.Stringer:
		return t.String()
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = Format(rv.Index(i).Interface())
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
