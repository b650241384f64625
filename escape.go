package ajaxform

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// Escape converts v to text and escapes it for use in HTML content or a
// quoted attribute value.
//
// Every piece of text that came from the server goes through Escape before it
// is inserted as markup. Escaping is not idempotent: "&amp;" becomes
// "&amp;amp;".
func Escape(v any) string {
	return escaper.Replace(Text(v))
}

// Text converts a decoded value to the text a browser would show for it.
// Arrays are joined with commas and nil becomes "null".
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return formatNumber(t)
	case float32:
		return formatNumber(float64(t))
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			if e != nil {
				parts[i] = Text(e)
			}
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(t, ",")
	case *Object:
		return "[object Object]"
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case math.Abs(f) >= 1e21:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
