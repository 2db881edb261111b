package action

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}\s]+)\s*\}\}`)

// Interpolate substitutes {{key}} placeholders in the template with
// string-coerced values from payload. Unknown placeholders are left verbatim
// so a human reading the prompt can see what was not supplied.
func Interpolate(template string, payload map[string]any) string {
	if payload == nil {
		return template
	}

	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		key := strings.TrimSpace(match[2 : len(match)-2])
		value, ok := payload[key]
		if !ok {
			return match
		}
		return coerce(value)
	})
}

// coerce renders a payload value as a string. Strings pass through; JSON
// numbers drop their trailing ".0" via %v formatting.
func coerce(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}
