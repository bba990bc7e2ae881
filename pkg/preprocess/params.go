package preprocess

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/harun/taskgate/pkg/params"
)

// ValidateParameters walks a parameter tree and sanitizes its string leaves.
//
// A string made only of ASCII digits becomes an integer. An absolute http(s)
// URL is kept verbatim. Any other string goes through CleanText, and is coerced
// to an integer if cleaning left only digits. Array elements that are objects are
// walked, strings are cleaned, anything else is left alone.
func ValidateParameters(v params.Value) params.Value {
	switch v.Kind() {
	case params.KindString:
		s, _ := v.AsString()
		return sanitizeString(s)

	case params.KindObject:
		fields, _ := v.AsObject()
		out := make(map[string]params.Value, len(fields))
		for key, field := range fields {
			out[key] = ValidateParameters(field)
		}
		return params.Object(out)

	case params.KindArray:
		items, _ := v.AsArray()
		out := make([]params.Value, len(items))
		for i, item := range items {
			switch item.Kind() {
			case params.KindObject:
				out[i] = ValidateParameters(item)
			case params.KindString:
				s, _ := item.AsString()
				out[i] = params.String(CleanText(s))
			default:
				out[i] = item
			}
		}
		return params.Array(out...)
	}

	return v
}

// FilterData drops array elements and object fields that are not strings of at
// least minLength cleaned characters. Other values are returned unchanged.
func FilterData(v params.Value, minLength int) params.Value {
	switch v.Kind() {
	case params.KindArray:
		items, _ := v.AsArray()
		out := make([]params.Value, 0, len(items))
		for _, item := range items {
			if s, ok := item.AsString(); ok && longEnough(s, minLength) {
				out = append(out, item)
			}
		}
		return params.Array(out...)

	case params.KindObject:
		fields, _ := v.AsObject()
		out := make(map[string]params.Value, len(fields))
		for key, field := range fields {
			if s, ok := field.AsString(); ok && longEnough(s, minLength) {
				out[key] = field
			}
		}
		return params.Object(out)
	}

	return v
}

func sanitizeString(s string) params.Value {
	if n, ok := parseDigits(s); ok {
		return params.Int(n)
	}
	if isWebURL(s) {
		return params.String(s)
	}

	cleaned := CleanText(s)
	if n, ok := parseDigits(cleaned); ok {
		return params.Int(n)
	}
	return params.String(cleaned)
}

// parseDigits accepts only ASCII digits that fit in an int64
func parseDigits(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func isWebURL(s string) bool {
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return false
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && u.Host != ""
}
