package storage

import (
	"fmt"
	"strconv"
)

// ScanString converts a scanned column value to the exact string used as an
// assignment key. Unlike a display form it never trims: "Acme " and "Acme" are
// different values and must round-trip to the rewrite unchanged.
//
// The second result is false for NULL.
func ScanString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case []byte:
		return string(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int:
		return strconv.Itoa(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return fmt.Sprint(v), true
	}
}
