package cirjson

import (
	"unsafe"
)

// toString and toByte reinterpret memory without copying, callers must not
// mutate the bytes while the string is alive.
func toString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(b), len(b))
}

func toByte(s string) []byte {
	if s == "" {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
