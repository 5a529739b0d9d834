package part

import (
	"fmt"
	"strings"

	"github.com/spaolacci/murmur3"
)

// MaxStreamNameLength is the longest escaped column name used directly as a
// stream file name. Longer names fall back to a murmur3 digest so deeply
// nested column names never exceed filesystem limits.
const MaxStreamNameLength = 120

// EscapeForFileName escapes a logical column name for use as a file name.
// ASCII letters, digits and underscore pass through; everything else becomes
// %XX hex.
func EscapeForFileName(name string) string {
	var sb strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' {
			sb.WriteByte(c)
		} else {
			fmt.Fprintf(&sb, "%%%02X", c)
		}
	}
	return sb.String()
}

// UnescapeForFileName is the inverse of EscapeForFileName. Malformed escapes
// are passed through verbatim.
func UnescapeForFileName(name string) string {
	var sb strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '%' && i+2 < len(name) {
			var b byte
			if _, err := fmt.Sscanf(name[i+1:i+3], "%02X", &b); err == nil {
				sb.WriteByte(b)
				i += 2
				continue
			}
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// HashedStreamName returns the digest-based stream name for a column whose
// escaped name is too long for a file name.
func HashedStreamName(column string) string {
	h1, h2 := murmur3.Sum128([]byte(column))
	return fmt.Sprintf("%016x%016x", h1, h2)
}

// StreamName returns the stream file name (without extension) for a logical
// column: the escaped name when it fits, the hashed form otherwise.
func StreamName(column string) string {
	escaped := EscapeForFileName(column)
	if len(escaped) > MaxStreamNameLength {
		return HashedStreamName(column)
	}
	return escaped
}

// SplitNested splits a dotted column name at its last dot into a nested
// prefix and a trailing element. A name without dots yields an empty suffix.
func SplitNested(name string) (first, last string) {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 {
		return name, ""
	}
	return name[:idx], name[idx+1:]
}
