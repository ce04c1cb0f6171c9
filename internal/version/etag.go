package version

import (
	"encoding/base64"
	"encoding/binary"
	"strings"
)

// Encode converts a store-assigned raw row version to its transport-safe
// ETag representation.
func Encode(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

// Matches reports whether a caller-supplied tag equals the current raw
// version. Comparison is by re-encoding and exact string match; there is no
// partial matching, and a malformed or quoted tag simply does not match.
// Deciding whether an absent header skips the check is the caller's concern,
// not the codec's: the empty raw version legitimately encodes to "".
func Matches(tag string, raw []byte) bool {
	// Tolerate RFC 7232 quoting some clients apply to ETags
	tag = strings.Trim(tag, `"`)
	return tag == Encode(raw)
}

// FromSequence converts a store version counter to its raw byte form.
// Repositories expose bigint version columns through this so every layer
// above sees only opaque bytes.
func FromSequence(v int64) []byte {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, uint64(v))
	return raw
}
