package models

import "strings"

// ListDelimiter separates elements of a list stored in a single column.
const ListDelimiter = ','

const escapeChar = '\\'

// EncodeList joins values into one string. Delimiters and backslashes inside
// values are escaped, so DecodeList(EncodeList(v)) == v for every v, including
// values containing the delimiter. An empty or nil list encodes to "".
func EncodeList(values []string) string {
	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteByte(ListDelimiter)
		}
		for j := 0; j < len(v); j++ {
			c := v[j]
			if c == ListDelimiter || c == escapeChar {
				b.WriteByte(escapeChar)
			}
			b.WriteByte(c)
		}
	}
	return b.String()
}

// DecodeList is the inverse of EncodeList. "" decodes to an empty, non-nil list.
//
// A list holding a single empty string also encodes to "" and therefore
// decodes to the empty list.
func DecodeList(encoded string) []string {
	out := []string{}
	if encoded == "" {
		return out
	}
	var cur strings.Builder
	escaped := false
	for i := 0; i < len(encoded); i++ {
		c := encoded[i]
		switch {
		case escaped:
			cur.WriteByte(c)
			escaped = false
		case c == escapeChar:
			escaped = true
		case c == ListDelimiter:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if escaped {
		cur.WriteByte(escapeChar)
	}
	return append(out, cur.String())
}
