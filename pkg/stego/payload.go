package stego

import (
	"unicode"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

// PayloadInfo is a best-effort description of recovered bytes.
type PayloadInfo struct {
	Text bool
	// Type is the detected MIME type, empty for plain text and unknown binary.
	Type string
	// Ext is the usual file extension for Type, including the dot.
	Ext string
}

// DescribePayload sniffs the content type of b and whether it is printable
// text that is safe to write to a terminal.
func DescribePayload(b []byte) PayloadInfo {
	info := PayloadInfo{Text: isText(b)}

	m := mimetype.Detect(b)
	if m.Is("text/plain") || m.Is("application/octet-stream") {
		return info
	}
	info.Type = m.String()
	info.Ext = m.Extension()
	return info
}

func isText(b []byte) bool {
	if !utf8.Valid(b) {
		return false
	}
	for _, r := range string(b) {
		if r == '\n' || r == '\r' || r == '\t' {
			continue
		}
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
