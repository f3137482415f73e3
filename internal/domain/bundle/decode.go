package bundle

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// ErrBinarySource is returned when a source file does not hold text.
var ErrBinarySource = errors.New("source file is not text")

const bom = "\ufeff"

// DecodeSource turns raw file contents into a UTF-8 buffer. Text in a
// legacy encoding is transcoded; anything mimetype does not classify as
// text is rejected.
func DecodeSource(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	if !isText(mimetype.Detect(data)) {
		return "", ErrBinarySource
	}
	if utf8.Valid(data) {
		return strings.TrimPrefix(string(data), bom), nil
	}

	name := detectCharset(data)
	enc, _ := charset.Lookup(name)
	if enc == nil {
		return "", fmt.Errorf("unsupported source encoding %q", name)
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s source: %w", name, err)
	}
	return string(out), nil
}

func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func detectCharset(data []byte) string {
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || result == nil {
		return "windows-1252"
	}
	return strings.ToLower(result.Charset)
}
