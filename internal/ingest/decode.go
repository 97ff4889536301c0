package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/htmlindex"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decode returns data as UTF-8 along with the name of the encoding used.
// Valid UTF-8 is always preferred; otherwise fallback names the source
// encoding, or "auto" to detect it.
func decode(data []byte, fallback string) ([]byte, string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, "utf-8", nil
	}

	fallback = strings.TrimSpace(fallback)
	if fallback == "" {
		return nil, "", errors.New("file is not valid UTF-8 and no fallback encoding is configured")
	}

	name := fallback
	if strings.EqualFold(fallback, "auto") {
		res, err := chardet.NewTextDetector().DetectBest(data)
		if err != nil {
			return nil, "", fmt.Errorf("detecting encoding: %w", err)
		}
		name = res.Charset
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, "", fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, "", fmt.Errorf("decoding as %s: %w", name, err)
	}

	canonical, err := htmlindex.Name(enc)
	if err != nil {
		canonical = strings.ToLower(name)
	}
	return bytes.TrimPrefix(out, utf8BOM), canonical, nil
}
