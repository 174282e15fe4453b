package extract

import (
	"mime"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// ToUTF8 converts an upstream body to UTF-8. The charset parameter of
// contentType wins; otherwise the document is sniffed (BOM, meta tags).
// A sniffed guess never overrides a body that is already valid UTF-8.
// Undecodable input is returned unchanged.
func ToUTF8(body []byte, contentType string) []byte {
	enc := declaredEncoding(contentType)
	if enc == nil {
		var name string
		var certain bool
		enc, name, certain = charset.DetermineEncoding(body, contentType)
		if name == "utf-8" || (!certain && utf8.Valid(body)) {
			return body
		}
	}
	if enc == encoding.Nop {
		return body
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return out
}

func declaredEncoding(contentType string) encoding.Encoding {
	if contentType == "" {
		return nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil
	}
	label := strings.TrimSpace(params["charset"])
	if label == "" {
		return nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil
	}
	if name, _ := htmlindex.Name(enc); name == "utf-8" {
		return encoding.Nop
	}
	return enc
}
