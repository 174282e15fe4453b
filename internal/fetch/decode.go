package fetch

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

// decodeBody undoes Content-Encoding. The decoded size is held to the same
// limit as the encoded one.
func decodeBody(encoding string, body []byte, max int64) ([]byte, error) {
	var r io.Reader
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return body, nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %v", ErrUnreachable, err)
		}
		defer zr.Close()
		r = zr
	case "br":
		r = brotli.NewReader(bytes.NewReader(body))
	case "deflate":
		zr, err := zlib.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("%w: deflate: %v", ErrUnreachable, err)
		}
		defer zr.Close()
		r = zr
	default:
		return nil, fmt.Errorf("%w: unsupported content encoding %q", ErrUnreachable, encoding)
	}
	out, err := readLimited(r, max)
	if err != nil {
		if err == ErrBodyTooLarge {
			return nil, err
		}
		return nil, fmt.Errorf("%w: decode %s: %v", ErrUnreachable, encoding, err)
	}
	return out, nil
}
