package client

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"

	"hls-proxy/internal/model"
)

// decodeBody replaces a compressed body with a decoding reader. The proxy
// strips Content-Encoding from responses, so a body must never leave here
// still encoded. net/http already decodes gzip it asked for itself; this
// covers origins that compress regardless of Accept-Encoding.
// Unknown encodings are left untouched. Replies that carry no body (HEAD,
// 204, 304) only lose the Content-Encoding label.
func decodeBody(resp *model.ProxyResponse, method string) error {
	enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	if enc == "" || enc == "identity" {
		return nil
	}
	if !hasBody(resp, method) {
		resp.Header.Del("Content-Encoding")
		return nil
	}

	var (
		r   io.Reader
		cls func() error
	)
	switch enc {
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return fmt.Errorf("decode gzip body: %w", err)
		}
		r, cls = zr, zr.Close
	case "deflate":
		zr, err := zlib.NewReader(resp.Body)
		if err != nil {
			return fmt.Errorf("decode deflate body: %w", err)
		}
		r, cls = zr, zr.Close
	case "br":
		r = brotli.NewReader(resp.Body)
	case "zstd":
		zr, err := zstd.NewReader(resp.Body)
		if err != nil {
			return fmt.Errorf("decode zstd body: %w", err)
		}
		r, cls = zr, func() error { zr.Close(); return nil }
	default:
		return nil
	}

	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.Body = &decodedBody{Reader: r, decoder: cls, raw: resp.Body}
	return nil
}

func hasBody(resp *model.ProxyResponse, method string) bool {
	switch {
	case method == http.MethodHead:
		return false
	case resp.StatusCode == http.StatusNoContent, resp.StatusCode == http.StatusNotModified:
		return false
	case resp.Body == nil, resp.Body == http.NoBody:
		return false
	}
	return true
}

type decodedBody struct {
	io.Reader
	decoder func() error
	raw     io.Closer
}

func (b *decodedBody) Close() error {
	var errs []error
	if b.decoder != nil {
		errs = append(errs, b.decoder())
	}
	errs = append(errs, b.raw.Close())
	return errors.Join(errs...)
}
