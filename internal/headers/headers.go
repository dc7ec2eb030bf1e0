// Package headers translates request and response headers between the
// browser client and the origin server.
package headers

import (
	"net/http"
	"net/url"
	"strings"

	"hls-proxy/internal/config"
	"hls-proxy/internal/model"
)

// PlaylistContentType is the Content-Type of every rewritten playlist.
const PlaylistContentType = "application/vnd.apple.mpegurl"

// corsHeaders is applied last to every response so origin values never win.
var corsHeaders = [][2]string{
	{"Access-Control-Allow-Origin", "*"},
	{"Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, HEAD, OPTIONS"},
	{"Access-Control-Allow-Headers", "Range, Accept, Accept-Language, Content-Type, Authorization"},
	{"Access-Control-Expose-Headers", "Content-Length, Content-Range, Content-Type, Accept-Ranges"},
	{"Access-Control-Max-Age", "86400"},
}

// passthroughHeaders are the only inbound headers forwarded upstream.
var passthroughHeaders = []string{"Range", "Accept", "Accept-Language"}

// excludedResponseHeaders are dropped from origin responses.
var excludedResponseHeaders = map[string]bool{
	"Content-Encoding":  true,
	"Transfer-Encoding": true,
	"Connection":        true,
	"Keep-Alive":        true,
}

const excludedResponsePrefix = "access-control-"

// Policy is the process-wide header policy. It is read-only after creation.
type Policy struct {
	userAgent string
}

// NewPolicy creates a Policy from config.
func NewPolicy(cfg *config.Config) *Policy {
	ua := cfg.Upstream.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}
	return &Policy{userAgent: ua}
}

// UserAgent returns the User-Agent sent upstream.
func (p *Policy) UserAgent() string {
	return p.userAgent
}

// Upstream builds the outbound request headers for target. Referer and Origin
// are spoofed to the target's own origin, and only allow-listed client
// headers are copied.
func (p *Policy) Upstream(in http.Header, target *url.URL) http.Header {
	origin := target.Scheme + "://" + target.Host

	out := make(http.Header, len(passthroughHeaders)+3)
	out.Set("Referer", origin+"/")
	out.Set("Origin", origin)
	out.Set("User-Agent", p.userAgent)

	for _, key := range passthroughHeaders {
		if vals := in.Values(key); len(vals) > 0 {
			out[key] = append([]string(nil), vals...)
		}
	}
	if out.Get("Accept") == "" {
		out.Set("Accept", "*/*")
	}
	return out
}

// Downstream builds the response headers sent to the client from the origin
// response headers.
func (p *Policy) Downstream(origin http.Header, kind model.ContentKind) http.Header {
	out := make(http.Header, len(origin)+len(corsHeaders))
	for key, vals := range origin {
		canonical := http.CanonicalHeaderKey(key)
		if excludedResponseHeaders[canonical] || strings.HasPrefix(strings.ToLower(key), excludedResponsePrefix) {
			continue
		}
		out[canonical] = append(out[canonical], vals...)
	}

	if kind == model.ContentPlaylist {
		out.Set("Content-Type", PlaylistContentType)
		out.Del("Content-Length")
	}

	p.ApplyCORS(out)
	return out
}

// ApplyCORS sets the fixed CORS header set on h, replacing existing values.
func (p *Policy) ApplyCORS(h http.Header) {
	for _, kv := range corsHeaders {
		h.Set(kv[0], kv[1])
	}
}
