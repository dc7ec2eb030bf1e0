// Package playlist rewrites HLS playlists so that every segment, variant and
// key reference is fetched through the proxy.
package playlist

import (
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"hls-proxy/internal/model"
)

// uriAttr matches URI="..." attributes, as used by EXT-X-KEY, EXT-X-MAP and
// EXT-X-MEDIA.
var uriAttr = regexp.MustCompile(`URI="([^"]+)"`)

// Classify decides once per response whether the body is a playlist.
func Classify(target *url.URL, header http.Header) model.ContentKind {
	if strings.HasSuffix(strings.ToLower(target.Path), ".m3u8") {
		return model.ContentPlaylist
	}
	ct := strings.ToLower(header.Get("Content-Type"))
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mt
	}
	if strings.Contains(ct, "mpegurl") {
		return model.ContentPlaylist
	}
	return model.ContentOpaque
}

// Context holds what a single rewrite pass resolves references against.
type Context struct {
	BaseOrigin  string
	BasePath    string
	ProxyOrigin string
}

// NewContext derives the rewrite context from the URL the playlist was
// fetched from.
func NewContext(base *url.URL, proxyOrigin string) Context {
	return Context{
		BaseOrigin:  base.Scheme + "://" + base.Host,
		BasePath:    dirOf(base.EscapedPath()),
		ProxyOrigin: proxyOrigin,
	}
}

// Rewrite is shorthand for NewContext(base, proxyOrigin).Rewrite(text).
func Rewrite(text string, base *url.URL, proxyOrigin string) string {
	return NewContext(base, proxyOrigin).Rewrite(text)
}

// Rewrite returns text with every media line and URI attribute replaced by a
// proxy URL. Tag and blank lines without a URI attribute are kept verbatim.
func (c Context) Rewrite(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			if strings.Contains(line, `URI="`) {
				lines[i] = c.rewriteAttrs(line)
			}
			continue
		}
		lines[i] = c.proxy(trimmed)
	}
	return strings.Join(lines, "\n")
}

func (c Context) rewriteAttrs(line string) string {
	return uriAttr.ReplaceAllStringFunc(line, func(m string) string {
		ref := m[len(`URI="`) : len(m)-1]
		return `URI="` + c.proxy(ref) + `"`
	})
}

func (c Context) proxy(ref string) string {
	return ProxyURL(c.ProxyOrigin, Resolve(ref, c.BaseOrigin, c.BasePath))
}
