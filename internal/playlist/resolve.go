package playlist

import (
	"strings"
)

// Resolve turns ref into an absolute URL. baseOrigin is scheme://host of the
// playlist and basePath its directory, ending in "/". Only the four
// reference forms that appear in playlists are handled; dot segments are
// left as the origin wrote them.
func Resolve(ref, baseOrigin, basePath string) string {
	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return ref
	case strings.HasPrefix(ref, "//"):
		return "https:" + ref
	case strings.HasPrefix(ref, "/"):
		return baseOrigin + ref
	default:
		return baseOrigin + basePath + ref
	}
}

// dirOf returns p truncated after its last "/".
func dirOf(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return "/"
	}
	return p[:i+1]
}

// PercentEncode escapes s for use as a query value. Only the unreserved
// characters A-Z a-z 0-9 - _ . ! ~ * ' ( ) are left as is.
func PercentEncode(s string) string {
	const hex = "0123456789ABCDEF"

	var b strings.Builder
	b.Grow(len(s) * 3 / 2)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}

// ProxyURL wraps an absolute URL so that fetching it goes through the proxy.
func ProxyURL(proxyOrigin, absolute string) string {
	return proxyOrigin + "/?url=" + PercentEncode(absolute)
}
