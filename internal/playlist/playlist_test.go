package playlist

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hls-proxy/internal/model"
)

const (
	testProxy = "https://proxy.example.com"
	testBase  = "https://cdn.example.com/videos/abc/index.m3u8"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestRewrite_MediaLine(t *testing.T) {
	got := Rewrite("seg001.ts", mustParse(t, testBase), testProxy)
	assert.Equal(t, "https://proxy.example.com/?url=https%3A%2F%2Fcdn.example.com%2Fvideos%2Fabc%2Fseg001.ts", got)
}

func TestRewrite_ReferenceForms(t *testing.T) {
	tests := []struct {
		name string
		line string
		abs  string
	}{
		{"absolute https", "https://other.example.net/x/seg.ts", "https://other.example.net/x/seg.ts"},
		{"absolute http", "http://other.example.net/seg.ts", "http://other.example.net/seg.ts"},
		{"protocol relative", "//edge.example.net/live/seg.ts", "https://edge.example.net/live/seg.ts"},
		{"root relative", "/root/seg.ts", "https://cdn.example.com/root/seg.ts"},
		{"path relative", "720p/index.m3u8", "https://cdn.example.com/videos/abc/720p/index.m3u8"},
		{"dot segments kept", "../seg.ts", "https://cdn.example.com/videos/abc/../seg.ts"},
		{"with query", "seg.ts?token=a b&x=1", "https://cdn.example.com/videos/abc/seg.ts?token=a b&x=1"},
		{"surrounding whitespace", "  seg.ts\r", "https://cdn.example.com/videos/abc/seg.ts"},
	}

	base := mustParse(t, testBase)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Rewrite(tt.line, base, testProxy)
			assert.Equal(t, testProxy+"/?url="+PercentEncode(tt.abs), got)

			// The wrapped value decodes back to the resolved URL.
			u, err := url.Parse(got)
			require.NoError(t, err)
			assert.Equal(t, tt.abs, u.Query().Get("url"))
		})
	}
}

func TestRewrite_KeyURI(t *testing.T) {
	line := `#EXT-X-KEY:METHOD=AES-128,URI="key.bin",IV=0x0123456789ABCDEF0123456789ABCDEF`
	want := `#EXT-X-KEY:METHOD=AES-128,URI="https://proxy.example.com/?url=https%3A%2F%2Fcdn.example.com%2Fvideos%2Fabc%2Fkey.bin",IV=0x0123456789ABCDEF0123456789ABCDEF`

	assert.Equal(t, want, Rewrite(line, mustParse(t, testBase), testProxy))
}

func TestRewrite_MultipleURIAttributes(t *testing.T) {
	line := `#EXT-X-SESSION-KEY:URI="/k1",OTHER-URI="//keys.example.net/k2"`
	want := `#EXT-X-SESSION-KEY:URI="` + ProxyURL(testProxy, "https://cdn.example.com/k1") +
		`",OTHER-URI="` + ProxyURL(testProxy, "https://keys.example.net/k2") + `"`

	assert.Equal(t, want, Rewrite(line, mustParse(t, testBase), testProxy))
}

func TestRewrite_FullPlaylist(t *testing.T) {
	in := "#EXTM3U\n" +
		"#EXT-X-VERSION:3\n" +
		"#EXT-X-TARGETDURATION:10\n" +
		"#EXT-X-MAP:URI=\"init.mp4\"\n" +
		"#EXT-X-KEY:METHOD=AES-128,URI=\"https://keys.example.net/k?id=1\"\n" +
		"\n" +
		"#EXTINF:10.0,\n" +
		"seg001.ts\n" +
		"#EXTINF:10.0,\n" +
		"/abs/seg002.ts\n" +
		"#EXT-X-ENDLIST\n"

	want := "#EXTM3U\n" +
		"#EXT-X-VERSION:3\n" +
		"#EXT-X-TARGETDURATION:10\n" +
		"#EXT-X-MAP:URI=\"https://proxy.example.com/?url=https%3A%2F%2Fcdn.example.com%2Fvideos%2Fabc%2Finit.mp4\"\n" +
		"#EXT-X-KEY:METHOD=AES-128,URI=\"https://proxy.example.com/?url=https%3A%2F%2Fkeys.example.net%2Fk%3Fid%3D1\"\n" +
		"\n" +
		"#EXTINF:10.0,\n" +
		"https://proxy.example.com/?url=https%3A%2F%2Fcdn.example.com%2Fvideos%2Fabc%2Fseg001.ts\n" +
		"#EXTINF:10.0,\n" +
		"https://proxy.example.com/?url=https%3A%2F%2Fcdn.example.com%2Fabs%2Fseg002.ts\n" +
		"#EXT-X-ENDLIST\n"

	assert.Equal(t, want, Rewrite(in, mustParse(t, testBase), testProxy))
}

func TestRewrite_NoReferencesIsIdentity(t *testing.T) {
	in := "#EXTM3U\n#EXT-X-VERSION:3\n\n# a comment\n   \n#EXT-X-ENDLIST"
	assert.Equal(t, in, Rewrite(in, mustParse(t, testBase), testProxy))
}

func TestRewrite_BaseWithoutPath(t *testing.T) {
	got := Rewrite("seg.ts", mustParse(t, "https://cdn.example.com"), testProxy)
	assert.Equal(t, ProxyURL(testProxy, "https://cdn.example.com/seg.ts"), got)
}

func TestRewrite_BaseWithPort(t *testing.T) {
	got := Rewrite("/seg.ts", mustParse(t, "http://127.0.0.1:9000/live/index.m3u8?x=1"), testProxy)
	assert.Equal(t, ProxyURL(testProxy, "http://127.0.0.1:9000/seg.ts"), got)
}

func TestNewContext(t *testing.T) {
	c := NewContext(mustParse(t, "https://cdn.example.com:8443/a/b/c.m3u8?token=1"), testProxy)
	assert.Equal(t, Context{
		BaseOrigin:  "https://cdn.example.com:8443",
		BasePath:    "/a/b/",
		ProxyOrigin: testProxy,
	}, c)
}

func TestResolve(t *testing.T) {
	const origin, dir = "https://cdn.example.com", "/videos/abc/"
	tests := []struct {
		ref  string
		want string
	}{
		{"https://x.example/a", "https://x.example/a"},
		{"http://x.example/a", "http://x.example/a"},
		{"//x.example/a", "https://x.example/a"},
		{"/a/b.ts", "https://cdn.example.com/a/b.ts"},
		{"b.ts", "https://cdn.example.com/videos/abc/b.ts"},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.ref, origin, dir))
		})
	}
}

func TestPercentEncode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://cdn.example.com/a/b.ts", "https%3A%2F%2Fcdn.example.com%2Fa%2Fb.ts"},
		{"a b+c&d=e?f#g", "a%20b%2Bc%26d%3De%3Ff%23g"},
		{"-_.!~*'()", "-_.!~*'()"},
		{"é", "%C3%A9"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, PercentEncode(tt.in))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		target string
		ct     string
		want   model.ContentKind
	}{
		{"m3u8 suffix", "https://cdn.example.com/index.m3u8", "", model.ContentPlaylist},
		{"m3u8 suffix uppercase", "https://cdn.example.com/INDEX.M3U8", "application/octet-stream", model.ContentPlaylist},
		{"m3u8 suffix with query", "https://cdn.example.com/index.m3u8?token=1", "", model.ContentPlaylist},
		{"apple content type", "https://cdn.example.com/live", "application/vnd.apple.mpegurl", model.ContentPlaylist},
		{"x-mpegurl with params", "https://cdn.example.com/live", "audio/x-mpegURL; charset=utf-8", model.ContentPlaylist},
		{"segment", "https://cdn.example.com/seg.ts", "video/mp2t", model.ContentOpaque},
		{"nothing", "https://cdn.example.com/file", "", model.ContentOpaque},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.ct != "" {
				h.Set("Content-Type", tt.ct)
			}
			assert.Equal(t, tt.want, Classify(mustParse(t, tt.target), h))
		})
	}
}
