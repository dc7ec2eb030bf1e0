package handler

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>HLS Proxy</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 46rem; margin: 2rem auto; padding: 0 1rem; line-height: 1.5; }
code { background: #f3f3f3; padding: 0 .25rem; }
pre { background: #f3f3f3; padding: .75rem; overflow-x: auto; }
</style>
</head>
<body>
<h1>HLS Proxy</h1>
<p>Fetches HLS playlists and segments on behalf of the browser, spoofs
<code>Referer</code> and <code>Origin</code>, and rewrites every playlist
reference so that it is fetched through this proxy too.</p>
<h2>Usage</h2>
<pre>{{.Origin}}/?url=&lt;percent-encoded absolute URL&gt;</pre>
<p>Example:</p>
<pre>{{.Origin}}/?url=https%3A%2F%2Fcdn.example.com%2Flive%2Findex.m3u8</pre>
<h2>Endpoints</h2>
<ul>
<li><code>/?url=</code> proxy a playlist, segment, key or any other resource</li>
<li><code>/health</code> liveness check</li>
<li><code>/status</code> runtime status</li>
</ul>
</body>
</html>
`))

func renderIndex(c echo.Context, origin string) error {
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, struct{ Origin string }{origin}); err != nil {
		return err
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}
