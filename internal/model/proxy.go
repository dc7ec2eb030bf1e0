// Package model defines shared types for the proxy.
package model

import (
	"context"
	"io"
	"net/http"
)

// ContentKind tells the orchestrator whether a fetched body is an HLS
// playlist that must be rewritten or an opaque payload to stream through.
type ContentKind int

const (
	ContentOpaque ContentKind = iota
	ContentPlaylist
)

func (k ContentKind) String() string {
	if k == ContentPlaylist {
		return "playlist"
	}
	return "opaque"
}

// ProxyRequest represents a client request to be forwarded to a target URL.
type ProxyRequest struct {
	Ctx    context.Context
	Method string
	// Target is the raw, already query-decoded value of the url parameter.
	Target string
	// ProxyOrigin is scheme://host of this service as seen by the client.
	ProxyOrigin string
	Header      http.Header
	Body        io.ReadCloser
}

// ProxyResponse represents the upstream response to be streamed back.
type ProxyResponse struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       io.ReadCloser
	Kind       ContentKind
}
