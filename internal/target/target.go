// Package target validates the caller-supplied URL the proxy is asked to fetch.
package target

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var (
	// ErrMissingParameter is returned when no target URL was supplied.
	ErrMissingParameter = errors.New("missing url parameter")
	// ErrInvalidFormat is returned when the target is not an absolute http(s) URL.
	ErrInvalidFormat = errors.New("invalid url format: must be an absolute http(s) URL")
	// ErrLoopDetected is returned when the target points back at this proxy.
	ErrLoopDetected = errors.New("loop detected: target points back at this proxy")
)

var schemePattern = regexp.MustCompile(`^https?://`)

// Validate checks raw and returns it parsed. proxyOrigin is scheme://host of
// this service; any target that starts with it is rejected so that a crafted
// playlist cannot make the proxy fetch itself.
func Validate(raw, proxyOrigin string) (*url.URL, error) {
	if raw == "" {
		return nil, ErrMissingParameter
	}
	if !schemePattern.MatchString(raw) {
		return nil, ErrInvalidFormat
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, ErrInvalidFormat
	}

	if proxyOrigin != "" && strings.HasPrefix(raw, proxyOrigin) {
		return nil, ErrLoopDetected
	}

	return u, nil
}

// Origin returns scheme://host[:port] of u.
func Origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}
