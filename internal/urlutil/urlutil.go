// Package urlutil resolves source locations to readable streams.
package urlutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/jmylchreest/epgnow/pkg/httpclient"
)

// URL scheme constants.
const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
	SchemeFile  = "file"
)

// ErrUnsupportedScheme is returned for locations that are neither remote URLs nor local files.
var ErrUnsupportedScheme = errors.New("unsupported URL scheme")

// IsRemoteURL reports whether u is an http(s) URL.
func IsRemoteURL(u string) bool {
	lower := strings.ToLower(u)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// IsFileURL reports whether u uses the file:// scheme.
func IsFileURL(u string) bool {
	return strings.HasPrefix(strings.ToLower(u), "file://")
}

// GetScheme returns the lower-cased scheme of u, or "" if it has none.
func GetScheme(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Scheme)
}

// FilePathFromURL extracts the path of a file:// URL.
func FilePathFromURL(u string) (string, error) {
	if !IsFileURL(u) {
		return "", fmt.Errorf("not a file:// URL: %s", u)
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Path == "" {
		return "", fmt.Errorf("empty path in file URL: %s", u)
	}
	return parsed.Path, nil
}

// Redact strips userinfo passwords from u for logging. Unparseable input is
// returned unchanged.
func Redact(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.User == nil {
		return u
	}
	return parsed.Redacted()
}

// ResourceFetcher opens http(s) URLs, file:// URLs and plain filesystem paths.
type ResourceFetcher struct {
	httpClient *httpclient.Client
}

// NewResourceFetcher creates a fetcher that downloads remote resources with client.
func NewResourceFetcher(client *httpclient.Client) *ResourceFetcher {
	if client == nil {
		client = httpclient.New(httpclient.DefaultConfig())
	}
	return &ResourceFetcher{httpClient: client}
}

// Fetch opens location for reading. The caller must close the returned reader.
func (f *ResourceFetcher) Fetch(ctx context.Context, location string) (io.ReadCloser, error) {
	location = strings.TrimSpace(location)

	switch {
	case IsRemoteURL(location):
		resp, err := f.httpClient.Get(ctx, location)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", Redact(location), err)
		}
		return resp.Body, nil

	case IsFileURL(location):
		path, err := FilePathFromURL(location)
		if err != nil {
			return nil, err
		}
		return openFile(path)

	case GetScheme(location) == "" || isWindowsDrive(location):
		return openFile(location)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, GetScheme(location))
	}
}

func openFile(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file %s: %w", path, err)
	}
	return file, nil
}

// isWindowsDrive reports paths like C:\guide.xml whose drive letter parses as a scheme.
func isWindowsDrive(location string) bool {
	return len(location) >= 3 && location[1] == ':' && (location[2] == '\\' || location[2] == '/')
}
