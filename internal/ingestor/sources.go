package ingestor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// listProbeSize bounds how much of a decoded body is searched for XML markers.
const listProbeSize = 4096

// Source is one concrete document location. Body holds the content when it
// was already downloaded while resolving the location.
type Source struct {
	URL  string
	Body []byte
}

// SplitSourceList splits a comma separated list of locations, dropping blanks.
func SplitSourceList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ResolveSources expands a configured location into concrete documents.
//
//   - a comma separated value is split into its parts;
//   - a location ending in .gz is used as-is;
//   - otherwise the location is fetched once: a body containing XMLTV
//     markup is the document itself, a body listing http URLs one per line
//     becomes that list, and anything else is treated as the document.
//
// A fetch failure while resolving is not fatal; the location is returned
// unresolved so the download step reports the error.
func ResolveSources(ctx context.Context, fetcher Fetcher, location string, logger *slog.Logger) []Source {
	if logger == nil {
		logger = slog.Default()
	}
	location = strings.TrimSpace(location)
	if location == "" {
		return nil
	}

	if strings.Contains(location, ",") {
		return sourcesFromURLs(SplitSourceList(location))
	}

	if strings.HasSuffix(strings.ToLower(location), ".gz") {
		return []Source{{URL: location}}
	}

	body, err := fetchAll(ctx, fetcher, location)
	if err != nil {
		logger.Warn("could not inspect source location, using it directly",
			slog.String("url", location),
			slog.String("error", err.Error()),
		)
		return []Source{{URL: location}}
	}

	if looksLikeXMLTV(body) {
		return []Source{{URL: location, Body: body}}
	}

	if urls := urlLines(body); len(urls) > 0 {
		logger.Info("source location is a list",
			slog.String("url", location),
			slog.Int("sources", len(urls)),
		)
		return sourcesFromURLs(urls)
	}

	return []Source{{URL: location, Body: body}}
}

func sourcesFromURLs(urls []string) []Source {
	out := make([]Source, 0, len(urls))
	for _, u := range urls {
		out = append(out, Source{URL: u})
	}
	return out
}

func fetchAll(ctx context.Context, fetcher Fetcher, location string) ([]byte, error) {
	rc, err := fetcher.Fetch(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", location, err)
	}
	return body, nil
}

// looksLikeXMLTV reports whether the (possibly compressed) body is markup.
func looksLikeXMLTV(body []byte) bool {
	r, kind, err := Decompress(bytes.NewReader(body))
	if err != nil {
		return false
	}
	if kind != CompressionNone {
		return true
	}
	head := make([]byte, listProbeSize)
	n, _ := io.ReadFull(r, head)
	head = head[:n]
	return bytes.Contains(head, []byte("<?xml")) || bytes.Contains(head, []byte("<tv"))
}

func urlLines(body []byte) []string {
	var urls []string
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "http") {
			urls = append(urls, line)
		}
	}
	return urls
}
