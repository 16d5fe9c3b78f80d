package ingestor

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/jmylchreest/epgnow/pkg/xmltv"
)

// LoadDocument downloads src (unless its body is already present),
// decompresses it and decodes the XMLTV document.
func LoadDocument(ctx context.Context, fetcher Fetcher, src Source) (*xmltv.Document, Compression, error) {
	var body io.Reader
	if src.Body != nil {
		body = bytes.NewReader(src.Body)
	} else {
		rc, err := fetcher.Fetch(ctx, src.URL)
		if err != nil {
			return nil, "", err
		}
		defer rc.Close()
		body = rc
	}

	r, kind, err := Decompress(body)
	if err != nil {
		return nil, "", err
	}

	doc, err := xmltv.Decode(r)
	if err != nil {
		return nil, kind, fmt.Errorf("decoding %s document: %w", kind, err)
	}
	return doc, kind, nil
}
