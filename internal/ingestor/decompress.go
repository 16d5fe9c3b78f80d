package ingestor

import (
	"bufio"
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/ulikunitz/xz"
)

// Compression identifies how a document body was encoded.
type Compression string

const (
	CompressionNone    Compression = "none"
	CompressionGzip    Compression = "gzip"
	CompressionZlib    Compression = "zlib"
	CompressionDeflate Compression = "deflate"
	CompressionXZ      Compression = "xz"
	CompressionBzip2   Compression = "bzip2"
)

// sniffWindow is how much of the body is inspected to pick a decoder.
const sniffWindow = 64 * 1024

type codec struct {
	kind  Compression
	match func(header []byte) bool
	open  func(r io.Reader) (io.Reader, error)

	// verify requires the sniff window to decode into output before the
	// codec is chosen. Codecs with a strong magic number only need their
	// header to parse.
	verify bool
}

// codecs are tried in order. A codec whose magic matches but which cannot
// open the sniff window is skipped and the next one is tried.
var codecs = []codec{
	{
		kind:  CompressionGzip,
		match: func(h []byte) bool { return len(h) >= 2 && h[0] == 0x1f && h[1] == 0x8b },
		open:  func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) },
	},
	{
		kind:   CompressionZlib,
		match:  isZlibHeader,
		open:   func(r io.Reader) (io.Reader, error) { return zlib.NewReader(r) },
		verify: true,
	},
	{
		kind: CompressionXZ,
		match: func(h []byte) bool {
			return len(h) >= 6 && bytes.Equal(h[:6], []byte{0xfd, '7', 'z', 'X', 'Z', 0x00})
		},
		open: func(r io.Reader) (io.Reader, error) { return xz.NewReader(r) },
	},
	{
		kind:  CompressionBzip2,
		match: func(h []byte) bool { return len(h) >= 3 && h[0] == 'B' && h[1] == 'Z' && h[2] == 'h' },
		open:  func(r io.Reader) (io.Reader, error) { return bzip2.NewReader(r, nil) },
	},
	{
		kind:   CompressionDeflate,
		match:  func(h []byte) bool { return len(h) > 0 && !looksLikeMarkup(h) },
		open:   func(r io.Reader) (io.Reader, error) { return flate.NewReader(r), nil },
		verify: true,
	},
}

// Decompress inspects the start of r and returns a reader producing the
// decoded document along with the detected encoding. Bodies no codec can
// decode are returned as plain text.
func Decompress(r io.Reader) (io.Reader, Compression, error) {
	br := bufio.NewReaderSize(r, sniffWindow)
	window, err := br.Peek(sniffWindow)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, "", fmt.Errorf("reading document header: %w", err)
	}

	for _, c := range codecs {
		if !c.match(window) || !probe(c, window) {
			continue
		}
		dr, err := c.open(br)
		if err != nil {
			return nil, "", fmt.Errorf("opening %s stream: %w", c.kind, err)
		}
		return dr, c.kind, nil
	}

	return br, CompressionNone, nil
}

// probe reports whether c accepts the sniff window. Raw deflate has no
// header, so its output must also look like markup.
func probe(c codec, window []byte) bool {
	dr, err := c.open(bytes.NewReader(window))
	if err != nil {
		return false
	}
	if !c.verify {
		return true
	}
	buf := make([]byte, 512)
	n, err := io.ReadFull(dr, buf)
	if n == 0 {
		return false
	}
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return false
	}
	if c.kind == CompressionDeflate {
		return looksLikeMarkup(buf[:n])
	}
	return true
}

func isZlibHeader(h []byte) bool {
	if len(h) < 2 {
		return false
	}
	return h[0]&0x0f == 8 && h[0]>>4 <= 7 && (uint16(h[0])<<8|uint16(h[1]))%31 == 0
}

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// looksLikeMarkup reports whether b starts with '<' after an optional BOM and whitespace.
func looksLikeMarkup(b []byte) bool {
	b = bytes.TrimPrefix(b, utf8BOM)
	b = bytes.TrimLeft(b, " \t\r\n")
	return len(b) > 0 && b[0] == '<'
}
