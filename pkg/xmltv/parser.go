// Package xmltv provides streaming XMLTV decoding and writing.
//
// Programme records are decoded without interpretation: timestamps stay as
// the raw attribute strings and every textual child is kept with all of its
// candidate values, so callers can apply their own normalisation rules to
// feeds that disagree on where the text lives.
package xmltv

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// ErrNoTVRoot is returned when a document contains no <tv> element.
var ErrNoTVRoot = errors.New("xmltv: document has no <tv> root element")

// Text is a textual child element such as <title> or <desc>.
// Some feeds put the text in the element body, others in a "text" attribute.
type Text struct {
	Value string
	Attr  string
	Lang  string
}

// Channel represents a channel definition.
type Channel struct {
	ID           string
	DisplayNames []string
	Icon         string
	URL          string
}

// DisplayName returns the first non-blank display name.
func (c *Channel) DisplayName() string {
	for _, n := range c.DisplayNames {
		if n = strings.TrimSpace(n); n != "" {
			return n
		}
	}
	return ""
}

// Programme is a raw programme record.
type Programme struct {
	Channel      string
	Start        string
	Stop         string
	Titles       []Text
	Descriptions []Text
	Categories   []Text
}

// Document is a fully decoded XMLTV file.
type Document struct {
	Generator  string
	Channels   []Channel
	Programmes []Programme
}

// Parser provides streaming XMLTV parsing with callback-based processing.
type Parser struct {
	// OnRoot is called once with the <tv> element attributes.
	OnRoot func(attrs []xml.Attr)

	// OnChannel is called for each channel definition.
	OnChannel func(channel *Channel) error

	// OnProgramme is called for each parsed programme.
	OnProgramme func(programme *Programme) error

	// OnError is called for recoverable parsing errors.
	OnError func(err error)
}

type textElement struct {
	Value string `xml:",chardata"`
	Attr  string `xml:"text,attr"`
	Lang  string `xml:"lang,attr"`
}

func (e textElement) text() Text {
	return Text{Value: strings.TrimSpace(e.Value), Attr: strings.TrimSpace(e.Attr), Lang: e.Lang}
}

// Parse parses an XMLTV document from r. Encodings other than UTF-8 are
// converted using the declaration in the XML prolog.
func (p *Parser) Parse(r io.Reader) error {
	decoder := xml.NewDecoder(r)
	decoder.Strict = false
	decoder.AutoClose = xml.HTMLAutoClose
	decoder.Entity = xml.HTMLEntity
	decoder.CharsetReader = charset.NewReaderLabel

	sawRoot := false
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading XML token: %w", err)
		}

		elem, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		switch elem.Name.Local {
		case "tv":
			if !sawRoot && p.OnRoot != nil {
				p.OnRoot(elem.Attr)
			}
			sawRoot = true

		case "channel":
			if !sawRoot || p.OnChannel == nil {
				_ = decoder.Skip()
				continue
			}
			channel, err := p.parseChannel(decoder, elem)
			if err != nil {
				p.handleError(err)
				continue
			}
			if err := p.OnChannel(channel); err != nil {
				return fmt.Errorf("channel callback: %w", err)
			}

		case "programme":
			if !sawRoot || p.OnProgramme == nil {
				_ = decoder.Skip()
				continue
			}
			programme, err := p.parseProgramme(decoder, elem)
			if err != nil {
				p.handleError(err)
				continue
			}
			if err := p.OnProgramme(programme); err != nil {
				return fmt.Errorf("programme callback: %w", err)
			}
		}
	}

	if !sawRoot {
		return ErrNoTVRoot
	}
	return nil
}

func (p *Parser) parseChannel(decoder *xml.Decoder, start xml.StartElement) (*Channel, error) {
	channel := &Channel{ID: attr(start, "id")}

	for {
		token, err := decoder.Token()
		if err != nil {
			return nil, fmt.Errorf("channel %q: %w", channel.ID, err)
		}

		switch elem := token.(type) {
		case xml.StartElement:
			switch elem.Name.Local {
			case "display-name":
				var te textElement
				if err := decoder.DecodeElement(&te, &elem); err == nil {
					channel.DisplayNames = append(channel.DisplayNames, strings.TrimSpace(te.Value))
				}
			case "icon":
				if src := attr(elem, "src"); src != "" && channel.Icon == "" {
					channel.Icon = src
				}
				_ = decoder.Skip()
			case "url":
				var url string
				if err := decoder.DecodeElement(&url, &elem); err == nil && channel.URL == "" {
					channel.URL = strings.TrimSpace(url)
				}
			default:
				_ = decoder.Skip()
			}
		case xml.EndElement:
			if elem.Name.Local == "channel" {
				return channel, nil
			}
		}
	}
}

func (p *Parser) parseProgramme(decoder *xml.Decoder, start xml.StartElement) (*Programme, error) {
	prog := &Programme{
		Channel: attr(start, "channel"),
		Start:   attr(start, "start"),
		Stop:    attr(start, "stop"),
	}

	for {
		token, err := decoder.Token()
		if err != nil {
			return nil, fmt.Errorf("programme on %q: %w", prog.Channel, err)
		}

		switch elem := token.(type) {
		case xml.StartElement:
			var target *[]Text
			switch elem.Name.Local {
			case "title":
				target = &prog.Titles
			case "desc":
				target = &prog.Descriptions
			case "category":
				target = &prog.Categories
			default:
				_ = decoder.Skip()
				continue
			}
			var te textElement
			if err := decoder.DecodeElement(&te, &elem); err != nil {
				p.handleError(fmt.Errorf("programme on %q: decoding %s: %w", prog.Channel, elem.Name.Local, err))
				continue
			}
			*target = append(*target, te.text())
		case xml.EndElement:
			if elem.Name.Local == "programme" {
				return prog, nil
			}
		}
	}
}

func attr(elem xml.StartElement, name string) string {
	for _, a := range elem.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func (p *Parser) handleError(err error) {
	if p.OnError != nil {
		p.OnError(err)
	}
}

// Decode reads an entire XMLTV document into memory.
func Decode(r io.Reader) (*Document, error) {
	doc := &Document{}
	p := &Parser{
		OnRoot: func(attrs []xml.Attr) {
			for _, a := range attrs {
				if a.Name.Local == "generator-info-name" {
					doc.Generator = a.Value
				}
			}
		},
		OnChannel: func(ch *Channel) error {
			doc.Channels = append(doc.Channels, *ch)
			return nil
		},
		OnProgramme: func(prog *Programme) error {
			doc.Programmes = append(doc.Programmes, *prog)
			return nil
		},
	}
	if err := p.Parse(r); err != nil {
		return nil, err
	}
	return doc, nil
}
