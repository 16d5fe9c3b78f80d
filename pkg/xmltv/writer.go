package xmltv

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

// TimeLayout is the XMLTV timestamp layout the writer emits.
const TimeLayout = "20060102150405 -0700"

// FormatTime formats t for a programme start or stop attribute.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

type xmlText struct {
	Value string `xml:",chardata"`
	Attr  string `xml:"text,attr,omitempty"`
	Lang  string `xml:"lang,attr,omitempty"`
}

type xmlIcon struct {
	Src string `xml:"src,attr"`
}

type xmlChannel struct {
	XMLName      xml.Name  `xml:"channel"`
	ID           string    `xml:"id,attr"`
	DisplayNames []xmlText `xml:"display-name"`
	Icon         *xmlIcon  `xml:"icon,omitempty"`
	URL          string    `xml:"url,omitempty"`
}

type xmlProgramme struct {
	XMLName      xml.Name  `xml:"programme"`
	Start        string    `xml:"start,attr"`
	Stop         string    `xml:"stop,attr"`
	Channel      string    `xml:"channel,attr"`
	Titles       []xmlText `xml:"title"`
	Descriptions []xmlText `xml:"desc"`
	Categories   []xmlText `xml:"category"`
}

// Writer streams an XMLTV document. Channels must be written before programmes.
type Writer struct {
	enc           *xml.Encoder
	w             io.Writer
	generator     string
	headerWritten bool
	channelsDone  bool
}

// NewWriter creates a writer that stamps generator-info-name with generator.
func NewWriter(w io.Writer, generator string) *Writer {
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return &Writer{enc: enc, w: w, generator: generator}
}

// WriteHeader writes the XML declaration and opens the tv element.
func (w *Writer) WriteHeader() error {
	if w.headerWritten {
		return nil
	}
	if _, err := io.WriteString(w.w, xml.Header); err != nil {
		return fmt.Errorf("writing XML declaration: %w", err)
	}
	root := xml.StartElement{Name: xml.Name{Local: "tv"}}
	if w.generator != "" {
		root.Attr = []xml.Attr{{Name: xml.Name{Local: "generator-info-name"}, Value: w.generator}}
	}
	if err := w.enc.EncodeToken(root); err != nil {
		return fmt.Errorf("writing tv element: %w", err)
	}
	w.headerWritten = true
	return nil
}

// WriteChannel writes a channel definition.
func (w *Writer) WriteChannel(ch *Channel) error {
	if err := w.WriteHeader(); err != nil {
		return err
	}
	if w.channelsDone {
		return fmt.Errorf("channels must be written before programmes")
	}

	out := xmlChannel{ID: ch.ID, URL: ch.URL}
	for _, n := range ch.DisplayNames {
		out.DisplayNames = append(out.DisplayNames, xmlText{Value: n})
	}
	if ch.Icon != "" {
		out.Icon = &xmlIcon{Src: ch.Icon}
	}
	if err := w.enc.Encode(out); err != nil {
		return fmt.Errorf("writing channel %q: %w", ch.ID, err)
	}
	return nil
}

// WriteProgramme writes a programme record.
func (w *Writer) WriteProgramme(prog *Programme) error {
	if err := w.WriteHeader(); err != nil {
		return err
	}
	w.channelsDone = true

	out := xmlProgramme{
		Start:        prog.Start,
		Stop:         prog.Stop,
		Channel:      prog.Channel,
		Titles:       toXMLText(prog.Titles),
		Descriptions: toXMLText(prog.Descriptions),
		Categories:   toXMLText(prog.Categories),
	}
	if err := w.enc.Encode(out); err != nil {
		return fmt.Errorf("writing programme on %q: %w", prog.Channel, err)
	}
	return nil
}

// WriteFooter closes the tv element and flushes.
func (w *Writer) WriteFooter() error {
	if err := w.WriteHeader(); err != nil {
		return err
	}
	if err := w.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "tv"}}); err != nil {
		return fmt.Errorf("closing tv element: %w", err)
	}
	return w.enc.Flush()
}

// WriteDocument writes doc in full.
func (w *Writer) WriteDocument(doc *Document) error {
	for i := range doc.Channels {
		if err := w.WriteChannel(&doc.Channels[i]); err != nil {
			return err
		}
	}
	for i := range doc.Programmes {
		if err := w.WriteProgramme(&doc.Programmes[i]); err != nil {
			return err
		}
	}
	return w.WriteFooter()
}

func toXMLText(in []Text) []xmlText {
	out := make([]xmlText, 0, len(in))
	for _, t := range in {
		out = append(out, xmlText{Value: t.Value, Attr: t.Attr, Lang: t.Lang})
	}
	return out
}
