package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

type Kind string

const (
	KindText Kind = "txt"
	KindPDF  Kind = "pdf"
	KindHTML Kind = "html"
	KindEML  Kind = "eml"
	KindXLSX Kind = "xlsx"
)

var ErrUnsupported = errors.New("unsupported source type")

// Document is the plain text handed to the parser plus where it came from.
type Document struct {
	Ref         string
	Kind        Kind
	Text        string
	Attachments []string
}

// DetectKind maps a file extension to a source kind. Unknown extensions
// read as plain text.
func DetectKind(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return KindPDF
	case ".html", ".htm":
		return KindHTML
	case ".eml":
		return KindEML
	case ".xlsx":
		return KindXLSX
	default:
		return KindText
	}
}

// Read loads path and converts it to text. An empty kind is detected from
// the extension.
func Read(ctx context.Context, kind, path string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	k := Kind(strings.ToLower(strings.TrimSpace(kind)))
	if k == "" {
		k = DetectKind(path)
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := FromBytes(k, blob)
	if err != nil {
		return Document{}, fmt.Errorf("%s %s: %w", k, path, err)
	}
	doc.Ref = path
	return doc, nil
}

func FromBytes(kind Kind, blob []byte) (Document, error) {
	doc := Document{Kind: kind}
	var err error
	switch kind {
	case KindText:
		doc.Text = strings.ReplaceAll(string(blob), "\r\n", "\n")
	case KindPDF:
		doc.Text, err = PDFText(blob)
	case KindHTML:
		doc.Text, err = HTMLText(blob)
	case KindEML:
		doc.Text, doc.Attachments, err = EMLText(blob)
	case KindXLSX:
		doc.Text, err = XLSXText(blob)
	default:
		return Document{}, fmt.Errorf("%w: %s", ErrUnsupported, kind)
	}
	return doc, err
}

// PDFText concatenates the plain text of every page. Unreadable pages are
// skipped.
func PDFText(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			log.Debug().Int("page", i).Err(err).Msg("source.pdf_page_skipped")
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return joinLines(b.String()), nil
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "header": true, "footer": true, "ul": true, "ol": true,
}

var skippedElements = map[string]bool{"script": true, "style": true, "noscript": true, "head": true}

// HTMLText renders the visible text of a page, one block element per line
// and table cells separated by spaces.
func HTMLText(content []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	writeHTMLText(doc.Selection, &b)
	return joinLines(b.String()), nil
}

func writeHTMLText(sel *goquery.Selection, b *strings.Builder) {
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		name := goquery.NodeName(s)
		switch {
		case name == "#text":
			b.WriteString(s.Text())
			return
		case skippedElements[name]:
			return
		}
		writeHTMLText(s, b)
		if name == "td" || name == "th" {
			b.WriteString(" ")
		}
		if blockElements[name] {
			b.WriteString("\n")
		}
	})
}

// EMLText returns the message body followed by the text of any PDF
// attachments, and the attachment file names.
func EMLText(raw []byte) (string, []string, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return "", nil, err
	}

	parts := []string{}
	if strings.TrimSpace(env.Text) != "" {
		parts = append(parts, env.Text)
	} else if env.HTML != "" {
		if text, err := HTMLText([]byte(env.HTML)); err == nil {
			parts = append(parts, text)
		}
	}

	names := make([]string, 0, len(env.Attachments))
	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			filename = "attachment"
		}
		names = append(names, filename)
		if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
			continue
		}
		text, err := PDFText(att.Content)
		if err != nil {
			log.Warn().Str("attachment", filename).Err(err).Msg("source.attachment_unreadable")
			continue
		}
		parts = append(parts, text)
	}
	return joinLines(strings.Join(parts, "\n")), names, nil
}

// XLSXText renders every sheet row as one space-separated line, which is
// the shape of the "At a Glance" rows in the published spreadsheets.
func XLSXText(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", err
	}
	defer f.Close()

	lines := []string{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		for _, row := range rows {
			cells := make([]string, 0, len(row))
			for _, c := range row {
				if c = strings.TrimSpace(c); c != "" {
					cells = append(cells, c)
				}
			}
			if len(cells) > 0 {
				lines = append(lines, strings.Join(cells, " "))
			}
		}
	}
	return strings.Join(lines, "\n"), nil
}

func joinLines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n")
}
