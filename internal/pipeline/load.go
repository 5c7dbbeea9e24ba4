package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/charmap"

	"supportlog/internal"
	"supportlog/internal/util"
)

var supportedExts = map[string]internal.DocumentSource{
	".txt":  internal.SourceText,
	".log":  internal.SourceText,
	".pdf":  internal.SourcePDF,
	".html": internal.SourceHTML,
	".htm":  internal.SourceHTML,
	".eml":  internal.SourceEmail,
}

// IsSupportedFile reports whether LoadDocument knows how to read path.
func IsSupportedFile(path string) bool {
	_, ok := supportedExts[strings.ToLower(filepath.Ext(path))]
	return ok
}

func LoadDocument(path string) (internal.LogDocument, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return internal.LogDocument{}, err
	}
	return LoadDocumentBytes(filepath.Base(path), blob)
}

// LoadDocumentBytes extracts the log text from blob, picking the reader by the
// extension of name.
func LoadDocumentBytes(name string, blob []byte) (internal.LogDocument, error) {
	source, ok := supportedExts[strings.ToLower(filepath.Ext(name))]
	if !ok {
		return internal.LogDocument{}, fmt.Errorf("unsupported input type: %s", name)
	}

	var (
		text string
		err  error
	)
	switch source {
	case internal.SourceText:
		text = decodeText(blob)
	case internal.SourcePDF:
		text, err = pdfText(blob)
	case internal.SourceHTML:
		text, err = htmlText(string(blob))
	case internal.SourceEmail:
		var docs []internal.LogDocument
		docs, _, err = ExtractLogsFromEmailRaw(blob)
		parts := make([]string, 0, len(docs))
		for _, d := range docs {
			parts = append(parts, d.Text)
		}
		text = strings.Join(parts, "\n")
	}
	if err != nil {
		return internal.LogDocument{}, fmt.Errorf("read %s: %w", name, err)
	}
	return internal.LogDocument{Name: name, Source: source, Text: text}, nil
}

// ExtractLogsFromEmailRaw returns one document per log attachment of a raw
// message, or the message body when it carries none. The subject is returned
// for naming.
func ExtractLogsFromEmailRaw(raw []byte) ([]internal.LogDocument, string, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, "", err
	}
	subject := env.GetHeader("Subject")

	docs := make([]internal.LogDocument, 0, len(env.Attachments))
	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" && strings.HasPrefix(att.ContentType, "text/plain") {
			filename = "attachment.txt"
		}
		lower := strings.ToLower(filename)
		if lower == "" || strings.HasSuffix(lower, ".eml") || !IsSupportedFile(lower) {
			continue
		}
		doc, err := LoadDocumentBytes(filename, att.Content)
		if err != nil || strings.TrimSpace(doc.Text) == "" {
			continue
		}
		docs = append(docs, doc)
	}
	if len(docs) > 0 {
		return docs, subject, nil
	}

	body := env.Text
	if strings.TrimSpace(body) == "" && env.HTML != "" {
		if body, err = htmlText(env.HTML); err != nil {
			return nil, subject, err
		}
	}
	if strings.TrimSpace(body) == "" {
		return nil, subject, nil
	}
	name := util.FirstNonEmpty(subject, "body") + ".txt"
	return []internal.LogDocument{{Name: name, Source: internal.SourceEmail, Text: body}}, subject, nil
}

// decodeText reads UTF-8, dropping a byte order mark. Anything that is not
// valid UTF-8 is taken as Windows-1252, the usual encoding of exported logs.
func decodeText(blob []byte) string {
	blob = bytes.TrimPrefix(blob, []byte("\xef\xbb\xbf"))
	if utf8.Valid(blob) {
		return string(blob)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(blob)
	if err != nil {
		return string(blob)
	}
	return string(decoded)
}

func pdfText(content []byte) (string, error) {
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
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func htmlText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script,style,head").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p,div,tr,li,pre,h1,h2,h3,h4").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}
