package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportlog/internal"
)

func TestLoadDocumentText(t *testing.T) {
	doc, err := LoadDocument(filepath.Join("testdata", "sample_log.txt"))
	require.NoError(t, err)
	assert.Equal(t, "sample_log.txt", doc.Name)
	assert.Equal(t, internal.SourceText, doc.Source)
	assert.Contains(t, doc.Text, "123456 010124")
}

func TestLoadDocumentBytesWindows1252(t *testing.T) {
	blob := []byte("123456 010124 05/01/2024\nSuporte: Cl\xe1udia\n")
	doc, err := LoadDocumentBytes("legacy.log", blob)
	require.NoError(t, err)
	assert.Contains(t, doc.Text, "Cláudia")

	records := Parse(doc.Text)
	require.Len(t, records, 1)
	assert.Equal(t, "Claudia Liliane", records[0].Technician)
}

func TestLoadDocumentBytesStripsBOM(t *testing.T) {
	doc, err := LoadDocumentBytes("bom.txt", []byte("\xef\xbb\xbf123456 010124"))
	require.NoError(t, err)
	assert.Equal(t, "123456 010124", doc.Text)
}

func TestLoadDocumentHTML(t *testing.T) {
	html := `<html><head><style>p{}</style></head><body>
<p>123456 010124 05/01/2024</p>
<p>[SAMUEL ACME CORP<br>Suporte: Claudia<br>Atendimento: revisão de rotina Internews: 3.2</p>
</body></html>`
	doc, err := LoadDocumentBytes("export.html", []byte(html))
	require.NoError(t, err)
	assert.Equal(t, internal.SourceHTML, doc.Source)
	assert.NotContains(t, doc.Text, "p{}")

	records := Parse(doc.Text)
	require.Len(t, records, 1)
	assert.Equal(t, "ACME CORP", records[0].Client)
	assert.Equal(t, "Claudia Liliane", records[0].Technician)
	assert.Equal(t, internal.CategoryRoutine, records[0].Category)
	assert.Equal(t, "3.2", records[0].Version)
}

func TestLoadDocumentUnsupported(t *testing.T) {
	_, err := LoadDocumentBytes("sheet.xlsx", []byte("x"))
	assert.Error(t, err)
	assert.False(t, IsSupportedFile("sheet.xlsx"))
	assert.True(t, IsSupportedFile("LOG.TXT"))
}

func TestExtractLogsFromEmailAttachment(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("testdata", "weekly_log.eml"))
	require.NoError(t, err)

	docs, subject, err := ExtractLogsFromEmailRaw(raw)
	require.NoError(t, err)
	assert.Equal(t, "Log semanal", subject)
	require.Len(t, docs, 1)
	assert.Equal(t, "semana.txt", docs[0].Name)

	records := Parse(docs[0].Text)
	require.Len(t, records, 3)
	assert.Equal(t, "Daniela Nogueira", records[0].Technician)
	assert.Equal(t, "Jarbas Fred", records[1].Technician)
	assert.Equal(t, "Luiz Eduardo", records[2].Technician)
	assert.Equal(t, internal.CategoryError, records[2].Category)
}

func TestExtractLogsFromEmailBody(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("testdata", "body_log.eml"))
	require.NoError(t, err)

	docs, _, err := ExtractLogsFromEmailRaw(raw)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Atendimento avulso.txt", docs[0].Name)

	records := Parse(docs[0].Text)
	require.Len(t, records, 1)
	assert.Equal(t, "Jarbas Fred", records[0].Technician)
	assert.Equal(t, "LOJA ROXA", records[0].Client)
}

func TestLoadDocumentEmail(t *testing.T) {
	doc, err := LoadDocument(filepath.Join("testdata", "weekly_log.eml"))
	require.NoError(t, err)
	assert.Equal(t, internal.SourceEmail, doc.Source)
	assert.Len(t, Parse(doc.Text), 3)
}
