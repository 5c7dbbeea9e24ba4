package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportlog/internal"
	"supportlog/internal/catalog"
)

func readFixture(t *testing.T, name string) string {
	t.Helper()
	blob, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(blob)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		ok     bool
		reason string
	}{
		{"empty", "", false, reasonEmpty},
		{"blank", "  \n\t ", false, reasonEmpty},
		{"no marker", "05/01/2024 Suporte: Claudia", false, reasonNoMarker},
		{"no date", "123456 010124 Suporte: Claudia", false, reasonNoDate},
		{"one block", "123456 010124 05/01/2024", true, "valid document: 1 block(s) found"},
		{"two blocks", "123456 010124 05/01/2024\n654321 020124", true, "valid document: 2 block(s) found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, msg := Validate(tc.text)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.reason, msg)
		})
	}
}

func TestValidateErr(t *testing.T) {
	err := ValidateErr("no markers here")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, reasonNoMarker, verr.Reason)

	assert.NoError(t, ValidateErr("123456 010124 05/01/2024"))
}

func TestSegment(t *testing.T) {
	text := "header line\n123456 010124 first\n234567  020124 second\n345678\t030124 third"
	blocks := Segment(text)
	require.Len(t, blocks, 3)
	assert.Equal(t, "123456 010124 first\n", blocks[0])
	assert.Equal(t, "234567  020124 second\n", blocks[1])
	assert.Equal(t, "345678\t030124 third", blocks[2])

	assert.Empty(t, Segment("nothing to see"))
	assert.Empty(t, Segment(""))
}

func TestExtractFields(t *testing.T) {
	block := "123456 010124 05/01/2024\n[SAMUEL acme corp  \r\nSuporte: Claudia.\nAtendimento: revisão de rotina mensal Internews: 3.2\n"
	f := ExtractFields(block)
	assert.Equal(t, BlockFields{
		Date:           "05/01/2024",
		ServiceOrderID: "123456",
		Client:         "ACME CORP",
		RawSupport:     "Claudia",
		Detail:         "revisão de rotina mensal",
		Version:        "3.2",
	}, f)
}

func TestExtractFieldsFallbacks(t *testing.T) {
	f := ExtractFields("999999 000000 nothing else")
	assert.Equal(t, "N/D", f.Date)
	assert.Equal(t, "999999", f.ServiceOrderID)
	assert.Equal(t, "CLIENT NOT IDENTIFIED", f.Client)
	assert.Equal(t, "Nao Informado", f.RawSupport)
	assert.Equal(t, "", f.Detail)
	assert.Equal(t, "", f.Version)
}

func TestExtractDetailRunsToBlockEnd(t *testing.T) {
	f := ExtractFields("111111 222222\nAtendimento:\n  linha um\nlinha dois  \n")
	assert.Equal(t, "linha um\nlinha dois", f.Detail)
}

func TestNormalize(t *testing.T) {
	n := NewNormalizer(catalog.Default())
	cases := []struct {
		raw  string
		want []string
	}{
		{"Claudia Liliane", []string{"Claudia Liliane"}},
		{"Gustavo Almeida e Ricardo", []string{"Gustavo Almeida", "Ricardo"}},
		{"Gustavo Kauan", []string{"Gustavo Kauan"}},
		{"gustavo", []string{"Gustavo Kauan"}},
		{"Roberto Silva", []string{"Roberto Silva"}},
		{"roberto SILVA", []string{"Roberto Silva"}},
		{"Cláudia / Eulis & Gabriel, Lucas", []string{"Claudia Liliane", "Eulis Gaudencio", "Gabriel Gilvan", "Lucas Correa"}},
		{"Ricardo E Ricardo", []string{"Ricardo", "Ricardo"}},
		{"joão", []string{"João"}},
		{"Cláudia é Ricardo", []string{"Claudia Liliane", "Ricardo"}},
		{"Claudia，Ricardo", []string{"Claudia Liliane", "Ricardo"}},
		{"Eulis ／ Lucas", []string{"Eulis Gaudencio", "Lucas Correa"}},
		{"joão é zé", []string{"Joao", "Ze"}},
		{"joão / zé", []string{"João", "Zé"}},
		{"", []string{"Not Informed"}},
		{"  .- ", []string{"Not Informed"}},
		{" / , ", []string{"Not Informed"}},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.want, n.Normalize(tc.raw))
		})
	}
}

func TestNormalizeCanonicalNamesAreStable(t *testing.T) {
	cat := catalog.Default()
	n := NewNormalizer(cat)
	for _, name := range cat.Official {
		assert.Equal(t, []string{name}, n.Normalize(name), name)
	}
}

func TestMatcherFirstDeclaredWins(t *testing.T) {
	m := NewMatcher([]internal.NormalizationRule{
		{Key: "gustavo", Canonical: "Generic"},
		{Key: "gustavo kauan", Canonical: "Specific"},
	})
	got, ok := m.Resolve("gustavo kauan")
	require.True(t, ok)
	assert.Equal(t, "Generic", got)

	_, ok = m.Resolve("")
	assert.False(t, ok)
	_, ok = m.Resolve("someone else")
	assert.False(t, ok)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		detail string
		want   internal.Category
	}{
		{"Treinamento com erro no sistema", internal.CategoryTraining},
		{"ERRO na emissão", internal.CategoryError},
		{"revisão de rotina mensal", internal.CategoryRoutine},
		{"Rotina com ERRO", internal.CategoryError},
		{"dúvida geral", internal.CategoryUnidentified},
		{"", internal.CategoryUnidentified},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.detail), tc.detail)
	}
}

func TestParseScenario(t *testing.T) {
	text := "123456 010124\n[SAMUEL ACME CORP\nSuporte: Claudia\nAtendimento: revisão de rotina mensal Internews: 3.2"
	records := Parse(text)
	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, "123456", r.ServiceOrderID)
	assert.Equal(t, "ACME CORP", r.Client)
	assert.Equal(t, "Claudia Liliane", r.Technician)
	assert.Equal(t, internal.CategoryRoutine, r.Category)
	assert.Equal(t, "3.2", r.Version)
	assert.Equal(t, "N/D", r.Date)
	assert.Equal(t, "Claudia", r.RawSupport)
}

func TestParseFanOut(t *testing.T) {
	records := Parse("123456 010124 05/01/2024\nSuporte: Gustavo Almeida e Ricardo\nAtendimento: erro de login")
	require.Len(t, records, 2)
	assert.Equal(t, "Gustavo Almeida", records[0].Technician)
	assert.Equal(t, "Ricardo", records[1].Technician)

	first, second := records[0], records[1]
	first.Technician, second.Technician = "", ""
	assert.Equal(t, first, second)
	assert.Equal(t, "Gustavo Almeida e Ricardo", first.RawSupport)
}

func TestParseFanOutAccentedSeparator(t *testing.T) {
	records := Parse("123456 010124 05/01/2024\nSuporte: Cláudia é Ricardo\nAtendimento: rotina")
	require.Len(t, records, 2)
	assert.Equal(t, "Claudia Liliane", records[0].Technician)
	assert.Equal(t, "Ricardo", records[1].Technician)
	assert.Equal(t, "Cláudia é Ricardo", records[1].RawSupport)
}

func TestParseWithoutBlocks(t *testing.T) {
	records := Parse("05/01/2024 Suporte: Claudia")
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestParseFixture(t *testing.T) {
	text := readFixture(t, "sample_log.txt")
	ok, msg := Validate(text)
	require.True(t, ok, msg)
	assert.Equal(t, "valid document: 4 block(s) found", msg)

	records := Parse(text)
	require.Len(t, records, 6)

	var techs []string
	for _, r := range records {
		techs = append(techs, r.Technician)
		assert.True(t, r.Category.Valid())
		assert.NotEmpty(t, r.Technician)
	}
	assert.Equal(t, []string{"Claudia Liliane", "Gustavo Almeida", "Ricardo", "Gustavo Kauan", "Roberto Silva", "Nao Informado"}, techs)

	assert.Equal(t, "PADARIA SÃO JOÃO", records[1].Client)
	assert.Equal(t, internal.CategoryError, records[1].Category)
	assert.Equal(t, "3.1.7", records[1].Version)
	assert.Equal(t, "MERCADO CENTRAL", records[3].Client)
	assert.Equal(t, internal.CategoryTraining, records[3].Category)
	assert.Equal(t, "CLIENT NOT IDENTIFIED", records[5].Client)
	assert.Equal(t, "N/D", records[5].Date)
	assert.Equal(t, internal.CategoryUnidentified, records[5].Category)
}

func TestParserConcurrentDocuments(t *testing.T) {
	p := NewParser(catalog.Default())
	text := readFixture(t, "sample_log.txt")
	want := p.Parse(text)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, p.Parse(text))
		}()
	}
	wg.Wait()
}

func TestParserUsesCustomCatalog(t *testing.T) {
	p := NewParser(internal.TechnicianCatalog{Rules: []internal.NormalizationRule{{Key: "bob", Canonical: "Robert Paulson"}}})
	records := p.Parse("111111 222222 01/02/2024\nSuporte: bob e Claudia")
	require.Len(t, records, 2)
	assert.Equal(t, "Robert Paulson", records[0].Technician)
	assert.Equal(t, "Claudia", records[1].Technician)
	assert.True(t, strings.HasPrefix(records[0].ServiceOrderID, "111111"))
}
