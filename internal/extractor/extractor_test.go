package extractor

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"docrag/internal/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{path: "notes.txt", want: FormatText},
		{path: "/data/Report.DOCX", want: FormatDOCX},
		{path: "bars.pdf", want: FormatPDF},
		{path: "sheet.xlsx", want: FormatXLSX},
		{path: "file.unknownext", wantErr: true},
		{path: "README", wantErr: true},
		{path: "old.xls", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			got, err := FormatOf(tc.path)
			if tc.wantErr {
				assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRegistry_UnsupportedFormat(t *testing.T) {
	path := writeFile(t, "file.unknownext", "Apple")

	format, blocks, err := Default().Extract(context.Background(), path)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
	assert.Empty(t, format)
	assert.Nil(t, blocks)
}

func TestRegistry_MissingExtractor(t *testing.T) {
	r := NewRegistry(NewPlainText())
	_, _, err := r.Extract(context.Background(), "doc.pdf")
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
	assert.ElementsMatch(t, []Format{FormatText}, r.Formats())
}

func TestPlainText(t *testing.T) {
	t.Run("paragraphs", func(t *testing.T) {
		path := writeFile(t, "fruit.txt", "Apple\n\n\n\nApple\n\nBanana\nsplit")
		format, blocks, err := Default().Extract(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, FormatText, format)
		assert.Equal(t, []string{"Apple", "", "Apple", "Banana\nsplit"}, blocks)
	})

	t.Run("crlf", func(t *testing.T) {
		path := writeFile(t, "win.txt", "one\r\n\r\ntwo")
		blocks, err := NewPlainText().Extract(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, []string{"one", "two"}, blocks)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewPlainText().Extract(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
		assert.ErrorIs(t, err, domain.ErrExtraction)
	})

	t.Run("invalid utf8", func(t *testing.T) {
		path := writeFile(t, "bin.txt", string([]byte{0xff, 0xfe, 0x00}))
		_, err := NewPlainText().Extract(context.Background(), path)
		assert.ErrorIs(t, err, domain.ErrExtraction)
	})
}

func writeDOCX(t *testing.T, documentXML string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestDOCX(t *testing.T) {
	t.Run("paragraphs", func(t *testing.T) {
		path := writeDOCX(t, `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Milk </w:t></w:r><w:r><w:t>chocolate</w:t></w:r></w:p>
    <w:p><w:r><w:t>   </w:t></w:r></w:p>
    <w:p></w:p>
    <w:p><w:r><w:t>Dark chocolate</w:t></w:r></w:p>
  </w:body>
</w:document>`)

		format, blocks, err := Default().Extract(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, FormatDOCX, format)
		assert.Equal(t, []string{"Milk chocolate", "Dark chocolate"}, blocks)
	})

	t.Run("not a zip", func(t *testing.T) {
		path := writeFile(t, "broken.docx", "definitely not a zip archive")
		_, err := NewDOCX().Extract(context.Background(), path)
		assert.ErrorIs(t, err, domain.ErrExtraction)
	})

	t.Run("malformed xml", func(t *testing.T) {
		path := writeDOCX(t, `<w:document><w:body><w:p>`)
		_, err := NewDOCX().Extract(context.Background(), path)
		assert.ErrorIs(t, err, domain.ErrExtraction)
	})
}

type mockRunner struct {
	output []byte
	err    error
	args   []string
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.args = append([]string{name}, args...)
	return m.output, m.err
}

func TestPDF(t *testing.T) {
	path := writeFile(t, "bars.pdf", "%PDF-1.4 fake")

	t.Run("pages", func(t *testing.T) {
		runner := &mockRunner{output: []byte("Page one\n\fPage two\n\f\f")}
		blocks, err := NewPDFWithRunner(runner).Extract(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, []string{"Page one\n", "Page two\n"}, blocks)
		assert.Equal(t, "pdftotext", runner.args[0])
		assert.Equal(t, "-", runner.args[len(runner.args)-1])
	})

	t.Run("runner failure", func(t *testing.T) {
		runner := &mockRunner{err: errors.New("exit status 1")}
		_, err := NewPDFWithRunner(runner).Extract(context.Background(), path)
		assert.ErrorIs(t, err, domain.ErrExtraction)
		assert.Contains(t, err.Error(), "pdftotext failed")
	})

	t.Run("tool missing", func(t *testing.T) {
		runner := &mockRunner{err: ErrPDFToolNotFound}
		_, err := NewPDFWithRunner(runner).Extract(context.Background(), path)
		assert.ErrorIs(t, err, domain.ErrExtraction)
		assert.ErrorIs(t, err, ErrPDFToolNotFound)
		assert.Contains(t, err.Error(), "poppler")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewPDFWithRunner(&mockRunner{}).Extract(context.Background(), filepath.Join(t.TempDir(), "none.pdf"))
		assert.ErrorIs(t, err, domain.ErrExtraction)
	})
}

func TestXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.xlsx")
	f := excelize.NewFile()
	cells := map[string]string{
		"A1": "Name", "B1": "Cocoa",
		"A2": "Tony's", "B2": "32%",
		"A4": "Lindt", "B4": "70%",
		"A5": "Milka",
	}
	for cell, v := range cells {
		require.NoError(t, f.SetCellValue("Sheet1", cell, v))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	format, blocks, err := Default().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, format)
	assert.Equal(t, []string{
		"Name: Tony's\nCocoa: 32%",
		"Name: Lindt\nCocoa: 70%",
		"Name: Milka\nCocoa: ",
	}, blocks)
}

func TestXLSX_Corrupt(t *testing.T) {
	path := writeFile(t, "broken.xlsx", "nope")
	_, err := NewXLSX().Extract(context.Background(), path)
	assert.ErrorIs(t, err, domain.ErrExtraction)
}
