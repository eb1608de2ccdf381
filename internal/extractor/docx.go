package extractor

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// DOCX extracts body paragraphs from Word documents.
type DOCX struct{}

// NewDOCX creates a DOCX extractor.
func NewDOCX() *DOCX { return &DOCX{} }

// Format returns FormatDOCX.
func (d *DOCX) Format() Format { return FormatDOCX }

// Extract returns the text of every non-blank body paragraph.
func (d *DOCX) Extract(_ context.Context, path string) ([]string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, extractionErr(path, err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, extractionErr(path, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, extractionErr(path, err)
		}
		paragraphs, err := parseDocumentXML(content)
		if err != nil {
			return nil, extractionErr(path, err)
		}
		return paragraphs, nil
	}
	return nil, extractionErr(path, errors.New("word/document.xml not found"))
}

type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

func parseDocumentXML(content []byte) ([]string, error) {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, err
	}

	var out []string
	for _, para := range doc.Body.Paragraphs {
		var b strings.Builder
		for _, r := range para.Runs {
			for _, t := range r.Text {
				b.WriteString(t.Content)
			}
		}
		if strings.TrimSpace(b.String()) == "" {
			continue
		}
		out = append(out, b.String())
	}
	return out, nil
}
