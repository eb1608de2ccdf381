package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrPDFToolNotFound indicates pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, ErrPDFToolNotFound
	}
	return exec.CommandContext(ctx, name, args...).Output()
}

// PDF extracts page text with poppler's pdftotext.
type PDF struct {
	runner CommandRunner
}

// NewPDF creates a PDF extractor that runs pdftotext.
func NewPDF() *PDF { return &PDF{runner: execRunner{}} }

// NewPDFWithRunner creates a PDF extractor with a custom command runner.
func NewPDFWithRunner(runner CommandRunner) *PDF { return &PDF{runner: runner} }

// Format returns FormatPDF.
func (p *PDF) Format() Format { return FormatPDF }

// Extract returns one block per page that has any text. pdftotext
// terminates every page with a form feed.
func (p *PDF) Extract(ctx context.Context, path string) ([]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, extractionErr(path, err)
	}
	out, err := p.runner.Run(ctx, "pdftotext", "-enc", "UTF-8", path, "-")
	if err != nil {
		if errors.Is(err, ErrPDFToolNotFound) {
			return nil, extractionErr(path, fmt.Errorf("%w (%s)", err, InstallInstructions()))
		}
		return nil, extractionErr(path, fmt.Errorf("pdftotext failed: %w", err))
	}

	var pages []string
	for _, page := range strings.Split(string(out), "\f") {
		if page == "" {
			continue
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// InstallInstructions describes how to install pdftotext.
func InstallInstructions() string {
	return "install poppler: brew install poppler | apt install poppler-utils"
}
