// Package pdftext extracts plain text from PDF files. The production
// implementation shells out to poppler's pdftotext; the Runner seam lets
// tests substitute a fake without a poppler installation.
package pdftext

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// ErrToolNotFound is returned when the pdftotext binary is not on PATH.
var ErrToolNotFound = errors.New("pdftotext not found in PATH (install poppler-utils)")

// Extractor produces the plain text of a PDF file.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Runner executes an external command and returns its combined stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, ErrToolNotFound
	}
	return exec.CommandContext(ctx, name, args...).Output()
}

// Poppler extracts text via the pdftotext command line tool.
type Poppler struct {
	runner Runner
}

// NewPoppler returns a pdftotext-backed extractor.
func NewPoppler() *Poppler {
	return &Poppler{runner: execRunner{}}
}

// NewPopplerWithRunner returns an extractor using a custom runner.
func NewPopplerWithRunner(r Runner) *Poppler {
	return &Poppler{runner: r}
}

// Extract runs pdftotext over the file and returns the text of all pages
// concatenated in order, as pdftotext emits them.
func (p *Poppler) Extract(ctx context.Context, path string) (string, error) {
	out, err := p.runner.Run(ctx, "pdftotext", "-enc", "UTF-8", path, "-")
	if err != nil {
		if errors.Is(err, ErrToolNotFound) {
			return "", err
		}
		return "", fmt.Errorf("pdftotext %s: %w", path, err)
	}
	return string(out), nil
}

// Verify interface implementation at compile time.
var _ Extractor = (*Poppler)(nil)
