package pdftext

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner is a test double for Runner.
type fakeRunner struct {
	output []byte
	err    error
	name   string
	args   []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.name = name
	f.args = args
	return f.output, f.err
}

func TestExtract(t *testing.T) {
	runner := &fakeRunner{output: []byte("sida ett\fsida två\n")}
	p := NewPopplerWithRunner(runner)

	text, err := p.Extract(context.Background(), "/tmp/doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "sida ett\fsida två\n", text)

	assert.Equal(t, "pdftotext", runner.name)
	assert.Contains(t, runner.args, "/tmp/doc.pdf")
	assert.Contains(t, runner.args, "-")
}

func TestExtract_RunnerError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("exit status 1")}
	p := NewPopplerWithRunner(runner)

	_, err := p.Extract(context.Background(), "/tmp/doc.pdf")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "doc.pdf")
}

func TestExtract_ToolNotFound(t *testing.T) {
	runner := &fakeRunner{err: ErrToolNotFound}
	p := NewPopplerWithRunner(runner)

	_, err := p.Extract(context.Background(), "/tmp/doc.pdf")
	assert.ErrorIs(t, err, ErrToolNotFound)
}
