package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeldWriter_BuffersUntilRelease(t *testing.T) {
	var out bytes.Buffer
	h := newHeldWriter(&out)

	_, err := h.Write([]byte("before\n"))
	require.NoError(t, err)

	h.Hold()
	_, err = h.Write([]byte("during\n"))
	require.NoError(t, err)
	assert.Equal(t, "before\n", out.String())

	require.NoError(t, h.Release())
	assert.Equal(t, "before\nduring\n", out.String())

	_, err = h.Write([]byte("after\n"))
	require.NoError(t, err)
	assert.Equal(t, "before\nduring\nafter\n", out.String())
	assert.NoError(t, h.Release())
}

func TestNew_TerminalViewWritesToUnwrappedStderr(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "stderr"))
	require.NoError(t, err)
	defer f.Close()

	app := New(&bytes.Buffer{}, f)

	// bubbletea only queries the window size when its output exposes a
	// file descriptor.
	assert.Same(t, f, app.term)
	_, ok := app.term.(interface{ Fd() uintptr })
	assert.True(t, ok)

	app.stderr.Hold()
	app.logger.Info().Msg("retrying compile")
	info, err := f.Stat()
	require.NoError(t, err)
	assert.Zero(t, info.Size(), "logs must wait while the terminal view is up")

	require.NoError(t, app.stderr.Release())
	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	assert.Contains(t, string(data), "retrying compile")
}
