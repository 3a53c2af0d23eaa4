package main

import (
	"bytes"
	"io"
	"sync"
)

// heldWriter serializes every write to stderr. While held, writes are
// buffered so the terminal view owns the screen; Release replays them.
type heldWriter struct {
	mu   sync.Mutex
	out  io.Writer
	held *bytes.Buffer
}

func newHeldWriter(out io.Writer) *heldWriter {
	return &heldWriter{out: out}
}

func (h *heldWriter) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.held != nil {
		return h.held.Write(p)
	}
	return h.out.Write(p)
}

// Hold starts buffering writes.
func (h *heldWriter) Hold() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.held == nil {
		h.held = &bytes.Buffer{}
	}
}

// Release writes out everything buffered since Hold and stops buffering.
func (h *heldWriter) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.held == nil {
		return nil
	}
	_, err := h.held.WriteTo(h.out)
	h.held = nil
	return err
}
