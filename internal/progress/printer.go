package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Printer writes progress lines. On a terminal each line overwrites the
// previous one; otherwise lines are appended.
type Printer struct {
	mu          sync.Mutex
	w           io.Writer
	interactive bool
	lastLen     int
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer, interactive bool) *Printer {
	return &Printer{w: w, interactive: interactive}
}

// Print renders one snapshot.
func (p *Printer) Print(s Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	line := s.Line()
	if !p.interactive {
		fmt.Fprintln(p.w, line)
		return
	}

	pad := ""
	if n := p.lastLen - len(line); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	fmt.Fprint(p.w, "\r"+line+pad)
	p.lastLen = len(line)
}

// Finish ends an overwritten line so later output starts on a fresh one.
func (p *Printer) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.interactive && p.lastLen > 0 {
		fmt.Fprintln(p.w)
		p.lastLen = 0
	}
}
