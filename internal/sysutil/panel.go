package sysutil

import (
	"strings"
	"sync"
)

// PanelBuffer keeps the most recent log lines for the UI's log panel.
type PanelBuffer struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

// NewPanelBuffer creates a ring holding at most size lines.
func NewPanelBuffer(size int) *PanelBuffer {
	if size <= 0 {
		size = 1
	}
	return &PanelBuffer{lines: make([]string, size)}
}

// Write stores one encoded entry. zap hands over exactly one entry per call.
func (p *PanelBuffer) Write(b []byte) (int, error) {
	line := strings.TrimRight(string(b), "\r\n")
	p.mu.Lock()
	p.lines[p.next] = line
	p.next = (p.next + 1) % len(p.lines)
	if p.next == 0 {
		p.full = true
	}
	p.mu.Unlock()
	return len(b), nil
}

// Sync is a no-op.
func (p *PanelBuffer) Sync() error { return nil }

// Lines returns the buffered lines, oldest first.
func (p *PanelBuffer) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.full {
		out := make([]string, p.next)
		copy(out, p.lines[:p.next])
		return out
	}
	out := make([]string, 0, len(p.lines))
	out = append(out, p.lines[p.next:]...)
	out = append(out, p.lines[:p.next]...)
	return out
}
