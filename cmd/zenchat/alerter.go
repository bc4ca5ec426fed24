package main

import (
	"fmt"
	"io"
	"sync"
)

// terminalAlerter rings the terminal bell and rewrites the window title while
// an alert is active. Start replaces any running alert; Stop restores the
// title.
type terminalAlerter struct {
	mu  sync.Mutex
	out io.Writer
}

func newTerminalAlerter(out io.Writer) *terminalAlerter {
	return &terminalAlerter{out: out}
}

func (a *terminalAlerter) Start(conversationID, preview string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if preview == "" {
		preview = "New message"
	}
	fmt.Fprint(a.out, "\a")
	fmt.Fprintf(a.out, "\033]0;● %s\007", preview)
}

func (a *terminalAlerter) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprint(a.out, "\033]0;zenchat\007")
}
