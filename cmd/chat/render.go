package main

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	assistantLabel = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	userLabel      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#AFAFAF"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
)

// termRenderer prints the conversation as plain text. Deltas carry the full
// reply so far; only the unseen suffix is written. Methods may be called
// from the Send goroutine and the signal handler at the same time.
type termRenderer struct {
	out    io.Writer
	styled bool

	mu      sync.Mutex
	printed int
}

// newTermRenderer styles output only when out is a terminal.
func newTermRenderer(out io.Writer) *termRenderer {
	r := &termRenderer{out: out}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		r.styled = true
	}
	return r
}

func (r *termRenderer) style(s lipgloss.Style, text string) string {
	if !r.styled {
		return text
	}
	return s.Render(text)
}

func (r *termRenderer) prompt() {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprint(r.out, r.style(userLabel, "you>")+" ")
}

func (r *termRenderer) Greeting(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "%s %s\n", r.style(assistantLabel, "assistant>"), text)
}

func (r *termRenderer) UserTurn(string) {}

func (r *termRenderer) AssistantPending() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.printed = 0
	fmt.Fprint(r.out, r.style(assistantLabel, "assistant>")+" ")
}

func (r *termRenderer) AssistantDelta(full string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(full) < r.printed {
		r.printed = 0
	}
	fmt.Fprint(r.out, full[r.printed:])
	r.printed = len(full)
}

func (r *termRenderer) AssistantError(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.printed > 0 {
		fmt.Fprintln(r.out)
	}
	fmt.Fprint(r.out, r.style(errorStyle, "[error] "+message))
	r.printed = 0
}

func (r *termRenderer) Idle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out)
}

// Interrupted marks the reply as cut short by Ctrl-C.
func (r *termRenderer) Interrupted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprint(r.out, " [interrupted]")
}
