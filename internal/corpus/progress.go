package corpus

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// Progress reports hashing/dedup progress for one corpus, rendering a
// terminal progress bar when attached to an interactive TTY and staying
// silent otherwise (CI logs, piped output). A single instance tracks one
// corpus at a time; calling Start again replaces the bar to track the next
// corpus.
type Progress struct {
	mu          sync.Mutex
	writer      io.Writer
	bar         *progressbar.ProgressBar
	interactive bool
}

// NewProgress creates a Progress reporter writing to stderr.
func NewProgress() *Progress {
	return &Progress{
		writer:      os.Stderr,
		interactive: isInteractiveEnvironment(os.Stderr),
	}
}

// Start begins tracking total documents under description (typically the
// corpus name). A discard-writer bar is created when not interactive, so
// callers can call Add/Finish unconditionally without branching on TTY
// state.
func (p *Progress) Start(description string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	writer := p.writer
	if !p.interactive {
		writer = io.Discard
	}

	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(50),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetWriter(writer),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(writer)
		}),
	)
}

// Add advances the bar by n documents.
func (p *Progress) Add(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		_ = p.bar.Add(n)
	}
}

// Finish completes the bar.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// IsInteractive reports whether progress bars are being rendered.
func (p *Progress) IsInteractive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.interactive
}

func isInteractiveEnvironment(f *os.File) bool {
	if os.Getenv("CI") != "" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
