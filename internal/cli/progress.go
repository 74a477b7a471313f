package cli

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// ProgressReporter draws a progress bar from engine progress callbacks.
type ProgressReporter struct {
	writer      io.Writer
	bar         *progressbar.ProgressBar
	description string
	mu          sync.Mutex
}

// NewProgressReporter creates a reporter writing to w.
func NewProgressReporter(w io.Writer, description string) *ProgressReporter {
	return &ProgressReporter{writer: w, description: description}
}

// Report sets the bar to done out of total. It is safe for concurrent use.
func (r *ProgressReporter) Report(done, total int) {
	if total <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bar == nil || r.bar.GetMax() != total {
		r.bar = r.newBar(total)
	}
	if err := r.bar.Set(done); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// Finish completes the bar if one was started.
func (r *ProgressReporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bar == nil || r.bar.IsFinished() {
		return
	}
	if err := r.bar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
}

func (r *ProgressReporter) newBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]"+r.description+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(r.writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}
