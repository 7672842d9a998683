package runner

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// progress abstracts the interactive bar so non-TTY runs and tests pay
// nothing for it.
type progress interface {
	Add(n int)
	Finish()
}

type noProgress struct{}

func (noProgress) Add(int) {}

func (noProgress) Finish() {}

type barProgress struct {
	bar *progressbar.ProgressBar
}

func (p barProgress) Add(n int) {
	_ = p.bar.Add(n)
}

func (p barProgress) Finish() {
	_ = p.bar.Finish()
}

// newProgress returns an interactive bar over the unique-name count when
// enabled and stderr is a terminal, and a no-op otherwise.
func newProgress(total int, enabled bool) progress {
	if !enabled || total <= 0 {
		return noProgress{}
	}
	if !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		return noProgress{}
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Resolving NCBI TaxIDs"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	return barProgress{bar: bar}
}
