package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// indicatorDelay is how long a turn must stay silent before the thinking
// indicator appears at all; fast responses never see it.
const indicatorDelay = 500 * time.Millisecond

// indicator is the delayed thinking spinner. It runs as an independent
// goroutine that owns no conversation or permission state and communicates
// with the session only through its stop channel.
type indicator struct {
	done chan struct{}
	out  io.Writer
}

func startIndicator(out io.Writer) *indicator {
	ind := &indicator{done: make(chan struct{}), out: out}
	go ind.run()
	return ind
}

func (i *indicator) run() {
	frames := spinner.Dot.Frames
	interval := spinner.Dot.FPS
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	delay := time.NewTimer(indicatorDelay)
	defer delay.Stop()
	select {
	case <-i.done:
		return
	case <-delay.C:
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	frame := 0
	for {
		fmt.Fprintf(i.out, "\r%s thinking…", frames[frame%len(frames)])
		frame++
		select {
		case <-i.done:
			fmt.Fprint(i.out, "\r\x1b[K")
			return
		case <-ticker.C:
		}
	}
}

// stop cancels the indicator and clears its line. Safe to call once.
func (i *indicator) stop() {
	close(i.done)
}
