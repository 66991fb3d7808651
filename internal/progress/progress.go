package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Tracker renders a one-line spinner with file and byte counters while the
// hashing phase runs.
type Tracker struct {
	total     int
	current   int
	bytes     int64
	message   string
	out       io.Writer
	mu        sync.Mutex
	startTime time.Time
	done      chan struct{}
	finished  chan struct{}
}

func NewTracker(total int, message string) *Tracker {
	return newTracker(total, message, os.Stdout)
}

func newTracker(total int, message string, out io.Writer) *Tracker {
	p := &Tracker{
		total:     total,
		message:   message,
		out:       out,
		startTime: time.Now(),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
	}
	go p.render()
	return p
}

func (p *Tracker) render() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	spinner := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	frame := 0

	for {
		select {
		case <-p.done:
			p.mu.Lock()
			elapsed := time.Since(p.startTime)
			fmt.Fprintf(p.out, "\r✓ %s (%d files, %s, %s)          \n",
				p.message, p.total, humanize.Bytes(uint64(p.bytes)),
				elapsed.Round(time.Millisecond))
			p.mu.Unlock()
			close(p.finished)
			return

		case <-ticker.C:
			p.mu.Lock()
			if p.total > 0 {
				percent := float64(p.current) / float64(p.total) * 100
				fmt.Fprintf(p.out, "\r%s %s [%d/%d] %.0f%% %s  ",
					spinner[frame%len(spinner)],
					p.message,
					p.current,
					p.total,
					percent,
					humanize.Bytes(uint64(p.bytes)))
			} else {
				fmt.Fprintf(p.out, "\r%s %s [%d files]  ",
					spinner[frame%len(spinner)],
					p.message,
					p.current)
			}
			p.mu.Unlock()
			frame++
		}
	}
}

func (p *Tracker) Increment() {
	p.mu.Lock()
	p.current++
	p.mu.Unlock()
}

func (p *Tracker) AddBytes(n int64) {
	p.mu.Lock()
	p.bytes += n
	p.mu.Unlock()
}

// Finish stops the render loop and returns once the summary line is written.
func (p *Tracker) Finish() {
	close(p.done)
	<-p.finished
}
