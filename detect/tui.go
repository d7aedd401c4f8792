package detect

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nsf/termbox-go"
)

const (
	colDef    = termbox.ColorDefault
	colWhite  = termbox.ColorWhite
	colRed    = termbox.ColorRed
	colGreen  = termbox.ColorGreen
	colYellow = termbox.ColorYellow
	colCyan   = termbox.ColorCyan
)

// TUIState is the live state a running scan reports to the dashboard:
// how many of the c channels FFTMulti has finished, how many workers are
// currently occupied, and the highest-correlation detections seen so far.
type TUIState struct {
	mu sync.Mutex

	totalChannels int
	doneChannels  int
	activeWorkers int
	topN          int
	detections    []Event
	exit          bool
}

// NewTUIState returns a TUIState tracking a scan of totalChannels
// channels, keeping the topN highest-correlation detections for display.
func NewTUIState(totalChannels, topN int) *TUIState {
	return &TUIState{totalChannels: totalChannels, topN: topN}
}

// ChannelStarted marks one more worker as occupied.
func (s *TUIState) ChannelStarted() {
	s.mu.Lock()
	s.activeWorkers++
	s.mu.Unlock()
}

// ChannelFinished marks a worker free and one more channel scanned.
func (s *TUIState) ChannelFinished() {
	s.mu.Lock()
	s.activeWorkers--
	s.doneChannels++
	s.mu.Unlock()
}

// Record folds ev into the rolling top-N list, keeping it sorted by
// descending peak correlation.
func (s *TUIState) Record(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.detections = append(s.detections, ev)
	sort.Slice(s.detections, func(i, j int) bool {
		return s.detections[i].PeakValue > s.detections[j].PeakValue
	})

	if len(s.detections) > s.topN {
		s.detections = s.detections[:s.topN]
	}
}

func (s *TUIState) snapshot() (total, done, workers int, top []Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	top = make([]Event, len(s.detections))
	copy(top, s.detections)

	return s.totalChannels, s.doneChannels, s.activeWorkers, top
}

// RunTUI drives the console dashboard until the user quits ('q' or Esc).
// It only reads from state; a scan running concurrently on other
// goroutines is expected to call ChannelStarted/ChannelFinished/Record as
// it progresses.
func RunTUI(state *TUIState) error {
	if err := termbox.Init(); err != nil {
		return fmt.Errorf("detect: initializing tui: %w", err)
	}
	defer termbox.Close()

	termbox.SetInputMode(termbox.InputEsc)

	eventQueue := make(chan termbox.Event)

	go func() {
		for {
			eventQueue <- termbox.PollEvent()
		}
	}()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	drawScan(state)

	for {
		select {
		case ev := <-eventQueue:
			switch ev.Type {
			case termbox.EventKey:
				if ev.Key == termbox.KeyEsc || ev.Ch == 'q' {
					return nil
				}
			case termbox.EventResize:
				drawScan(state)
			}
		case <-ticker.C:
			drawScan(state)
		}
	}
}

func drawScan(state *TUIState) {
	_ = termbox.Clear(colDef, colDef)

	total, done, workers, top := state.snapshot()

	printTB(0, 0, colCyan, colDef, "ncc-scan — live detection monitor")
	printTB(0, 1, colDef, colDef, "'q' or Esc to quit")
	printTB(0, 2, colDef, colDef, "─────────────────────────────────────────────")

	progress := fmt.Sprintf("Channels: %d/%d scanned    Workers busy: %d", done, total, workers)
	printTB(0, 4, colWhite, colDef, progress)

	drawProgressBar(5, done, total)

	printTB(0, 7, colYellow, colDef, "Top detections:")

	for i, ev := range top {
		col := colGreen
		if ev.FlaggedBad {
			col = colRed
		}

		line := fmt.Sprintf("%2d. %-16s %-8s %-6s lag=%-8d peak=%.4f",
			i+1, ev.Template, ev.Station, ev.Channel, ev.PeakLag, ev.PeakValue)
		printTB(2, 9+i, col, colDef, line)
	}

	termbox.Flush()
}

func drawProgressBar(yPos, done, total int) {
	const barWidth = 50

	ratio := 0.0
	if total > 0 {
		ratio = float64(done) / float64(total)
	}

	filled := int(ratio * barWidth)

	startX := 0
	for i := range barWidth {
		barChar := '░'
		if i < filled {
			barChar = '█'
		}

		termbox.SetCell(startX+i, yPos, barChar, colGreen, colDef)
	}
}

func printTB(x, y int, fg, bg termbox.Attribute, msg string) {
	for _, c := range msg {
		termbox.SetCell(x, y, c, fg, bg)
		x++
	}
}
