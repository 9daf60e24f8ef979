package lyrics

import (
	"sort"
	"time"
)

const (
	// maxLineHold caps how long a line stays up before the gap to the
	// next line would keep it visible indefinitely.
	maxLineHold = 15 * time.Second

	// lastLineHold is how long the final line stays up.
	lastLineHold = 10 * time.Second
)

// Timeline maps playback positions to the lyrics line to display.
// A configured offset shifts every timestamp, positive values showing
// lines later.
type Timeline struct {
	lines  []Line
	offset time.Duration
}

// NewTimeline builds a timeline from fetched lines. The offset is in
// seconds and is expected to be pre-clamped by the config layer.
func NewTimeline(lines []Line, offsetSeconds int) *Timeline {
	sorted := make([]Line, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Seconds < sorted[j].Seconds
	})
	return &Timeline{
		lines:  sorted,
		offset: time.Duration(offsetSeconds) * time.Second,
	}
}

// Empty reports whether the timeline has no lines.
func (t *Timeline) Empty() bool {
	return len(t.lines) == 0
}

// LineAt returns the text to display at the given playback position.
// The current line is the last one whose shifted timestamp has passed.
// Lines clear after the gap to the next line, capped at 15 seconds;
// the last line clears after 10 seconds.
func (t *Timeline) LineAt(position time.Duration) (string, bool) {
	idx := t.indexAt(position)
	if idx < 0 {
		return "", false
	}

	start := time.Duration(t.lines[idx].Seconds)*time.Second + t.offset
	elapsed := position - start

	hold := lastLineHold
	if idx < len(t.lines)-1 {
		gap := time.Duration(t.lines[idx+1].Seconds-t.lines[idx].Seconds) * time.Second
		hold = gap
		if hold > maxLineHold {
			hold = maxLineHold
		}
	}

	if elapsed >= hold {
		return "", false
	}
	return t.lines[idx].Text, true
}

// indexAt returns the index of the current line, or -1 before the
// first line.
func (t *Timeline) indexAt(position time.Duration) int {
	idx := -1
	for i, line := range t.lines {
		start := time.Duration(line.Seconds)*time.Second + t.offset
		if position >= start {
			idx = i
		} else {
			break
		}
	}
	return idx
}
