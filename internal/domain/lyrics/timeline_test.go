package lyrics

import (
	"testing"
	"time"
)

func sampleLines() []Line {
	return []Line{
		{Seconds: 10, Text: "first"},
		{Seconds: 14, Text: "second"},
		{Seconds: 40, Text: "third"}, // 26s gap before this one
		{Seconds: 45, Text: "last"},
	}
}

func TestLineAtPicksLastPassedLine(t *testing.T) {
	tl := NewTimeline(sampleLines(), 0)

	tests := []struct {
		pos     time.Duration
		want    string
		visible bool
	}{
		{5 * time.Second, "", false},   // before the first line
		{10 * time.Second, "first", true},
		{13 * time.Second, "first", true},
		{14 * time.Second, "second", true},
		{28 * time.Second, "second", true}, // 14s into a 26s gap, under the cap
		{29 * time.Second, "", false},      // 15s cap reached, cleared
		{40 * time.Second, "third", true},
		{46 * time.Second, "last", true},
		{54 * time.Second, "last", true},
		{55 * time.Second, "", false}, // last line clears after 10s
	}

	for _, tt := range tests {
		got, visible := tl.LineAt(tt.pos)
		if got != tt.want || visible != tt.visible {
			t.Errorf("LineAt(%v) = (%q, %v), want (%q, %v)",
				tt.pos, got, visible, tt.want, tt.visible)
		}
	}
}

func TestLineAtOffsetShiftsTimestamps(t *testing.T) {
	// +2s offset: lines appear two seconds later.
	tl := NewTimeline(sampleLines(), 2)

	if got, ok := tl.LineAt(11 * time.Second); ok {
		t.Errorf("expected no line at 11s with +2s offset, got %q", got)
	}
	if got, _ := tl.LineAt(12 * time.Second); got != "first" {
		t.Errorf("LineAt(12s) = %q, want first", got)
	}

	// -2s offset: lines appear two seconds earlier.
	tl = NewTimeline(sampleLines(), -2)
	if got, _ := tl.LineAt(8 * time.Second); got != "first" {
		t.Errorf("LineAt(8s) with -2s offset = %q, want first", got)
	}
}

func TestLineAtShortGapClearsWithNextLine(t *testing.T) {
	// 4s gap between first and second: first stays the full gap, then
	// second takes over with no blank in between.
	tl := NewTimeline(sampleLines(), 0)

	if got, _ := tl.LineAt(13900 * time.Millisecond); got != "first" {
		t.Errorf("expected first just before the next line, got %q", got)
	}
	if got, _ := tl.LineAt(14 * time.Second); got != "second" {
		t.Errorf("expected second at its timestamp, got %q", got)
	}
}

func TestTimelineUnsortedInput(t *testing.T) {
	tl := NewTimeline([]Line{
		{Seconds: 30, Text: "b"},
		{Seconds: 10, Text: "a"},
	}, 0)

	if got, _ := tl.LineAt(12 * time.Second); got != "a" {
		t.Errorf("LineAt(12s) = %q, want a", got)
	}
	if got, _ := tl.LineAt(31 * time.Second); got != "b" {
		t.Errorf("LineAt(31s) = %q, want b", got)
	}
}

func TestTimelineEmpty(t *testing.T) {
	tl := NewTimeline(nil, 0)
	if !tl.Empty() {
		t.Error("expected empty timeline")
	}
	if _, ok := tl.LineAt(time.Minute); ok {
		t.Error("empty timeline should never yield a line")
	}
}
