package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanWindowsTwentyMinuteLecture(t *testing.T) {
	// 20 minutes, 8-minute chunks, 30-second overlap.
	windows := planWindows(1200, 480, 30, 10, 50)

	require.Len(t, windows, 3)
	assert.Equal(t, window{start: 0, end: 480}, windows[0])
	assert.Equal(t, window{start: 450, end: 930}, windows[1])
	assert.Equal(t, window{start: 900, end: 1200}, windows[2])
}

func TestPlanWindowsCoversTimelineWithoutGaps(t *testing.T) {
	cases := []struct {
		name    string
		total   float64
		chunk   float64
		overlap float64
	}{
		{"exact multiple", 960, 480, 30},
		{"ragged end", 1000, 480, 30},
		{"long lecture", 5400, 480, 30},
		{"small overlap", 2000, 300, 5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			windows := planWindows(tc.total, tc.chunk, tc.overlap, 10, 50)
			require.NotEmpty(t, windows)

			assert.Equal(t, 0.0, windows[0].start)
			for i, w := range windows {
				assert.Less(t, w.start, w.end, "window %d must have positive duration", i)
				assert.LessOrEqual(t, w.end, tc.total, "window %d must not exceed total", i)
				if i > 0 {
					// Each window starts before the previous one ends, so
					// the timeline has no gaps.
					assert.Less(t, windows[i].start, windows[i-1].end, "gap before window %d", i)
					assert.Equal(t, windows[i-1].end-tc.overlap, windows[i].start)
				}
			}
			assert.Equal(t, tc.total, windows[len(windows)-1].end)
		})
	}
}

func TestPlanWindowsDropsShortTrailingChunk(t *testing.T) {
	// Second window would span [475, 483): 8 seconds, below the 10-second
	// minimum, so only the first window survives.
	windows := planWindows(483, 480, 5, 10, 50)

	require.Len(t, windows, 1)
	assert.Equal(t, window{start: 0, end: 480}, windows[0])
}

func TestPlanWindowsRespectsChunkCap(t *testing.T) {
	windows := planWindows(100000, 480, 30, 10, 50)
	assert.Len(t, windows, 50)
}

func TestPlanWindowsSingleWindowForShortInput(t *testing.T) {
	windows := planWindows(120, 480, 30, 10, 50)

	require.Len(t, windows, 1)
	assert.Equal(t, window{start: 0, end: 120}, windows[0])
}

func TestPlanWindowsStallsAreBoundedWhenOverlapTooLarge(t *testing.T) {
	// Overlap equal to the chunk duration would never advance; the planner
	// must terminate regardless.
	windows := planWindows(1000, 100, 100, 10, 50)
	assert.NotEmpty(t, windows)
	assert.LessOrEqual(t, len(windows), 50)
}

func TestNewChunkerDisablesInvalidOverlap(t *testing.T) {
	c := NewChunker(time.Minute, 2*time.Minute, 10*time.Second, 50)
	assert.Equal(t, time.Duration(0), c.overlap)

	c = NewChunker(8*time.Minute, 30*time.Second, 10*time.Second, 50)
	assert.Equal(t, 30*time.Second, c.overlap)
}
