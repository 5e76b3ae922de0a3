package pattern

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/nikhilbhatia/commitcanvas/internal/pkg/errors"
)

// Grid dimensions mirror a one-year contribution graph: one column per
// week, one row per weekday (Sunday first).
const (
	GridWeeks = 53
	GridDays  = 7
)

// Grid holds intensity values 0-4 per cell.
type Grid [GridDays][GridWeeks]int

// Alignment positions the rendered text within the 53-column grid.
type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

// Options controls text rendering.
type Options struct {
	Intensity int       // 1-4, visual darkness of lit cells
	Alignment Alignment // defaults to center
	Spacing   int       // blank columns between glyphs, defaults to 1
}

// DatedCommit is one commit the mapper wants fabricated: a timestamp on a
// grid cell's calendar date plus the cell's intensity.
type DatedCommit struct {
	Date      time.Time
	Intensity int
}

// intensityCounts maps an intensity level to its [min, max] commit count.
var intensityCounts = map[int][2]int{
	1: {1, 2},
	2: {3, 4},
	3: {5, 7},
	4: {8, 12},
}

// RenderText lays out text as 5x7 glyphs on a contribution grid.
// Input is uppercased; characters outside [A-Z0-9 ] are rejected, as is
// any text whose rendered width exceeds the 53 available columns.
func RenderText(text string, opts Options) (*Grid, error) {
	text = strings.ToUpper(strings.TrimSpace(text))
	if text == "" {
		return nil, errors.ValidationError("pattern text must not be empty", nil)
	}

	if opts.Intensity < 1 || opts.Intensity > 4 {
		return nil, errors.ValidationError("intensity must be between 1 and 4", map[string]int{"intensity": opts.Intensity})
	}
	if opts.Spacing <= 0 {
		opts.Spacing = 1
	}
	if opts.Alignment == "" {
		opts.Alignment = AlignCenter
	}

	for _, ch := range text {
		if _, ok := font[ch]; !ok {
			return nil, errors.ValidationError(
				fmt.Sprintf("unsupported character %q: only A-Z, 0-9 and space are drawable", ch), nil)
		}
	}

	n := len(text)
	width := n*GlyphWidth + (n-1)*opts.Spacing
	if width > GridWeeks {
		return nil, errors.ValidationError(
			fmt.Sprintf("rendered width %d exceeds the %d-week grid", width, GridWeeks),
			map[string]int{"width": width, "max": GridWeeks})
	}

	var offset int
	switch opts.Alignment {
	case AlignLeft:
		offset = 0
	case AlignRight:
		offset = GridWeeks - width
	case AlignCenter:
		offset = (GridWeeks - width) / 2
	default:
		return nil, errors.ValidationError(fmt.Sprintf("unknown alignment %q", opts.Alignment), nil)
	}

	grid := &Grid{}
	col := offset
	for _, ch := range text {
		glyph := font[ch]
		for row := 0; row < GlyphHeight; row++ {
			for x := 0; x < GlyphWidth; x++ {
				if glyph[row][x] == '1' {
					grid[row][col+x] = opts.Intensity
				}
			}
		}
		col += GlyphWidth + opts.Spacing
	}

	return grid, nil
}

// GridToDates converts a grid into the ordered list of commit timestamps
// that will paint it. The window is anchored so endDate is the most recent
// column; the start is rewound to the preceding Sunday so week columns
// align to calendar weeks. Each non-zero cell emits a number of commits in
// the cell's intensity range, at pseudo-random times between 09:00 and
// 19:00 so the timestamps do not look machine-stamped. Output is sorted
// ascending; callers must apply them in order to keep a valid ancestry
// chain on the remote branch.
func GridToDates(grid *Grid, endDate time.Time) []DatedCommit {
	end := time.Date(endDate.Year(), endDate.Month(), endDate.Day(), 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, 0, -(GridWeeks*GridDays - 1))
	// Rewind to Sunday so column 0 starts a calendar week.
	start = start.AddDate(0, 0, -int(start.Weekday()))

	var out []DatedCommit
	for week := 0; week < GridWeeks; week++ {
		for day := 0; day < GridDays; day++ {
			intensity := grid[day][week]
			if intensity == 0 {
				continue
			}
			date := start.AddDate(0, 0, week*GridDays+day)
			if date.After(end) {
				continue
			}
			for i := 0; i < commitCountFor(intensity); i++ {
				out = append(out, DatedCommit{
					Date:      date.Add(randomDayTime()),
					Intensity: intensity,
				})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// commitCountFor picks a commit count inside the intensity's range.
func commitCountFor(intensity int) int {
	bounds, ok := intensityCounts[intensity]
	if !ok {
		return 1
	}
	return bounds[0] + rand.Intn(bounds[1]-bounds[0]+1)
}

// randomDayTime returns an offset between 09:00 and 19:00.
func randomDayTime() time.Duration {
	const windowStart = 9
	const windowHours = 10
	secs := rand.Intn(windowHours * 3600)
	return time.Duration(windowStart)*time.Hour + time.Duration(secs)*time.Second
}

// CountRange exposes the commit-count bounds for an intensity level.
func CountRange(intensity int) (min, max int, ok bool) {
	bounds, found := intensityCounts[intensity]
	if !found {
		return 0, 0, false
	}
	return bounds[0], bounds[1], true
}
