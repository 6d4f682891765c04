package tooth

import (
	"sort"
	"strconv"
	"strings"
)

// Quadrants holds tooth numbers bucketed by FDI quadrant, each bucket ascending.
type Quadrants struct {
	UpperRight []int `json:"upper_right"`
	UpperLeft  []int `json:"upper_left"`
	LowerLeft  []int `json:"lower_left"`
	LowerRight []int `json:"lower_right"`
}

// Cell is one position of the 2x2 tooth chart.
type Cell struct {
	Quadrant Quadrant `json:"quadrant"`
	Teeth    []int    `json:"teeth"`
	Label    string   `json:"label"`
}

// GroupByQuadrant buckets valid tooth numbers into their quadrants.
func GroupByQuadrant(nums []int) Quadrants {
	var q Quadrants
	for _, n := range Union(nums) {
		switch Quadrant(n / 10) {
		case UpperRight:
			q.UpperRight = append(q.UpperRight, n)
		case UpperLeft:
			q.UpperLeft = append(q.UpperLeft, n)
		case LowerLeft:
			q.LowerLeft = append(q.LowerLeft, n)
		case LowerRight:
			q.LowerRight = append(q.LowerRight, n)
		}
	}
	return q
}

// Of returns the bucket for one quadrant.
func (q Quadrants) Of(quadrant Quadrant) []int {
	switch quadrant {
	case UpperRight:
		return q.UpperRight
	case UpperLeft:
		return q.UpperLeft
	case LowerLeft:
		return q.LowerLeft
	case LowerRight:
		return q.LowerRight
	}
	return nil
}

// Empty reports whether no quadrant holds a tooth.
func (q Quadrants) Empty() bool {
	return len(q.UpperRight)+len(q.UpperLeft)+len(q.LowerLeft)+len(q.LowerRight) == 0
}

// Grid returns the chart in viewer order: top row upper-left then
// upper-right, bottom row lower-left then lower-right.
func (q Quadrants) Grid() [2][2]Cell {
	cell := func(quadrant Quadrant) Cell {
		teeth := q.Of(quadrant)
		return Cell{Quadrant: quadrant, Teeth: teeth, Label: FormatQuadrant(teeth)}
	}
	return [2][2]Cell{
		{cell(UpperLeft), cell(UpperRight)},
		{cell(LowerLeft), cell(LowerRight)},
	}
}

// FormatQuadrant concatenates the position digit of each tooth in ascending
// order, e.g. 11,12,14 → "124". An empty bucket renders as Placeholder.
func FormatQuadrant(nums []int) string {
	if len(nums) == 0 {
		return Placeholder
	}
	sorted := append([]int(nil), nums...)
	sort.Ints(sorted)

	var b strings.Builder
	for _, n := range sorted {
		b.WriteString(strconv.Itoa(n % 10))
	}
	return b.String()
}

// ParseQuadrant reads a FormatQuadrant label back into tooth numbers of
// the given quadrant. Digits outside 1–8 and the placeholder are ignored.
func ParseQuadrant(quadrant Quadrant, label string) []int {
	if quadrant < UpperRight || quadrant > LowerRight {
		return nil
	}
	seen := make(map[int]struct{})
	for _, r := range label {
		if r < '1' || r > '8' {
			continue
		}
		seen[int(quadrant)*10+int(r-'0')] = struct{}{}
	}
	return sortedKeys(seen)
}

// Describe renders a tooth set as "UL:… UR:… LL:… LR:…", or NoTeeth.
func Describe(nums []int) string {
	q := GroupByQuadrant(nums)
	if q.Empty() {
		return NoTeeth
	}
	grid := q.Grid()
	return "UL:" + grid[0][0].Label + " UR:" + grid[0][1].Label +
		" LL:" + grid[1][0].Label + " LR:" + grid[1][1].Label
}
