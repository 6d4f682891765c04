package tooth

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name  string
		input any
		want  []int
	}{
		{"nil", nil, []int{}},
		{"int slice", []int{21, 11, 11, 48}, []int{11, 21, 48}},
		{"any slice with floats", []any{11.0, 12.5, "13"}, []int{11, 13}},
		{"nested", []any{[]any{11, []int{12}}, map[string]any{"upper": []any{21}}}, []int{11, 12, 21}},
		{"delimited string", "11, 12;13 / 48", []int{11, 12, 13, 48}},
		{"json string", "[18, 28, 38]", []int{18, 28, 38}},
		{"json object string", `{"a":[41,"42"],"b":"43"}`, []int{41, 42, 43}},
		{"double encoded json", `"[11,12]"`, []int{11, 12}},
		{"invalid ranges dropped", []int{10, 19, 20, 29, 49, 50, 9, 0, -11, 100}, []int{}},
		{"bytes", []byte("31 32"), []int{31, 32}},
		{"pointer", func() *[]int { s := []int{44}; return &s }(), []int{44}},
		{"garbage", "abc", []int{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Parse(tc.input)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Parse(%v) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestParseOnlyInvalidYieldsEmpty(t *testing.T) {
	inputs := []any{
		[]int{1, 2, 3, 10, 19, 20, 30, 39, 40, 49, 99},
		"10 20 30 40 50 60",
		[]any{"9", 59.0, map[string]any{"x": 100}},
	}
	for _, in := range inputs {
		if got := Parse(in); len(got) != 0 {
			t.Fatalf("expected empty result for %v, got %v", in, got)
		}
	}
}

func TestInvalidListsEveryEntry(t *testing.T) {
	got := Invalid([]int{11, 19, 22, 50, 9})
	want := []int{19, 50, 9}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Invalid = %v, want %v", got, want)
	}
}

func TestGroupByQuadrantDisjointUnion(t *testing.T) {
	input := []int{48, 11, 21, 31, 41, 18, 28, 38, 12, 12}
	q := GroupByQuadrant(input)

	seen := map[int]int{}
	for _, bucket := range [][]int{q.UpperRight, q.UpperLeft, q.LowerLeft, q.LowerRight} {
		for _, n := range bucket {
			seen[n]++
		}
	}
	for n, count := range seen {
		if count != 1 {
			t.Fatalf("tooth %d appears in %d buckets", n, count)
		}
	}

	union := Union(q.UpperRight, q.UpperLeft, q.LowerLeft, q.LowerRight)
	if !reflect.DeepEqual(union, Parse(input)) {
		t.Fatalf("union %v differs from parsed input %v", union, Parse(input))
	}
	if !reflect.DeepEqual(q.UpperRight, []int{11, 12, 18}) {
		t.Fatalf("unexpected upper right bucket %v", q.UpperRight)
	}
	if !reflect.DeepEqual(q.LowerRight, []int{41, 48}) {
		t.Fatalf("unexpected lower right bucket %v", q.LowerRight)
	}
}

func TestFormatQuadrant(t *testing.T) {
	if got := FormatQuadrant([]int{14, 11, 12}); got != "124" {
		t.Fatalf("expected 124, got %s", got)
	}
	if got := FormatQuadrant(nil); got != Placeholder {
		t.Fatalf("expected placeholder, got %s", got)
	}
}

func TestFormatQuadrantRoundTrip(t *testing.T) {
	inputs := []any{"11 12 14 28", []int{18, 17, 16}, "nothing", []int{21}}
	for _, in := range inputs {
		first := FormatQuadrant(GroupByQuadrant(Parse(in)).UpperRight)
		again := FormatQuadrant(GroupByQuadrant(ParseQuadrant(UpperRight, first)).UpperRight)
		if first != again {
			t.Fatalf("round trip unstable for %v: %q then %q", in, first, again)
		}
	}
}

func TestGridOrder(t *testing.T) {
	grid := GroupByQuadrant([]int{11, 21, 31, 41}).Grid()
	order := []Quadrant{grid[0][0].Quadrant, grid[0][1].Quadrant, grid[1][0].Quadrant, grid[1][1].Quadrant}
	want := []Quadrant{UpperLeft, UpperRight, LowerLeft, LowerRight}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("grid order = %v, want %v", order, want)
	}
	if grid[0][1].Label != "1" {
		t.Fatalf("expected upper right label 1, got %s", grid[0][1].Label)
	}
}

func TestDescribe(t *testing.T) {
	if got := Describe(nil); got != NoTeeth {
		t.Fatalf("expected %q, got %q", NoTeeth, got)
	}
	if got := Describe([]int{11, 12, 36}); got != "UL:- UR:12 LL:6 LR:-" {
		t.Fatalf("unexpected description %q", got)
	}
}
