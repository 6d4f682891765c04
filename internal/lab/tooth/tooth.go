// Package tooth parses and groups FDI tooth numbers.
//
// Every component that displays, bills or prints teeth goes through this
// package; there is no second grouping implementation.
package tooth

import (
	"encoding/json"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Quadrant is the first digit of an FDI tooth number.
type Quadrant int

const (
	UpperRight Quadrant = 1
	UpperLeft  Quadrant = 2
	LowerLeft  Quadrant = 3
	LowerRight Quadrant = 4
)

const (
	// Placeholder is rendered for a quadrant without teeth.
	Placeholder = "-"
	// NoTeeth describes an empty tooth set.
	NoTeeth = "No teeth specified"

	maxDepth = 32
)

var nonDigits = regexp.MustCompile(`[^0-9]+`)

func (q Quadrant) String() string {
	switch q {
	case UpperRight:
		return "upper_right"
	case UpperLeft:
		return "upper_left"
	case LowerLeft:
		return "lower_left"
	case LowerRight:
		return "lower_right"
	}
	return "unknown"
}

// Valid reports whether n lies in 11–18, 21–28, 31–38 or 41–48.
func Valid(n int) bool {
	q, p := n/10, n%10
	return q >= 1 && q <= 4 && p >= 1 && p <= 8
}

// QuadrantOf returns the quadrant of a valid tooth number.
func QuadrantOf(n int) (Quadrant, bool) {
	if !Valid(n) {
		return 0, false
	}
	return Quadrant(n / 10), true
}

// Invalid returns every entry of nums that is not a valid tooth number, in input order.
func Invalid(nums []int) []int {
	var bad []int
	for _, n := range nums {
		if !Valid(n) {
			bad = append(bad, n)
		}
	}
	return bad
}

// Parse collects every integer found in input (slices, maps, pointers,
// numbers, JSON strings or delimited strings) and returns the valid tooth
// numbers deduplicated and sorted ascending. Anything else is dropped.
func Parse(input any) []int {
	seen := make(map[int]struct{})
	collect(reflect.ValueOf(input), seen, 0)
	return sortedKeys(seen)
}

// Union merges tooth sets into one deduplicated ascending set.
func Union(sets ...[]int) []int {
	seen := make(map[int]struct{})
	for _, set := range sets {
		for _, n := range set {
			if Valid(n) {
				seen[n] = struct{}{}
			}
		}
	}
	return sortedKeys(seen)
}

func collect(v reflect.Value, seen map[int]struct{}, depth int) {
	if !v.IsValid() || depth > maxDepth {
		return
	}

	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return
		}
		collect(v.Elem(), seen, depth+1)
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			collectString(string(v.Bytes()), seen, depth+1)
			return
		}
		for i := 0; i < v.Len(); i++ {
			collect(v.Index(i), seen, depth+1)
		}
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			collect(v.Index(i), seen, depth+1)
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			collect(iter.Value(), seen, depth+1)
		}
	case reflect.String:
		collectString(v.String(), seen, depth+1)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		add(seen, v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v.Uint() <= math.MaxInt32 {
			add(seen, int64(v.Uint()))
		}
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if !math.IsInf(f, 0) && !math.IsNaN(f) && f == math.Trunc(f) && math.Abs(f) < math.MaxInt32 {
			add(seen, int64(f))
		}
	}
}

func collectString(s string, seen map[int]struct{}, depth int) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}

	var decoded any
	if err := json.Unmarshal([]byte(s), &decoded); err == nil {
		// a JSON string literal that decodes to itself would recurse forever
		if str, ok := decoded.(string); !ok || str != s {
			collect(reflect.ValueOf(decoded), seen, depth+1)
			return
		}
	}

	for _, part := range nonDigits.Split(s, -1) {
		if part == "" {
			continue
		}
		if n, err := strconv.Atoi(part); err == nil {
			add(seen, int64(n))
		}
	}
}

func add(seen map[int]struct{}, n int64) {
	if n < 0 || n > math.MaxInt32 {
		return
	}
	if Valid(int(n)) {
		seen[int(n)] = struct{}{}
	}
}

func sortedKeys(seen map[int]struct{}) []int {
	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
