// Package window computes which rows of a long list are mounted for a
// viewport and recycles a bounded pool of row slots as the list scrolls.
//
// Sizes and offsets are abstract units: terminal lines for the TUI, CSS
// pixels for the browser client.
package window

import "sort"

// Options configure a Virtualizer.
type Options struct {
	// EstimateSize is the size assumed for items not yet measured.
	EstimateSize int
	// Overscan is the number of estimated rows mounted past each viewport
	// edge.
	Overscan int
}

// Item is a mounted list entry with its computed position.
type Item struct {
	Index int    `json:"index"`
	Key   string `json:"key"`
	Start int    `json:"start"`
	Size  int    `json:"size"`
}

// End returns the offset one past the item.
func (it Item) End() int { return it.Start + it.Size }

// Virtualizer tracks item sizes and the scroll position of one list.
type Virtualizer struct {
	opts     Options
	keys     []string
	measured map[string]int
	starts   []int // len(keys)+1 prefix offsets
	scroll   int
	viewport int
}

// New returns an empty virtualizer.
func New(opts Options) *Virtualizer {
	if opts.EstimateSize <= 0 {
		opts.EstimateSize = 1
	}
	if opts.Overscan < 0 {
		opts.Overscan = 0
	}
	v := &Virtualizer{opts: opts, measured: make(map[string]int)}
	v.layout()
	return v
}

// Options returns the configured options.
func (v *Virtualizer) Options() Options { return v.opts }

// SetKeys replaces the list. Measured sizes stay keyed by item key, so an
// item keeps its size across result sets. It reports whether the ordered key
// list changed.
func (v *Virtualizer) SetKeys(keys []string) bool {
	changed := len(keys) != len(v.keys)
	if !changed {
		for i := range keys {
			if keys[i] != v.keys[i] {
				changed = true
				break
			}
		}
	}
	v.keys = append(v.keys[:0], keys...)
	v.layout()
	v.scroll = v.clamp(v.scroll)
	return changed
}

// Len returns the number of items.
func (v *Virtualizer) Len() int { return len(v.keys) }

// SetViewport sets the visible extent.
func (v *Virtualizer) SetViewport(size int) {
	if size < 0 {
		size = 0
	}
	v.viewport = size
	v.scroll = v.clamp(v.scroll)
}

// Viewport returns the visible extent.
func (v *Virtualizer) Viewport() int { return v.viewport }

// SetScroll moves the scroll offset, clamped to the scrollable range.
func (v *Virtualizer) SetScroll(offset int) {
	v.scroll = v.clamp(offset)
}

// ScrollBy moves the scroll offset by delta.
func (v *Virtualizer) ScrollBy(delta int) {
	v.SetScroll(v.scroll + delta)
}

// ScrollToIndex aligns the start of item i with the top of the viewport.
func (v *Virtualizer) ScrollToIndex(i int) {
	if i < 0 || i >= len(v.keys) {
		return
	}
	v.SetScroll(v.starts[i])
}

// ScrollOffset returns the current scroll offset.
func (v *Virtualizer) ScrollOffset() int { return v.scroll }

// TotalSize returns the full scrollable extent.
func (v *Virtualizer) TotalSize() int { return v.starts[len(v.keys)] }

// MaxScroll returns the largest valid scroll offset.
func (v *Virtualizer) MaxScroll() int {
	return max(0, v.TotalSize()-v.viewport)
}

func (v *Virtualizer) clamp(offset int) int {
	return min(max(offset, 0), v.MaxScroll())
}

func (v *Virtualizer) sizeOf(i int) int {
	if s, ok := v.measured[v.keys[i]]; ok {
		return s
	}
	return v.opts.EstimateSize
}

func (v *Virtualizer) layout() {
	if cap(v.starts) < len(v.keys)+1 {
		v.starts = make([]int, len(v.keys)+1)
	}
	v.starts = v.starts[:len(v.keys)+1]
	v.starts[0] = 0
	for i := range v.keys {
		v.starts[i+1] = v.starts[i] + v.sizeOf(i)
	}
}

// Measure records the real size of item i. When the item starts above the
// scroll offset the offset moves by the size delta, so the content in view
// stays put.
func (v *Virtualizer) Measure(i, size int) {
	if i < 0 || i >= len(v.keys) || size <= 0 {
		return
	}
	delta := size - v.sizeOf(i)
	if delta == 0 {
		return
	}
	start := v.starts[i]
	v.measured[v.keys[i]] = size
	for j := i + 1; j < len(v.starts); j++ {
		v.starts[j] += delta
	}
	if start < v.scroll {
		v.scroll += delta
	}
	v.scroll = v.clamp(v.scroll)
}

// MeasuredSize returns the recorded size for key.
func (v *Virtualizer) MeasuredSize(key string) (int, bool) {
	s, ok := v.measured[key]
	return s, ok
}

// Range returns the mounted interval [lo, hi): the viewport widened by
// Overscan estimated rows on each side.
func (v *Virtualizer) Range() (lo, hi int) {
	pad := v.opts.Overscan * v.opts.EstimateSize
	return v.scroll - pad, v.scroll + v.viewport + pad
}

// Items returns the items whose [Start, End) intersects Range, in order.
func (v *Virtualizer) Items() []Item {
	n := len(v.keys)
	if n == 0 {
		return nil
	}
	lo, hi := v.Range()
	first := sort.Search(n, func(i int) bool { return v.starts[i+1] > lo })
	var items []Item
	for i := first; i < n && v.starts[i] < hi; i++ {
		items = append(items, Item{Index: i, Key: v.keys[i], Start: v.starts[i], Size: v.starts[i+1] - v.starts[i]})
	}
	return items
}

// Item returns the position of item i.
func (v *Virtualizer) Item(i int) (Item, bool) {
	if i < 0 || i >= len(v.keys) {
		return Item{}, false
	}
	return Item{Index: i, Key: v.keys[i], Start: v.starts[i], Size: v.starts[i+1] - v.starts[i]}, true
}

// IndexAt returns the item covering offset, or -1.
func (v *Virtualizer) IndexAt(offset int) int {
	n := len(v.keys)
	if n == 0 || offset < 0 || offset >= v.TotalSize() {
		return -1
	}
	return sort.Search(n, func(i int) bool { return v.starts[i+1] > offset })
}
