package window

// Row is one reusable slot of the rendered list.
type Row struct {
	Slot int
	Item Item
	// Generation changes whenever the row is bound to new content. Work
	// started for an older generation must not be committed.
	Generation uint64
	bound      bool
}

// Key returns the key of the bound item.
func (r *Row) Key() string { return r.Item.Key }

// Bound reports whether the row currently shows an item.
func (r *Row) Bound() bool { return r.bound }

// Pool hands out row slots for mounted items. It never holds more slots than
// the largest number of items mounted at once.
type Pool struct {
	rows    []*Row
	byKey   map[string]*Row
	free    []*Row
	gen     uint64
	release func(*Row)
}

// NewPool returns an empty pool. release is called for every row that is
// unbound or rebound so callers can retract per-row state such as
// highlights.
func NewPool(release func(*Row)) *Pool {
	if release == nil {
		release = func(*Row) {}
	}
	return &Pool{byKey: make(map[string]*Row), release: release}
}

func (p *Pool) next() uint64 {
	p.gen++
	return p.gen
}

// Sync binds rows to items. Rows whose item stays mounted keep their slot
// and generation; the rest are released first and then reused for new items.
// The returned rows are in item order.
func (p *Pool) Sync(items []Item) []*Row {
	keep := make(map[string]struct{}, len(items))
	for _, it := range items {
		keep[it.Key] = struct{}{}
	}
	for _, r := range p.rows {
		if _, ok := keep[r.Item.Key]; r.bound && !ok {
			p.unbind(r)
		}
	}

	out := make([]*Row, 0, len(items))
	for _, it := range items {
		if r, ok := p.byKey[it.Key]; ok {
			r.Item = it
			out = append(out, r)
			continue
		}
		r := p.take()
		r.Item = it
		r.bound = true
		r.Generation = p.next()
		p.byKey[it.Key] = r
		out = append(out, r)
	}
	return out
}

func (p *Pool) take() *Row {
	if n := len(p.free); n > 0 {
		r := p.free[n-1]
		p.free = p.free[:n-1]
		return r
	}
	r := &Row{Slot: len(p.rows)}
	p.rows = append(p.rows, r)
	return r
}

func (p *Pool) unbind(r *Row) {
	p.release(r)
	delete(p.byKey, r.Item.Key)
	r.bound = false
	r.Item = Item{}
	r.Generation = p.next()
	p.free = append(p.free, r)
}

// Refresh marks the content of a bound row as changed: its per-row state is
// released and it gets a new generation.
func (p *Pool) Refresh(r *Row) {
	if !r.bound {
		return
	}
	p.release(r)
	r.Generation = p.next()
}

// RefreshAll refreshes every bound row.
func (p *Pool) RefreshAll() {
	for _, r := range p.rows {
		p.Refresh(r)
	}
}

// ReleaseAll unbinds every row.
func (p *Pool) ReleaseAll() {
	for _, r := range p.rows {
		if r.bound {
			p.unbind(r)
		}
	}
}

// Lookup returns the bound row for key.
func (p *Pool) Lookup(key string) (*Row, bool) {
	r, ok := p.byKey[key]
	return r, ok
}

// Current reports whether key is still bound at generation gen.
func (p *Pool) Current(key string, gen uint64) bool {
	r, ok := p.byKey[key]
	return ok && r.Generation == gen
}

// Size returns the number of slots ever allocated.
func (p *Pool) Size() int { return len(p.rows) }

// Bound returns the number of rows showing an item.
func (p *Pool) Bound() int { return len(p.byKey) }
