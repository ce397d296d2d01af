package scene

// PropertyList is an ordered string-keyed collection of values.
// Values must be JSON-representable to survive a save/load round trip;
// anything else is reported as a failed property at save time.
type PropertyList struct {
	keys   []string
	values map[string]any
}

// Entry is one key/value pair of a PropertyList.
type Entry struct {
	Key   string
	Value any
}

func NewPropertyList() *PropertyList {
	return &PropertyList{values: make(map[string]any)}
}

// Set stores a value under key. Insertion order is preserved; setting an
// existing key updates the value in place.
func (p *PropertyList) Set(key string, value any) {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

func (p *PropertyList) Get(key string) (any, bool) {
	v, ok := p.values[key]
	return v, ok
}

func (p *PropertyList) Len() int { return len(p.keys) }

func (p *PropertyList) IsEmpty() bool { return p == nil || len(p.keys) == 0 }

// Entries returns the pairs in insertion order.
func (p *PropertyList) Entries() []Entry {
	if p == nil {
		return nil
	}
	entries := make([]Entry, 0, len(p.keys))
	for _, k := range p.keys {
		entries = append(entries, Entry{Key: k, Value: p.values[k]})
	}
	return entries
}

// Merge copies all entries of other into p, overwriting existing keys.
func (p *PropertyList) Merge(other *PropertyList) {
	if other == nil {
		return
	}
	for _, e := range other.Entries() {
		p.Set(e.Key, e.Value)
	}
}
