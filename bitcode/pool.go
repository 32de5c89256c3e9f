// Package bitcode implements the append-only encoder/decoder for IR
// statement streams (spec §4.2): a compact byte buffer plus a shared,
// append-only string pool, indexed by half-open byte ranges.
package bitcode

// pool interns strings (variable names, memory region names) so the wire
// encoding can reference them by a stable, monotonically assigned index
// instead of repeating bytes. Indices never change once assigned.
type pool struct {
	strings []string
	index   map[string]uint64
}

func newPool() *pool {
	return &pool{index: make(map[string]uint64)}
}

// intern returns s's stable index, assigning one if s hasn't been seen.
func (p *pool) intern(s string) uint64 {
	if idx, ok := p.index[s]; ok {
		return idx
	}
	idx := uint64(len(p.strings))
	p.strings = append(p.strings, s)
	p.index[s] = idx
	return idx
}

// lookup returns the string at idx, or ("", false) if idx is out of range.
func (p *pool) lookup(idx uint64) (string, bool) {
	if idx >= uint64(len(p.strings)) {
		return "", false
	}
	return p.strings[idx], true
}

func (p *pool) len() int { return len(p.strings) }
