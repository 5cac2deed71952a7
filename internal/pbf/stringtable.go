package pbf

// stringTable interns tag keys, values and user strings for one primitive
// block. Index 0 is reserved for the empty string per the PBF spec.
type stringTable struct {
	index   map[string]uint32
	entries []string
}

func newStringTable() *stringTable {
	return &stringTable{
		index:   map[string]uint32{"": 0},
		entries: []string{""},
	}
}

// intern returns the table index for s, appending it on first use.
func (st *stringTable) intern(s string) uint32 {
	if idx, ok := st.index[s]; ok {
		return idx
	}
	idx := uint32(len(st.entries))
	st.entries = append(st.entries, s)
	st.index[s] = idx
	return idx
}

// encode appends the StringTable message to the given builder.
func (st *stringTable) encode(m *message) {
	var sub message
	for _, s := range st.entries {
		sub.stringField(1, s)
	}
	m.embedded(1, &sub)
}
