package ledger

// Ledger maps every token category to its duration bucket. A ledger is
// always structurally complete: all three categories present, four slots
// each. Use NewLedger or Normalize to guarantee that shape.
type Ledger map[Category]Bucket

// NewLedger returns a zeroed ledger with all categories present.
func NewLedger() Ledger {
	l := make(Ledger, len(categories))
	for _, c := range categories {
		l[c] = Bucket{}
	}
	return l
}

// Normalize returns a structurally complete copy of l: missing categories
// become zero buckets, unknown keys are dropped, counts clamp to >= 0.
func (l Ledger) Normalize() Ledger {
	out := make(Ledger, len(categories))
	for _, c := range categories {
		out[c] = NormalizeBucket(l[c].Slice())
	}
	return out
}

// Clone returns an independent copy of the ledger.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(categories))
	for _, c := range categories {
		out[c] = l[c]
	}
	return out
}

// FromSlices builds a normalized ledger from raw category slices, e.g. a
// decoded JSON payload. Unknown categories are ignored, missing ones zeroed.
func FromSlices(raw map[string][]int) Ledger {
	out := make(Ledger, len(categories))
	for _, c := range categories {
		out[c] = NormalizeBucket(raw[c.Key()])
	}
	return out
}

// ToSlices converts the ledger to a map of plain int slices keyed by
// category key, the shape used by the HTTP API and persisted documents.
func (l Ledger) ToSlices() map[string][]int {
	out := make(map[string][]int, len(categories))
	for _, c := range categories {
		out[c.Key()] = l[c].Slice()
	}
	return out
}
