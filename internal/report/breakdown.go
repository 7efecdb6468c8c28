package report

import (
	"sort"

	"carteira/internal/core"
)

// Entry is one bucket of a Breakdown.
type Entry struct {
	Ref    Ref        `json:"ref"`
	Amount core.Money `json:"amount"`
	Share  float64    `json:"share"`
}

// Breakdown is an ordered mapping from reference to amount, sorted by
// absolute amount descending. Buckets are keyed by ID, never by name, so two
// categories sharing a name stay apart.
type Breakdown []Entry

func (b Breakdown) Total() core.Money {
	var total core.Money
	for _, e := range b {
		total = total.Add(e.Amount)
	}
	return total
}

// Get returns the amount for id. The empty id is the unresolved bucket.
func (b Breakdown) Get(id string) (core.Money, bool) {
	for _, e := range b {
		if e.Ref.ID == id {
			return e.Amount, true
		}
	}
	return core.Money{}, false
}

// ByName renders the breakdown keyed by display name for presentation.
// Buckets sharing a name are summed.
func (b Breakdown) ByName(fallback string) map[string]core.Money {
	out := make(map[string]core.Money, len(b))
	for _, e := range b {
		label := e.Ref.Label(fallback)
		out[label] = out[label].Add(e.Amount)
	}
	return out
}

type accumulator struct {
	index   map[string]int
	entries Breakdown
}

func newAccumulator() *accumulator {
	return &accumulator{index: make(map[string]int)}
}

func (a *accumulator) add(ref Ref, amount core.Money) {
	i, ok := a.index[ref.ID]
	if !ok {
		i = len(a.entries)
		a.index[ref.ID] = i
		a.entries = append(a.entries, Entry{Ref: ref})
	}
	a.entries[i].Amount = a.entries[i].Amount.Add(amount)
}

// breakdown returns the buckets sorted by absolute amount. Ties keep first
// appearance order.
func (a *accumulator) breakdown() Breakdown {
	out := make(Breakdown, len(a.entries))
	copy(out, a.entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Amount.Abs().Cents > out[j].Amount.Abs().Cents
	})
	total := out.Total()
	for i := range out {
		out[i].Share = Percent(out[i].Amount, total)
	}
	return out
}

// Percent returns part as a percentage of total, or 0 when total is zero.
func Percent(part, total core.Money) float64 {
	if total.Cents == 0 {
		return 0
	}
	return float64(part.Cents) / float64(total.Cents) * 100
}
