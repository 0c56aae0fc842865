package types

import "fmt"

// BlockRange is an inclusive block interval. A range with From > To carries no
// blocks and signals that the iteration should be skipped.
type BlockRange struct {
	From uint64
	To   uint64
}

func (r BlockRange) Valid() bool {
	return r.From <= r.To
}

func (r BlockRange) String() string {
	return fmt.Sprintf("[%d, %d]", r.From, r.To)
}
