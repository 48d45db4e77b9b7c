package session

// Budget bounds the number of successful applies in one run. Count never
// exceeds Limit.
type Budget struct {
	limit int
	count int
}

// NewBudget returns a budget allowing limit applies. A negative limit is treated as zero.
func NewBudget(limit int) *Budget {
	if limit < 0 {
		limit = 0
	}
	return &Budget{limit: limit}
}

func (b *Budget) Limit() int { return b.limit }

func (b *Budget) Count() int { return b.count }

// Remaining returns how many applies are still allowed.
func (b *Budget) Remaining() int {
	return b.limit - b.count
}

// Exhausted reports whether no further apply may be started.
func (b *Budget) Exhausted() bool {
	return b.count >= b.limit
}

// Record counts one successful apply.
func (b *Budget) Record() error {
	if b.Exhausted() {
		return ErrBudgetExhausted
	}
	b.count++
	return nil
}
