package engine

// priceAcc accumulates offer prices for an average.
type priceAcc struct {
	sum   int64
	count int64
}

func (a *priceAcc) add(price int64) {
	a.sum += price
	a.count++
}

func (a *priceAcc) merge(b priceAcc) {
	a.sum += b.sum
	a.count += b.count
}

// mean returns the floored arithmetic mean, or nil when nothing was added.
func (a priceAcc) mean() *int64 {
	if a.count == 0 {
		return nil
	}
	m := a.sum / a.count
	return &m
}

func samePrice(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
