package engine

// ring keeps the most recent capacity items. Not safe for concurrent use;
// owners guard it with their own mutex.
type ring[T any] struct {
	items    []T
	capacity int
	head     int // next write position
	count    int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

func (r *ring[T]) push(v T) {
	r.items[r.head] = v
	r.head = (r.head + 1) % r.capacity
	if r.count < r.capacity {
		r.count++
	}
}

func (r *ring[T]) len() int { return r.count }

// at returns the i-th retained item, oldest first.
func (r *ring[T]) at(i int) T {
	start := 0
	if r.count == r.capacity {
		start = r.head
	}
	return r.items[(start+i)%r.capacity]
}

// slice copies the retained items, oldest first.
func (r *ring[T]) slice() []T {
	out := make([]T, r.count)
	for i := range out {
		out[i] = r.at(i)
	}
	return out
}

func (r *ring[T]) reset() {
	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.head = 0
	r.count = 0
}
