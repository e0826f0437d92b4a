// Package memory holds bounded in-memory stores for running without databases.
package memory

// DefaultCapacity is how many runs or notification events a store keeps.
const DefaultCapacity = 1000

// Option configures a memory store.
type Option func(*options)

type options struct {
	capacity int
}

// WithCapacity caps the retained runs or events. Oldest entries are evicted first.
func WithCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}

func newOptions(opts []Option) options {
	o := options{capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
