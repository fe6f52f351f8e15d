// Package resolver reduces a session's raw detection stream to one best
// observation per subject.
package resolver

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithRecentCap sets the size of the bounded recent-observation log.
func WithRecentCap(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.recentCap = n
		}
	}
}
