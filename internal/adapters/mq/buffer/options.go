// Package buffer decouples the detection producer rate from the resolver
// update rate.
package buffer

import "time"

// Option applies a configuration option to the Buffer.
type Option func(*Buffer)

// WithFlushInterval sets the drain interval.
func WithFlushInterval(d time.Duration) Option {
	return func(b *Buffer) {
		if d > 0 {
			b.interval = d
		}
	}
}
