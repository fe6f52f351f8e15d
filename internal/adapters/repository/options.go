// Package repository defines the attendance store interface and errors.
package repository

// Option applies a configuration option to the SQLite store.
type Option func(*SQLite)

// WithPageBounds sets the clamp range and default for history page sizes.
func WithPageBounds(minSize, maxSize, defaultSize int) Option {
	return func(s *SQLite) {
		if minSize > 0 && maxSize >= minSize && defaultSize >= minSize && defaultSize <= maxSize {
			s.pageSizeMin = minSize
			s.pageSizeMax = maxSize
			s.pageSizeDefault = defaultSize
		}
	}
}
