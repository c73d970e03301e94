package core

// Limits is the immutable pipeline configuration. It is passed explicitly
// through constructors; there is no process-wide mutable state.
type Limits struct {
	// MaxQueryCount caps the per-page row count.
	MaxQueryCount int `koanf:"max_query_count" validate:"gte=1"`
	// MaxQueryPage caps the page number.
	MaxQueryPage int `koanf:"max_query_page" validate:"gte=0"`
	// MaxQueryDepth caps table nesting depth.
	MaxQueryDepth int `koanf:"max_query_depth" validate:"gte=1"`
	// MaxUpdateCount caps rows touched by one UPDATE/DELETE.
	MaxUpdateCount int `koanf:"max_update_count" validate:"gte=1"`
	// DefaultCount is the page size used when a list query names none.
	DefaultCount int `koanf:"default_count" validate:"gte=1"`
	// IDField is the primary-key column name used for operation inference
	// and re-selects.
	IDField string `koanf:"id_field" validate:"required"`
	// CacheTTLSeconds is the default TTL for cached results.
	CacheTTLSeconds int `koanf:"cache_ttl_seconds" validate:"gte=1"`
}

// DefaultLimits returns the documented default configuration, also used by
// tests.
func DefaultLimits() Limits {
	return Limits{
		MaxQueryCount:   1000,
		MaxQueryPage:    10000,
		MaxQueryDepth:   5,
		MaxUpdateCount:  100,
		DefaultCount:    10,
		IDField:         "id",
		CacheTTLSeconds: 60,
	}
}
