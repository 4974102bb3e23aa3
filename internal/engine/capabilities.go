package engine

// Capabilities describes what a backend can do and what it is sized
// for. Static and advisory; the manager reports it, nothing enforces it.
type Capabilities struct {
	FullText      bool `json:"full_text"`
	Stemming      bool `json:"stemming"`
	PrefixSearch  bool `json:"prefix_search"`
	Facets        bool `json:"facets"`
	NativeFilters bool `json:"native_filters"`
	// Distributed is true when the backend runs as a separate service
	// rather than embedded storage.
	Distributed bool `json:"distributed"`

	MaxRecommendedRecords int    `json:"max_recommended_records"`
	MaxConcurrentUsers    int    `json:"max_concurrent_users"`
	SetupComplexity       string `json:"setup_complexity"`     // minimal, moderate
	OperationalOverhead   string `json:"operational_overhead"` // none, low, medium
}

var capabilityTable = map[Type]Capabilities{
	TypeSQLite: {
		FullText:              true,
		Stemming:              true,
		PrefixSearch:          true,
		Facets:                true,
		NativeFilters:         true,
		MaxRecommendedRecords: 100_000,
		MaxConcurrentUsers:    50,
		SetupComplexity:       "minimal",
		OperationalOverhead:   "none",
	},
	TypeRediSearch: {
		FullText:              true,
		Stemming:              true,
		PrefixSearch:          true,
		Facets:                true,
		NativeFilters:         true,
		Distributed:           true,
		MaxRecommendedRecords: 10_000_000,
		MaxConcurrentUsers:    1000,
		SetupComplexity:       "moderate",
		OperationalOverhead:   "medium",
	},
}

// CapabilitiesFor returns the static capability descriptor for a backend type.
// Unknown types get a zero descriptor.
func CapabilitiesFor(t Type) Capabilities {
	return capabilityTable[t]
}
