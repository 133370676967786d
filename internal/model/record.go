package model

// Record is one habit page fetched from the remote database.
// Immutable once fetched.
type Record struct {
	ID       string  // opaque page id, unique per source
	Title    string  // page title ("Name" property), may be empty
	ParentID string  // id of the parent category page, empty if none
	Measure  float64 // accumulated minutes, 0 when the property is absent
}

// Row is one line of the exported category table.
type Row struct {
	Category string
	Total    float64
}

// Table is the aggregation output: one row per category, sorted by
// total descending.
type Table []Row
