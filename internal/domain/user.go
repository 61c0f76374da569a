package domain

// User is the JSON blob stored per address in the users namespace. Workstreams
// are keyed by their id so CRUD stays a single read-modify-write.
type User struct {
	Workstreams map[string]Workstream `json:"workstreams"`
}
