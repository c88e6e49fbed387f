package domain

// State is the durable subset of the application store. It is persisted as a
// single JSON document; times encode as RFC 3339 strings.
type State struct {
	User  User   `json:"user"`
	Sites []Site `json:"sites"`
	Posts []Post `json:"posts"`
}
