package domain

// SearchState is the single active query as seen by clients. It is replaced
// wholesale on every new search, never patched across searches.
type SearchState struct {
	Sequence uint64   `json:"sequence"`
	Query    string   `json:"query"`
	Product  *Product `json:"product"`
	Analysis *string  `json:"analysis"`
	Loading  bool     `json:"loading"`
	Error    *string  `json:"error"`
}

// Settled reports whether the state carries a terminal outcome.
func (s SearchState) Settled() bool {
	return !s.Loading && (s.Product != nil || s.Error != nil)
}
