package models

// SearchResult is a single search hit: the item, its similarity score, and
// the container path from root to the item's immediate container.
type SearchResult struct {
	Item *Item `json:"item"`
	// ContainerPath is ordered root to leaf, rendered with PathLabel.
	ContainerPath []string `json:"container_path"`
	Score         float64  `json:"score"`
	Rank          int      `json:"rank"`
}

// SearchResponse is the response for a search request. Results may be shorter
// than the requested K when the corpus is small or when an item was deleted
// between index search and hydration.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Query     string          `json:"query"`
	QueryTime int64           `json:"query_time_ms"`
}
