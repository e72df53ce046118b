package domain

// ManifestEntry describes one emitted table in the run manifest.
type ManifestEntry struct {
	Table string `json:"table"`
	Rows  int    `json:"rows"`
	Path  string `json:"path"`
}
