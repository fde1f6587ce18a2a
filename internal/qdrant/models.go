package qdrant

// Collection is one entry of GET /collections.
type Collection struct {
	Name string `json:"name"`
}

// Snapshot describes a snapshot created on the server. Only Name is needed
// to download it; the other fields are informational and may be absent on
// older servers.
type Snapshot struct {
	Name         string `json:"name"`
	CreationTime string `json:"creation_time,omitempty"`
	Size         int64  `json:"size,omitempty"`
	Checksum     string `json:"checksum,omitempty"`
}

// envelope is the common Qdrant response wrapper. Result is a pointer so a
// missing "result" key can be told apart from an empty one.
type envelope[T any] struct {
	Result *T      `json:"result"`
	Status any     `json:"status,omitempty"`
	Time   float64 `json:"time,omitempty"`
}

// collectionsResult keeps Collections as a pointer so a missing or null
// list is rejected instead of read as empty.
type collectionsResult struct {
	Collections *[]Collection `json:"collections"`
}
