package model

// Manifest is the remote index of categories. Fetched fresh on every run,
// never persisted.
type Manifest struct {
	UpdatedAt  int64                `json:"updated_at"`
	Categories []CategoryDescriptor `json:"sentences"`
}

// CategoryDescriptor describes one category in the manifest. Key doubles as
// the cache filename and the remote path segment.
type CategoryDescriptor struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp"`
}

// Snapshot is the cached copy of a category payload: the raw entries as
// received plus the manifest timestamp they were fetched at.
type Snapshot struct {
	Timestamp int64      `json:"timestamp"`
	Sentences []RawEntry `json:"sentences"`
}
