package model

// RawEntry is a sentence exactly as the bundle publishes it, before any
// validation. Pointer fields distinguish "absent" from "zero" so the mapper
// can report which required field is missing.
type RawEntry struct {
	UUID    *string `json:"uuid"`
	Text    *string `json:"hitokoto"`
	Type    *string `json:"type"`
	From    *string `json:"from"`
	FromWho *string `json:"from_who,omitempty"`
	Length  *int    `json:"length"`
}

// Sentence is the canonical record persisted by the store.
type Sentence struct {
	UUID     string `json:"uuid"`
	Text     string `json:"hitokoto"`
	Category string `json:"type"`
	From     string `json:"from"`
	FromWho  string `json:"from_who"`
	Length   int    `json:"length"`
}
