// Package mapper normalizes raw bundle entries into canonical sentences.
package mapper

import (
	"fmt"

	"github.com/kotosync/kotosync/internal/model"
)

// FieldError reports a raw entry that cannot be mapped, naming the field at
// fault. It is always a per-record failure.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("map entry: field %q %s", e.Field, e.Reason)
}

// ToSentence converts a raw entry into a Sentence. uuid, hitokoto, type,
// from and length are required; from_who defaults to the empty string.
func ToSentence(raw model.RawEntry) (model.Sentence, error) {
	var s model.Sentence

	switch {
	case raw.UUID == nil:
		return s, &FieldError{Field: "uuid", Reason: "missing"}
	case raw.Text == nil:
		return s, &FieldError{Field: "hitokoto", Reason: "missing"}
	case raw.Type == nil:
		return s, &FieldError{Field: "type", Reason: "missing"}
	case raw.From == nil:
		return s, &FieldError{Field: "from", Reason: "missing"}
	case raw.Length == nil:
		return s, &FieldError{Field: "length", Reason: "missing"}
	}

	// The id is an opaque unique identifier; it only has to be non-empty.
	if *raw.UUID == "" {
		return s, &FieldError{Field: "uuid", Reason: "empty"}
	}
	if *raw.Text == "" {
		return s, &FieldError{Field: "hitokoto", Reason: "empty"}
	}
	if *raw.Length < 0 {
		return s, &FieldError{Field: "length", Reason: "negative"}
	}

	s = model.Sentence{
		UUID:     *raw.UUID,
		Text:     *raw.Text,
		Category: *raw.Type,
		From:     *raw.From,
		Length:   *raw.Length,
	}
	if raw.FromWho != nil {
		s.FromWho = *raw.FromWho
	}
	return s, nil
}

// MapAll maps every entry, dropping the ones that fail and returning how
// many were dropped. A bad entry never affects its siblings.
func MapAll(raws []model.RawEntry) (sentences []model.Sentence, dropped int) {
	sentences = make([]model.Sentence, 0, len(raws))
	for _, raw := range raws {
		s, err := ToSentence(raw)
		if err != nil {
			dropped++
			continue
		}
		sentences = append(sentences, s)
	}
	return sentences, dropped
}
