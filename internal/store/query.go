package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kotosync/kotosync/internal/model"
)

// ErrNotFound is returned when no sentence matches a query.
var ErrNotFound = errors.New("sentence not found")

// Filter narrows Random lookups. Zero values mean "no constraint".
type Filter struct {
	Categories []string
	MinLength  int
	MaxLength  int
}

const selectColumns = "SELECT uuid, text, category, from_source, from_who, length FROM sentences"

// Random returns one random sentence matching the filter. The composite
// (category, length) index serves the filtered path.
func (s *Store) Random(ctx context.Context, filter Filter) (*model.Sentence, error) {
	conditions := []string{"1=1"}
	var args []interface{}

	if len(filter.Categories) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.Categories)), ",")
		conditions = append(conditions, fmt.Sprintf("category IN (%s)", placeholders))
		for _, c := range filter.Categories {
			args = append(args, c)
		}
	}
	if filter.MinLength > 0 {
		conditions = append(conditions, "length >= ?")
		args = append(args, filter.MinLength)
	}
	if filter.MaxLength > 0 {
		conditions = append(conditions, "length <= ?")
		args = append(args, filter.MaxLength)
	}

	query := fmt.Sprintf("%s WHERE %s ORDER BY RANDOM() LIMIT 1",
		selectColumns, strings.Join(conditions, " AND "))

	return s.scanOne(s.db.QueryRowContext(ctx, query, args...))
}

// ByUUID returns the sentence with the given uuid.
func (s *Store) ByUUID(ctx context.Context, uuid string) (*model.Sentence, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE uuid = ? LIMIT 1", uuid)
	return s.scanOne(row)
}

func (s *Store) scanOne(row *sql.Row) (*model.Sentence, error) {
	var sentence model.Sentence
	err := row.Scan(
		&sentence.UUID,
		&sentence.Text,
		&sentence.Category,
		&sentence.From,
		&sentence.FromWho,
		&sentence.Length,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan sentence: %w", err)
	}
	return &sentence, nil
}
