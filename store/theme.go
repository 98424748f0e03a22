package store

import (
	"context"

	"github.com/pkg/errors"
)

// ThemeVocab is a named candidate label for theme suggestion. Vocabulary
// entries are curated content, not user data.
type ThemeVocab struct {
	ID        int32
	Name      string
	CreatedTs int64
}

// ThemeEmbedding is one embedding generation of a vocabulary entry, keyed by
// (theme, model). Only rows with Current set participate in candidate
// scoring; older generations are kept for audit.
type ThemeEmbedding struct {
	ID        int32
	ThemeID   int32
	Model     string
	Embedding []float32
	Current   bool
	CreatedTs int64
}

// ThemeCandidate is the joined projection used for candidate scoring.
type ThemeCandidate struct {
	Name      string
	Embedding []float32
}

// FindThemeCandidates is the find condition for theme candidates.
type FindThemeCandidates struct {
	Current bool
	Model   *string
}

func (s *Store) UpsertThemeVocab(ctx context.Context, upsert *ThemeVocab) (*ThemeVocab, error) {
	if upsert.Name == "" {
		return nil, errors.New("theme name is required")
	}
	return s.driver.UpsertThemeVocab(ctx, upsert)
}

// UpsertThemeEmbedding inserts or replaces the embedding generation for
// (theme, model). The image embedding dimension applies: theme candidates are
// compared against image vectors.
func (s *Store) UpsertThemeEmbedding(ctx context.Context, upsert *ThemeEmbedding) (*ThemeEmbedding, error) {
	if len(upsert.Embedding) != ImageEmbeddingDim {
		return nil, errors.Wrapf(ErrDimensionMismatch, "theme embedding has %d components, want %d", len(upsert.Embedding), ImageEmbeddingDim)
	}
	return s.driver.UpsertThemeEmbedding(ctx, upsert)
}

func (s *Store) ListThemeCandidates(ctx context.Context, find *FindThemeCandidates) ([]*ThemeCandidate, error) {
	return s.driver.ListThemeCandidates(ctx, find)
}
