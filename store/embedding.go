package store

import (
	"context"
	"sort"

	"github.com/pkg/errors"
)

// Embedding dimensions are fixed per kind; a query vector must match the
// target kind's dimension or the search fails before any comparison.
const (
	ImageEmbeddingDim = 768
	FaceEmbeddingDim  = 512
)

// ErrDimensionMismatch is returned when a stored or query vector does not
// match the expected dimension for its embedding kind.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ImageEmbedding represents the whole-image vector of an asset (1:1).
type ImageEmbedding struct {
	AssetID   string
	Model     string
	Embedding []float32
	CreatedTs int64
	UpdatedTs int64
}

// BoundingBox locates a detected face within its source image.
type BoundingBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FaceEmbedding represents one detected face of an asset (1:N).
type FaceEmbedding struct {
	ID        int64
	AssetID   string
	Embedding []float32
	BBox      *BoundingBox
	CreatedTs int64
}

// FaceEmbeddingUpsert is the payload for replacing the face set of an asset.
type FaceEmbeddingUpsert struct {
	Embedding []float32
	BBox      *BoundingBox
}

// FindFaceEmbedding is the find condition for face embeddings.
type FindFaceEmbedding struct {
	AssetID *string
}

// ImageNeighbor is an image search result. Score is higher-is-better,
// derived from the Euclidean distance as 1/(1+d).
type ImageNeighbor struct {
	AssetID   string
	OwnerID   int32
	Model     string
	Score     float64
	Distance  float64
	CreatedTs int64
}

// FaceNeighbor is a face search result. Score is the raw inner product,
// recovered from pgvector's negated distance.
type FaceNeighbor struct {
	FaceID    int64
	AssetID   string
	OwnerID   int32
	Score     float64
	Distance  float64
	BBox      *BoundingBox
	CreatedTs int64
}

// FindImageNeighbors holds the query and scoping filters for an image
// neighbor search.
//
// OwnerIDs distinguishes "no restriction" from "restrict to nothing":
// a nil slice considers all owners, a non-nil empty slice matches none.
type FindImageNeighbors struct {
	Vector          []float32
	Limit           int
	OwnerIDs        []int32
	ExcludeAssetIDs []string
	Model           *string
}

// FindFaceNeighbors holds the query and scoping filters for a face neighbor
// search. OwnerIDs follows the same nil-versus-empty convention as
// FindImageNeighbors. IncludeFaceIDs is reduced by ExcludeFaceIDs before
// filtering.
type FindFaceNeighbors struct {
	Vector         []float32
	Limit          int
	OwnerIDs       []int32
	AssetIDs       []string
	IncludeFaceIDs []int64
	ExcludeFaceIDs []int64
}

// UpsertImageEmbedding creates or replaces the image embedding for an asset.
func (s *Store) UpsertImageEmbedding(ctx context.Context, upsert *ImageEmbedding) (*ImageEmbedding, error) {
	if upsert.AssetID == "" {
		return nil, errors.New("asset id is required")
	}
	if len(upsert.Embedding) != ImageEmbeddingDim {
		return nil, errors.Wrapf(ErrDimensionMismatch, "image embedding has %d components, want %d", len(upsert.Embedding), ImageEmbeddingDim)
	}
	return s.driver.UpsertImageEmbedding(ctx, upsert)
}

// GetImageEmbedding returns the image embedding for an asset, or nil when
// none exists.
func (s *Store) GetImageEmbedding(ctx context.Context, assetID string) (*ImageEmbedding, error) {
	return s.driver.GetImageEmbedding(ctx, assetID)
}

// DeleteImageEmbedding deletes the image embedding for an asset.
// Deleting a non-existent embedding is a no-op.
func (s *Store) DeleteImageEmbedding(ctx context.Context, assetID string) error {
	return s.driver.DeleteImageEmbedding(ctx, assetID)
}

// ReplaceFaceEmbeddings atomically replaces all face embeddings of an asset
// with the given set. An empty set clears all faces. Readers observe either
// the old set or the new set, never a partial one.
func (s *Store) ReplaceFaceEmbeddings(ctx context.Context, assetID string, faces []*FaceEmbeddingUpsert) ([]*FaceEmbedding, error) {
	if assetID == "" {
		return nil, errors.New("asset id is required")
	}
	for _, face := range faces {
		if len(face.Embedding) != FaceEmbeddingDim {
			return nil, errors.Wrapf(ErrDimensionMismatch, "face embedding has %d components, want %d", len(face.Embedding), FaceEmbeddingDim)
		}
	}
	return s.driver.ReplaceFaceEmbeddings(ctx, assetID, faces)
}

func (s *Store) ListFaceEmbeddings(ctx context.Context, find *FindFaceEmbedding) ([]*FaceEmbedding, error) {
	return s.driver.ListFaceEmbeddings(ctx, find)
}

// DeleteFaceEmbeddings deletes face embeddings by id. Unknown ids are
// ignored; an empty id set is a no-op.
func (s *Store) DeleteFaceEmbeddings(ctx context.Context, faceIDs []int64) error {
	if len(faceIDs) == 0 {
		return nil
	}
	return s.driver.DeleteFaceEmbeddings(ctx, faceIDs)
}

// SearchImageNeighbors returns the nearest image embeddings under Euclidean
// distance, subject to the scoping filters of find.
func (s *Store) SearchImageNeighbors(ctx context.Context, find *FindImageNeighbors) ([]*ImageNeighbor, error) {
	if len(find.Vector) != ImageEmbeddingDim {
		return nil, errors.Wrapf(ErrDimensionMismatch, "query vector has %d components, want %d", len(find.Vector), ImageEmbeddingDim)
	}
	if find.Limit <= 0 {
		return []*ImageNeighbor{}, nil
	}
	if find.OwnerIDs != nil && len(find.OwnerIDs) == 0 {
		// Explicit empty owner set restricts to nothing.
		return []*ImageNeighbor{}, nil
	}
	return s.driver.SearchImageNeighbors(ctx, find)
}

// SearchFaceNeighbors returns the nearest face embeddings under negative
// inner product, subject to the scoping filters of find.
func (s *Store) SearchFaceNeighbors(ctx context.Context, find *FindFaceNeighbors) ([]*FaceNeighbor, error) {
	if len(find.Vector) != FaceEmbeddingDim {
		return nil, errors.Wrapf(ErrDimensionMismatch, "query vector has %d components, want %d", len(find.Vector), FaceEmbeddingDim)
	}
	if find.Limit <= 0 {
		return []*FaceNeighbor{}, nil
	}
	if find.OwnerIDs != nil && len(find.OwnerIDs) == 0 {
		return []*FaceNeighbor{}, nil
	}

	if len(find.IncludeFaceIDs) > 0 && len(find.ExcludeFaceIDs) > 0 {
		reduced := subtractIDs(find.IncludeFaceIDs, find.ExcludeFaceIDs)
		if len(reduced) == 0 {
			// Conflicting constraints shrink the candidate set to nothing.
			return []*FaceNeighbor{}, nil
		}
		narrowed := *find
		narrowed.IncludeFaceIDs = reduced
		find = &narrowed
	}

	return s.driver.SearchFaceNeighbors(ctx, find)
}

func subtractIDs(include, exclude []int64) []int64 {
	excluded := make(map[int64]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}
	reduced := make([]int64, 0, len(include))
	for _, id := range include {
		if _, ok := excluded[id]; !ok {
			reduced = append(reduced, id)
		}
	}
	return reduced
}

// SortImageNeighbors orders results by descending score, then descending
// creation timestamp, then ascending asset id. The three keys form a strict
// total order over distinct results, so result order is deterministic.
// Both drivers route their output through this comparator.
func SortImageNeighbors(list []*ImageNeighbor) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.CreatedTs != b.CreatedTs {
			return a.CreatedTs > b.CreatedTs
		}
		return a.AssetID < b.AssetID
	})
}

// SortFaceNeighbors orders results by descending score, then descending
// creation timestamp, then ascending face id.
func SortFaceNeighbors(list []*FaceNeighbor) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.CreatedTs != b.CreatedTs {
			return a.CreatedTs > b.CreatedTs
		}
		return a.FaceID < b.FaceID
	})
}
