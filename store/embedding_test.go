package store_test

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsudoi-io/tsudoi/internal/vector"
	"github.com/tsudoi-io/tsudoi/store"
	teststore "github.com/tsudoi-io/tsudoi/store/test"
)

// imageVec pads the given leading components to the image embedding
// dimension.
func imageVec(vals ...float32) []float32 {
	v := make([]float32, store.ImageEmbeddingDim)
	copy(v, vals)
	return v
}

func faceVec(vals ...float32) []float32 {
	v := make([]float32, store.FaceEmbeddingDim)
	copy(v, vals)
	return v
}

func createAsset(ctx context.Context, t *testing.T, ts *store.Store, id string, ownerID int32, createdTs int64) *store.Asset {
	t.Helper()
	created, err := ts.CreateAsset(ctx, &store.Asset{
		ID:          id,
		OwnerID:     ownerID,
		ContentType: "image/jpeg",
		StorageKey:  "journal/1/2026/08/photo.jpg",
		CreatedTs:   createdTs,
	})
	require.NoError(t, err)
	return created
}

func upsertImage(ctx context.Context, t *testing.T, ts *store.Store, assetID string, createdTs int64, vals ...float32) {
	t.Helper()
	_, err := ts.UpsertImageEmbedding(ctx, &store.ImageEmbedding{
		AssetID:   assetID,
		Model:     "clip-vit-l14",
		Embedding: imageVec(vals...),
		CreatedTs: createdTs,
	})
	require.NoError(t, err)
}

func TestImageEmbeddingRoundTrip(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)
	createAsset(ctx, t, ts, "a1", 1, 100)

	vec := imageVec(0.25, -0.5, 0.75)
	_, err := ts.UpsertImageEmbedding(ctx, &store.ImageEmbedding{
		AssetID:   "a1",
		Model:     "clip-vit-l14",
		Embedding: vec,
	})
	require.NoError(t, err)

	fetched, err := ts.GetImageEmbedding(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, vec, fetched.Embedding)
	require.Equal(t, "clip-vit-l14", fetched.Model)

	// Self-search ranks the asset first with a perfect score.
	results, err := ts.SearchImageNeighbors(ctx, &store.FindImageNeighbors{Vector: vec, Limit: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "a1", results[0].AssetID)
	require.Equal(t, 1.0, results[0].Score)
	require.Equal(t, 0.0, results[0].Distance)
}

func TestImageEmbeddingUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)
	createAsset(ctx, t, ts, "a1", 1, 100)

	upsertImage(ctx, t, ts, "a1", 100, 1)
	upsertImage(ctx, t, ts, "a1", 0, 0, 1)

	fetched, err := ts.GetImageEmbedding(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, imageVec(0, 1), fetched.Embedding)
	// Creation timestamp survives replacement.
	require.Equal(t, int64(100), fetched.CreatedTs)
}

func TestImageEmbeddingDimensionGate(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)
	createAsset(ctx, t, ts, "a1", 1, 100)

	_, err := ts.UpsertImageEmbedding(ctx, &store.ImageEmbedding{
		AssetID:   "a1",
		Model:     "clip-vit-l14",
		Embedding: make([]float32, 100),
	})
	require.ErrorIs(t, err, store.ErrDimensionMismatch)

	_, err = ts.SearchImageNeighbors(ctx, &store.FindImageNeighbors{
		Vector: make([]float32, store.FaceEmbeddingDim),
		Limit:  5,
	})
	require.ErrorIs(t, err, store.ErrDimensionMismatch)

	_, err = ts.ReplaceFaceEmbeddings(ctx, "a1", []*store.FaceEmbeddingUpsert{
		{Embedding: make([]float32, store.ImageEmbeddingDim)},
	})
	require.ErrorIs(t, err, store.ErrDimensionMismatch)

	_, err = ts.SearchFaceNeighbors(ctx, &store.FindFaceNeighbors{
		Vector: make([]float32, 3),
		Limit:  5,
	})
	require.ErrorIs(t, err, store.ErrDimensionMismatch)
}

func TestSearchImageNeighborsRanking(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)

	// Distances from the query (1,0,0,...): a1 = 0, a2 = 1, a3 = 2.
	createAsset(ctx, t, ts, "a1", 1, 100)
	createAsset(ctx, t, ts, "a2", 1, 100)
	createAsset(ctx, t, ts, "a3", 1, 100)
	upsertImage(ctx, t, ts, "a1", 100, 1)
	upsertImage(ctx, t, ts, "a2", 100, 1, 1)
	upsertImage(ctx, t, ts, "a3", 100, 1, 2)

	results, err := ts.SearchImageNeighbors(ctx, &store.FindImageNeighbors{
		Vector: imageVec(1),
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, []string{"a1", "a2", "a3"}, assetIDs(results))
	require.Equal(t, 1.0, results[0].Score)
	require.InDelta(t, 0.5, results[1].Score, 1e-9)
	require.InDelta(t, 1.0/3.0, results[2].Score, 1e-9)

	// Truncation keeps the best-ranked prefix.
	results, err = ts.SearchImageNeighbors(ctx, &store.FindImageNeighbors{
		Vector: imageVec(1),
		Limit:  2,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a1", "a2"}, assetIDs(results))
}

func TestSearchImageNeighborsTieBreaks(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)

	// All three are equidistant from the query; ordering falls back to
	// created_ts desc, then asset id asc.
	createAsset(ctx, t, ts, "b", 1, 100)
	createAsset(ctx, t, ts, "c", 1, 200)
	createAsset(ctx, t, ts, "a", 1, 100)
	upsertImage(ctx, t, ts, "b", 100, 1)
	upsertImage(ctx, t, ts, "c", 200, 1)
	upsertImage(ctx, t, ts, "a", 100, 1)

	results, err := ts.SearchImageNeighbors(ctx, &store.FindImageNeighbors{
		Vector: imageVec(1),
		Limit:  10,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"c", "a", "b"}, assetIDs(results))
}

func TestSearchImageNeighborsOwnerFilter(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)

	createAsset(ctx, t, ts, "mine", 1, 100)
	createAsset(ctx, t, ts, "theirs", 2, 100)
	upsertImage(ctx, t, ts, "mine", 100, 1)
	upsertImage(ctx, t, ts, "theirs", 100, 1)

	// Nil owner set: no restriction.
	results, err := ts.SearchImageNeighbors(ctx, &store.FindImageNeighbors{
		Vector: imageVec(1),
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Restricted to owner 1.
	results, err = ts.SearchImageNeighbors(ctx, &store.FindImageNeighbors{
		Vector:   imageVec(1),
		Limit:    10,
		OwnerIDs: []int32{1},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"mine"}, assetIDs(results))

	// Explicit empty owner set restricts to nothing.
	results, err = ts.SearchImageNeighbors(ctx, &store.FindImageNeighbors{
		Vector:   imageVec(1),
		Limit:    10,
		OwnerIDs: []int32{},
	})
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestSearchImageNeighborsExcludeAndModel(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)

	createAsset(ctx, t, ts, "a1", 1, 100)
	createAsset(ctx, t, ts, "a2", 1, 100)
	upsertImage(ctx, t, ts, "a1", 100, 1)
	upsertImage(ctx, t, ts, "a2", 100, 1)

	results, err := ts.SearchImageNeighbors(ctx, &store.FindImageNeighbors{
		Vector:          imageVec(1),
		Limit:           10,
		ExcludeAssetIDs: []string{"a1"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a2"}, assetIDs(results))

	other := "some-other-model"
	results, err = ts.SearchImageNeighbors(ctx, &store.FindImageNeighbors{
		Vector: imageVec(1),
		Limit:  10,
		Model:  &other,
	})
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestSearchImageNeighborsLimitGate(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)
	createAsset(ctx, t, ts, "a1", 1, 100)
	upsertImage(ctx, t, ts, "a1", 100, 1)

	for _, limit := range []int{0, -1} {
		results, err := ts.SearchImageNeighbors(ctx, &store.FindImageNeighbors{
			Vector: imageVec(1),
			Limit:  limit,
		})
		require.NoError(t, err)
		require.Empty(t, results)
	}
}

func TestReplaceFaceEmbeddings(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)
	createAsset(ctx, t, ts, "a1", 1, 100)

	first, err := ts.ReplaceFaceEmbeddings(ctx, "a1", []*store.FaceEmbeddingUpsert{
		{Embedding: faceVec(1), BBox: &store.BoundingBox{Left: 0.1, Top: 0.2, Width: 0.3, Height: 0.4}},
		{Embedding: faceVec(0, 1)},
	})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.NotNil(t, first[0].BBox)
	require.Equal(t, 0.3, first[0].BBox.Width)

	// Replacement drops the previous set entirely.
	second, err := ts.ReplaceFaceEmbeddings(ctx, "a1", []*store.FaceEmbeddingUpsert{
		{Embedding: faceVec(0, 0, 1)},
	})
	require.NoError(t, err)
	require.Len(t, second, 1)

	listed, err := ts.ListFaceEmbeddings(ctx, &store.FindFaceEmbedding{AssetID: strPtr("a1")})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, faceVec(0, 0, 1), listed[0].Embedding)

	// An empty set clears all faces.
	cleared, err := ts.ReplaceFaceEmbeddings(ctx, "a1", nil)
	require.NoError(t, err)
	require.Empty(t, cleared)

	listed, err = ts.ListFaceEmbeddings(ctx, &store.FindFaceEmbedding{AssetID: strPtr("a1")})
	require.NoError(t, err)
	require.Empty(t, listed)
}

func TestSearchFaceNeighborsInnerProductRanking(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)
	createAsset(ctx, t, ts, "a1", 1, 100)

	// Inner products with the query (1,0,...): 0.9, 0.5, -0.2.
	faces, err := ts.ReplaceFaceEmbeddings(ctx, "a1", []*store.FaceEmbeddingUpsert{
		{Embedding: faceVec(0.5)},
		{Embedding: faceVec(0.9)},
		{Embedding: faceVec(-0.2)},
	})
	require.NoError(t, err)

	results, err := ts.SearchFaceNeighbors(ctx, &store.FindFaceNeighbors{
		Vector: faceVec(1),
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, faces[1].ID, results[0].FaceID)
	require.InDelta(t, 0.9, results[0].Score, 1e-6)
	require.Equal(t, faces[0].ID, results[1].FaceID)
	require.Equal(t, faces[2].ID, results[2].FaceID)
	require.InDelta(t, -0.2, results[2].Score, 1e-6)
}

func TestSearchFaceNeighborsIncludeExclude(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)
	createAsset(ctx, t, ts, "a1", 1, 100)

	faces, err := ts.ReplaceFaceEmbeddings(ctx, "a1", []*store.FaceEmbeddingUpsert{
		{Embedding: faceVec(0.9)},
		{Embedding: faceVec(0.8)},
		{Embedding: faceVec(0.7)},
	})
	require.NoError(t, err)

	// Include narrows the candidate set.
	results, err := ts.SearchFaceNeighbors(ctx, &store.FindFaceNeighbors{
		Vector:         faceVec(1),
		Limit:          10,
		IncludeFaceIDs: []int64{faces[1].ID, faces[2].ID},
	})
	require.NoError(t, err)
	require.Equal(t, []int64{faces[1].ID, faces[2].ID}, faceIDs(results))

	// Exclusion is subtracted from the include set before filtering.
	results, err = ts.SearchFaceNeighbors(ctx, &store.FindFaceNeighbors{
		Vector:         faceVec(1),
		Limit:          10,
		IncludeFaceIDs: []int64{faces[1].ID, faces[2].ID},
		ExcludeFaceIDs: []int64{faces[1].ID},
	})
	require.NoError(t, err)
	require.Equal(t, []int64{faces[2].ID}, faceIDs(results))

	// A fully excluded include set yields nothing, not everything.
	results, err = ts.SearchFaceNeighbors(ctx, &store.FindFaceNeighbors{
		Vector:         faceVec(1),
		Limit:          10,
		IncludeFaceIDs: []int64{faces[0].ID},
		ExcludeFaceIDs: []int64{faces[0].ID},
	})
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestSearchFaceNeighborsOwnerAndAssetFilter(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)
	createAsset(ctx, t, ts, "mine", 1, 100)
	createAsset(ctx, t, ts, "theirs", 2, 100)

	_, err := ts.ReplaceFaceEmbeddings(ctx, "mine", []*store.FaceEmbeddingUpsert{{Embedding: faceVec(1)}})
	require.NoError(t, err)
	_, err = ts.ReplaceFaceEmbeddings(ctx, "theirs", []*store.FaceEmbeddingUpsert{{Embedding: faceVec(1)}})
	require.NoError(t, err)

	results, err := ts.SearchFaceNeighbors(ctx, &store.FindFaceNeighbors{
		Vector:   faceVec(1),
		Limit:    10,
		OwnerIDs: []int32{2},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "theirs", results[0].AssetID)

	results, err = ts.SearchFaceNeighbors(ctx, &store.FindFaceNeighbors{
		Vector:   faceVec(1),
		Limit:    10,
		OwnerIDs: []int32{},
	})
	require.NoError(t, err)
	require.Empty(t, results)

	results, err = ts.SearchFaceNeighbors(ctx, &store.FindFaceNeighbors{
		Vector:   faceVec(1),
		Limit:    10,
		AssetIDs: []string{"mine"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "mine", results[0].AssetID)
}

func TestDeleteFaceEmbeddings(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)
	createAsset(ctx, t, ts, "a1", 1, 100)

	faces, err := ts.ReplaceFaceEmbeddings(ctx, "a1", []*store.FaceEmbeddingUpsert{
		{Embedding: faceVec(1)},
		{Embedding: faceVec(0, 1)},
	})
	require.NoError(t, err)

	require.NoError(t, ts.DeleteFaceEmbeddings(ctx, []int64{faces[0].ID, 99999}))

	listed, err := ts.ListFaceEmbeddings(ctx, &store.FindFaceEmbedding{AssetID: strPtr("a1")})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, faces[1].ID, listed[0].ID)

	// Empty id set is a no-op.
	require.NoError(t, ts.DeleteFaceEmbeddings(ctx, nil))
}

// TestSearchImageNeighborsMatchesNaiveRanking cross-checks the driver's
// ranking against a naive scan over the same rows.
func TestSearchImageNeighborsMatchesNaiveRanking(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)

	rng := rand.New(rand.NewSource(42))
	type row struct {
		id        string
		createdTs int64
		embedding []float32
	}
	rows := make([]row, 0, 30)
	for i := 0; i < 30; i++ {
		id := fmt.Sprintf("asset-%02d", i)
		// Duplicate timestamps on purpose to exercise the tie-break chain.
		createdTs := int64(100 + i%7)
		vec := imageVec()
		for j := range vec {
			vec[j] = rng.Float32()*2 - 1
		}
		createAsset(ctx, t, ts, id, 1, createdTs)
		_, err := ts.UpsertImageEmbedding(ctx, &store.ImageEmbedding{
			AssetID:   id,
			Model:     "clip-vit-l14",
			Embedding: vec,
			CreatedTs: createdTs,
		})
		require.NoError(t, err)
		rows = append(rows, row{id: id, createdTs: createdTs, embedding: vec})
	}

	query := imageVec()
	for j := range query {
		query[j] = rng.Float32()*2 - 1
	}

	oracle := make([]*store.ImageNeighbor, 0, len(rows))
	for _, r := range rows {
		d := vector.L2Distance(query, r.embedding)
		oracle = append(oracle, &store.ImageNeighbor{
			AssetID:   r.id,
			Distance:  d,
			Score:     vector.L2Score(d),
			CreatedTs: r.createdTs,
		})
	}
	store.SortImageNeighbors(oracle)

	got, err := ts.SearchImageNeighbors(ctx, &store.FindImageNeighbors{
		Vector: query,
		Limit:  10,
	})
	require.NoError(t, err)
	require.Equal(t, assetIDs(oracle[:10]), assetIDs(got))
	for i, neighbor := range got {
		require.InDelta(t, oracle[i].Score, neighbor.Score, 1e-6)
	}
}

func assetIDs(list []*store.ImageNeighbor) []string {
	ids := make([]string, 0, len(list))
	for _, n := range list {
		ids = append(ids, n.AssetID)
	}
	return ids
}

func faceIDs(list []*store.FaceNeighbor) []int64 {
	ids := make([]int64, 0, len(list))
	for _, n := range list {
		ids = append(ids, n.FaceID)
	}
	return ids
}

func strPtr(s string) *string {
	return &s
}
