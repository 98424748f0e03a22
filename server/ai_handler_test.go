package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/tsudoi-io/tsudoi/ai"
	"github.com/tsudoi-io/tsudoi/asset"
	"github.com/tsudoi-io/tsudoi/store"
)

type fakeOrchestrator struct {
	themesResult   *ai.ThemeSuggestionResult
	themesErr      error
	matches        []ai.FaceMatch
	matchErr       error
	proposalResult *ai.ProposalResult
	proposalErr    error

	lastAssetID      string
	lastHints        []string
	lastTopK         int
	lastRequesterID  int32
	lastFriendIDs    []int32
	lastPerFaceLimit *int
	lastAudience     []int32
	lastNotes        []string
}

func (f *fakeOrchestrator) SuggestThemes(_ context.Context, assetID string, hints []string, topK int) (*ai.ThemeSuggestionResult, error) {
	f.lastAssetID = assetID
	f.lastHints = hints
	f.lastTopK = topK
	return f.themesResult, f.themesErr
}

func (f *fakeOrchestrator) MatchPeople(_ context.Context, assetID string, requesterID int32, friendIDs []int32, perFaceLimit *int) ([]ai.FaceMatch, error) {
	f.lastAssetID = assetID
	f.lastRequesterID = requesterID
	f.lastFriendIDs = friendIDs
	f.lastPerFaceLimit = perFaceLimit
	return f.matches, f.matchErr
}

func (f *fakeOrchestrator) GenerateProposalDraft(_ context.Context, assetID string, audienceHints []int32, contextNotes []string) (*ai.ProposalResult, error) {
	f.lastAssetID = assetID
	f.lastAudience = audienceHints
	f.lastNotes = contextNotes
	return f.proposalResult, f.proposalErr
}

func newTestRouter(svc AIOrchestrator) *echo.Echo {
	e := echo.New()
	registerAIRoutes(e.Group("/api/v1"), svc)
	return e
}

func doJSON(t *testing.T, e *echo.Echo, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSuggestThemesEndpoint(t *testing.T) {
	svc := &fakeOrchestrator{
		themesResult: &ai.ThemeSuggestionResult{
			Suggestions: []string{"花見", "紅葉狩り"},
			Description: "公園でのピクニックの写真",
			SourceModel: "gpt-4o-mini",
		},
	}
	e := newTestRouter(svc)

	rec := doJSON(t, e, "/api/v1/ai/themes/suggest", `{"asset_id":"a1","hints":["屋外"],"top_k":3}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp suggestThemesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, []string{"花見", "紅葉狩り"}, resp.Themes)
	require.Equal(t, "公園でのピクニックの写真", resp.Description)
	require.Equal(t, "gpt-4o-mini", resp.Model)

	require.Equal(t, "a1", svc.lastAssetID)
	require.Equal(t, []string{"屋外"}, svc.lastHints)
	require.Equal(t, 3, svc.lastTopK)
}

func TestSuggestThemesDefaultsTopK(t *testing.T) {
	svc := &fakeOrchestrator{themesResult: &ai.ThemeSuggestionResult{}}
	e := newTestRouter(svc)

	rec := doJSON(t, e, "/api/v1/ai/themes/suggest", `{"asset_id":"a1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 5, svc.lastTopK)
}

func TestSuggestThemesValidation(t *testing.T) {
	svc := &fakeOrchestrator{}
	e := newTestRouter(svc)

	rec := doJSON(t, e, "/api/v1/ai/themes/suggest", `{"hints":["x"]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, e, "/api/v1/ai/themes/suggest", `{"asset_id":"a1","top_k":-1}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, e, "/api/v1/ai/themes/suggest", `{not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMatchPeopleEndpoint(t *testing.T) {
	limit := 2
	svc := &fakeOrchestrator{
		matches: []ai.FaceMatch{
			{
				Face: ai.DetectedFace{BBox: store.BoundingBox{Left: 1, Top: 2, Width: 30, Height: 40}},
				Candidates: []ai.FaceMatchCandidate{
					{OwnerID: 7, AssetID: "a2", FaceID: 11, Score: 0.87},
				},
			},
			{
				Face:       ai.DetectedFace{BBox: store.BoundingBox{Left: 5, Top: 6, Width: 20, Height: 20}},
				Candidates: []ai.FaceMatchCandidate{},
				SearchErr:  errors.New("backend unavailable"),
			},
		},
	}
	e := newTestRouter(svc)

	rec := doJSON(t, e, "/api/v1/ai/people/match",
		`{"asset_id":"a1","requester_id":7,"friend_user_ids":[8,9],"per_face_limit":2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp matchPeopleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int32(7), resp.RequesterID)
	require.Len(t, resp.MatchedFaces, 2)

	require.False(t, resp.MatchedFaces[0].SearchFailed)
	require.Len(t, resp.MatchedFaces[0].Candidates, 1)
	require.Equal(t, int32(7), resp.MatchedFaces[0].Candidates[0].OwnerID)
	require.Equal(t, "a2", resp.MatchedFaces[0].Candidates[0].AssetID)
	require.Equal(t, int64(11), resp.MatchedFaces[0].Candidates[0].FaceID)
	require.InDelta(t, 0.87, resp.MatchedFaces[0].Candidates[0].Score, 1e-9)

	require.True(t, resp.MatchedFaces[1].SearchFailed)
	require.Empty(t, resp.MatchedFaces[1].Candidates)

	require.Equal(t, int32(7), svc.lastRequesterID)
	require.Equal(t, []int32{8, 9}, svc.lastFriendIDs)
	require.NotNil(t, svc.lastPerFaceLimit)
	require.Equal(t, limit, *svc.lastPerFaceLimit)
}

func TestMatchPeopleValidation(t *testing.T) {
	svc := &fakeOrchestrator{}
	e := newTestRouter(svc)

	rec := doJSON(t, e, "/api/v1/ai/people/match", `{"requester_id":7}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, e, "/api/v1/ai/people/match", `{"asset_id":"a1"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, e, "/api/v1/ai/people/match", `{"asset_id":"a1","requester_id":7,"per_face_limit":-1}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGenerateProposalDraftEndpoint(t *testing.T) {
	svc := &fakeOrchestrator{
		proposalResult: &ai.ProposalResult{
			Draft: &ai.ProposalDraft{
				Title:    "秋のバーベキュー大会",
				Body:     "河原でバーベキューをしましょう。",
				Audience: []int32{2, 3},
				Slots: []ai.TimeSlot{
					{Start: "2026-10-03T11:00:00+09:00", End: "2026-10-03T15:00:00+09:00"},
				},
			},
			SourceModel: "gpt-4o-mini",
		},
	}
	e := newTestRouter(svc)

	rec := doJSON(t, e, "/api/v1/ai/proposals/draft",
		`{"asset_id":"a1","audience_hints":[2,3],"context_notes":["週末希望"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp proposalDraftResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "秋のバーベキュー大会", resp.Draft.Title)
	require.Equal(t, []int32{2, 3}, resp.Draft.AudienceUserIDs)
	require.Len(t, resp.Draft.Slots, 1)
	require.Equal(t, "gpt-4o-mini", resp.Model)

	require.Equal(t, []int32{2, 3}, svc.lastAudience)
	require.Equal(t, []string{"週末希望"}, svc.lastNotes)
}

func TestGenerateProposalDraftValidation(t *testing.T) {
	svc := &fakeOrchestrator{}
	e := newTestRouter(svc)

	rec := doJSON(t, e, "/api/v1/ai/proposals/draft", `{"context_notes":["x"]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", asset.ErrNotFound, http.StatusNotFound},
		{"wrapped not found", errors.Wrap(asset.ErrNotFound, "resolve asset"), http.StatusNotFound},
		{"ownership", asset.ErrOwnershipViolation, http.StatusForbidden},
		{"storage policy", asset.ErrStoragePolicyViolation, http.StatusUnprocessableEntity},
		{"content type", asset.ErrContentTypeViolation, http.StatusUnprocessableEntity},
		{"size limit", asset.ErrSizeLimitExceeded, http.StatusUnprocessableEntity},
		{"metadata validation", asset.ErrMetadataValidation, http.StatusUnprocessableEntity},
		{"dimension", store.ErrDimensionMismatch, http.StatusBadRequest},
		{"metadata retrieval", asset.ErrMetadataRetrieval, http.StatusBadGateway},
		{"model invocation", ai.ErrModelInvocation, http.StatusBadGateway},
		{"model contract", ai.ErrModelContract, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeOrchestrator{themesErr: tt.err}
			e := newTestRouter(svc)

			rec := doJSON(t, e, "/api/v1/ai/themes/suggest", `{"asset_id":"a1"}`)
			require.Equal(t, tt.want, rec.Code)
		})
	}
}
