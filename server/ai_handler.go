package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tsudoi-io/tsudoi/ai"
	"github.com/tsudoi-io/tsudoi/asset"
	"github.com/tsudoi-io/tsudoi/store"
)

// AIOrchestrator is the surface the HTTP handlers need from the AI service.
type AIOrchestrator interface {
	SuggestThemes(ctx context.Context, assetID string, hints []string, topK int) (*ai.ThemeSuggestionResult, error)
	MatchPeople(ctx context.Context, assetID string, requesterID int32, friendIDs []int32, perFaceLimit *int) ([]ai.FaceMatch, error)
	GenerateProposalDraft(ctx context.Context, assetID string, audienceHints []int32, contextNotes []string) (*ai.ProposalResult, error)
}

type aiHandler struct {
	service AIOrchestrator
}

func registerAIRoutes(g *echo.Group, service AIOrchestrator) {
	h := &aiHandler{service: service}
	g.POST("/ai/themes/suggest", h.suggestThemes)
	g.POST("/ai/people/match", h.matchPeople)
	g.POST("/ai/proposals/draft", h.generateProposalDraft)
}

type suggestThemesRequest struct {
	AssetID string   `json:"asset_id"`
	Hints   []string `json:"hints"`
	TopK    int      `json:"top_k"`
}

type suggestThemesResponse struct {
	Themes      []string `json:"themes"`
	Description string   `json:"description"`
	Model       string   `json:"model"`
}

func (h *aiHandler) suggestThemes(c echo.Context) error {
	var req suggestThemesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body").SetInternal(err)
	}
	if req.AssetID == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "asset_id must be a non-empty string")
	}
	if req.TopK == 0 {
		req.TopK = 5
	}
	if req.TopK < 0 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "top_k must be a positive integer")
	}

	result, err := h.service.SuggestThemes(c.Request().Context(), req.AssetID, req.Hints, req.TopK)
	if err != nil {
		return classifiedHTTPError(err)
	}

	return c.JSON(http.StatusOK, suggestThemesResponse{
		Themes:      result.Suggestions,
		Description: result.Description,
		Model:       result.SourceModel,
	})
}

type matchPeopleRequest struct {
	AssetID       string  `json:"asset_id"`
	RequesterID   int32   `json:"requester_id"`
	FriendUserIDs []int32 `json:"friend_user_ids"`
	PerFaceLimit  *int    `json:"per_face_limit"`
}

type faceCandidatePayload struct {
	OwnerID int32   `json:"user_id"`
	AssetID string  `json:"asset_id"`
	FaceID  int64   `json:"face_id"`
	Score   float64 `json:"score"`
}

type faceMatchPayload struct {
	Box          store.BoundingBox      `json:"box"`
	Candidates   []faceCandidatePayload `json:"candidates"`
	SearchFailed bool                   `json:"search_failed,omitempty"`
}

type matchPeopleResponse struct {
	MatchedFaces []faceMatchPayload `json:"matched_faces"`
	RequesterID  int32              `json:"requester_id"`
}

func (h *aiHandler) matchPeople(c echo.Context) error {
	var req matchPeopleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body").SetInternal(err)
	}
	if req.AssetID == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "asset_id must be a non-empty string")
	}
	if req.RequesterID <= 0 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "requester_id must be provided as a positive integer")
	}
	if req.PerFaceLimit != nil && *req.PerFaceLimit < 0 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "per_face_limit must be greater than or equal to zero")
	}

	matches, err := h.service.MatchPeople(c.Request().Context(), req.AssetID, req.RequesterID, req.FriendUserIDs, req.PerFaceLimit)
	if err != nil {
		return classifiedHTTPError(err)
	}

	payload := matchPeopleResponse{
		MatchedFaces: make([]faceMatchPayload, 0, len(matches)),
		RequesterID:  req.RequesterID,
	}
	for _, match := range matches {
		entry := faceMatchPayload{
			Box:          match.Face.BBox,
			Candidates:   make([]faceCandidatePayload, 0, len(match.Candidates)),
			SearchFailed: match.SearchErr != nil,
		}
		for _, candidate := range match.Candidates {
			entry.Candidates = append(entry.Candidates, faceCandidatePayload{
				OwnerID: candidate.OwnerID,
				AssetID: candidate.AssetID,
				FaceID:  candidate.FaceID,
				Score:   candidate.Score,
			})
		}
		payload.MatchedFaces = append(payload.MatchedFaces, entry)
	}

	return c.JSON(http.StatusOK, payload)
}

type proposalDraftRequest struct {
	AssetID       string   `json:"asset_id"`
	AudienceHints []int32  `json:"audience_hints"`
	ContextNotes  []string `json:"context_notes"`
}

type proposalDraftPayload struct {
	Title           string        `json:"title"`
	Body            string        `json:"body"`
	AudienceUserIDs []int32       `json:"audience_user_ids"`
	Slots           []ai.TimeSlot `json:"slots"`
}

type proposalDraftResponse struct {
	Draft proposalDraftPayload `json:"draft"`
	Model string               `json:"model"`
}

func (h *aiHandler) generateProposalDraft(c echo.Context) error {
	var req proposalDraftRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body").SetInternal(err)
	}
	if req.AssetID == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "asset_id must be a non-empty string")
	}

	result, err := h.service.GenerateProposalDraft(c.Request().Context(), req.AssetID, req.AudienceHints, req.ContextNotes)
	if err != nil {
		return classifiedHTTPError(err)
	}

	return c.JSON(http.StatusOK, proposalDraftResponse{
		Draft: proposalDraftPayload{
			Title:           result.Draft.Title,
			Body:            result.Draft.Body,
			AudienceUserIDs: result.Draft.Audience,
			Slots:           result.Draft.Slots,
		},
		Model: result.SourceModel,
	})
}

// classifiedHTTPError maps the orchestration error taxonomy onto HTTP
// statuses. Unknown errors stay 500.
func classifiedHTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, asset.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "asset not found").SetInternal(err)
	case errors.Is(err, asset.ErrOwnershipViolation):
		return echo.NewHTTPError(http.StatusForbidden, "asset belongs to another user").SetInternal(err)
	case errors.Is(err, asset.ErrStoragePolicyViolation),
		errors.Is(err, asset.ErrContentTypeViolation),
		errors.Is(err, asset.ErrSizeLimitExceeded),
		errors.Is(err, asset.ErrMetadataValidation):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "asset failed storage validation").SetInternal(err)
	case errors.Is(err, store.ErrDimensionMismatch):
		return echo.NewHTTPError(http.StatusBadRequest, "embedding dimension mismatch").SetInternal(err)
	case errors.Is(err, asset.ErrMetadataRetrieval),
		errors.Is(err, ai.ErrModelInvocation),
		errors.Is(err, ai.ErrModelContract):
		return echo.NewHTTPError(http.StatusBadGateway, "upstream model or storage backend failed").SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}
