package ai

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/tsudoi-io/tsudoi/asset"
	"github.com/tsudoi-io/tsudoi/internal/vector"
	"github.com/tsudoi-io/tsudoi/store"
)

// maxConcurrentFaceSearches bounds the read-only per-face candidate lookups
// running in parallel for one asset.
const maxConcurrentFaceSearches = 4

// ThemeSuggestionResult is the structured response of theme suggestion.
type ThemeSuggestionResult struct {
	Suggestions []string
	Description string
	SourceModel string
}

// FaceMatchCandidate is one ranked candidate for a detected face.
type FaceMatchCandidate struct {
	OwnerID int32
	AssetID string
	FaceID  int64
	Score   float64
}

// FaceMatch pairs a detected face with its ranked candidates. SearchErr is
// set when this face's candidate lookup failed; other faces are unaffected.
type FaceMatch struct {
	Face       DetectedFace
	Candidates []FaceMatchCandidate
	SearchErr  error
}

// ProposalResult is the validated proposal draft plus provenance.
type ProposalResult struct {
	Draft       *ProposalDraft
	SourceModel string
	RawResponse string
}

// NeighborSearcher is the slice of the store the orchestrator reads from.
// *store.Store satisfies it.
type NeighborSearcher interface {
	SearchFaceNeighbors(ctx context.Context, find *store.FindFaceNeighbors) ([]*store.FaceNeighbor, error)
	ListThemeCandidates(ctx context.Context, find *store.FindThemeCandidates) ([]*store.ThemeCandidate, error)
}

// AIService composes the asset resolver, the model adapters, and neighbor
// search into the three orchestration operations. Every operation is a
// single synchronous pipeline: resolve asset, derive signals, rank or
// generate, validate.
type AIService struct {
	store    NeighborSearcher
	resolver *asset.Resolver

	llm           TextGenerator
	vision        VisionDescriber
	imageEmbedder ImageEmbedder
	faceDetector  FaceDetector

	metrics *Metrics
	config  *Config
}

func NewAIService(
	s NeighborSearcher,
	resolver *asset.Resolver,
	llm TextGenerator,
	vision VisionDescriber,
	imageEmbedder ImageEmbedder,
	faceDetector FaceDetector,
	metrics *Metrics,
	config *Config,
) *AIService {
	return &AIService{
		store:         s,
		resolver:      resolver,
		llm:           llm,
		vision:        vision,
		imageEmbedder: imageEmbedder,
		faceDetector:  faceDetector,
		metrics:       metrics,
		config:        config,
	}
}

// SuggestThemes resolves the asset, scores the theme vocabulary against the
// image embedding, and asks the text model to refine the top candidates. A
// response that is not a JSON string array falls back to the pre-ranked
// candidate names instead of failing the request.
func (s *AIService) SuggestThemes(ctx context.Context, assetID string, hints []string, topK int) (result *ThemeSuggestionResult, err error) {
	defer s.observeOperation("suggest_themes", time.Now(), &err)

	info, err := s.resolver.Resolve(ctx, assetID, asset.ResolveOptions{})
	if err != nil {
		return nil, err
	}

	description, err := s.describeAsset(ctx, info)
	if err != nil {
		return nil, err
	}

	embedStart := time.Now()
	imageVector, err := s.imageEmbedder.EmbedAsset(ctx, info)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveModelCall("image_embedding", time.Since(embedStart))

	candidates, err := s.scoreThemeCandidates(ctx, imageVector)
	if err != nil {
		return nil, err
	}
	if topK < 1 {
		topK = 1
	}
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	prompt := buildThemePrompt(description, hints, candidates)
	llmStart := time.Now()
	response, err := s.llm.Generate(ctx, prompt, 0)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveModelCall("llm_theme", time.Since(llmStart))

	suggestions, ok := parseThemeSuggestions(response)
	if !ok {
		slog.Warn("theme response was not a JSON string array, falling back to ranked candidates",
			slog.String("asset", assetID))
		suggestions = make([]string, 0, len(candidates))
		for _, candidate := range candidates {
			suggestions = append(suggestions, candidate.Name)
		}
	}

	return &ThemeSuggestionResult{
		Suggestions: suggestions,
		Description: description,
		SourceModel: s.llm.ModelName(),
	}, nil
}

// MatchPeople resolves the asset, detects faces, and looks up candidates for
// each face among the given friends. An empty friend set returns every
// detected face with no candidates and never touches the search index.
// Candidate lookups for independent faces run concurrently; a failed lookup
// is recorded on its own FaceMatch and does not abort the others.
func (s *AIService) MatchPeople(ctx context.Context, assetID string, requesterID int32, friendIDs []int32, perFaceLimit *int) (matches []FaceMatch, err error) {
	defer s.observeOperation("match_people", time.Now(), &err)

	info, err := s.resolver.Resolve(ctx, assetID, asset.ResolveOptions{})
	if err != nil {
		return nil, err
	}

	detectStart := time.Now()
	faces, err := s.faceDetector.DetectAndEmbed(ctx, info)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveModelCall("face_detection", time.Since(detectStart))

	if len(faces) == 0 {
		return []FaceMatch{}, nil
	}

	matches = make([]FaceMatch, len(faces))
	for i, face := range faces {
		matches[i] = FaceMatch{Face: face, Candidates: []FaceMatchCandidate{}}
	}

	allowed := dedupeIDs(friendIDs)
	if len(allowed) == 0 {
		return matches, nil
	}

	limit := s.config.FaceMatchLimit
	if perFaceLimit != nil {
		limit = *perFaceLimit
	}
	if limit < 0 {
		limit = 0
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrentFaceSearches)
	for i := range matches {
		g.Go(func() error {
			neighbors, searchErr := s.store.SearchFaceNeighbors(ctx, &store.FindFaceNeighbors{
				Vector:   matches[i].Face.Embedding,
				Limit:    limit,
				OwnerIDs: allowed,
			})
			if searchErr != nil {
				slog.Warn("face candidate search failed",
					slog.String("asset", assetID),
					slog.Int("face", i),
					slog.Int("requester", int(requesterID)),
					slog.Any("err", searchErr))
				s.metrics.CountFaceSearchError()
				matches[i].SearchErr = searchErr
				return nil
			}
			candidates := make([]FaceMatchCandidate, 0, len(neighbors))
			for _, neighbor := range neighbors {
				candidates = append(candidates, FaceMatchCandidate{
					OwnerID: neighbor.OwnerID,
					AssetID: neighbor.AssetID,
					FaceID:  neighbor.FaceID,
					Score:   neighbor.Score,
				})
			}
			matches[i].Candidates = candidates
			return nil
		})
	}
	// Per-face failures are recorded in place, never returned.
	_ = g.Wait()

	return matches, nil
}

// GenerateProposalDraft resolves the asset, obtains a vision description,
// and asks the text model for a draft proposal. The response must satisfy
// the draft contract exactly; there is no fallback for a malformed proposal.
func (s *AIService) GenerateProposalDraft(ctx context.Context, assetID string, audienceHints []int32, contextNotes []string) (result *ProposalResult, err error) {
	defer s.observeOperation("generate_proposal_draft", time.Now(), &err)

	info, err := s.resolver.Resolve(ctx, assetID, asset.ResolveOptions{})
	if err != nil {
		return nil, err
	}

	description, err := s.describeAsset(ctx, info)
	if err != nil {
		return nil, err
	}

	prompt := buildProposalPrompt(description, audienceHints, contextNotes)
	llmStart := time.Now()
	response, err := s.llm.Generate(ctx, prompt, s.config.ProposalTemperature)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveModelCall("llm_proposal", time.Since(llmStart))

	draft, err := parseProposalDraft(response)
	if err != nil {
		return nil, errors.Wrapf(err, "proposal draft for asset %s", assetID)
	}

	return &ProposalResult{
		Draft:       draft,
		SourceModel: s.llm.ModelName(),
		RawResponse: response,
	}, nil
}

func (s *AIService) describeAsset(ctx context.Context, info *asset.Info) (string, error) {
	start := time.Now()
	description, err := s.vision.DescribeAsset(ctx, info)
	if err != nil {
		return "", err
	}
	s.metrics.ObserveModelCall("vision", time.Since(start))
	return description, nil
}

// scoreThemeCandidates ranks the current theme vocabulary by cosine
// similarity to the query vector. Equal scores order by name so the ranking
// is deterministic.
func (s *AIService) scoreThemeCandidates(ctx context.Context, queryVector []float32) ([]ScoredTheme, error) {
	candidates, err := s.store.ListThemeCandidates(ctx, &store.FindThemeCandidates{Current: true})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list theme candidates")
	}

	scored := make([]ScoredTheme, 0, len(candidates))
	for _, candidate := range candidates {
		scored = append(scored, ScoredTheme{
			Name:  candidate.Name,
			Score: vector.CosineSimilarity(queryVector, candidate.Embedding),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Name < scored[j].Name
	})

	return scored, nil
}

func (s *AIService) observeOperation(operation string, start time.Time, err *error) {
	status := "success"
	if *err != nil {
		status = "error"
	}
	s.metrics.ObserveOperation(operation, status, time.Since(start))
}

func dedupeIDs(ids []int32) []int32 {
	seen := make(map[int32]struct{}, len(ids))
	deduped := make([]int32, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		deduped = append(deduped, id)
	}
	return deduped
}
