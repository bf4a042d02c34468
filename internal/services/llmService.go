package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bkmrks/internal/metrics"
	"bkmrks/internal/models"
	"bkmrks/internal/repositories"
	"bkmrks/internal/utils"
)

// Summarizer produces a short description for a page.
type Summarizer interface {
	Summarize(ctx context.Context, url, title string) (string, error)
}

type geminiSummarizer struct {
	llm llms.Model
}

// NewGeminiSummarizer returns nil when no API key is configured.
func NewGeminiSummarizer(ctx context.Context, apiKey, model string) (Summarizer, error) {
	if apiKey == "" {
		return nil, nil
	}
	llm, err := googleai.New(ctx, googleai.WithAPIKey(apiKey), googleai.WithDefaultModel(model))
	if err != nil {
		return nil, fmt.Errorf("failed to create Google AI LLM: %w", err)
	}
	return &geminiSummarizer{llm: llm}, nil
}

func (g *geminiSummarizer) Summarize(ctx context.Context, url, title string) (string, error) {
	prompt := fmt.Sprintf(
		"You are a bookmark summarizer. Describe the page in at most three plain sentences. "+
			"Return only the description.\n\nTitle: %s\nURL: %s",
		title,
		url,
	)

	summary, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate summary from LLM: %w", err)
	}
	return strings.TrimSpace(summary), nil
}

type SummaryService interface {
	SummarizeBookmark(ctx context.Context, userID, bookmarkID primitive.ObjectID) (*models.BookmarkDetail, error)
}

type summaryService struct {
	bookmarkRepo repositories.BookmarkRepository
	summarizer   Summarizer
}

func NewSummaryService(bookmarkRepo repositories.BookmarkRepository, summarizer Summarizer) SummaryService {
	return &summaryService{bookmarkRepo: bookmarkRepo, summarizer: summarizer}
}

// SummarizeBookmark replaces the bookmark's description with a generated one.
func (s *summaryService) SummarizeBookmark(ctx context.Context, userID, bookmarkID primitive.ObjectID) (*models.BookmarkDetail, error) {
	log.Debug().Str("userID", userID.Hex()).Str("bookmark_id", bookmarkID.Hex()).Msg("Attempting to summarize bookmark")
	if s.summarizer == nil {
		return nil, utils.ErrUnavailable
	}

	bm, err := s.bookmarkRepo.FindByID(ctx, bookmarkID)
	if err != nil {
		return nil, err
	}
	if bm.UserID != userID {
		return nil, utils.ErrForbidden
	}

	summary, err := s.summarizer.Summarize(ctx, bm.URL, bm.Title)
	if err != nil {
		log.Error().Err(err).Str("bookmark_id", bookmarkID.Hex()).Msg("Failed to summarize bookmark")
		return nil, err
	}
	if err := s.bookmarkRepo.Update(ctx, bookmarkID, bson.M{"description": summary}); err != nil {
		return nil, err
	}
	metrics.SummaryGeneratedTotal.Inc()
	log.Info().Str("bookmark_id", bookmarkID.Hex()).Msg("Bookmark summary generated")
	return s.bookmarkRepo.FindDetailedByID(ctx, bookmarkID)
}
