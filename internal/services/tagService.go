package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bkmrks/internal/metrics"
	"bkmrks/internal/models"
	"bkmrks/internal/repositories"
	"bkmrks/internal/utils"
)

type TagService interface {
	ListTags(ctx context.Context, userID primitive.ObjectID) ([]models.TagListItem, error)
	CreateTag(ctx context.Context, req models.CreateTagRequest) (*models.Tag, error)
}

type tagServiceImpl struct {
	tagRepo   repositories.TagRepository
	validator *utils.Validator
}

func NewTagService(tagRepo repositories.TagRepository) TagService {
	return &tagServiceImpl{tagRepo: tagRepo, validator: utils.NewValidator()}
}

// ListTags returns every tag with the number of the caller's bookmarks carrying it.
func (s *tagServiceImpl) ListTags(ctx context.Context, userID primitive.ObjectID) ([]models.TagListItem, error) {
	log.Debug().Str("userID", userID.Hex()).Msg("Attempting to list tags")
	tags, err := s.tagRepo.ListWithCounts(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("userID", userID.Hex()).Msg("Failed to list tags")
		return nil, err
	}
	return tags, nil
}

func (s *tagServiceImpl) CreateTag(ctx context.Context, req models.CreateTagRequest) (*models.Tag, error) {
	log.Debug().Str("title", req.Title).Msg("Attempting to create tag")
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	tag, err := s.tagRepo.Create(ctx, &models.Tag{Title: req.Title})
	if err != nil {
		if errors.Is(err, utils.ErrConflict) {
			log.Warn().Str("title", req.Title).Msg("Tag already exists")
			return nil, utils.NewValidationError("title", "tag with this title already exists.")
		}
		log.Error().Err(err).Str("title", req.Title).Msg("Failed to create tag")
		return nil, err
	}
	metrics.TagCreatedTotal.Inc()
	log.Info().Str("tag_id", tag.ID.Hex()).Msg("Tag created successfully")
	return tag, nil
}
