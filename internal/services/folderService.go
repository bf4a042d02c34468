package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bkmrks/internal/metrics"
	"bkmrks/internal/models"
	"bkmrks/internal/repositories"
	"bkmrks/internal/utils"
)

type FolderService interface {
	ListFolders(ctx context.Context, userID primitive.ObjectID) ([]models.FolderListItem, error)
	CreateFolder(ctx context.Context, userID primitive.ObjectID, req models.CreateFolderRequest) (*models.Folder, error)
	UpdateFolder(ctx context.Context, userID, folderID primitive.ObjectID, req models.UpdateFolderRequest) (*models.Folder, error)
	DeleteFolder(ctx context.Context, userID, folderID primitive.ObjectID) error
}

type folderServiceImpl struct {
	folderRepo   repositories.FolderRepository
	bookmarkRepo repositories.BookmarkRepository
	userRepo     repositories.UserRepository
	validator    *utils.Validator
}

func NewFolderService(folderRepo repositories.FolderRepository, bookmarkRepo repositories.BookmarkRepository, userRepo repositories.UserRepository) FolderService {
	return &folderServiceImpl{
		folderRepo:   folderRepo,
		bookmarkRepo: bookmarkRepo,
		userRepo:     userRepo,
		validator:    utils.NewValidator(),
	}
}

func (s *folderServiceImpl) ListFolders(ctx context.Context, userID primitive.ObjectID) ([]models.FolderListItem, error) {
	log.Debug().Str("userID", userID.Hex()).Msg("Attempting to list folders")
	folders, err := s.folderRepo.ListWithCounts(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("userID", userID.Hex()).Msg("Failed to list folders")
		return nil, err
	}
	return folders, nil
}

// CreateFolder creates a folder for the user named in the payload, which must be the caller.
func (s *folderServiceImpl) CreateFolder(ctx context.Context, userID primitive.ObjectID, req models.CreateFolderRequest) (*models.Folder, error) {
	log.Debug().Str("userID", userID.Hex()).Str("title", req.Title).Msg("Attempting to create folder")
	if err := s.validator.Struct(req); err != nil {
		log.Warn().Err(err).Str("userID", userID.Hex()).Msg("Invalid folder payload")
		return nil, err
	}

	notExists := utils.NewValidationError("user_id", fmt.Sprintf("User with user_id=%s does not exist!", req.UserID))
	ownerID, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		return nil, notExists
	}
	if _, err := s.userRepo.FindByID(ctx, ownerID); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, notExists
		}
		return nil, err
	}
	if ownerID != userID {
		log.Warn().Str("userID", userID.Hex()).Str("owner", ownerID.Hex()).Msg("Folder creation for another user rejected")
		return nil, utils.ErrForbidden
	}

	folder, err := s.folderRepo.Create(ctx, &models.Folder{UserID: ownerID, Title: req.Title})
	if err != nil {
		log.Error().Err(err).Str("userID", userID.Hex()).Msg("Failed to create folder")
		return nil, err
	}
	metrics.FolderCreatedTotal.Inc()
	log.Info().Str("userID", userID.Hex()).Str("folder_id", folder.ID.Hex()).Msg("Folder created successfully")
	return folder, nil
}

func (s *folderServiceImpl) owned(ctx context.Context, userID, folderID primitive.ObjectID) (*models.Folder, error) {
	folder, err := s.folderRepo.FindByID(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if folder.UserID != userID {
		log.Warn().Str("userID", userID.Hex()).Str("folder_id", folderID.Hex()).Msg("Folder belongs to another user")
		return nil, utils.ErrForbidden
	}
	return folder, nil
}

func (s *folderServiceImpl) UpdateFolder(ctx context.Context, userID, folderID primitive.ObjectID, req models.UpdateFolderRequest) (*models.Folder, error) {
	log.Debug().Str("userID", userID.Hex()).Str("folder_id", folderID.Hex()).Msg("Attempting to update folder")
	folder, err := s.owned(ctx, userID, folderID)
	if err != nil {
		return nil, err
	}

	title, ok := req.Title.Get()
	if !ok {
		return folder, nil
	}
	if err := s.validator.Var("title", title, fmt.Sprintf("required,max=%d", models.MaxFolderTitleLength)); err != nil {
		return nil, err
	}

	updated, err := s.folderRepo.UpdateTitle(ctx, folderID, title)
	if err != nil {
		log.Error().Err(err).Str("folder_id", folderID.Hex()).Msg("Failed to update folder")
		return nil, err
	}
	log.Info().Str("folder_id", folderID.Hex()).Msg("Folder updated successfully")
	return updated, nil
}

// DeleteFolder detaches the folder's bookmarks and then removes the folder.
func (s *folderServiceImpl) DeleteFolder(ctx context.Context, userID, folderID primitive.ObjectID) error {
	log.Debug().Str("userID", userID.Hex()).Str("folder_id", folderID.Hex()).Msg("Attempting to delete folder")
	if _, err := s.owned(ctx, userID, folderID); err != nil {
		return err
	}

	cleared, err := s.bookmarkRepo.ClearFolder(ctx, folderID)
	if err != nil {
		log.Error().Err(err).Str("folder_id", folderID.Hex()).Msg("Failed to clear folder from bookmarks")
		return err
	}
	if err := s.folderRepo.Delete(ctx, folderID); err != nil {
		return err
	}
	log.Info().Str("folder_id", folderID.Hex()).Int64("bookmarks_cleared", cleared).Msg("Folder deleted successfully")
	return nil
}
