package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bkmrks/internal/metadata"
	"bkmrks/internal/metrics"
	"bkmrks/internal/models"
	"bkmrks/internal/repositories"
	"bkmrks/internal/utils"
)

type BookmarkService interface {
	GetBookmarks(ctx context.Context, userID primitive.ObjectID) ([]models.BookmarkDetail, error)
	AddBookmark(ctx context.Context, userID primitive.ObjectID, reqBody models.CreateBookmarkRequest) (*models.BookmarkDetail, error)
	AddBookmarkFromTelegram(ctx context.Context, reqBody models.TelegramBookmarkRequest) (*models.TelegramBookmarkResponse, error)
	UpdateBookmark(ctx context.Context, userID, bookmarkID primitive.ObjectID, updatePayload models.UpdateBookmarkRequestBody) (*models.BookmarkDetail, error)
	DeleteBookmark(ctx context.Context, userID, bookmarkID primitive.ObjectID) error
}

type bookmarkServiceImpl struct {
	bookmarkRepo repositories.BookmarkRepository
	folderRepo   repositories.FolderRepository
	tagRepo      repositories.TagRepository
	userRepo     repositories.UserRepository
	downloadRepo repositories.DownloadRepository
	fetcher      metadata.Fetcher
	validator    *utils.Validator
}

func NewBookmarkService(
	bookmarkRepo repositories.BookmarkRepository,
	folderRepo repositories.FolderRepository,
	tagRepo repositories.TagRepository,
	userRepo repositories.UserRepository,
	downloadRepo repositories.DownloadRepository,
	fetcher metadata.Fetcher,
) BookmarkService {
	return &bookmarkServiceImpl{
		bookmarkRepo: bookmarkRepo,
		folderRepo:   folderRepo,
		tagRepo:      tagRepo,
		userRepo:     userRepo,
		downloadRepo: downloadRepo,
		fetcher:      fetcher,
		validator:    utils.NewValidator(),
	}
}

func (s *bookmarkServiceImpl) GetBookmarks(ctx context.Context, userID primitive.ObjectID) ([]models.BookmarkDetail, error) {
	log.Debug().Str("userID", userID.Hex()).Msg("Attempting to retrieve bookmarks")
	bookmarks, err := s.bookmarkRepo.ListDetailed(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("userID", userID.Hex()).Msg("Error finding bookmarks")
		return nil, err
	}
	log.Debug().Str("userID", userID.Hex()).Int("count", len(bookmarks)).Msg("Successfully retrieved bookmarks")
	return bookmarks, nil
}

// create fetches the page metadata and stores a new bookmark for userID.
// Fetch failures are returned as is and no bookmark is stored.
func (s *bookmarkServiceImpl) create(ctx context.Context, userID primitive.ObjectID, url, source string) (*models.Bookmark, error) {
	md, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		log.Error().Err(err).Str("url", url).Msg("Failed to fetch bookmark metadata")
		return nil, fmt.Errorf("failed to fetch metadata for %s: %w", url, err)
	}

	bm, err := s.bookmarkRepo.Create(ctx, &models.Bookmark{
		UserID:      userID,
		URL:         url,
		Title:       md.Title,
		Description: md.Description,
		ImageURL:    md.ImageURL,
	})
	if err != nil {
		log.Error().Err(err).Str("userID", userID.Hex()).Msg("Failed to insert bookmark")
		return nil, err
	}
	metrics.BookmarkCreatedTotal.WithLabelValues(source).Inc()
	log.Info().Str("userID", userID.Hex()).Str("bookmark_id", bm.ID.Hex()).Str("source", source).Msg("Bookmark created successfully")
	return bm, nil
}

func (s *bookmarkServiceImpl) AddBookmark(ctx context.Context, userID primitive.ObjectID, reqBody models.CreateBookmarkRequest) (*models.BookmarkDetail, error) {
	reqBody.URL = strings.TrimSpace(reqBody.URL)
	log.Debug().Str("userID", userID.Hex()).Str("url", reqBody.URL).Msg("Attempting to add bookmark")
	if err := s.validator.Struct(reqBody); err != nil {
		log.Warn().Err(err).Str("userID", userID.Hex()).Msg("Invalid bookmark payload")
		return nil, err
	}

	bm, err := s.create(ctx, userID, reqBody.URL, "web")
	if err != nil {
		return nil, err
	}
	return s.bookmarkRepo.FindDetailedByID(ctx, bm.ID)
}

func (s *bookmarkServiceImpl) AddBookmarkFromTelegram(ctx context.Context, reqBody models.TelegramBookmarkRequest) (*models.TelegramBookmarkResponse, error) {
	reqBody.URL = strings.TrimSpace(reqBody.URL)
	log.Debug().Str("telegram_id", reqBody.User.TelegramID).Str("url", reqBody.URL).Msg("Attempting to add bookmark from telegram")
	if err := s.validator.Struct(reqBody); err != nil {
		log.Warn().Err(err).Msg("Invalid telegram bookmark payload")
		return nil, err
	}

	user, err := s.userRepo.FindByTelegramID(ctx, reqBody.User.TelegramID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			log.Warn().Str("telegram_id", reqBody.User.TelegramID).Msg("No user with this telegram id")
			return nil, utils.NewValidationError("telegram_id",
				fmt.Sprintf("User with telegram_id=%s does not exist!", reqBody.User.TelegramID))
		}
		return nil, err
	}

	bm, err := s.create(ctx, user.ID, reqBody.URL, "telegram")
	if err != nil {
		return nil, err
	}
	return &models.TelegramBookmarkResponse{
		ID:   bm.ID,
		User: models.TelegramUserRef{TelegramID: reqBody.User.TelegramID},
		URL:  bm.URL,
	}, nil
}

func (s *bookmarkServiceImpl) owned(ctx context.Context, userID, bookmarkID primitive.ObjectID) (*models.Bookmark, error) {
	bm, err := s.bookmarkRepo.FindByID(ctx, bookmarkID)
	if err != nil {
		return nil, err
	}
	if bm.UserID != userID {
		log.Warn().Str("userID", userID.Hex()).Str("bookmark_id", bookmarkID.Hex()).Msg("Bookmark belongs to another user")
		return nil, utils.ErrForbidden
	}
	return bm, nil
}

// UpdateBookmark applies a partial update. Folder and tags are always
// replaced by what the payload carries.
func (s *bookmarkServiceImpl) UpdateBookmark(ctx context.Context, userID, bookmarkID primitive.ObjectID, updatePayload models.UpdateBookmarkRequestBody) (*models.BookmarkDetail, error) {
	log.Debug().Str("userID", userID.Hex()).Str("bookmark_id", bookmarkID.Hex()).Msg("Attempting to update bookmark")
	if _, err := s.owned(ctx, userID, bookmarkID); err != nil {
		return nil, err
	}

	set, err := s.buildUpdate(ctx, userID, updatePayload)
	if err != nil {
		log.Warn().Err(err).Str("bookmark_id", bookmarkID.Hex()).Msg("Invalid bookmark update")
		return nil, err
	}
	if err := s.bookmarkRepo.Update(ctx, bookmarkID, set); err != nil {
		log.Error().Err(err).Str("bookmark_id", bookmarkID.Hex()).Msg("Failed to update bookmark")
		return nil, err
	}

	log.Info().Str("bookmark_id", bookmarkID.Hex()).Msg("Bookmark updated successfully")
	return s.bookmarkRepo.FindDetailedByID(ctx, bookmarkID)
}

func (s *bookmarkServiceImpl) buildUpdate(ctx context.Context, userID primitive.ObjectID, p models.UpdateBookmarkRequestBody) (bson.M, error) {
	set := bson.M{}
	verr := &utils.ValidationError{}

	check := func(field string, value interface{}, tag string) {
		if err := s.validator.Var(field, value, tag); err != nil {
			mergeValidation(verr, err)
			return
		}
		set[field] = value
	}
	if v, ok := p.URL.Get(); ok {
		check("url", strings.TrimSpace(v), "required,http_url,max=2048")
	}
	if v, ok := p.Title.Get(); ok {
		check("title", v, fmt.Sprintf("required,max=%d", models.MaxBookmarkTitleLength))
	}
	if v, ok := p.Description.Get(); ok {
		set["description"] = v
	}
	if v, ok := p.ImageURL.Get(); ok {
		check("image_url", v, "omitempty,url,max=2048")
	}
	if v, ok := p.IsFavorite.Get(); ok {
		set["is_favorite"] = v
	}
	if v, ok := p.IsRead.Get(); ok {
		set["is_read"] = v
	}
	if v, ok := p.IsArchived.Get(); ok {
		set["is_archived"] = v
	}

	folderID, err := s.resolveFolder(ctx, userID, p.Folder)
	if err != nil {
		mergeValidation(verr, err)
	} else {
		set["folder_id"] = folderID
	}

	tagIDs, err := s.resolveTags(ctx, p.Tags)
	if err != nil {
		mergeValidation(verr, err)
	} else {
		set["tag_ids"] = tagIDs
	}

	if len(verr.Fields) > 0 {
		return nil, verr
	}
	return set, nil
}

// resolveFolder returns nil for an absent folder, which clears it.
func (s *bookmarkServiceImpl) resolveFolder(ctx context.Context, userID primitive.ObjectID, ref *models.FolderRef) (*primitive.ObjectID, error) {
	if ref == nil {
		return nil, nil
	}
	id, err := utils.ParseObjectID("folder", ref.ID)
	if err != nil {
		return nil, err
	}
	folder, err := s.folderRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.NewValidationError("folder", fmt.Sprintf("Invalid pk \"%s\" - object does not exist.", ref.ID))
		}
		return nil, err
	}
	if folder.UserID != userID {
		return nil, utils.NewValidationError("folder", fmt.Sprintf("Invalid pk \"%s\" - object does not exist.", ref.ID))
	}
	return &folder.ID, nil
}

func (s *bookmarkServiceImpl) resolveTags(ctx context.Context, refs []models.TagRef) ([]primitive.ObjectID, error) {
	raw := make([]string, 0, len(refs))
	for _, ref := range refs {
		raw = append(raw, ref.ID)
	}
	ids, err := utils.ParseObjectIDs("tags", raw)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return ids, nil
	}

	tags, err := s.tagRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	found := make(map[primitive.ObjectID]struct{}, len(tags))
	for _, t := range tags {
		found[t.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return nil, utils.NewValidationError("tags", fmt.Sprintf("Invalid pk \"%s\" - object does not exist.", id.Hex()))
		}
	}
	return ids, nil
}

// DeleteBookmark removes the bookmark and its download, file included.
func (s *bookmarkServiceImpl) DeleteBookmark(ctx context.Context, userID, bookmarkID primitive.ObjectID) error {
	log.Debug().Str("userID", userID.Hex()).Str("bookmark_id", bookmarkID.Hex()).Msg("Attempting to delete bookmark")
	if _, err := s.owned(ctx, userID, bookmarkID); err != nil {
		return err
	}

	if _, err := s.downloadRepo.DeleteByBookmarkIDs(ctx, []primitive.ObjectID{bookmarkID}); err != nil {
		log.Error().Err(err).Str("bookmark_id", bookmarkID.Hex()).Msg("Failed to delete bookmark download")
		return err
	}
	if err := s.bookmarkRepo.Delete(ctx, bookmarkID); err != nil {
		return err
	}
	log.Info().Str("bookmark_id", bookmarkID.Hex()).Msg("Bookmark deleted successfully")
	return nil
}
