package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"bkmrks/internal/metrics"
	"bkmrks/internal/models"
	"bkmrks/internal/repositories"
	"bkmrks/internal/utils"
)

const bcryptCost = 8

var totalUsersGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "app_total_users",
	Help: "Total number of registered users in the application.",
})

// UserService defines the interface for user-related business logic.
type UserService interface {
	RegisterUser(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	LoginUser(ctx context.Context, creds *models.Login) (string, error)
	GetUserProfile(ctx context.Context, userID primitive.ObjectID) (*models.User, error)
	UpdateUserProfile(ctx context.Context, userID primitive.ObjectID, updatePayload *models.UserProfileUpdate) (*models.User, error)
	DeleteUser(ctx context.Context, userID primitive.ObjectID) error
	GetTotalUsers(ctx context.Context) (int64, error)
	DiskSpaceUsed(ctx context.Context, userID primitive.ObjectID) (float64, error)
}

type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
}

// userService implements UserService using the user repository and the
// repositories an account owns.
type userService struct {
	userRepo     repositories.UserRepository
	folderRepo   repositories.FolderRepository
	bookmarkRepo repositories.BookmarkRepository
	downloadRepo repositories.DownloadRepository
	otpRepo      repositories.OTPRepository
	validator    *utils.Validator
	token        TokenConfig
}

func NewUserService(
	userRepo repositories.UserRepository,
	folderRepo repositories.FolderRepository,
	bookmarkRepo repositories.BookmarkRepository,
	downloadRepo repositories.DownloadRepository,
	otpRepo repositories.OTPRepository,
	token TokenConfig,
) UserService {
	return &userService{
		userRepo:     userRepo,
		folderRepo:   folderRepo,
		bookmarkRepo: bookmarkRepo,
		downloadRepo: downloadRepo,
		otpRepo:      otpRepo,
		validator:    utils.NewValidator(),
		token:        token,
	}
}

// UpdateTotalUsersPeriodically refreshes the total users gauge until ctx is done.
func UpdateTotalUsersPeriodically(ctx context.Context, s UserService, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		refreshTotalUsers(ctx, s)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func refreshTotalUsers(ctx context.Context, s UserService) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	count, err := s.GetTotalUsers(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Error updating total users gauge")
		return
	}
	totalUsersGauge.Set(float64(count))
}

func (s *userService) GetTotalUsers(ctx context.Context) (int64, error) {
	return s.userRepo.CountAll(ctx)
}

func (s *userService) RegisterUser(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	log.Debug().Str("username", req.Username).Msg("Attempting to register user")
	if err := s.validator.Struct(req); err != nil {
		log.Warn().Err(err).Msg("Invalid registration payload")
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		log.Error().Err(err).Msg("Failed to hash password during registration")
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	createdUser, err := s.userRepo.Create(ctx, &models.User{
		Username: req.Username,
		Email:    req.Email,
		Password: string(hashedPassword),
	})
	if err != nil {
		if errors.Is(err, utils.ErrConflict) {
			log.Warn().Str("username", req.Username).Msg("Username or email already exists during user insertion")
			return nil, utils.NewValidationError("username", "A user with that username or email already exists.")
		}
		return nil, err
	}

	createdUser.Password = ""
	metrics.NewUsersTotal.Inc()
	log.Info().Str("user_id", createdUser.ID.Hex()).Str("username", createdUser.Username).Msg("User registered successfully")

	refreshTotalUsers(ctx, s)
	return createdUser, nil
}

func (s *userService) LoginUser(ctx context.Context, creds *models.Login) (string, error) {
	log.Debug().Str("username", creds.Username).Msg("Attempting user login")
	if err := s.validator.Struct(creds); err != nil {
		return "", err
	}

	user, err := s.userRepo.FindByUsername(ctx, creds.Username)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			log.Warn().Str("username", creds.Username).Msg("Invalid credentials during login attempt")
			metrics.LoginAttemptsTotal.WithLabelValues("failed").Inc()
			return "", utils.ErrInvalidCredentials
		}
		log.Error().Err(err).Str("username", creds.Username).Msg("Error finding user for login")
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(creds.Password)); err != nil {
		log.Warn().Str("username", creds.Username).Msg("Invalid credentials (password mismatch) during login attempt")
		metrics.LoginAttemptsTotal.WithLabelValues("failed").Inc()
		return "", utils.ErrInvalidCredentials
	}

	token, err := utils.GenerateJWT(user.ID, s.token.Secret, s.token.TTL)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID.Hex()).Msg("Could not generate token for user")
		return "", fmt.Errorf("could not generate token: %w", err)
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	log.Info().Str("user_id", user.ID.Hex()).Msg("User logged in successfully")
	return token, nil
}

// DiskSpaceUsed returns the size of the user's completed downloads in MB,
// rounded to one decimal.
func (s *userService) DiskSpaceUsed(ctx context.Context, userID primitive.ObjectID) (float64, error) {
	total, err := s.downloadRepo.SumCompletedFileSize(ctx, userID)
	if err != nil {
		return 0, err
	}
	return BytesToMB(total), nil
}

func BytesToMB(size int64) float64 {
	return math.Round(float64(size)/(1024*1024)*10) / 10
}

func (s *userService) GetUserProfile(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	log.Debug().Str("userID", userID.Hex()).Msg("Attempting to retrieve user profile")
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			log.Warn().Str("user_id", userID.Hex()).Msg("User not found for GetUserProfile")
		}
		return nil, err
	}

	used, err := s.DiskSpaceUsed(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.Hex()).Msg("Failed to compute disk space used")
		return nil, err
	}
	user.DiskSpaceUsed = used
	user.Password = ""
	log.Info().Str("user_id", userID.Hex()).Msg("User profile retrieved successfully")
	return user, nil
}

func (s *userService) UpdateUserProfile(ctx context.Context, userID primitive.ObjectID, updatePayload *models.UserProfileUpdate) (*models.User, error) {
	log.Debug().Str("userID", userID.Hex()).Msg("Attempting to update user profile")
	updateFields := bson.M{}
	verr := &utils.ValidationError{}

	if username, ok := updatePayload.Username.Get(); ok {
		if err := s.validator.Var("username", username, "required,max=150"); err != nil {
			mergeValidation(verr, err)
		} else {
			updateFields["username"] = username
		}
	}
	if email, ok := updatePayload.Email.Get(); ok {
		if err := s.validator.Var("email", email, "required,email"); err != nil {
			mergeValidation(verr, err)
		} else {
			updateFields["email"] = email
		}
	}
	if telegramID, ok := updatePayload.TelegramID.Get(); ok {
		if telegramID == nil || *telegramID == "" {
			// untyped nil is turned into $unset by the repository
			updateFields["telegram_id"] = nil
		} else if err := s.validator.Var("telegram_id", *telegramID, "max=32"); err != nil {
			mergeValidation(verr, err)
		} else {
			updateFields["telegram_id"] = *telegramID
		}
	}
	if image, ok := updatePayload.ProfileImage.Get(); ok {
		if image != "" {
			if err := s.validator.Var("profile_image", image, "url,max=2048"); err != nil {
				mergeValidation(verr, err)
			}
		}
		updateFields["profile_image"] = image
	}
	if password, ok := updatePayload.Password.Get(); ok {
		if err := s.validator.Var("password", password, "required,min=8"); err != nil {
			mergeValidation(verr, err)
		} else {
			hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
			if err != nil {
				log.Error().Err(err).Str("user_id", userID.Hex()).Msg("Failed to hash new password for profile update")
				return nil, fmt.Errorf("failed to hash new password: %w", err)
			}
			updateFields["password"] = string(hashedPassword)
		}
	}
	if len(verr.Fields) > 0 {
		log.Warn().Str("userID", userID.Hex()).Err(verr).Msg("Invalid user profile update")
		return nil, verr
	}

	if len(updateFields) > 0 {
		result, err := s.userRepo.Update(ctx, userID, updateFields)
		if err != nil {
			if errors.Is(err, utils.ErrConflict) {
				return nil, conflictingProfileField(updateFields)
			}
			return nil, err
		}
		if result.MatchedCount == 0 {
			log.Warn().Str("user_id", userID.Hex()).Msg("User not found while updating profile")
			return nil, utils.ErrNotFound
		}
	}

	updatedUser, err := s.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	log.Info().Str("user_id", userID.Hex()).Msg("User profile updated successfully")
	return updatedUser, nil
}

func conflictingProfileField(fields bson.M) *utils.ValidationError {
	for _, key := range []string{"username", "email", "telegram_id"} {
		if _, ok := fields[key]; ok && fields[key] != nil {
			return utils.NewValidationError(key, "A user with this value already exists.")
		}
	}
	return utils.NewValidationError("non_field_errors", "A user with these values already exists.")
}

// DeleteUser removes the account together with everything it owns. Download
// files are removed by the download repository's delete hooks.
func (s *userService) DeleteUser(ctx context.Context, userID primitive.ObjectID) error {
	log.Debug().Str("userID", userID.Hex()).Msg("Attempting to delete user account")

	bookmarkIDs, err := s.bookmarkRepo.FindIDsByUser(ctx, userID)
	if err != nil {
		return err
	}
	if len(bookmarkIDs) > 0 {
		if _, err := s.downloadRepo.DeleteByBookmarkIDs(ctx, bookmarkIDs); err != nil {
			return err
		}
	}
	if _, err := s.bookmarkRepo.DeleteByUser(ctx, userID); err != nil {
		return err
	}
	if _, err := s.folderRepo.DeleteByUser(ctx, userID); err != nil {
		return err
	}
	if err := s.otpRepo.DeleteByUser(ctx, userID); err != nil {
		return err
	}

	result, err := s.userRepo.Delete(ctx, userID)
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		log.Warn().Str("user_id", userID.Hex()).Msg("User account not found while deleting")
		return utils.ErrNotFound
	}

	log.Info().Str("user_id", userID.Hex()).Int("bookmarks", len(bookmarkIDs)).Msg("User account deleted successfully")
	refreshTotalUsers(ctx, s)
	return nil
}

// mergeValidation folds a validator error into dst.
func mergeValidation(dst *utils.ValidationError, err error) {
	if ve, ok := utils.AsValidationError(err); ok {
		for field, msgs := range ve.Fields {
			for _, msg := range msgs {
				dst.Add(field, msg)
			}
		}
		return
	}
	dst.Add("non_field_errors", err.Error())
}
