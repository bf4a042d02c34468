package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/crypto/bcrypt"

	"bkmrks/internal/models"
	"bkmrks/internal/repositories"
	"bkmrks/internal/utils"
)

const (
	OTPExpirationMinutes    = 10
	OTPLength               = 6
	OTPPurposeResetPassword = "reset_password"
)

// PasswordResetService sends one-time codes by email and exchanges them for a new password.
type PasswordResetService interface {
	RequestReset(ctx context.Context, req models.PasswordResetRequest) error
	ConfirmReset(ctx context.Context, req models.PasswordResetConfirm) error
}

type otpService struct {
	userRepo     repositories.UserRepository
	otpRepo      repositories.OTPRepository
	emailService EmailService
	validator    *utils.Validator
}

func NewPasswordResetService(userRepo repositories.UserRepository, otpRepo repositories.OTPRepository, emailService EmailService) PasswordResetService {
	return &otpService{userRepo: userRepo, otpRepo: otpRepo, emailService: emailService, validator: utils.NewValidator()}
}

// RequestReset emails a code to the account with this address. Unknown
// addresses succeed silently and send nothing.
func (s *otpService) RequestReset(ctx context.Context, req models.PasswordResetRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return err
	}

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			log.Info().Str("email", req.Email).Msg("Password reset requested for unknown email")
			return nil
		}
		return err
	}

	otpCode, err := utils.GenerateSecureOTP(OTPLength)
	if err != nil {
		return err
	}

	_, err = s.otpRepo.Create(ctx, &models.OTP{
		UserID:    user.ID,
		OTPCode:   otpCode,
		Purpose:   OTPPurposeResetPassword,
		ExpiresAt: time.Now().UTC().Add(OTPExpirationMinutes * time.Minute),
	})
	if err != nil {
		return err
	}

	subject := "Your Password Reset OTP"
	body := fmt.Sprintf("Your OTP for password reset is: %s", otpCode)
	if err := s.emailService.SendEmail(user.Email, subject, body); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}
	log.Info().Str("user_id", user.ID.Hex()).Msg("Password reset code sent")
	return nil
}

func (s *otpService) ConfirmReset(ctx context.Context, req models.PasswordResetConfirm) error {
	if err := s.validator.Struct(req); err != nil {
		return err
	}
	invalid := utils.NewValidationError("otp", "Invalid or expired code.")

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return invalid
		}
		return err
	}

	otp, err := s.otpRepo.FindActive(ctx, user.ID, req.OTP, OTPPurposeResetPassword)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			log.Warn().Str("user_id", user.ID.Hex()).Msg("Invalid or expired password reset code")
			return invalid
		}
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}
	if _, err := s.userRepo.Update(ctx, user.ID, bson.M{"password": string(hashedPassword)}); err != nil {
		return err
	}
	if err := s.otpRepo.MarkAsUsed(ctx, otp.ID); err != nil {
		return err
	}
	log.Info().Str("user_id", user.ID.Hex()).Msg("Password reset successfully")
	return nil
}
