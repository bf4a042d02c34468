package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bkmrks/internal/models"
	"bkmrks/internal/services"
	"bkmrks/internal/utils"
)

type UserHandler struct {
	userService  services.UserService
	resetService services.PasswordResetService
}

func NewUserHandler(userService services.UserService, resetService services.PasswordResetService) *UserHandler {
	return &UserHandler{userService: userService, resetService: resetService}
}

func (u *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		log.Warn().Err(err).Msg("Invalid user data input for Register")
		return
	}

	registeredUser, err := u.userService.RegisterUser(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, registeredUser)
}

func (u *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds models.Login
	if err := utils.DecodeJSON(w, r, &creds); err != nil {
		log.Warn().Err(err).Msg("Invalid request body for Login")
		return
	}

	token, err := u.userService.LoginUser(r.Context(), &creds)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"auth_token": token})
}

func (u *UserHandler) GetMyProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}

	user, err := u.userService.GetUserProfile(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, user)
}

func (u *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := u.self(w, r)
	if !ok {
		return
	}

	var updatePayload models.UserProfileUpdate
	if err := utils.DecodeJSON(w, r, &updatePayload); err != nil {
		return
	}

	updatedUser, err := u.userService.UpdateUserProfile(r.Context(), userID, &updatePayload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, updatedUser)
}

func (u *UserHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := u.self(w, r)
	if !ok {
		return
	}

	if err := u.userService.DeleteUser(r.Context(), userID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (u *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req models.PasswordResetRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		return
	}

	if err := u.resetService.RequestReset(r.Context(), req); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (u *UserHandler) ResetPasswordConfirm(w http.ResponseWriter, r *http.Request) {
	var req models.PasswordResetConfirm
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		return
	}

	if err := u.resetService.ConfirmReset(r.Context(), req); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// self resolves the {id} path parameter and answers 403 unless it names the caller.
func (u *UserHandler) self(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	callerID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return primitive.NilObjectID, false
	}
	targetID, err := utils.GetObjectIDFromVars(w, r, "id")
	if err != nil {
		return primitive.NilObjectID, false
	}
	if targetID != callerID {
		log.Warn().Str("userID", callerID.Hex()).Str("targetID", targetID.Hex()).Msg("Attempt to modify another user's profile")
		utils.SendJSONError(w, utils.ErrForbidden.Error(), http.StatusForbidden)
		return primitive.NilObjectID, false
	}
	return callerID, true
}
