package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/nutriplan-app/apiserver/internal/auth"
	"github.com/nutriplan-app/apiserver/internal/services"
	"github.com/nutriplan-app/apiserver/internal/store"
	"github.com/nutriplan-app/apiserver/types"
)

const formFieldFile = "file"

// AuthHandler provides the account, session, and profile endpoints.
type AuthHandler struct {
	authService *services.AuthService
	userService *services.UserService
	uploads     *services.UploadService
	issuer      *auth.Issuer
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(
	authService *services.AuthService,
	userService *services.UserService,
	uploads *services.UploadService,
	issuer *auth.Issuer,
) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
		uploads:     uploads,
		issuer:      issuer,
	}
}

// AuthRouter registers auth routes on the given router. Rate limiting
// middleware for login and register is supplied by the caller.
func AuthRouter(
	r chi.Router,
	handler *AuthHandler,
	loginLimiter func(http.Handler) http.Handler,
	registerLimiter func(http.Handler) http.Handler,
) {
	r.With(registerLimiter).Post("/register", handler.Register)
	r.With(loginLimiter).Post("/login", handler.Login)
	r.Post("/refresh", handler.Refresh)
	r.Post("/verify-email", handler.VerifyEmail)
	r.Post("/resend-verification", handler.ResendVerification)
	r.Post("/forgot-password", handler.ForgotPassword)
	r.Post("/reset-password", handler.ResetPassword)
	r.Post("/verify-tfa", handler.VerifyTFA)

	r.Group(func(r chi.Router) {
		r.Use(handler.RequireAuth)
		r.Post("/logout", handler.Logout)
		r.Get("/me", handler.Me)
		r.Put("/profile", handler.UpdateProfile)
		r.Post("/upload", handler.Upload)
		r.Post("/enable-tfa", handler.EnableTFA)
		r.Post("/verify-tfa-setup", handler.VerifyTFASetup)
		r.Post("/disable-tfa", handler.DisableTFA)

		r.Group(func(r chi.Router) {
			r.Use(handler.requireAdmin)
			r.Get("/users", handler.ListUsers)
			r.Get("/users/{userID}", handler.GetUser)
			r.Put("/users/{userID}/role", handler.UpdateUserRole)
			r.Delete("/users/{userID}", handler.DeleteUser)
		})
	})
}

// RequireAuth enforces a valid access token and injects the subject email
// into the request context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		subject, _, err := h.issuer.Verify(tokenString, auth.TokenKindAccess)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), contextSubjectKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin rejects non-admin callers before any target lookup happens,
// so a non-admin probing admin routes always sees 403.
func (h *AuthHandler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := h.currentUser(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if user.Role != types.RoleAdmin {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *AuthHandler) currentUser(r *http.Request) (types.User, error) {
	subject, err := subjectFromContext(r.Context())
	if err != nil {
		return types.User{}, err
	}
	return h.authService.GetByEmail(r.Context(), subject)
}

func (h *AuthHandler) meta(r *http.Request) services.Meta {
	return services.Meta{IP: clientIP(r), UserAgent: r.UserAgent()}
}

// Register creates a new account and starts email verification.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	user, err := h.authService.Register(r.Context(), req.Name, req.Email, req.Password, h.meta(r))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidEmail),
			errors.Is(err, services.ErrWeakPassword),
			errors.Is(err, services.ErrEmailExists):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to register user")
		}
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// Login verifies credentials and returns an access and refresh token pair.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	pair, err := h.authService.Login(r.Context(), req.Email, req.Password, h.meta(r))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, err.Error())
		case errors.Is(err, services.ErrAccountLocked):
			writeError(w, http.StatusLocked, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to authenticate")
		}
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// Refresh exchanges a refresh token for a new access token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	pair, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidRefreshToken),
			errors.Is(err, services.ErrRefreshTokenExpired):
			writeError(w, http.StatusUnauthorized, "invalid refresh token")
		default:
			writeError(w, http.StatusInternalServerError, "failed to refresh token")
		}
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// Logout discards the caller's stored refresh token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.authService.Logout(r.Context(), user.ID, h.meta(r)); err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "failed to log out")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// VerifyEmail consumes an emailed verification code.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req CodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if _, err := h.authService.VerifyEmail(r.Context(), strings.TrimSpace(req.Code), h.meta(r)); err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidVerificationCode),
			errors.Is(err, services.ErrVerificationExpired):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to verify email")
		}
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "email verified"})
}

// ResendVerification issues a fresh verification code for an unverified
// account.
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	err := h.authService.ResendVerification(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, services.ErrAlreadyVerified):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to resend verification")
		}
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "verification email sent"})
}

// ForgotPassword starts a password reset. The response is identical whether
// or not the account exists.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := h.authService.ForgotPassword(r.Context(), strings.TrimSpace(req.Email)); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process request")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "if the email exists, a reset code has been sent"})
}

// ResetPassword consumes a reset code and sets a new password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if strings.TrimSpace(req.Code) == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	err := h.authService.ResetPassword(r.Context(), strings.TrimSpace(req.Code), req.NewPassword, h.meta(r))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidResetCode),
			errors.Is(err, services.ErrResetCodeExpired),
			errors.Is(err, services.ErrWeakPassword):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to reset password")
		}
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "password reset"})
}

// EnableTFA generates a TOTP secret for the caller and returns the
// provisioning URI for authenticator apps.
func (h *AuthHandler) EnableTFA(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	secret, uri, err := h.authService.EnableTFA(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to enable two-factor")
		return
	}

	writeJSON(w, http.StatusOK, TFASetupResponse{Secret: secret, ProvisioningURI: uri})
}

// VerifyTFASetup confirms the enrollment with a live authenticator code.
func (h *AuthHandler) VerifyTFASetup(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := h.authService.VerifyTFASetup(r.Context(), user.ID, strings.TrimSpace(req.Code)); err != nil {
		switch {
		case errors.Is(err, services.ErrTFANotEnabled):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrInvalidTFACode):
			writeError(w, http.StatusUnauthorized, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to verify two-factor setup")
		}
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "two-factor authentication enabled"})
}

// DisableTFA removes the caller's TOTP enrollment.
func (h *AuthHandler) DisableTFA(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.authService.DisableTFA(r.Context(), user.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to disable two-factor")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "two-factor authentication disabled"})
}

// VerifyTFA checks a login-time authenticator code.
func (h *AuthHandler) VerifyTFA(w http.ResponseWriter, r *http.Request) {
	var req VerifyTFARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	if _, err := h.authService.VerifyTFA(r.Context(), req.Email, strings.TrimSpace(req.Code)); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, services.ErrTFANotEnabled):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrInvalidTFACode):
			writeError(w, http.StatusUnauthorized, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to verify two-factor code")
		}
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "two-factor code verified"})
}

// UpdateProfile applies the caller's profile changes.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var update types.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	updated, err := h.authService.UpdateProfile(r.Context(), user.ID, update, h.meta(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// Upload stores a file for the caller. Image uploads become the caller's
// profile picture.
func (h *AuthHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(services.MaxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File[formFieldFile]) == 0 {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}

	fileHeader := r.MultipartForm.File[formFieldFile][0]
	file, err := fileHeader.Open()
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	data, err := readFileLimited(file, services.MaxUploadSize)
	_ = file.Close()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key, err := h.uploads.Save(r.Context(), user.ID, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrFileTooLarge),
			errors.Is(err, services.ErrUnsupportedFile):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrStorageUnavailable):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to store file")
		}
		return
	}

	if services.IsImage(key) {
		update := types.ProfileUpdate{Picture: &key}
		if _, err := h.authService.UpdateProfile(r.Context(), user.ID, update, h.meta(r)); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to update profile picture")
			return
		}
	}

	writeJSON(w, http.StatusCreated, UploadResponse{Key: key})
}

// ListUsers returns a paginated user listing. Admin only.
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	users, total, err := h.userService.List(r.Context(), offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, UserListResponse{
		Items: users,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

// GetUser returns a single user by id. Admin only.
func (h *AuthHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// UpdateUserRole changes a user's role. Admin only.
func (h *AuthHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.userService.UpdateRole(r.Context(), id, strings.TrimSpace(req.Role), h.meta(r))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidRole):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update role")
		}
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// DeleteUser removes an account. Admin only.
func (h *AuthHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.userService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type CodeRequest struct {
	Code string `json:"code"`
}

type EmailRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

type VerifyTFARequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type TFASetupResponse struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
}

type UploadResponse struct {
	Key string `json:"key"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type UserListResponse struct {
	Items []types.User `json:"items"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
	Total int          `json:"total"`
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}

func parseUserID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "userID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid user id")
	}
	return id, nil
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
