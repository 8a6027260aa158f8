package httpserver

import (
	"errors"
	"net/http"

	"github.com/aicourt/backend/internal/middleware"
	"github.com/aicourt/backend/internal/models"
	"github.com/aicourt/backend/internal/repo"
	"github.com/aicourt/backend/internal/service"
	"github.com/aicourt/backend/pkg/logging"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/labstack/echo/v4"
)

type AuthHTTP struct {
	Svc *service.AuthService
}

type signupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	Court       string `json:"court"`
	Designation string `json:"designation"`
}

func (r signupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100), validation.By(passwordStrength)),
		validation.Field(&r.DisplayName, validation.Required, validation.Length(2, 50)),
		validation.Field(&r.Role, validation.Required, validation.In(models.RoleCitizen, models.RoleOfficial)),
		validation.Field(&r.Phone, validation.Length(7, 15)),
		validation.Field(&r.Address, validation.Length(0, 500)),
		validation.Field(&r.Court, validation.Length(0, 200)),
		validation.Field(&r.Designation, validation.Length(0, 100)),
	)
}

func (h *AuthHTTP) Signup(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_signup")

	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "ValidationFailed", "invalid body")
	}
	if err := req.Validate(); err != nil {
		l.Warn("signup_rejected", "error", err)
		return errorJSON(c, http.StatusBadRequest, "ValidationFailed", err.Error())
	}

	res, err := h.Svc.Register(ctx, service.RegisterParams{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Role:        req.Role,
		Phone:       req.Phone,
		Address:     req.Address,
		Court:       req.Court,
		Designation: req.Designation,
	})
	if err != nil {
		if errors.Is(err, service.ErrAlreadyExists) {
			return errorJSON(c, http.StatusBadRequest, "AlreadyExists", "an account with this email already exists")
		}
		l.Error("signup_failed", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "ServerError", "failed to create account")
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "account created successfully",
		"user":    res.User,
		"token":   res.Token,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "ValidationFailed", "invalid body")
	}
	if err := req.Validate(); err != nil {
		return errorJSON(c, http.StatusBadRequest, "ValidationFailed", err.Error())
	}

	res, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAccountDisabled):
			return errorJSON(c, http.StatusUnauthorized, "AccountDisabled", "your account has been disabled")
		case errors.Is(err, repo.ErrNotFound), errors.Is(err, service.ErrInvalidCredentials):
			// Same response either way: callers cannot probe which emails
			// have accounts.
			return errorJSON(c, http.StatusUnauthorized, "InvalidCredentials", "email or password is incorrect")
		}
		l.Error("login_failed", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "ServerError", "failed to authenticate")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "login successful",
		"user":    res.User,
		"token":   res.Token,
	})
}

type firebaseAuthRequest struct {
	Email       string `json:"email"`
	FirebaseUID string `json:"firebaseUid"`
	Provider    string `json:"provider"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	Court       string `json:"court"`
	Designation string `json:"designation"`
	PhotoURL    string `json:"photoURL"`
}

func (r firebaseAuthRequest) validateCommon() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.FirebaseUID, validation.Required),
		validation.Field(&r.Provider, validation.Required, validation.In("google", "email", "firebase")),
	)
}

func (r firebaseAuthRequest) validateSignup() error {
	if err := r.validateCommon(); err != nil {
		return err
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.DisplayName, validation.Required, validation.Length(2, 50)),
		validation.Field(&r.Role, validation.In(models.RoleCitizen, models.RoleOfficial)),
		validation.Field(&r.Phone, validation.Length(7, 15)),
		validation.Field(&r.Address, validation.Length(0, 500)),
		validation.Field(&r.Court, validation.Length(0, 200)),
		validation.Field(&r.Designation, validation.Length(0, 100)),
		validation.Field(&r.PhotoURL, is.URL),
	)
}

func (h *AuthHTTP) FirebaseLogin(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_firebase_login")

	var req firebaseAuthRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "ValidationFailed", "invalid body")
	}
	if err := req.validateCommon(); err != nil {
		return errorJSON(c, http.StatusBadRequest, "ValidationFailed", err.Error())
	}

	res, err := h.Svc.FirebaseLogin(ctx, req.Email, req.FirebaseUID, req.Provider)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return errorJSON(c, http.StatusNotFound, "NotFound", "no account found for this federated identity")
		case errors.Is(err, service.ErrAccountDisabled):
			return errorJSON(c, http.StatusUnauthorized, "AccountDisabled", "your account has been disabled")
		}
		l.Error("firebase_login_failed", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "ServerError", "failed to authenticate")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "login successful",
		"user":    res.User,
		"token":   res.Token,
	})
}

func (h *AuthHTTP) FirebaseSignup(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_firebase_signup")

	var req firebaseAuthRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "ValidationFailed", "invalid body")
	}
	if err := req.validateSignup(); err != nil {
		return errorJSON(c, http.StatusBadRequest, "ValidationFailed", err.Error())
	}

	res, err := h.Svc.FirebaseSignup(ctx, service.FirebaseParams{
		Email:       req.Email,
		FirebaseUID: req.FirebaseUID,
		Provider:    req.Provider,
		DisplayName: req.DisplayName,
		Role:        req.Role,
		Phone:       req.Phone,
		Address:     req.Address,
		Court:       req.Court,
		Designation: req.Designation,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		if errors.Is(err, service.ErrAlreadyExists) {
			return errorJSON(c, http.StatusBadRequest, "AlreadyExists", "an account with this email or federated identity already exists")
		}
		l.Error("firebase_signup_failed", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "ServerError", "failed to create account")
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "account created successfully",
		"user":    res.User,
		"token":   res.Token,
	})
}

func (h *AuthHTTP) Profile(c echo.Context) error {
	user, _ := middleware.Principal(c)
	return c.JSON(http.StatusOK, echo.Map{"user": user})
}

type profileUpdateRequest struct {
	DisplayName string `json:"displayName"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	Court       string `json:"court"`
	Designation string `json:"designation"`
}

func (r profileUpdateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DisplayName, validation.Length(2, 50)),
		validation.Field(&r.Phone, validation.Length(7, 15)),
		validation.Field(&r.Address, validation.Length(0, 500)),
		validation.Field(&r.Court, validation.Length(0, 200)),
		validation.Field(&r.Designation, validation.Length(0, 100)),
	)
}

func (h *AuthHTTP) UpdateProfile(c echo.Context) error {
	ctx := c.Request().Context()
	user, _ := middleware.Principal(c)

	var req profileUpdateRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "ValidationFailed", "invalid body")
	}
	if err := req.Validate(); err != nil {
		return errorJSON(c, http.StatusBadRequest, "ValidationFailed", err.Error())
	}

	updated, err := h.Svc.UpdateProfile(ctx, user.ID, service.ProfileUpdate{
		DisplayName: req.DisplayName,
		Phone:       req.Phone,
		Address:     req.Address,
		Court:       req.Court,
		Designation: req.Designation,
	})
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return errorJSON(c, http.StatusNotFound, "NotFound", "account not found")
		}
		return errorJSON(c, http.StatusInternalServerError, "ServerError", "failed to update profile")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "profile updated successfully",
		"user":    updated,
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (r changePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(6, 100), validation.By(passwordStrength)),
	)
}

func (h *AuthHTTP) ChangePassword(c echo.Context) error {
	ctx := c.Request().Context()
	user, _ := middleware.Principal(c)

	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "ValidationFailed", "invalid body")
	}
	if err := req.Validate(); err != nil {
		return errorJSON(c, http.StatusBadRequest, "ValidationFailed", err.Error())
	}

	if err := h.Svc.ChangePassword(ctx, user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return errorJSON(c, http.StatusBadRequest, "InvalidCredentials", "current password is incorrect")
		}
		return errorJSON(c, http.StatusInternalServerError, "ServerError", "failed to change password")
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "password changed successfully"})
}

func (h *AuthHTTP) Verify(c echo.Context) error {
	user, _ := middleware.Principal(c)
	return c.JSON(http.StatusOK, echo.Map{
		"user":    user,
		"message": "token verified successfully",
	})
}

// Logout acknowledges; the token stays valid until expiry, the client just
// discards it.
func (h *AuthHTTP) Logout(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out successfully"})
}
