package service

import (
	"context"
	"errors"
	"time"

	"github.com/aicourt/backend/internal/models"
	"github.com/aicourt/backend/internal/repo"
	"github.com/aicourt/backend/pkg/hash"
	"github.com/aicourt/backend/pkg/logging"
	"github.com/aicourt/backend/pkg/tokens"
	"github.com/google/uuid"
)

var (
	ErrAlreadyExists      = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
)

type AuthService struct {
	Repo      *repo.GormRepo
	JWTSecret []byte
}

// AuthResult is what every successful identity resolution terminates in:
// the canonical account plus a freshly minted session token.
type AuthResult struct {
	User  *models.User
	Token string
}

type RegisterParams struct {
	Email       string
	Password    string
	DisplayName string
	Role        string
	Phone       string
	Address     string
	Court       string
	Designation string
}

type FirebaseParams struct {
	Email       string
	FirebaseUID string
	Provider    string
	DisplayName string
	Role        string
	Phone       string
	Address     string
	Court       string
	Designation string
	PhotoURL    string
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := tokens.Issue(s.JWTSecret, user.ID.String(), user.Email, user.Role, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

func (s *AuthService) Register(ctx context.Context, p RegisterParams) (*AuthResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	pwHash, err := hash.HashPassword(p.Password)
	if err != nil {
		l.Error("register_failed", "reason", "cannot hash password", "error", err)
		return nil, err
	}

	user := &models.User{
		Email:        p.Email,
		PasswordHash: pwHash,
		Role:         p.Role,
		DisplayName:  p.DisplayName,
		Phone:        p.Phone,
		Address:      p.Address,
		Court:        p.Court,
		Designation:  p.Designation,
		IsActive:     true,
	}
	if err := s.Repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			l.Warn("register_failed", "reason", "email taken")
			return nil, ErrAlreadyExists
		}
		l.Error("register_failed", "error", err)
		return nil, err
	}

	l.Info("registered", "user_id", user.ID, "role", user.Role)
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	user, err := s.Repo.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, repo.ErrNotFound
		}
		return nil, err
	}
	if !user.IsActive {
		l.Warn("login_failed", "reason", "account disabled", "user_id", user.ID)
		return nil, ErrAccountDisabled
	}
	if user.PasswordHash == "" || !hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login_failed", "reason", "password mismatch", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	if err := s.Repo.TouchLastLogin(ctx, user.ID); err != nil {
		l.Warn("last_login_update_failed", "error", err)
	}
	l.Info("login_successful", "user_id", user.ID)
	return s.issue(user)
}

// FirebaseLogin resolves a verified federated assertion to an existing
// account, by federated id first and email second. An account reached by
// email alone gains the federated id (first-write-wins). Absent accounts are
// NOT created here: the caller falls back to FirebaseSignup, and the unique
// index on firebase_uid arbitrates the create race.
func (s *AuthService) FirebaseLogin(ctx context.Context, email, firebaseUID, provider string) (*AuthResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.firebase_login")

	user, err := s.Repo.FindUserByFirebaseUID(ctx, firebaseUID)
	if errors.Is(err, repo.ErrNotFound) {
		user, err = s.Repo.FindUserByEmail(ctx, email)
	}
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, repo.ErrNotFound
		}
		return nil, err
	}
	if !user.IsActive {
		l.Warn("login_failed", "reason", "account disabled", "user_id", user.ID)
		return nil, ErrAccountDisabled
	}

	if user.FirebaseUID == nil {
		if err := s.Repo.LinkFirebaseUID(ctx, user.ID, firebaseUID, provider); err != nil {
			l.Error("federated_link_failed", "user_id", user.ID, "error", err)
			return nil, err
		}
		user, err = s.Repo.GetUserByID(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		l.Info("federated_id_linked", "user_id", user.ID)
	}

	if err := s.Repo.TouchLastLogin(ctx, user.ID); err != nil {
		l.Warn("last_login_update_failed", "error", err)
	}
	l.Info("login_successful", "user_id", user.ID)
	return s.issue(user)
}

func (s *AuthService) FirebaseSignup(ctx context.Context, p FirebaseParams) (*AuthResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.firebase_signup")

	role := p.Role
	if role == "" {
		role = models.RoleCitizen
	}
	uid := p.FirebaseUID
	user := &models.User{
		Email:       p.Email,
		FirebaseUID: &uid,
		Provider:    p.Provider,
		Role:        role,
		DisplayName: p.DisplayName,
		Phone:       p.Phone,
		Address:     p.Address,
		Court:       p.Court,
		Designation: p.Designation,
		PhotoURL:    p.PhotoURL,
		// Federated identities arrive with the email already verified
		// by the provider.
		EmailVerified: true,
		IsActive:      true,
	}
	if err := s.Repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			l.Warn("signup_failed", "reason", "email or federated id taken")
			return nil, ErrAlreadyExists
		}
		l.Error("signup_failed", "error", err)
		return nil, err
	}

	l.Info("registered", "user_id", user.ID, "provider", p.Provider)
	return s.issue(user)
}

type ProfileUpdate struct {
	DisplayName string
	Phone       string
	Address     string
	Court       string
	Designation string
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, p ProfileUpdate) (*models.User, error) {
	fields := map[string]any{}
	if p.DisplayName != "" {
		fields["display_name"] = p.DisplayName
	}
	if p.Phone != "" {
		fields["phone"] = p.Phone
	}
	if p.Address != "" {
		fields["address"] = p.Address
	}
	if p.Court != "" {
		fields["court"] = p.Court
	}
	if p.Designation != "" {
		fields["designation"] = p.Designation
	}
	if len(fields) == 0 {
		return s.Repo.GetUserByID(ctx, userID)
	}
	return s.Repo.UpdateUserProfile(ctx, userID, fields)
}

func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	l := logging.FromContext(ctx).With("svc", "auth.change_password", "user_id", userID)

	user, err := s.Repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.PasswordHash == "" || !hash.CheckPassword(user.PasswordHash, current) {
		l.Warn("change_password_failed", "reason", "current password mismatch")
		return ErrInvalidCredentials
	}

	newHash, err := hash.HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.Repo.UpdatePassword(ctx, userID, newHash); err != nil {
		return err
	}
	l.Info("password_changed")
	return nil
}
