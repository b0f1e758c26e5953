package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shahdkhalaf/graduation-project/internal/apperr"
	"github.com/shahdkhalaf/graduation-project/internal/auth"
	"github.com/shahdkhalaf/graduation-project/internal/crypto"
	"github.com/shahdkhalaf/graduation-project/internal/logging"
	"github.com/shahdkhalaf/graduation-project/internal/model"
	"github.com/shahdkhalaf/graduation-project/internal/validation"
)

type UserStore interface {
	CreateUser(ctx context.Context, user model.User) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	GetUserByID(ctx context.Context, userID int64) (model.User, error)
	MarkEmailVerified(ctx context.Context, userID int64) error
}

// Notifier delivers verification tokens to users.
type Notifier interface {
	SendVerification(ctx context.Context, user model.User, token string) error
}

// LogNotifier records verification tokens in the log instead of mailing them.
type LogNotifier struct{}

func (LogNotifier) SendVerification(ctx context.Context, user model.User, token string) error {
	logging.Ctx(ctx).Info().Int64("user_id", user.ID).Str("email", user.Email).Msg("verification token issued")
	return nil
}

type IdentityConfig struct {
	Secret     string
	Issuer     string
	SessionTTL time.Duration
	VerifyTTL  time.Duration
	BcryptCost int
}

type Identity struct {
	users    UserStore
	notifier Notifier
	cfg      IdentityConfig
	// dummyHash is compared against when the email is unknown so both failure
	// paths cost one bcrypt comparison.
	dummyHash string
}

func NewIdentity(users UserStore, notifier Notifier, cfg IdentityConfig) *Identity {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	dummy, _ := crypto.HashPasswordCost("not-a-real-password", cfg.BcryptCost)
	return &Identity{users: users, notifier: notifier, cfg: cfg, dummyHash: dummy}
}

type SignupInput struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=6,max=72"`
	Age       Age    `json:"age" validate:"required,min=1,max=150"`
	Gender    string `json:"gendar" validate:"required,max=32"`
	District  string `json:"district" validate:"required,max=100"`
}

// Age accepts a JSON number or a numeric string such as "22".
type Age int

func (a *Age) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
		if raw == "" {
			*a = 0
			return nil
		}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("age: %w", err)
	}
	*a = Age(n)
	return nil
}

// Signup registers a user and returns it with a verification token. The
// verification token cannot be used as a session token.
func (s *Identity) Signup(ctx context.Context, in SignupInput) (model.User, string, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if err := validation.Struct(in); err != nil {
		return model.User{}, "", err
	}

	hash, err := crypto.HashPasswordCost(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return model.User{}, "", apperr.Internal(err)
	}
	user, err := s.users.CreateUser(ctx, model.User{
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Age:          int(in.Age),
		Gender:       in.Gender,
		District:     in.District,
	})
	if err != nil {
		return model.User{}, "", err
	}

	token, err := auth.NewToken(s.cfg.Secret, s.cfg.Issuer, auth.KindVerify, s.cfg.VerifyTTL, auth.Claims{UserID: user.ID, Email: user.Email})
	if err != nil {
		return model.User{}, "", apperr.Internal(err)
	}
	if err := s.notifier.SendVerification(ctx, user, token); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int64("user_id", user.ID).Msg("verification notify failed")
	}
	return user, token, nil
}

// Signin checks credentials and issues a session token. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *Identity) Signin(ctx context.Context, email, password string) (model.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return model.User{}, "", apperr.InvalidArgument("missing_credentials")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if apperr.KindOf(err) == apperr.KindNotFound {
		_ = crypto.CheckPassword(s.dummyHash, password)
		return model.User{}, "", apperr.Unauthenticated("invalid_credentials")
	}
	if err != nil {
		return model.User{}, "", err
	}
	if err := crypto.CheckPassword(user.PasswordHash, password); err != nil {
		if !errors.Is(err, crypto.ErrPasswordMismatch) {
			logging.Ctx(ctx).Warn().Err(err).Int64("user_id", user.ID).Msg("stored password hash unreadable")
		}
		return model.User{}, "", apperr.Unauthenticated("invalid_credentials")
	}

	token, err := auth.NewToken(s.cfg.Secret, s.cfg.Issuer, auth.KindSession, s.cfg.SessionTTL, auth.Claims{UserID: user.ID, Email: user.Email})
	if err != nil {
		return model.User{}, "", apperr.Internal(err)
	}
	return user, token, nil
}

func (s *Identity) VerifyEmail(ctx context.Context, token string) (model.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return model.User{}, apperr.InvalidArgument("missing_token")
	}
	claims, err := auth.ParseToken(s.cfg.Secret, s.cfg.Issuer, auth.KindVerify, token)
	if err != nil {
		return model.User{}, apperr.Wrap(apperr.KindUnauthenticated, "invalid_token", err)
	}
	if err := s.users.MarkEmailVerified(ctx, claims.UserID); err != nil {
		return model.User{}, err
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return model.User{}, err
	}
	return user, nil
}

// GetUser returns the profile for email, which must belong to the caller.
func (s *Identity) GetUser(ctx context.Context, caller auth.Claims, email string) (model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return model.User{}, apperr.InvalidArgument("missing_email")
	}
	if !strings.EqualFold(email, caller.Email) {
		return model.User{}, apperr.Forbidden("forbidden")
	}
	return s.users.GetUserByEmail(ctx, email)
}

// Authenticate verifies a session token.
func (s *Identity) Authenticate(token string) (*auth.Claims, error) {
	claims, err := auth.ParseToken(s.cfg.Secret, s.cfg.Issuer, auth.KindSession, token)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthenticated, "invalid_token", err)
	}
	return claims, nil
}
