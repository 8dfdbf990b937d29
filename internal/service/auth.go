package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/soundscape/internal/apperror"
	"github.com/sakif/soundscape/internal/auth"
	"github.com/sakif/soundscape/internal/genre"
	"github.com/sakif/soundscape/internal/mail"
	"github.com/sakif/soundscape/internal/metrics"
	"github.com/sakif/soundscape/internal/model"
	"github.com/sakif/soundscape/internal/repository"
)

// DefaultResetTokenTTL is how long a password reset link stays valid.
const DefaultResetTokenTTL = time.Hour

// Messages shown to users. Several are asserted by handler tests.
const (
	MsgResetRequested = "If that email exists, a reset link has been sent"
	MsgEmailVerified  = "Email successfully verified"
	MsgPasswordReset  = "Password has been reset"

	msgInvalidCredentials = "Invalid credentials"
	msgUserNotFound       = "User not found"
	msgNotAuthorized      = "Not authorized"
)

// FederatedVerifier turns a Google credential into a verified identity.
// *auth.GoogleProvider implements it.
type FederatedVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.FederatedIdentity, error)
	CanExchange() bool
	Exchange(ctx context.Context, code string) (*auth.FederatedIdentity, error)
}

// AccountMailer sends the transactional account emails. *mail.Mailer
// implements it.
type AccountMailer interface {
	SendPasswordReset(ctx context.Context, to, token string) error
	SendVerification(ctx context.Context, to, name, token string) error
}

// AuthDeps bundles AuthService's dependencies.
//
//   - Users       → read/write user records
//   - Tokens      → sign/validate session JWTs
//   - Passwords   → bcrypt hashing
//   - Federated   → nil when GOOGLE_CLIENT_ID is not configured
//   - Mailer      → reset and verification emails
//   - ResetTTL    → defaults to DefaultResetTokenTTL
//   - Now         → defaults to time.Now; tests pin it
type AuthDeps struct {
	Users     repository.UserRepository
	Tokens    *auth.TokenService
	Passwords *auth.PasswordService
	Federated FederatedVerifier
	Mailer    AccountMailer
	ResetTTL  time.Duration
	Now       func() time.Time
	Logger    *slog.Logger
}

// AuthService is the business logic layer for accounts and sessions. It sits
// between the HTTP handlers and the repository/auth utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT), PasswordService (bcrypt)
//	                   ↘ FederatedVerifier (Google), AccountMailer (SMTP)
//
// KEY RESPONSIBILITIES:
//   - Register and log in with email + password
//   - Federated sign-in: verify a Google ID token (or exchange a code for one)
//   - Password reset and email verification with single-use random tokens
//   - Own the one canonical write path for genre preferences
//
// ACCOUNT ENUMERATION:
// Login answers "Invalid credentials" whether the email is unknown or the
// password is wrong, and RequestPasswordReset answers the same message
// whether or not the email exists. Mail delivery failures are logged and
// never change the response.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	federated FederatedVerifier
	mailer    AccountMailer
	resetTTL  time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewAuthService creates an AuthService. Call this in server.New when wiring
// the dependency graph.
func NewAuthService(deps AuthDeps) *AuthService {
	if deps.ResetTTL <= 0 {
		deps.ResetTTL = DefaultResetTokenTTL
	}
	return &AuthService{
		users:     deps.Users,
		tokens:    deps.Tokens,
		passwords: deps.Passwords,
		federated: deps.Federated,
		mailer:    deps.Mailer,
		resetTTL:  deps.ResetTTL,
		now:       nowOr(deps.Now),
		logger:    deps.Logger,
	}
}

// AuthResult bundles the user record and the issued session token so the
// handler can respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Genres   []string
}

// Register creates an account with a hashed password and a normalized genre
// set, then sends a verification email (best-effort).
//
// FLOW:
//  1. Required fields (any non-empty password up to bcrypt's limit)
//  2. Email uniqueness (the UNIQUE index is the backstop for races)
//  3. Hash, create, sign a session token
//  4. Mail the verification link; failures are only logged
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return nil, apperror.ValidationFailed("", "Name, email, and password are required")
	}
	if len(in.Password) > auth.MaxPasswordBytes {
		return nil, passwordTooLong()
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, apperror.ConflictMessage("Email already in use")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: checking email: %w", err)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}
	verifyToken, err := auth.NewOneTimeToken()
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Name:              name,
		Email:             email,
		PasswordHash:      hash,
		Genres:            genre.Normalize(in.Genres),
		VerificationToken: verifyToken,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ConflictMessage("Email already in use")
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered", slog.String("userID", user.ID))
	s.sendVerification(ctx, user)

	return s.issue(user)
}

// Login checks email + password. Every failure is the same 401.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("", "Email and password are required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(msgInvalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.Unauthorized(msgInvalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	return s.issue(user)
}

// FederatedInput carries exactly one of an ID token (the browser
// "credential" flow) or an authorization code.
type FederatedInput struct {
	Credential string
	Code       string
}

// FederatedSignIn verifies a Google identity and signs the user in.
//
// FLOW:
//  1. Verify the ID token (or exchange the code, then verify)
//  2. Find the local user by email
//     - none: create one with an unusable password, emailVerified = true
//     - found without a linked Google id: link it
//  3. Sign a session token
func (s *AuthService) FederatedSignIn(ctx context.Context, in FederatedInput) (*AuthResult, error) {
	credential := strings.TrimSpace(in.Credential)
	code := strings.TrimSpace(in.Code)
	if credential == "" && code == "" {
		return nil, apperror.ValidationFailed("credential", "Missing Google credential")
	}
	if s.federated == nil {
		return nil, apperror.Internal("GOOGLE_CLIENT_ID is not configured")
	}

	var (
		identity *auth.FederatedIdentity
		err      error
	)
	if credential != "" {
		identity, err = s.federated.VerifyIDToken(ctx, credential)
	} else {
		if !s.federated.CanExchange() {
			return nil, apperror.Internal("GOOGLE_CLIENT_SECRET is not configured")
		}
		identity, err = s.federated.Exchange(ctx, code)
	}
	if err != nil {
		if errors.Is(err, auth.ErrIdentityTokenInvalid) {
			s.logger.Warn("google credential rejected", slog.String("error", err.Error()))
			return nil, apperror.ValidationFailed("credential", "Invalid Google credential")
		}
		return nil, apperror.Upstream("Google sign-in failed", err)
	}

	email := normalizeEmail(identity.Email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "Google account has no email")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		user, err = s.createFederatedUser(ctx, identity, email)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	case user.GoogleID == "":
		user.GoogleID = identity.Subject
		if err := s.users.UpdateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("service/auth: linking google account: %w", err)
		}
		s.logger.Info("google account linked", slog.String("userID", user.ID))
	}

	return s.issue(user)
}

func (s *AuthService) createFederatedUser(ctx context.Context, identity *auth.FederatedIdentity, email string) (*model.User, error) {
	secret, err := auth.NewUnusablePassword()
	if err != nil {
		return nil, err
	}
	hash, err := s.passwords.Hash(secret)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name = email
	}
	user := &model.User{
		Name:          name,
		Email:         email,
		PasswordHash:  hash,
		GoogleID:      identity.Subject,
		Genres:        []string{},
		EmailVerified: true,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating google user: %w", err)
	}
	s.logger.Info("user registered via google", slog.String("userID", user.ID))
	return user, nil
}

// GetCurrentUser resolves the session's user. The middleware has already
// classified the credential; anything but a valid session is a 401.
func (s *AuthService) GetCurrentUser(ctx context.Context, session model.Session) (*model.User, error) {
	if !session.Valid() {
		return nil, apperror.Unauthorized(msgNotAuthorized)
	}
	return s.userByID(ctx, session.UserID)
}

// RequestPasswordReset issues a reset token if the email is registered and
// returns the same message either way.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", apperror.ValidationFailed("email", "Email is required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return MsgResetRequested, nil
		}
		return "", fmt.Errorf("service/auth: looking up user: %w", err)
	}

	token, err := auth.NewOneTimeToken()
	if err != nil {
		return "", err
	}
	expiry := s.now().Add(s.resetTTL)
	user.ResetToken = token
	user.ResetTokenExpiry = &expiry
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return "", fmt.Errorf("service/auth: storing reset token: %w", err)
	}

	s.deliver(ctx, "password_reset", user.ID, func() error {
		return s.mailer.SendPasswordReset(ctx, user.Email, token)
	})
	return MsgResetRequested, nil
}

// ResetPassword consumes a reset token, sets the new password and signs the
// user in.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) (*AuthResult, error) {
	token = strings.TrimSpace(token)
	if token == "" || password == "" {
		return nil, apperror.ValidationFailed("", "Token and new password are required")
	}
	if err := checkPassword(password); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByResetToken(ctx, token, s.now())
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ValidationFailed("token", "Reset link is invalid or has expired")
		}
		return nil, fmt.Errorf("service/auth: looking up reset token: %w", err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}
	user.PasswordHash = hash
	user.ResetToken = ""
	user.ResetTokenExpiry = nil
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: saving new password: %w", err)
	}

	s.logger.Info("password reset", slog.String("userID", user.ID))
	return s.issue(user)
}

// UpdatePreferences replaces the user's genre set. Both preference routes
// (/auth/preferences and /recommendations/preferences) end up here.
func (s *AuthService) UpdatePreferences(ctx context.Context, session model.Session, genres []string) (*model.User, error) {
	user, err := s.GetCurrentUser(ctx, session)
	if err != nil {
		return nil, err
	}

	user.Genres = genre.Normalize(genres)
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: updating preferences: %w", err)
	}
	return user, nil
}

// UpdateEmail changes the account email. The new address starts unverified
// and gets a fresh verification link.
func (s *AuthService) UpdateEmail(ctx context.Context, session model.Session, email string) (*model.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "Email is required")
	}

	user, err := s.GetCurrentUser(ctx, session)
	if err != nil {
		return nil, err
	}
	if user.Email == email {
		return user, nil
	}

	other, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil && other.ID != user.ID:
		return nil, apperror.ConflictMessage("Email already in use")
	case err != nil && !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/auth: checking email: %w", err)
	}

	token, err := auth.NewOneTimeToken()
	if err != nil {
		return nil, err
	}
	user.Email = email
	user.EmailVerified = false
	user.VerificationToken = token
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}

	s.sendVerification(ctx, user)
	return user, nil
}

// VerifyEmail consumes a verification token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", apperror.ValidationFailed("token", "Missing verification token")
	}

	user, err := s.users.GetUserByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", apperror.ValidationFailed("token", "Verification link is invalid or has expired")
		}
		return "", fmt.Errorf("service/auth: looking up verification token: %w", err)
	}

	user.EmailVerified = true
	user.VerificationToken = ""
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return "", fmt.Errorf("service/auth: verifying email: %w", err)
	}
	return MsgEmailVerified, nil
}

func (s *AuthService) userByID(ctx context.Context, id string) (*model.User, error) {
	return lookupUser(ctx, s.users, id)
}

// lookupUser maps a missing user to a 404 "User not found".
func lookupUser(ctx context.Context, users repository.UserRepository, id string) (*model.User, error) {
	user, err := users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage(msgUserNotFound)
		}
		return nil, fmt.Errorf("service: fetching user %s: %w", id, err)
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func (s *AuthService) sendVerification(ctx context.Context, user *model.User) {
	s.deliver(ctx, "verification", user.ID, func() error {
		return s.mailer.SendVerification(ctx, user.Email, user.Name, user.VerificationToken)
	})
}

// deliver runs one mail send and swallows its error.
func (s *AuthService) deliver(ctx context.Context, template, userID string, send func() error) {
	if s.mailer == nil {
		return
	}
	err := send()
	switch {
	case err == nil:
		metrics.EmailsSent.WithLabelValues(template, "sent").Inc()
	case errors.Is(err, mail.ErrNotConfigured):
		metrics.EmailsSent.WithLabelValues(template, "skipped").Inc()
	default:
		metrics.EmailsSent.WithLabelValues(template, "failed").Inc()
		s.logger.ErrorContext(ctx, "sending email failed",
			slog.String("template", template),
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func checkPassword(password string) error {
	if len(password) < auth.MinPasswordLength {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("Password must be at least %d characters", auth.MinPasswordLength))
	}
	if len(password) > auth.MaxPasswordBytes {
		return passwordTooLong()
	}
	return nil
}

func passwordTooLong() error {
	return apperror.ValidationFailed("password",
		fmt.Sprintf("Password must be %d bytes or fewer", auth.MaxPasswordBytes))
}
