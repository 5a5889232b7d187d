package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/timber-social/timber-backend/internal/domain"
	"github.com/timber-social/timber-backend/internal/observability"
	"github.com/timber-social/timber-backend/internal/repository"
	"github.com/timber-social/timber-backend/internal/security"
)

const (
	msgEmailTaken          = "User already exists with this email"
	msgUsernameTaken       = "This username is already taken"
	msgUserNotFound        = "User not found"
	msgAlreadyVerified     = "User is already verified"
	msgNoCode              = "No verification code found, please request it again"
	msgInvalidCode         = "Invalid verification code"
	msgCodeExpiredRegister = "Verification code is expired, please register again"
	msgCodeExpired         = "Verification code expired"
	msgInvalidCredentials  = "Invalid credentials"
	msgVerifyToLogin       = "Please verify your email to login"
	msgSessionFailed       = "Failed to create session"
	msgNoRefreshToken      = "Refresh token not provided"
	msgInvalidRefreshToken = "Invalid refresh token"
	msgForgotNotFound      = "User not found with this email"
	msgAccountSuspended    = "Your account has been suspended"
	msgAccountDeleted      = "This account has been deleted"

	MsgVerificationSent    = "Verification code sent to your email"
	MsgVerificationResent  = "New verification code sent to your email"
	MsgCodeValid           = "Verification code is valid"
	MsgPasswordReset       = "Password reset successful"
	MsgLoggedOut           = "Logged out successfully"
	MsgRegistered          = "User registered successfully, please verify your email"
	MsgRegistrationUpdated = "Registration updated, please verify your email"
)

type AuthPolicy struct {
	VerificationCodeTTL time.Duration
	ResetCodeTTL        time.Duration
}

type RegisterResult struct {
	Account domain.AccountView
	Created bool
	Message string
}

type LoginResult struct {
	Account domain.AccountView
	Tokens  TokenPair
}

type RefreshResult struct {
	Account         domain.AccountView
	AccessToken     string
	AccessExpiresAt time.Time
}

// AuthService drives an account through unregistered, pending verification
// and verified, and issues credentials once verified.
type AuthService struct {
	accounts repository.AccountRepository
	tokens   *TokenService
	hasher   *security.PasswordHasher
	notifier Notifier
	misses   ProfileMissCache
	logger   *slog.Logger
	policy   AuthPolicy
	now      func() time.Time
	newCode  func() (string, error)
}

func NewAuthService(
	accounts repository.AccountRepository,
	tokens *TokenService,
	hasher *security.PasswordHasher,
	notifier Notifier,
	misses ProfileMissCache,
	logger *slog.Logger,
	policy AuthPolicy,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	if misses == nil {
		misses = NewNoopProfileMissCache()
	}
	return &AuthService{
		accounts: accounts,
		tokens:   tokens,
		hasher:   hasher,
		notifier: notifier,
		misses:   misses,
		logger:   logger,
		policy:   policy,
		now:      time.Now,
		newCode:  security.GenerateOneTimeCode,
	}
}

func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

func (s *AuthService) WithCodeGenerator(gen func() (string, error)) *AuthService {
	s.newCode = gen
	return s
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	existing, err := s.findByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.IsVerified {
		observability.RecordAuthEvent(ctx, "register", "conflict")
		return nil, Conflict(msgEmailTaken)
	}
	if err := s.ensureUsernameFree(ctx, in.Username, 0); err != nil {
		observability.RecordAuthEvent(ctx, "register", "conflict")
		return nil, err
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, Internal("Failed to register user", err)
	}
	code, expiry, err := s.issueCode(s.policy.VerificationCodeTTL)
	if err != nil {
		return nil, err
	}

	var account *domain.Account
	created := existing == nil
	if created {
		account = &domain.Account{
			Name:                   in.Name,
			Username:               in.Username,
			Email:                  in.Email,
			PasswordHash:           digest,
			Roles:                  domain.DefaultRoles(),
			Status:                 domain.AccountStatusActive,
			VerificationCode:       &code,
			VerificationCodeExpiry: &expiry,
		}
		if err := s.accounts.Create(ctx, account); err != nil {
			if errors.Is(err, repository.ErrAccountConflict) {
				return nil, Conflict(msgEmailTaken)
			}
			return nil, Internal("Failed to register user", err)
		}
	} else {
		account, err = s.accounts.UpdateByID(ctx, existing.ID, repository.AccountUpdate{
			Name:                   &in.Name,
			Username:               &in.Username,
			PasswordHash:           &digest,
			VerificationCode:       &code,
			VerificationCodeExpiry: &expiry,
		})
		if err != nil {
			return nil, Internal("Failed to register user", err)
		}
	}

	s.notify(ctx, "verification", account, func(ctx context.Context, to Recipient) error {
		return s.notifier.SendVerificationCode(ctx, to, code, s.policy.VerificationCodeTTL)
	})

	outcome, msg := "created", MsgRegistered
	if !created {
		outcome, msg = "updated", MsgRegistrationUpdated
	}
	observability.RecordAuthEvent(ctx, "register", outcome)
	observability.Audit(ctx, s.logger, "account.registered", "user_id", account.ID, "outcome", outcome)
	return &RegisterResult{Account: account.View(), Created: created, Message: msg}, nil
}

func (s *AuthService) VerifyUser(ctx context.Context, in CodeInput) (*domain.AccountView, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	account, err := s.requireByEmail(ctx, in.Email, msgUserNotFound)
	if err != nil {
		return nil, err
	}
	if account.IsVerified {
		return nil, BadRequest(msgAlreadyVerified)
	}
	if err := s.checkCode(account, in.Code, msgCodeExpiredRegister); err != nil {
		observability.RecordAuthEvent(ctx, "verify", "rejected")
		return nil, err
	}
	// Unverified registrations may share a username; the first to verify wins it.
	if err := s.ensureUsernameFree(ctx, account.Username, account.ID); err != nil {
		observability.RecordAuthEvent(ctx, "verify", "conflict")
		return nil, err
	}

	verified := true
	updated, err := s.accounts.UpdateByID(ctx, account.ID, repository.AccountUpdate{IsVerified: &verified, ClearCode: true})
	if err != nil {
		// The verified-username index settles races the lookup above cannot see.
		if errors.Is(err, repository.ErrAccountConflict) {
			observability.RecordAuthEvent(ctx, "verify", "conflict")
			return nil, Conflict(msgUsernameTaken)
		}
		return nil, Internal("Failed to verify user", err)
	}
	if err := s.misses.Forget(ctx, updated.Username); err != nil {
		s.logger.WarnContext(ctx, "profile miss cache forget failed", "error", err)
	}
	observability.RecordAuthEvent(ctx, "verify", "success")
	observability.Audit(ctx, s.logger, "account.verified", "user_id", updated.ID)
	view := updated.View()
	return &view, nil
}

func (s *AuthService) ResendVerificationCode(ctx context.Context, in EmailInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}
	account, err := s.requireByEmail(ctx, in.Email, msgUserNotFound)
	if err != nil {
		return "", err
	}
	if account.IsVerified {
		return "", BadRequest(msgAlreadyVerified)
	}
	code, err := s.storeCode(ctx, account, s.policy.VerificationCodeTTL)
	if err != nil {
		return "", err
	}
	s.notify(ctx, "verification", account, func(ctx context.Context, to Recipient) error {
		return s.notifier.SendVerificationCode(ctx, to, code, s.policy.VerificationCodeTTL)
	})
	observability.RecordAuthEvent(ctx, "resend_verification", "success")
	return MsgVerificationResent, nil
}

func (s *AuthService) CheckVerificationCode(ctx context.Context, in CodeInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}
	account, err := s.requireByEmail(ctx, in.Email, msgUserNotFound)
	if err != nil {
		return "", err
	}
	if err := s.checkCode(account, in.Code, msgCodeExpired); err != nil {
		observability.RecordAuthEvent(ctx, "check_code", "rejected")
		return "", err
	}
	observability.RecordAuthEvent(ctx, "check_code", "success")
	return MsgCodeValid, nil
}

func (s *AuthService) ForgotPassword(ctx context.Context, in EmailInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}
	account, err := s.requireByEmail(ctx, in.Email, msgForgotNotFound)
	if err != nil {
		return "", err
	}
	if !account.IsVerified {
		return "", NotFound(msgForgotNotFound)
	}
	code, err := s.storeCode(ctx, account, s.policy.ResetCodeTTL)
	if err != nil {
		return "", err
	}
	s.notify(ctx, "password_reset", account, func(ctx context.Context, to Recipient) error {
		return s.notifier.SendPasswordReset(ctx, to, code, s.policy.ResetCodeTTL)
	})
	observability.RecordAuthEvent(ctx, "forgot_password", "success")
	observability.Audit(ctx, s.logger, "account.password_reset_requested", "user_id", account.ID)
	return MsgVerificationSent, nil
}

// ResetPassword leaves existing sessions alive.
func (s *AuthService) ResetPassword(ctx context.Context, in ResetPasswordInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}
	account, err := s.requireByEmail(ctx, in.Email, msgUserNotFound)
	if err != nil {
		return "", err
	}
	if err := s.checkCode(account, in.Code, msgCodeExpired); err != nil {
		observability.RecordAuthEvent(ctx, "reset_password", "rejected")
		return "", err
	}
	digest, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return "", Internal("Failed to reset password", err)
	}
	if _, err := s.accounts.UpdateByID(ctx, account.ID, repository.AccountUpdate{PasswordHash: &digest, ClearCode: true}); err != nil {
		return "", Internal("Failed to reset password", err)
	}
	observability.RecordAuthEvent(ctx, "reset_password", "success")
	observability.Audit(ctx, s.logger, "account.password_reset", "user_id", account.ID)
	return MsgPasswordReset, nil
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	account, err := s.findByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if account == nil {
		observability.RecordAuthEvent(ctx, "login", "unknown_account")
		return nil, Unauthorized(msgInvalidCredentials)
	}
	if !account.IsVerified {
		observability.RecordAuthEvent(ctx, "login", "unverified")
		return nil, Forbidden(msgVerifyToLogin)
	}
	if !s.hasher.Verify(in.Password, account.PasswordHash) {
		observability.RecordAuthEvent(ctx, "login", "bad_password")
		return nil, Unauthorized(msgInvalidCredentials)
	}
	switch account.Status {
	case domain.AccountStatusSuspended:
		observability.RecordAuthEvent(ctx, "login", "suspended")
		return nil, Forbidden(msgAccountSuspended)
	case domain.AccountStatusDeleted:
		observability.RecordAuthEvent(ctx, "login", "deleted")
		return nil, Forbidden(msgAccountDeleted)
	}

	view := account.View()
	pair, err := s.tokens.Issue(ctx, view)
	if err != nil {
		observability.RecordAuthEvent(ctx, "login", "error")
		return nil, Internal(msgSessionFailed, err)
	}
	observability.RecordAuthEvent(ctx, "login", "success")
	observability.Audit(ctx, s.logger, "account.login", "user_id", account.ID)
	return &LoginResult{Account: view, Tokens: *pair}, nil
}

// RefreshAccessToken mints a new access token for a stored session. The
// refresh token and the session are left untouched.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, Unauthorized(msgNoRefreshToken)
	}
	session, err := s.tokens.FindSession(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			observability.RecordAuthEvent(ctx, "refresh", "unknown_session")
			return nil, Unauthorized(msgInvalidRefreshToken)
		}
		return nil, Internal("Failed to refresh token", err)
	}
	if session.Expired(s.now()) {
		observability.RecordAuthEvent(ctx, "refresh", "expired_session")
		return nil, Unauthorized(msgInvalidRefreshToken)
	}
	account, err := s.accounts.FindByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, NotFound(msgUserNotFound)
		}
		return nil, Internal("Failed to refresh token", err)
	}
	view := account.View()
	access, expiresAt, err := s.tokens.SignAccess(view)
	if err != nil {
		return nil, Internal("Failed to refresh token", err)
	}
	observability.RecordAuthEvent(ctx, "refresh", "success")
	return &RefreshResult{Account: view, AccessToken: access, AccessExpiresAt: expiresAt}, nil
}

// Logout is idempotent: a missing or unknown token still succeeds.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return MsgLoggedOut, nil
	}
	revoked, err := s.tokens.Revoke(ctx, refreshToken)
	if err != nil {
		return "", Internal("Failed to logout", err)
	}
	outcome := "noop"
	if revoked {
		outcome = "success"
	}
	observability.RecordAuthEvent(ctx, "logout", outcome)
	return MsgLoggedOut, nil
}

func (s *AuthService) findByEmail(ctx context.Context, email string) (*domain.Account, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, nil
		}
		return nil, Internal("Failed to load user", err)
	}
	return account, nil
}

func (s *AuthService) requireByEmail(ctx context.Context, email, notFoundMsg string) (*domain.Account, error) {
	account, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, NotFound(notFoundMsg)
	}
	return account, nil
}

// ensureUsernameFree fails when a verified account other than selfID holds username.
func (s *AuthService) ensureUsernameFree(ctx context.Context, username string, selfID uint) error {
	holder, err := s.accounts.FindByUsername(ctx, username, true)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil
		}
		return Internal("Failed to load user", err)
	}
	if holder.ID != selfID {
		return Conflict(msgUsernameTaken)
	}
	return nil
}

// checkCode applies the stored-code rules in order: present, matching, unexpired.
func (s *AuthService) checkCode(account *domain.Account, code, expiredMsg string) error {
	if !account.HasPendingCode() {
		return BadRequest(msgNoCode)
	}
	if *account.VerificationCode != code {
		return BadRequest(msgInvalidCode)
	}
	if s.now().After(*account.VerificationCodeExpiry) {
		return BadRequest(expiredMsg)
	}
	return nil
}

func (s *AuthService) issueCode(ttl time.Duration) (string, time.Time, error) {
	code, err := s.newCode()
	if err != nil {
		return "", time.Time{}, Internal("Failed to generate code", err)
	}
	return code, security.OneTimeCodeExpiry(s.now(), ttl), nil
}

func (s *AuthService) storeCode(ctx context.Context, account *domain.Account, ttl time.Duration) (string, error) {
	code, expiry, err := s.issueCode(ttl)
	if err != nil {
		return "", err
	}
	if _, err := s.accounts.UpdateByID(ctx, account.ID, repository.AccountUpdate{
		VerificationCode:       &code,
		VerificationCodeExpiry: &expiry,
	}); err != nil {
		return "", Internal("Failed to store code", err)
	}
	return code, nil
}

// notify hands the message to the notifier. Failures are logged and never
// surface to the caller.
func (s *AuthService) notify(ctx context.Context, kind string, account *domain.Account, send func(context.Context, Recipient) error) {
	if s.notifier == nil {
		return
	}
	to := Recipient{Name: account.Name, Email: account.Email}
	if err := send(ctx, to); err != nil {
		s.logger.WarnContext(ctx, "notification dispatch failed", "kind", kind, "user_id", account.ID, "error", err)
	}
}
