package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"skills-backend/internal/quota"
	"skills-backend/internal/shared/auth"
	"skills-backend/internal/shared/telemetry"
)

const (
	minPasswordLength = 8
	// bcrypt rejects longer inputs.
	maxPasswordBytes = 72
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Account   Account
}

// Profile is an account together with its quota position.
type Profile struct {
	Account  Account
	Limit    int
	Used     int
	ResetsAt time.Time
}

type Service struct {
	Repo          Repo
	Mailer        Mailer
	Tokens        *auth.Issuer
	Policy        quota.Policy
	PublicBaseURL string
}

func NewService(repo Repo, mailer Mailer, tokens *auth.Issuer, policy quota.Policy, publicBaseURL string) *Service {
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &Service{
		Repo:          repo,
		Mailer:        mailer,
		Tokens:        tokens,
		Policy:        policy,
		PublicBaseURL: publicBaseURL,
	}
}

// Register creates an unverified, inactive account and mails a verification link.
func (s *Service) Register(ctx context.Context, email, password string) (Account, error) {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") || len(password) < minPasswordLength {
		return Account{}, fmt.Errorf("%w: email and a password of at least %d characters are required", ErrInvalidInput, minPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return Account{}, fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, maxPasswordBytes)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return Account{}, err
	}
	token, err := auth.NewToken()
	if err != nil {
		return Account{}, err
	}
	acct, err := s.Repo.Create(ctx, Account{
		Email:              email,
		PasswordHash:       hash,
		VerificationToken:  token,
		SubscriptionStatus: StatusInactive,
	})
	if err != nil {
		return Account{}, err
	}
	s.sendVerification(ctx, acct.Email, token)
	return acct, nil
}

func (s *Service) VerifyEmail(ctx context.Context, token string) (Account, error) {
	acct, err := s.Repo.GetByVerificationToken(ctx, strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Account{}, ErrInvalidToken
		}
		return Account{}, err
	}
	return s.Repo.MarkVerified(ctx, acct.ID)
}

// ResendVerification issues a fresh token. Unknown or already verified
// emails are a silent no-op.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	acct, err := s.Repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if acct.IsVerified {
		return nil
	}
	token, err := auth.NewToken()
	if err != nil {
		return err
	}
	if err := s.Repo.SetVerificationToken(ctx, acct.ID, token); err != nil {
		return err
	}
	s.sendVerification(ctx, acct.Email, token)
	return nil
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	if s.Tokens == nil {
		return Session{}, auth.ErrMissingSecret
	}
	acct, err := s.Repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if err := auth.CheckPassword(acct.PasswordHash, password); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	token, expires, err := s.Tokens.Sign(acct.ID, acct.Email)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: expires, Account: acct}, nil
}

func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	acct, err := s.Repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	token, err := auth.NewToken()
	if err != nil {
		return err
	}
	if err := s.Repo.SetPasswordResetToken(ctx, acct.ID, token); err != nil {
		return err
	}
	link := buildLink(s.PublicBaseURL, "/reset-password", token)
	if err := s.Mailer.SendPasswordReset(ctx, acct.Email, link); err != nil {
		telemetry.Warn("mail.password_reset.failed", map[string]any{"account_id": acct.ID, "error": err.Error()})
	}
	return nil
}

// ResetPassword consumes a reset token; the token is cleared with the update.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	if len(newPassword) > maxPasswordBytes {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, maxPasswordBytes)
	}
	acct, err := s.Repo.GetByPasswordResetToken(ctx, strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.Repo.UpdatePassword(ctx, acct.ID, hash)
}

func (s *Service) Profile(ctx context.Context, id int64) (Profile, error) {
	acct, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	return Profile{
		Account:  acct,
		Limit:    s.Policy.Limit,
		Used:     acct.APICallsThisMonth,
		ResetsAt: s.Policy.ResetsAt(acct.Usage()),
	}, nil
}

func (s *Service) sendVerification(ctx context.Context, email, token string) {
	link := buildLink(s.PublicBaseURL, "/api/v1/auth/verify-email", token)
	if err := s.Mailer.SendVerification(ctx, email, link); err != nil {
		telemetry.Warn("mail.verification.failed", map[string]any{"email": email, "error": err.Error()})
	}
}
