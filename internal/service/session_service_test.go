package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/auth-session-api/internal/models"
	"github.com/noah-isme/auth-session-api/internal/repository"
	appErrors "github.com/noah-isme/auth-session-api/pkg/errors"
)

type memoryAccountRepo struct {
	mu        sync.Mutex
	byID      map[string]models.Account
	createErr error
}

func newMemoryAccountRepo() *memoryAccountRepo {
	return &memoryAccountRepo{byID: map[string]models.Account{}}
}

func (r *memoryAccountRepo) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if a.Email == email {
			copied := a
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *memoryAccountRepo) FindByID(ctx context.Context, id string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}

func (r *memoryAccountRepo) Create(ctx context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	account.ID = uuid.NewString()
	r.byID[account.ID] = *account
	return nil
}

func (r *memoryAccountRepo) update(id string, fn func(a *models.Account) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok || !fn(&a) {
		return false
	}
	r.byID[id] = a
	return true
}

func (r *memoryAccountRepo) SetEmailVerificationOTP(ctx context.Context, id, otpHash string, expiresAt, now time.Time) error {
	if !r.update(id, func(a *models.Account) bool {
		if a.IsEmailVerified {
			return false
		}
		a.EmailVerificationOTPHash, a.EmailVerificationOTPExpiresAt = &otpHash, &expiresAt
		return true
	}) {
		return sql.ErrNoRows
	}
	return nil
}

func (r *memoryAccountRepo) MarkEmailVerified(ctx context.Context, id, otpHash string, now time.Time) (bool, error) {
	return r.update(id, func(a *models.Account) bool {
		if a.IsEmailVerified || a.EmailVerificationOTPHash == nil || *a.EmailVerificationOTPHash != otpHash {
			return false
		}
		a.IsEmailVerified = true
		a.EmailVerificationOTPHash, a.EmailVerificationOTPExpiresAt = nil, nil
		return true
	}), nil
}

func (r *memoryAccountRepo) SetPasswordResetOTP(ctx context.Context, id, otpHash string, expiresAt, now time.Time) error {
	if !r.update(id, func(a *models.Account) bool {
		a.PasswordResetOTPHash, a.PasswordResetOTPExpiresAt = &otpHash, &expiresAt
		return true
	}) {
		return sql.ErrNoRows
	}
	return nil
}

func (r *memoryAccountRepo) ResetPassword(ctx context.Context, id, otpHash, passwordHash string, now time.Time) (bool, error) {
	return r.update(id, func(a *models.Account) bool {
		if a.PasswordResetOTPHash == nil || *a.PasswordResetOTPHash != otpHash {
			return false
		}
		a.PasswordHash = passwordHash
		a.PasswordResetOTPHash, a.PasswordResetOTPExpiresAt = nil, nil
		a.RefreshTokenHash, a.RefreshTokenExpiresAt = nil, nil
		return true
	}), nil
}

func (r *memoryAccountRepo) StartSession(ctx context.Context, id, refreshHash string, expiresAt, now time.Time) error {
	if !r.update(id, func(a *models.Account) bool {
		a.RefreshTokenHash, a.RefreshTokenExpiresAt, a.LastLogin = &refreshHash, &expiresAt, &now
		return true
	}) {
		return sql.ErrNoRows
	}
	return nil
}

func (r *memoryAccountRepo) RotateRefreshToken(ctx context.Context, id, oldHash, newHash string, expiresAt, now time.Time) (bool, error) {
	return r.update(id, func(a *models.Account) bool {
		if a.RefreshTokenHash == nil || *a.RefreshTokenHash != oldHash || !a.RefreshTokenExpiresAt.After(now) {
			return false
		}
		a.RefreshTokenHash, a.RefreshTokenExpiresAt = &newHash, &expiresAt
		return true
	}), nil
}

func (r *memoryAccountRepo) ClearRefreshToken(ctx context.Context, id, expectedHash string, now time.Time) (bool, error) {
	return r.update(id, func(a *models.Account) bool {
		if a.RefreshTokenHash == nil || *a.RefreshTokenHash != expectedHash {
			return false
		}
		a.RefreshTokenHash, a.RefreshTokenExpiresAt = nil, nil
		return true
	}), nil
}

func (r *memoryAccountRepo) RevokeRefreshToken(ctx context.Context, id string, now time.Time) error {
	if !r.update(id, func(a *models.Account) bool {
		a.RefreshTokenHash, a.RefreshTokenExpiresAt = nil, nil
		return true
	}) {
		return sql.ErrNoRows
	}
	return nil
}

type outboxMail struct {
	to, subject, body string
}

type stubSender struct {
	mu   sync.Mutex
	sent []outboxMail
	err  error
}

func (s *stubSender) Send(ctx context.Context, to, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, outboxMail{to: to, subject: subject, body: body})
	return nil
}

var codePattern = regexp.MustCompile(`>(\d{6})<`)

func (s *stubSender) lastCode(t *testing.T) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.sent)
	m := codePattern.FindStringSubmatch(s.sent[len(s.sent)-1].body)
	require.Len(t, m, 2)
	return m[1]
}

func (s *stubSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type sessionFixture struct {
	svc      *SessionService
	accounts *memoryAccountRepo
	ledger   *fakeLedger
	sender   *stubSender
}

func newSessionFixture(t *testing.T) *sessionFixture {
	accounts := newMemoryAccountRepo()
	ledger := newFakeLedger()
	sender := &stubSender{}
	otp := NewOTPService(OTPConfig{Length: 6, TTL: 10 * time.Minute, HashCost: bcrypt.MinCost})
	tokens := NewTokenService(TokenConfig{Secret: "session-secret", Issuer: "auth-test", AccessExpiry: time.Hour, RefreshExpiry: 24 * time.Hour})
	revocations := newTestRevocationService(t, ledger, nil)
	svc := NewSessionService(accounts, otp, tokens, revocations, sender, nil, nil, zap.NewNop(), SessionConfig{ProductName: "Test", PasswordCost: bcrypt.MinCost})
	return &sessionFixture{svc: svc, accounts: accounts, ledger: ledger, sender: sender}
}

func (f *sessionFixture) verifiedAccount(t *testing.T, email, password string) {
	ctx := context.Background()
	_, err := f.svc.SignUp(ctx, models.SignUpRequest{Email: email, Password: password})
	require.NoError(t, err)
	require.NoError(t, f.svc.VerifyEmail(ctx, models.VerifyEmailRequest{Email: email, OTP: f.sender.lastCode(t)}))
}

func assertAppError(t *testing.T, err error, target *appErrors.Error, message string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, target), "expected %s, got %v", target.Code, err)
	if message != "" {
		assert.Equal(t, message, appErrors.FromError(err).Message)
	}
}

func TestSessionSignUpVerifySignIn(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	res, err := f.svc.SignUp(ctx, models.SignUpRequest{Email: "A@x.com", Password: "pw123456", Username: "alice", FullName: "Alice A"})
	require.NoError(t, err)
	assert.True(t, res.EmailDelivered)
	assert.Equal(t, "a@x.com", res.Account.Email)
	assert.Equal(t, "alice", res.Account.Username)
	assert.False(t, res.Account.IsEmailVerified)
	require.Equal(t, 1, f.sender.count())
	assert.Equal(t, "Verify Your Email - Test", f.sender.sent[0].subject)

	_, err = f.svc.SignIn(ctx, models.SignInRequest{Email: "a@x.com", Password: "pw123456"})
	assertAppError(t, err, appErrors.ErrForbidden, "verify email first")

	require.NoError(t, f.svc.VerifyEmail(ctx, models.VerifyEmailRequest{Email: "a@x.com", OTP: f.sender.lastCode(t)}))

	pair, err := f.svc.SignIn(ctx, models.SignInRequest{Email: "a@x.com", Password: "pw123456"})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.Access.Value)
	assert.NotEmpty(t, pair.Refresh.Value)
	assert.True(t, pair.Account.IsEmailVerified)

	stored, err := f.accounts.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, stored.RefreshTokenHash)
	assert.Equal(t, HashToken(pair.Refresh.Value), *stored.RefreshTokenHash)
	assert.NotNil(t, stored.LastLogin)
	assert.Equal(t, models.StateVerifiedActiveSession, stored.State(time.Now()))

	claims, err := f.svc.Authenticate(ctx, pair.Access.Value)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, claims.AccountID())
}

func TestSessionVerifyTwiceAlreadyVerified(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.verifiedAccount(t, "a@x.com", "pw123456")

	err := f.svc.VerifyEmail(ctx, models.VerifyEmailRequest{Email: "a@x.com", OTP: f.sender.lastCode(t)})
	assertAppError(t, err, appErrors.ErrAlreadyVerified, "")

	err = f.svc.ResendVerification(ctx, models.EmailRequest{Email: "a@x.com"})
	assertAppError(t, err, appErrors.ErrAlreadyVerified, "")
}

func TestSessionVerifyUnknownAndWrongCode(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	err := f.svc.VerifyEmail(ctx, models.VerifyEmailRequest{Email: "nobody@x.com", OTP: "123456"})
	assertAppError(t, err, appErrors.ErrNotFound, "")

	_, err = f.svc.SignUp(ctx, models.SignUpRequest{Email: "a@x.com", Password: "pw123456"})
	require.NoError(t, err)
	code := f.sender.lastCode(t)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	err = f.svc.VerifyEmail(ctx, models.VerifyEmailRequest{Email: "a@x.com", OTP: wrong})
	assertAppError(t, err, appErrors.ErrValidation, "invalid or expired OTP")
}

func TestSessionResendInvalidatesPreviousCode(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	_, err := f.svc.SignUp(ctx, models.SignUpRequest{Email: "a@x.com", Password: "pw123456"})
	require.NoError(t, err)
	oldCode := f.sender.lastCode(t)

	require.NoError(t, f.svc.ResendVerification(ctx, models.EmailRequest{Email: "a@x.com"}))
	newCode := f.sender.lastCode(t)

	if oldCode != newCode {
		err = f.svc.VerifyEmail(ctx, models.VerifyEmailRequest{Email: "a@x.com", OTP: oldCode})
		assertAppError(t, err, appErrors.ErrValidation, "invalid or expired OTP")
	}
	require.NoError(t, f.svc.VerifyEmail(ctx, models.VerifyEmailRequest{Email: "a@x.com", OTP: newCode}))
}

func TestSessionResendDeliveryFailure(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	_, err := f.svc.SignUp(ctx, models.SignUpRequest{Email: "a@x.com", Password: "pw123456"})
	require.NoError(t, err)

	f.sender.err = errors.New("smtp down")
	err = f.svc.ResendVerification(ctx, models.EmailRequest{Email: "a@x.com"})
	assertAppError(t, err, appErrors.ErrUnavailable, "failed to send verification email")
}

func TestSessionSignUpDeliveryFailureKeepsAccount(t *testing.T) {
	f := newSessionFixture(t)
	f.sender.err = errors.New("smtp down")

	res, err := f.svc.SignUp(context.Background(), models.SignUpRequest{Email: "a@x.com", Password: "pw123456"})
	require.NoError(t, err)
	assert.False(t, res.EmailDelivered)
	assert.Contains(t, res.Message, "could not be sent")

	_, err = f.accounts.FindByEmail(context.Background(), "a@x.com")
	assert.NoError(t, err)
}

func TestSessionSignUpDuplicate(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	_, err := f.svc.SignUp(ctx, models.SignUpRequest{Email: "a@x.com", Password: "pw123456"})
	require.NoError(t, err)

	_, err = f.svc.SignUp(ctx, models.SignUpRequest{Email: " A@X.com ", Password: "pw123456"})
	assertAppError(t, err, appErrors.ErrConflict, "email already registered")

	f.accounts.createErr = &repository.ConstraintViolation{Kind: repository.ConstraintUnique, Constraint: repository.ConstraintAccountsEmail}
	_, err = f.svc.SignUp(ctx, models.SignUpRequest{Email: "b@x.com", Password: "pw123456"})
	assertAppError(t, err, appErrors.ErrConflict, "email already registered")

	f.accounts.createErr = &repository.ConstraintViolation{Kind: repository.ConstraintUnique, Constraint: repository.ConstraintAccountsUsername}
	_, err = f.svc.SignUp(ctx, models.SignUpRequest{Email: "c@x.com", Password: "pw123456", Username: "taken"})
	assertAppError(t, err, appErrors.ErrConflict, "username already taken")
}

func TestSessionSignUpValidation(t *testing.T) {
	f := newSessionFixture(t)
	_, err := f.svc.SignUp(context.Background(), models.SignUpRequest{Email: "not-an-email", Password: "pw123456"})
	assertAppError(t, err, appErrors.ErrValidation, "")

	_, err = f.svc.SignUp(context.Background(), models.SignUpRequest{Email: "a@x.com", Password: "short"})
	assertAppError(t, err, appErrors.ErrValidation, "")
}

func TestSessionSignInInvalidCredentials(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.verifiedAccount(t, "a@x.com", "pw123456")

	_, err := f.svc.SignIn(ctx, models.SignInRequest{Email: "missing@x.com", Password: "pw123456"})
	assertAppError(t, err, appErrors.ErrForbidden, "invalid credentials")

	_, err = f.svc.SignIn(ctx, models.SignInRequest{Email: "a@x.com", Password: "wrong-password"})
	assertAppError(t, err, appErrors.ErrForbidden, "invalid credentials")
}

func TestSessionRefreshRotation(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.verifiedAccount(t, "a@x.com", "pw123456")

	pair, err := f.svc.SignIn(ctx, models.SignInRequest{Email: "a@x.com", Password: "pw123456"})
	require.NoError(t, err)

	rotated, err := f.svc.Refresh(ctx, pair.Refresh.Value)
	require.NoError(t, err)
	assert.NotEqual(t, pair.Refresh.Value, rotated.Refresh.Value)
	assert.True(t, f.ledger.has(pair.Refresh.ID))

	_, err = f.svc.Refresh(ctx, pair.Refresh.Value)
	assertAppError(t, err, appErrors.ErrForbidden, "")

	_, err = f.svc.Refresh(ctx, pair.Access.Value)
	assertAppError(t, err, appErrors.ErrForbidden, "")

	_, err = f.svc.Refresh(ctx, rotated.Refresh.Value)
	require.NoError(t, err)
}

func TestSessionConcurrentRefreshSingleWinner(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.verifiedAccount(t, "a@x.com", "pw123456")

	pair, err := f.svc.SignIn(ctx, models.SignInRequest{Email: "a@x.com", Password: "pw123456"})
	require.NoError(t, err)

	const racers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := f.svc.Refresh(ctx, pair.Refresh.Value); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestSessionRefreshLedgerUnavailable(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.verifiedAccount(t, "a@x.com", "pw123456")
	pair, err := f.svc.SignIn(ctx, models.SignInRequest{Email: "a@x.com", Password: "pw123456"})
	require.NoError(t, err)

	f.ledger.mu.Lock()
	f.ledger.existsErr = errors.New("db down")
	f.ledger.mu.Unlock()

	_, err = f.svc.Refresh(ctx, pair.Refresh.Value)
	assertAppError(t, err, appErrors.ErrUnavailable, "")
	_, err = f.svc.Authenticate(ctx, pair.Access.Value)
	assertAppError(t, err, appErrors.ErrUnavailable, "")
}

func TestSessionLogoutAlwaysSucceeds(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.verifiedAccount(t, "a@x.com", "pw123456")

	assert.NoError(t, f.svc.Logout(ctx, "", ""))
	assert.NoError(t, f.svc.Logout(ctx, "garbage", "also-garbage"))

	pair, err := f.svc.SignIn(ctx, models.SignInRequest{Email: "a@x.com", Password: "pw123456"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, pair.Access.Value, pair.Refresh.Value))
	require.NoError(t, f.svc.Logout(ctx, pair.Access.Value, pair.Refresh.Value))

	_, err = f.svc.Authenticate(ctx, pair.Access.Value)
	assertAppError(t, err, appErrors.ErrForbidden, "token has been revoked")
	_, err = f.svc.Refresh(ctx, pair.Refresh.Value)
	assertAppError(t, err, appErrors.ErrForbidden, "token has been revoked")

	stored, err := f.accounts.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Nil(t, stored.RefreshTokenHash)
	assert.Equal(t, models.StateVerifiedNoSession, stored.State(time.Now()))
}

func TestSessionStaleLogoutKeepsNewerSession(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.verifiedAccount(t, "a@x.com", "pw123456")

	first, err := f.svc.SignIn(ctx, models.SignInRequest{Email: "a@x.com", Password: "pw123456"})
	require.NoError(t, err)
	second, err := f.svc.SignIn(ctx, models.SignInRequest{Email: "a@x.com", Password: "pw123456"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, "", first.Refresh.Value))
	_, err = f.svc.Refresh(ctx, second.Refresh.Value)
	assert.NoError(t, err)
}

func TestSessionRevokeAll(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.verifiedAccount(t, "a@x.com", "pw123456")
	pair, err := f.svc.SignIn(ctx, models.SignInRequest{Email: "a@x.com", Password: "pw123456"})
	require.NoError(t, err)

	require.NoError(t, f.svc.RevokeAll(ctx, pair.Account.ID))
	_, err = f.svc.Refresh(ctx, pair.Refresh.Value)
	assertAppError(t, err, appErrors.ErrForbidden, "invalid refresh token")

	err = f.svc.RevokeAll(ctx, "missing")
	assertAppError(t, err, appErrors.ErrNotFound, "")
}

func TestSessionPasswordResetUnknownEmail(t *testing.T) {
	f := newSessionFixture(t)

	msg, err := f.svc.RequestPasswordReset(context.Background(), models.EmailRequest{Email: "ghost@x.com"})
	require.NoError(t, err)
	assert.Equal(t, msgResetRequested, msg)
	assert.Equal(t, 0, f.sender.count())
}

func TestSessionPasswordResetUnverified(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	_, err := f.svc.SignUp(ctx, models.SignUpRequest{Email: "a@x.com", Password: "pw123456"})
	require.NoError(t, err)

	sentAtSignUp := f.sender.count()

	msg, err := f.svc.RequestPasswordReset(ctx, models.EmailRequest{Email: "a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, msgResetRequested, msg)
	assert.Equal(t, sentAtSignUp, f.sender.count())

	account, err := f.accounts.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Nil(t, account.PasswordResetOTPHash)
}

func TestSessionPasswordOverBcryptLimit(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	multibyte := strings.Repeat("é", 40)

	_, err := f.svc.SignUp(ctx, models.SignUpRequest{Email: "a@x.com", Password: multibyte})
	assertAppError(t, err, appErrors.ErrValidation, "password must be at most 72 bytes")
	_, err = f.accounts.FindByEmail(ctx, "a@x.com")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	f.verifiedAccount(t, "b@x.com", "pw123456")
	_, err = f.svc.RequestPasswordReset(ctx, models.EmailRequest{Email: "b@x.com"})
	require.NoError(t, err)
	err = f.svc.ResetPassword(ctx, models.ResetPasswordRequest{Email: "b@x.com", OTP: f.sender.lastCode(t), NewPassword: multibyte})
	assertAppError(t, err, appErrors.ErrValidation, "password must be at most 72 bytes")

	_, err = f.svc.SignUp(ctx, models.SignUpRequest{Email: "c@x.com", Password: strings.Repeat("é", 36)})
	assert.NoError(t, err)
}

func TestSessionPasswordResetFlow(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.verifiedAccount(t, "a@x.com", "pw123456")
	pair, err := f.svc.SignIn(ctx, models.SignInRequest{Email: "a@x.com", Password: "pw123456"})
	require.NoError(t, err)

	msg, err := f.svc.RequestPasswordReset(ctx, models.EmailRequest{Email: "a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, msgResetRequested, msg)
	code := f.sender.lastCode(t)
	assert.Equal(t, "Password Reset - Test", f.sender.sent[len(f.sender.sent)-1].subject)

	err = f.svc.ResetPassword(ctx, models.ResetPasswordRequest{Email: "ghost@x.com", OTP: code, NewPassword: "newpass123"})
	assertAppError(t, err, appErrors.ErrNotFound, "")

	require.NoError(t, f.svc.ResetPassword(ctx, models.ResetPasswordRequest{Email: "a@x.com", OTP: code, NewPassword: "newpass123"}))

	err = f.svc.ResetPassword(ctx, models.ResetPasswordRequest{Email: "a@x.com", OTP: code, NewPassword: "another123"})
	assertAppError(t, err, appErrors.ErrValidation, "invalid or expired OTP")

	_, err = f.svc.Refresh(ctx, pair.Refresh.Value)
	assertAppError(t, err, appErrors.ErrForbidden, "")

	_, err = f.svc.SignIn(ctx, models.SignInRequest{Email: "a@x.com", Password: "pw123456"})
	assertAppError(t, err, appErrors.ErrForbidden, "invalid credentials")
	_, err = f.svc.SignIn(ctx, models.SignInRequest{Email: "a@x.com", Password: "newpass123"})
	assert.NoError(t, err)
}

func TestSessionMe(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.verifiedAccount(t, "a@x.com", "pw123456")
	stored, err := f.accounts.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)

	info, err := f.svc.Me(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", info.Email)

	_, err = f.svc.Me(ctx, "missing")
	assertAppError(t, err, appErrors.ErrNotFound, "")
}
