package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-session-server/auth"
	apperrors "github.com/jrsteele09/go-auth-session-server/internal/errors"
	"github.com/jrsteele09/go-auth-session-server/mail"
	"github.com/jrsteele09/go-auth-session-server/opaquetokens"
	tokenrepofake "github.com/jrsteele09/go-auth-session-server/opaquetokens/repofake"
	"github.com/jrsteele09/go-auth-session-server/sessions"
	"github.com/jrsteele09/go-auth-session-server/sessions/repofakes"
	"github.com/jrsteele09/go-auth-session-server/token"
	"github.com/jrsteele09/go-auth-session-server/users"
	userrepofake "github.com/jrsteele09/go-auth-session-server/users/repofake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessSecret     = "access-secret"
	refreshSecret    = "refresh-secret"
	testUserName     = "Jane"
	testUserEmail    = "jane@x.com"
	testUserPassword = "secret123"
)

type sentEmail struct {
	Kind  mail.Kind
	To    string
	Token string
}

type fakeMailer struct {
	lock sync.Mutex
	sent []sentEmail
	err  error
}

func (m *fakeMailer) SendVerification(_ context.Context, to, token string) error {
	return m.record(mail.KindVerification, to, token)
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, to, token string) error {
	return m.record(mail.KindPasswordReset, to, token)
}

func (m *fakeMailer) record(kind mail.Kind, to, token string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentEmail{Kind: kind, To: to, Token: token})
	return nil
}

func (m *fakeMailer) Sent() []sentEmail {
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]sentEmail(nil), m.sent...)
}

// testFixture holds all test dependencies
type testFixture struct {
	now          time.Time
	userRepo     *userrepofake.FakeUserRepo
	tokenRepo    *tokenrepofake.FakeTokenRepo
	sessionStore *repofakes.FakeStore
	mailer       *fakeMailer
	tokens       *token.Manager
	users        *users.Service
	sessions     *sessions.Service
	service      *auth.Service
}

// setupTestFixture wires the orchestrator over in-memory stores sharing one clock
func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		now:       time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC),
		userRepo:  userrepofake.NewFakeUserRepo(),
		tokenRepo: tokenrepofake.NewFakeTokenRepo(),
		mailer:    &fakeMailer{},
	}
	nowFunc := func() time.Time { return f.now }
	f.sessionStore = repofakes.NewFakeStore(nowFunc)

	var err error
	f.tokens, err = token.NewManager(accessSecret, refreshSecret, token.WithNowFunc(nowFunc))
	require.NoError(t, err)
	f.users, err = users.NewService(f.userRepo, users.NewBcryptHasher(bcrypt.MinCost), users.WithNowFunc(nowFunc))
	require.NoError(t, err)
	f.sessions, err = sessions.NewService(f.sessionStore, sessions.WithNowFunc(nowFunc), sessions.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	mailTokens, err := opaquetokens.NewService(f.tokenRepo, opaquetokens.WithNowFunc(nowFunc))
	require.NoError(t, err)

	f.service, err = auth.NewService(auth.Services{
		Users:      f.users,
		Sessions:   f.sessions,
		MailTokens: mailTokens,
		Mailer:     f.mailer,
	}, f.tokens, auth.WithNowFunc(nowFunc), auth.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	return f
}

func (f *testFixture) register(t *testing.T) *auth.AuthResult {
	t.Helper()
	result, err := f.service.Register(context.Background(), auth.RegisterInput{
		Name:     testUserName,
		Email:    testUserEmail,
		Password: testUserPassword,
	})
	require.NoError(t, err)
	f.service.Wait()
	return result
}

func (f *testFixture) login(t *testing.T) *auth.AuthResult {
	t.Helper()
	result, err := f.service.Login(context.Background(), auth.LoginInput{Email: testUserEmail, Password: testUserPassword})
	require.NoError(t, err)
	return result
}

func (f *testFixture) requireSessionLive(t *testing.T, refreshToken string, live bool) {
	t.Helper()
	claims, err := f.tokens.VerifyRefresh(refreshToken)
	require.NoError(t, err)
	_, err = f.sessions.Get(context.Background(), claims.UserID, claims.SessionID)
	if live {
		require.NoError(t, err)
		return
	}
	require.ErrorIs(t, err, apperrors.ErrSessionInvalid)
}

func TestNewService_RequiresCollaborators(t *testing.T) {
	f := setupTestFixture(t)

	_, err := auth.NewService(auth.Services{}, f.tokens)
	require.Error(t, err)

	_, err = auth.NewService(auth.Services{Users: f.users, Sessions: f.sessions}, f.tokens)
	require.Error(t, err)
}

func TestService_Register(t *testing.T) {
	f := setupTestFixture(t)

	result := f.register(t)
	require.Equal(t, testUserEmail, result.User.Email)
	require.False(t, result.User.IsVerified)
	require.NotEmpty(t, result.Tokens.AccessToken)
	require.NotEmpty(t, result.Tokens.RefreshToken)
	f.requireSessionLive(t, result.Tokens.RefreshToken, true)

	access, err := f.tokens.VerifyAccess(result.Tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, result.User.ID, access.UserID)
	require.Equal(t, string(users.RoleUser), access.Role)

	sent := f.mailer.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, mail.KindVerification, sent[0].Kind)
	require.Equal(t, testUserEmail, sent[0].To)

	stored := f.tokenRepo.All()
	require.Len(t, stored, 1)
	require.Equal(t, sent[0].Token, stored[0].Token)
	require.Equal(t, opaquetokens.TypeEmailVerification, stored[0].Type)
}

func TestService_Register_Failures(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := f.service.Register(context.Background(), auth.RegisterInput{Name: "Other", Email: "JANE@x.com", Password: testUserPassword})
		require.ErrorIs(t, err, apperrors.ErrEmailAlreadyExists)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := f.service.Register(context.Background(), auth.RegisterInput{Name: "J", Email: "not-an-email", Password: "123"})
		require.ErrorIs(t, err, apperrors.ErrValidation)

		var vErr *apperrors.ValidationError
		require.True(t, errors.As(err, &vErr))
		require.Len(t, vErr.Fields, 3)
	})
}

func TestService_Register_PasswordTooLong(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.Register(context.Background(), auth.RegisterInput{
		Name:     testUserName,
		Email:    testUserEmail,
		Password: strings.Repeat("a", 80),
	})
	require.ErrorIs(t, err, apperrors.ErrValidation)
	f.service.Wait()
	require.Empty(t, f.mailer.Sent())
}

func TestService_Register_EmailFailureIsNotFatal(t *testing.T) {
	f := setupTestFixture(t)
	f.mailer.err = errors.New("provider down")

	result := f.register(t)
	require.NotEmpty(t, result.Tokens.RefreshToken)
	require.Empty(t, f.mailer.Sent())
}

func TestService_Login(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t)

	first := f.login(t)
	require.False(t, first.User.IsVerified)

	b, err := json.Marshal(first)
	require.NoError(t, err)
	require.NotContains(t, string(b), "password")

	second := f.login(t)
	c1, err := f.tokens.VerifyRefresh(first.Tokens.RefreshToken)
	require.NoError(t, err)
	c2, err := f.tokens.VerifyRefresh(second.Tokens.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, c1.SessionID, c2.SessionID)

	t.Run("wrong password", func(t *testing.T) {
		_, err := f.service.Login(context.Background(), auth.LoginInput{Email: testUserEmail, Password: "wrong-password"})
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := f.service.Login(context.Background(), auth.LoginInput{Email: "nobody@x.com", Password: testUserPassword})
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})
}

func TestService_Refresh(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t)
	login := f.login(t)
	original, err := f.tokens.VerifyRefresh(login.Tokens.RefreshToken)
	require.NoError(t, err)

	f.now = f.now.Add(time.Hour)
	pair, err := f.service.Refresh(context.Background(), login.Tokens.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, login.Tokens.RefreshToken, pair.RefreshToken)

	rotated, err := f.tokens.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, original.SessionID, rotated.SessionID)
	require.True(t, original.Expiry().Equal(rotated.Expiry()), "refresh must not extend the session")

	session, err := f.sessions.Get(context.Background(), rotated.UserID, rotated.SessionID)
	require.NoError(t, err)
	require.Equal(t, pair.RefreshToken, session.RefreshToken)
	require.Equal(t, []string{login.Tokens.RefreshToken}, session.RefreshTokensUsed)
}

func TestService_Refresh_ReuseRevokesEverySession(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t)
	stolen := f.login(t)
	otherDevice := f.login(t)

	f.now = f.now.Add(time.Minute)
	rotated, err := f.service.Refresh(context.Background(), stolen.Tokens.RefreshToken)
	require.NoError(t, err)

	_, err = f.service.Refresh(context.Background(), stolen.Tokens.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrTokenReused)
	require.True(t, auth.IsRefreshFailure(err))

	f.requireSessionLive(t, rotated.RefreshToken, false)
	f.requireSessionLive(t, otherDevice.Tokens.RefreshToken, false)

	_, err = f.service.Refresh(context.Background(), rotated.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrSessionInvalid)
}

func TestService_Refresh_Failures(t *testing.T) {
	f := setupTestFixture(t)
	registered := f.register(t)
	ctx := context.Background()

	t.Run("empty token", func(t *testing.T) {
		_, err := f.service.Refresh(ctx, "")
		require.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := f.service.Refresh(ctx, "not.a.jwt")
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("access token presented as refresh token", func(t *testing.T) {
		_, err := f.service.Refresh(ctx, registered.Tokens.AccessToken)
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		login := f.login(t)
		saved := f.now
		f.now = f.now.Add(8 * 24 * time.Hour)
		defer func() { f.now = saved }()

		_, err := f.service.Refresh(ctx, login.Tokens.RefreshToken)
		require.ErrorIs(t, err, apperrors.ErrTokenExpired)
	})

	t.Run("identity no longer active", func(t *testing.T) {
		login := f.login(t)
		_, err := f.users.UpdateStatus(ctx, registered.User.ID, users.StatusBanned)
		require.NoError(t, err)

		_, err = f.service.Refresh(ctx, login.Tokens.RefreshToken)
		require.ErrorIs(t, err, apperrors.ErrUserNotFound)
		require.True(t, auth.IsRefreshFailure(err))
	})
}

func TestService_Logout(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t)
	first := f.login(t)
	second := f.login(t)

	f.service.Logout(context.Background(), first.Tokens.RefreshToken)
	f.requireSessionLive(t, first.Tokens.RefreshToken, false)
	f.requireSessionLive(t, second.Tokens.RefreshToken, true)

	// Unverifiable tokens and repeated logouts are silently accepted
	f.service.Logout(context.Background(), "garbage")
	f.service.Logout(context.Background(), first.Tokens.RefreshToken)
}

func TestService_LogoutAll(t *testing.T) {
	f := setupTestFixture(t)
	registered := f.register(t)
	first := f.login(t)
	second := f.login(t)

	require.NoError(t, f.service.LogoutAll(context.Background(), registered.User.ID))
	f.requireSessionLive(t, registered.Tokens.RefreshToken, false)
	f.requireSessionLive(t, first.Tokens.RefreshToken, false)
	f.requireSessionLive(t, second.Tokens.RefreshToken, false)
}

func TestService_VerifyEmail(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t)
	link := f.mailer.Sent()[0].Token

	result, err := f.service.VerifyEmail(context.Background(), link)
	require.NoError(t, err)
	require.True(t, result.User.IsVerified)
	f.requireSessionLive(t, result.Tokens.RefreshToken, true)

	_, err = f.service.VerifyEmail(context.Background(), link)
	require.ErrorIs(t, err, apperrors.ErrAccountAlreadyVerified)

	_, err = f.service.VerifyEmail(context.Background(), "unknown")
	require.ErrorIs(t, err, apperrors.ErrInvalidOpaqueToken)
}

func TestService_VerifyEmail_Expired(t *testing.T) {
	f := setupTestFixture(t)
	registered := f.register(t)
	link := f.mailer.Sent()[0].Token

	f.now = f.now.Add(25 * time.Hour)
	_, err := f.service.VerifyEmail(context.Background(), link)
	require.ErrorIs(t, err, apperrors.ErrOpaqueTokenExpired)

	stored, err := f.userRepo.FindByID(context.Background(), registered.User.ID)
	require.NoError(t, err)
	require.False(t, stored.IsVerified)
}

func TestService_ResendVerificationEmail(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.register(t)

	require.NoError(t, f.service.ResendVerificationEmail(ctx, "JANE@x.com"))
	f.service.Wait()
	require.Len(t, f.mailer.Sent(), 2)

	t.Run("unknown address still succeeds", func(t *testing.T) {
		require.NoError(t, f.service.ResendVerificationEmail(ctx, "nobody@x.com"))
		f.service.Wait()
		require.Len(t, f.mailer.Sent(), 2)
	})

	t.Run("already verified", func(t *testing.T) {
		_, err := f.service.VerifyEmail(ctx, f.mailer.Sent()[1].Token)
		require.NoError(t, err)

		require.NoError(t, f.service.ResendVerificationEmail(ctx, testUserEmail))
		f.service.Wait()
		require.Len(t, f.mailer.Sent(), 2)
	})

	t.Run("malformed address", func(t *testing.T) {
		require.ErrorIs(t, f.service.ResendVerificationEmail(ctx, "nope"), apperrors.ErrValidation)
	})
}

func TestService_ForgotPassword_UnknownAddress(t *testing.T) {
	f := setupTestFixture(t)

	require.NoError(t, f.service.ForgotPassword(context.Background(), "nonexistent@x.com"))
	f.service.Wait()
	require.Empty(t, f.mailer.Sent())
	require.Empty(t, f.tokenRepo.All())
}

func TestService_ForgotAndResetPassword(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.register(t)
	existing := f.login(t)

	require.NoError(t, f.service.ForgotPassword(ctx, testUserEmail))
	f.service.Wait()
	sent := f.mailer.Sent()
	require.Len(t, sent, 2)
	require.Equal(t, mail.KindPasswordReset, sent[1].Kind)

	// An over-long password is rejected before the link is consumed
	tooLong := auth.ResetPasswordInput{Token: sent[1].Token, NewPassword: strings.Repeat("a", 80)}
	require.ErrorIs(t, f.service.ResetPassword(ctx, tooLong), apperrors.ErrValidation)

	input := auth.ResetPasswordInput{Token: sent[1].Token, NewPassword: "brand-new"}
	require.NoError(t, f.service.ResetPassword(ctx, input))
	f.requireSessionLive(t, existing.Tokens.RefreshToken, false)

	_, err := f.service.Login(ctx, auth.LoginInput{Email: testUserEmail, Password: testUserPassword})
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	_, err = f.service.Login(ctx, auth.LoginInput{Email: testUserEmail, Password: "brand-new"})
	require.NoError(t, err)

	require.ErrorIs(t, f.service.ResetPassword(ctx, input), apperrors.ErrLinkAlreadyUsed)

	t.Run("verification link cannot reset a password", func(t *testing.T) {
		err := f.service.ResetPassword(ctx, auth.ResetPasswordInput{Token: sent[0].Token, NewPassword: "brand-new"})
		require.ErrorIs(t, err, apperrors.ErrInvalidOpaqueToken)
	})
}

func TestService_ChangePassword(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	registered := f.register(t)

	err := f.service.ChangePassword(ctx, registered.User.ID, auth.ChangePasswordInput{OldPassword: "wrong-one", NewPassword: "changed1"})
	require.ErrorIs(t, err, apperrors.ErrInvalidOldPassword)
	f.requireSessionLive(t, registered.Tokens.RefreshToken, true)

	err = f.service.ChangePassword(ctx, registered.User.ID, auth.ChangePasswordInput{OldPassword: testUserPassword, NewPassword: "changed1"})
	require.NoError(t, err)
	f.requireSessionLive(t, registered.Tokens.RefreshToken, false)

	_, err = f.service.Login(ctx, auth.LoginInput{Email: testUserEmail, Password: "changed1"})
	require.NoError(t, err)
}
