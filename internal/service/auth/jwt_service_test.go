package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurumhq/aurum-api/internal/config"
)

const (
	testSecret  = "test-secret-that-is-long-enough-for-testing"
	wrongSecret = "wrong-secret-that-is-long-enough-for-testing"
)

// newTestService builds a JWT service with a pinned clock so expiry math is
// deterministic.
func newTestService(t *testing.T, secret string, timeFunc func() time.Time) *hmacJWTService {
	t.Helper()
	svc, err := NewJWTService(config.AuthConfig{
		JWTSecret:                   secret,
		TokenLifetimeMinutes:        60,
		RefreshTokenLifetimeMinutes: 1440,
	})
	require.NoError(t, err)

	impl, ok := svc.(*hmacJWTService)
	require.True(t, ok)
	if timeFunc != nil {
		impl.timeFunc = timeFunc
	}
	return impl
}

func TestNewJWTServiceRejectsShortSecret(t *testing.T) {
	t.Parallel()

	_, err := NewJWTService(config.AuthConfig{
		JWTSecret:                   "too-short",
		TokenLifetimeMinutes:        60,
		RefreshTokenLifetimeMinutes: 1440,
	})
	assert.Error(t, err)
}

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	fixedTime := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()
	svc := newTestService(t, testSecret, func() time.Time { return fixedTime })

	token, err := svc.GenerateToken(context.Background(), userID, "manager")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)

	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "manager", claims.Role)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
	assert.Equal(t, userID.String(), claims.Subject)
	// Compare Unix timestamps to avoid timezone issues
	assert.Equal(t, fixedTime.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, fixedTime.Add(60*time.Minute).Unix(), claims.ExpiresAt.Unix())
	assert.NotEmpty(t, claims.ID)
}

func TestValidateToken(t *testing.T) {
	t.Parallel()

	fixedTime := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()

	tests := []struct {
		name      string
		setupFunc func(t *testing.T) (JWTService, string)
		wantErr   error
	}{
		{
			name: "valid token",
			setupFunc: func(t *testing.T) (JWTService, string) {
				svc := newTestService(t, testSecret, func() time.Time { return fixedTime })
				token, err := svc.GenerateToken(context.Background(), userID, "clerk")
				require.NoError(t, err)
				return svc, token
			},
			wantErr: nil,
		},
		{
			name: "expired token",
			setupFunc: func(t *testing.T) (JWTService, string) {
				genSvc := newTestService(t, testSecret, func() time.Time { return fixedTime })
				token, err := genSvc.GenerateToken(context.Background(), userID, "clerk")
				require.NoError(t, err)

				// Validate well past expiry and clock skew.
				valSvc := newTestService(t, testSecret, func() time.Time {
					return fixedTime.Add(61*time.Minute + time.Hour)
				})
				return valSvc, token
			},
			wantErr: ErrExpiredToken,
		},
		{
			name: "invalid signature",
			setupFunc: func(t *testing.T) (JWTService, string) {
				genSvc := newTestService(t, testSecret, func() time.Time { return fixedTime })
				token, err := genSvc.GenerateToken(context.Background(), userID, "clerk")
				require.NoError(t, err)

				valSvc := newTestService(t, wrongSecret, func() time.Time { return fixedTime })
				return valSvc, token
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "malformed token",
			setupFunc: func(t *testing.T) (JWTService, string) {
				svc := newTestService(t, testSecret, func() time.Time { return fixedTime })
				return svc, "this.is.not.a.valid.jwt.token"
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "refresh token rejected",
			setupFunc: func(t *testing.T) (JWTService, string) {
				svc := newTestService(t, testSecret, func() time.Time { return fixedTime })
				token, err := svc.GenerateRefreshToken(context.Background(), userID)
				require.NoError(t, err)
				return svc, token
			},
			wantErr: ErrWrongTokenType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, token := tt.setupFunc(t)
			claims, err := svc.ValidateToken(context.Background(), token)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, claims)
			} else {
				assert.NoError(t, err)
				require.NotNil(t, claims)
				assert.Equal(t, userID, claims.UserID)
			}
		})
	}
}

func TestValidateRefreshToken(t *testing.T) {
	t.Parallel()

	fixedTime := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()

	tests := []struct {
		name      string
		setupFunc func(t *testing.T) (JWTService, string)
		wantErr   error
	}{
		{
			name: "valid refresh token",
			setupFunc: func(t *testing.T) (JWTService, string) {
				svc := newTestService(t, testSecret, func() time.Time { return fixedTime })
				token, err := svc.GenerateRefreshToken(context.Background(), userID)
				require.NoError(t, err)
				return svc, token
			},
			wantErr: nil,
		},
		{
			name: "expired refresh token",
			setupFunc: func(t *testing.T) (JWTService, string) {
				svc := newTestService(t, testSecret, nil)
				expiry := time.Now().Add(-1 * time.Hour)
				token, err := svc.GenerateRefreshTokenWithExpiry(context.Background(), userID, expiry)
				require.NoError(t, err)
				return svc, token
			},
			wantErr: ErrExpiredRefreshToken,
		},
		{
			name: "invalid signature",
			setupFunc: func(t *testing.T) (JWTService, string) {
				genSvc := newTestService(t, testSecret, func() time.Time { return fixedTime })
				token, err := genSvc.GenerateRefreshToken(context.Background(), userID)
				require.NoError(t, err)

				valSvc := newTestService(t, wrongSecret, func() time.Time { return fixedTime })
				return valSvc, token
			},
			wantErr: ErrInvalidRefreshToken,
		},
		{
			name: "malformed token",
			setupFunc: func(t *testing.T) (JWTService, string) {
				svc := newTestService(t, testSecret, func() time.Time { return fixedTime })
				return svc, "not-even-a-jwt"
			},
			wantErr: ErrInvalidRefreshToken,
		},
		{
			name: "access token rejected",
			setupFunc: func(t *testing.T) (JWTService, string) {
				svc := newTestService(t, testSecret, func() time.Time { return fixedTime })
				token, err := svc.GenerateToken(context.Background(), userID, "clerk")
				require.NoError(t, err)
				return svc, token
			},
			wantErr: ErrWrongTokenType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, token := tt.setupFunc(t)
			claims, err := svc.ValidateRefreshToken(context.Background(), token)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, claims)
			} else {
				assert.NoError(t, err)
				require.NotNil(t, claims)
				assert.Equal(t, userID, claims.UserID)
				assert.Equal(t, TokenTypeRefresh, claims.TokenType)
				// Refresh tokens carry no role.
				assert.Empty(t, claims.Role)
			}
		})
	}
}

func TestValidateTokenClockSkew(t *testing.T) {
	t.Parallel()

	fixedTime := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()

	genSvc := newTestService(t, testSecret, func() time.Time { return fixedTime })
	token, err := genSvc.GenerateToken(context.Background(), userID, "clerk")
	require.NoError(t, err)

	// One minute past expiry sits inside the two-minute leeway.
	within := newTestService(t, testSecret, func() time.Time {
		return fixedTime.Add(61 * time.Minute)
	})
	_, err = within.ValidateToken(context.Background(), token)
	assert.NoError(t, err)

	// Three minutes past expiry does not.
	beyond := newTestService(t, testSecret, func() time.Time {
		return fixedTime.Add(63 * time.Minute)
	})
	_, err = beyond.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}
