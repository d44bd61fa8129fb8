package kis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chindada/leopard/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialExpired(t *testing.T) {
	now := time.Now()
	fresh := &Credential{
		AccessToken: "token",
		ExpiredAt:   now.Add(time.Hour).Format(tokenExpireLayout),
	}
	assert.False(t, fresh.Expired(now))

	// Inside the safety margin counts as expired even though the
	// provider's timestamp has not passed yet.
	closing := &Credential{
		AccessToken: "token",
		ExpiredAt:   now.Add(4 * time.Minute).Format(tokenExpireLayout),
	}
	assert.True(t, closing.Expired(now))

	past := &Credential{
		AccessToken: "token",
		ExpiredAt:   now.Add(-time.Minute).Format(tokenExpireLayout),
	}
	assert.True(t, past.Expired(now))

	assert.True(t, (&Credential{ExpiredAt: "garbage", AccessToken: "token"}).Expired(now))
	assert.True(t, (&Credential{ExpiredAt: now.Add(time.Hour).Format(tokenExpireLayout)}).Expired(now))
}

func newAuthServer(t *testing.T, tokenCalls *int, expiresIn time.Duration) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(approvalPath, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, grantClientCredentials, body["grant_type"])
		assert.Equal(t, "app-key", body["appkey"])
		assert.Equal(t, "app-secret", body["secretkey"])
		_ = json.NewEncoder(w).Encode(map[string]string{"approval_key": "approval-abc"})
	})
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		*tokenCalls++
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "app-key", body["appkey"])
		assert.Equal(t, "app-secret", body["appsecret"])
		_ = json.NewEncoder(w).Encode(Credential{
			AccessToken: "access-xyz",
			TokenType:   "Bearer",
			ExpiresIn:   int64(expiresIn.Seconds()),
			ExpiredAt:   time.Now().Add(expiresIn).Format(tokenExpireLayout),
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAuthApprovalKey(t *testing.T) {
	var tokenCalls int
	srv := newAuthServer(t, &tokenCalls, time.Hour)
	auth := NewAuth(AuthConfig{
		AppKey:    "app-key",
		AppSecret: "app-secret",
		RestURL:   srv.URL,
		Logger:    log.Get(),
	})

	key, err := auth.ApprovalKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "approval-abc", key)
}

func TestAuthMissingKey(t *testing.T) {
	auth := NewAuth(AuthConfig{Logger: log.Get()})

	_, err := auth.ApprovalKey(context.Background())
	assert.ErrorIs(t, err, ErrMissingAppKey)

	_, err = auth.AccessToken(context.Background(), false)
	assert.ErrorIs(t, err, ErrMissingAppKey)
}

func TestAuthAccessTokenCached(t *testing.T) {
	var tokenCalls int
	srv := newAuthServer(t, &tokenCalls, time.Hour)
	cachePath := filepath.Join(t.TempDir(), "token.json")
	auth := NewAuth(AuthConfig{
		AppKey:    "app-key",
		AppSecret: "app-secret",
		RestURL:   srv.URL,
		CachePath: cachePath,
		Logger:    log.Get(),
	})

	cred, err := auth.AccessToken(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "access-xyz", cred.AccessToken)
	assert.Equal(t, 1, tokenCalls)

	// The cache file holds the raw provider response.
	data, err := os.ReadFile(cachePath)
	require.NoError(t, err)
	onDisk := &Credential{}
	require.NoError(t, json.Unmarshal(data, onDisk))
	assert.Equal(t, "access-xyz", onDisk.AccessToken)

	// A second auth instance with the same cache path hits the file.
	auth2 := NewAuth(AuthConfig{
		AppKey:    "app-key",
		AppSecret: "app-secret",
		RestURL:   srv.URL,
		CachePath: cachePath,
		Logger:    log.Get(),
	})
	cred, err = auth2.AccessToken(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "access-xyz", cred.AccessToken)
	assert.Equal(t, 1, tokenCalls)
}

func TestAuthAccessTokenRefreshesNearExpiry(t *testing.T) {
	var tokenCalls int
	srv := newAuthServer(t, &tokenCalls, 4*time.Minute)
	cachePath := filepath.Join(t.TempDir(), "token.json")
	auth := NewAuth(AuthConfig{
		AppKey:    "app-key",
		AppSecret: "app-secret",
		RestURL:   srv.URL,
		CachePath: cachePath,
		Logger:    log.Get(),
	})

	_, err := auth.AccessToken(context.Background(), false)
	require.NoError(t, err)
	_, err = auth.AccessToken(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, tokenCalls)
}

func TestAuthAccessTokenForceRefresh(t *testing.T) {
	var tokenCalls int
	srv := newAuthServer(t, &tokenCalls, time.Hour)
	cachePath := filepath.Join(t.TempDir(), "token.json")
	auth := NewAuth(AuthConfig{
		AppKey:    "app-key",
		AppSecret: "app-secret",
		RestURL:   srv.URL,
		CachePath: cachePath,
		Logger:    log.Get(),
	})

	_, err := auth.AccessToken(context.Background(), false)
	require.NoError(t, err)
	_, err = auth.AccessToken(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, tokenCalls)
}

func TestAuthCorruptCacheRefetches(t *testing.T) {
	var tokenCalls int
	srv := newAuthServer(t, &tokenCalls, time.Hour)
	cachePath := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(cachePath, []byte("{broken"), 0o600))
	auth := NewAuth(AuthConfig{
		AppKey:    "app-key",
		AppSecret: "app-secret",
		RestURL:   srv.URL,
		CachePath: cachePath,
		Logger:    log.Get(),
	})

	cred, err := auth.AccessToken(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "access-xyz", cred.AccessToken)
	assert.Equal(t, 1, tokenCalls)
}

func TestAuthRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)
	auth := NewAuth(AuthConfig{
		AppKey:    "app-key",
		AppSecret: "app-secret",
		RestURL:   srv.URL,
		Logger:    log.Get(),
	})

	_, err := auth.ApprovalKey(context.Background())
	assert.ErrorIs(t, err, ErrAuthRejected)
}
