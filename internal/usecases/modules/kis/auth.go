package kis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/chindada/leopard/pkg/log"
)

const (
	approvalPath = "/oauth2/Approval"
	tokenPath    = "/oauth2/tokenP"

	grantClientCredentials = "client_credentials"

	// Tokens are treated as expired this long before the provider says so,
	// to avoid racing the cutoff with in-flight requests.
	tokenExpireMargin = 5 * time.Minute

	// Layout of access_token_token_expired in the token response.
	tokenExpireLayout = "2006-01-02 15:04:05"

	authRequestTimeout = 10 * time.Second
)

var (
	ErrMissingAppKey = errors.New("kis: app key or app secret is not configured")
	ErrAuthRejected  = errors.New("kis: auth endpoint rejected the request")
)

// Credential is the provider's token response, persisted to the cache
// file verbatim.
type Credential struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	ExpiredAt   string `json:"access_token_token_expired"`
}

// Expired reports whether the credential is unusable at now, applying
// the safety margin. An unparsable expiry counts as expired.
func (c *Credential) Expired(now time.Time) bool {
	if c.AccessToken == "" {
		return true
	}
	expiresAt, err := time.ParseInLocation(tokenExpireLayout, c.ExpiredAt, time.Local)
	if err != nil {
		return true
	}
	return !now.Before(expiresAt.Add(-tokenExpireMargin))
}

type AuthConfig struct {
	AppKey    string
	AppSecret string
	RestURL   string
	CachePath string
	Logger    *log.Log
}

// Auth obtains the two upstream credentials: the short-lived approval key
// that opens the streaming socket, and the cached REST access token.
type Auth struct {
	appKey    string
	appSecret string
	restURL   string
	cachePath string

	logger *log.Log
	httpc  *http.Client

	cacheHitOnce sync.Once
}

func NewAuth(cfg AuthConfig) *Auth {
	return &Auth{
		appKey:    cfg.AppKey,
		appSecret: cfg.AppSecret,
		restURL:   cfg.RestURL,
		cachePath: cfg.CachePath,
		logger:    cfg.Logger,
		httpc:     &http.Client{Timeout: authRequestTimeout},
	}
}

// ApprovalKey requests a fresh streaming approval key. It is never
// cached: reconnects are infrequent enough that a fresh key per attempt
// is cheaper than tracking its short lifetime.
func (a *Auth) ApprovalKey(ctx context.Context) (string, error) {
	if a.appKey == "" || a.appSecret == "" {
		return "", ErrMissingAppKey
	}
	body, err := a.post(ctx, approvalPath, map[string]string{
		"grant_type": grantClientCredentials,
		"appkey":     a.appKey,
		"secretkey":  a.appSecret,
	})
	if err != nil {
		return "", err
	}
	var parsed struct {
		ApprovalKey string `json:"approval_key"`
	}
	if err = json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("kis: decode approval response: %w", err)
	}
	if parsed.ApprovalKey == "" {
		return "", fmt.Errorf("%w: empty approval_key", ErrAuthRejected)
	}
	return parsed.ApprovalKey, nil
}

// AccessToken returns the cached REST token when it is still valid,
// otherwise fetches a new one and overwrites the cache. Concurrent
// refreshes are harmless: tokens are fungible and the last write wins.
func (a *Auth) AccessToken(ctx context.Context, forceRefresh bool) (*Credential, error) {
	if a.appKey == "" || a.appSecret == "" {
		return nil, ErrMissingAppKey
	}
	if !forceRefresh {
		if cached := a.readCache(); cached != nil && !cached.Expired(time.Now()) {
			a.cacheHitOnce.Do(func() {
				a.logger.Infof("Using cached access token, valid until %s", cached.ExpiredAt)
			})
			return cached, nil
		}
	}
	body, err := a.post(ctx, tokenPath, map[string]string{
		"grant_type": grantClientCredentials,
		"appkey":     a.appKey,
		"appsecret":  a.appSecret,
	})
	if err != nil {
		return nil, err
	}
	cred := &Credential{}
	if err = json.Unmarshal(body, cred); err != nil {
		return nil, fmt.Errorf("kis: decode token response: %w", err)
	}
	if cred.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access_token", ErrAuthRejected)
	}
	a.writeCache(body)
	return cred, nil
}

func (a *Auth) post(ctx context.Context, path string, payload map[string]string) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.restURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := a.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kis: auth request to %s: %w", path, err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("kis: read auth response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", ErrAuthRejected, path, res.StatusCode)
	}
	return body, nil
}

func (a *Auth) readCache() *Credential {
	if a.cachePath == "" {
		return nil
	}
	data, err := os.ReadFile(a.cachePath)
	if err != nil {
		return nil
	}
	cred := &Credential{}
	if err = json.Unmarshal(data, cred); err != nil {
		a.logger.Warnf("Token cache at %s is corrupt, refetching: %v", a.cachePath, err)
		return nil
	}
	return cred
}

func (a *Auth) writeCache(body []byte) {
	if a.cachePath == "" {
		return
	}
	if err := os.WriteFile(a.cachePath, body, 0o600); err != nil {
		a.logger.Warnf("Failed to persist token cache to %s: %v", a.cachePath, err)
	}
}
