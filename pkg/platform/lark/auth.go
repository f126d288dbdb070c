package lark

import (
	"context"
	"sync"
	"time"

	larksdk "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"

	"github.com/sipeed/feishuclaw/pkg/bus"
	"github.com/sipeed/feishuclaw/pkg/domain"
	"github.com/sipeed/feishuclaw/pkg/logger"
)

// TenantTokenFunc performs one tenant_access_token request.
type TenantTokenFunc func(ctx context.Context) (*larkcore.TenantAccessTokenResp, error)

// SelfBuiltTenantToken requests tokens for a self-built app.
func SelfBuiltTenantToken(client *larksdk.Client, appID, appSecret string) TenantTokenFunc {
	return func(ctx context.Context) (*larkcore.TenantAccessTokenResp, error) {
		return client.GetTenantAccessTokenBySelfBuiltApp(ctx, &larkcore.SelfBuiltTenantAccessTokenReq{
			AppID:     appID,
			AppSecret: appSecret,
		})
	}
}

// Auth implements channel.AuthPort. The cached token is served through an
// oauth2.ReuseTokenSource; fetches are serialised and go through a circuit
// breaker so a dead token endpoint is not hammered by every caller.
type Auth struct {
	request TenantTokenFunc
	bus     *bus.Bus
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker

	fetchMu sync.Mutex
	mu      sync.Mutex
	last    *oauth2.Token
}

// NewAuth creates the tenant token adapter. eventBus may be nil.
func NewAuth(request TenantTokenFunc, eventBus *bus.Bus) *Auth {
	a := &Auth{
		request: request,
		bus:     eventBus,
		timeout: 10 * time.Second,
	}
	a.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "lark-tenant-token",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WarnCF("auth", "Circuit breaker state changed", map[string]interface{}{
				"name": name,
				"from": from.String(),
				"to":   to.String(),
			})
		},
	})
	return a
}

// GetToken returns a valid tenant_access_token, fetching a new one when the
// cached token is missing or about to expire. ctx bounds the fetch.
func (a *Auth) GetToken(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	a.fetchMu.Lock()
	defer a.fetchMu.Unlock()

	tok, err := oauth2.ReuseTokenSource(a.cached(), tenantTokenSource{a: a, ctx: ctx}).Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

func (a *Auth) cached() *oauth2.Token {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// IsTokenExpired reports whether no valid token is cached.
func (a *Auth) IsTokenExpired() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.last.Valid()
}

func (a *Auth) fetch(ctx context.Context) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	out, err := a.breaker.Execute(func() (interface{}, error) {
		resp, err := a.request(ctx)
		if err != nil {
			return nil, err
		}
		if resp.Code != 0 {
			return nil, domain.Errorf(domain.CodeTokenFetchFailed, "%s", apiError(resp.Code, resp.Msg))
		}
		return resp, nil
	})
	if err != nil {
		logger.ErrorCF("auth", "Failed to fetch tenant token", map[string]interface{}{
			"error": err.Error(),
		})
		if domain.CodeOf(err) == domain.CodeTokenFetchFailed {
			return nil, err
		}
		return nil, domain.NewError(domain.CodeTokenFetchFailed, "", err)
	}

	resp := out.(*larkcore.TenantAccessTokenResp)
	expiresIn := time.Duration(resp.Expire) * time.Second
	tok := &oauth2.Token{
		AccessToken: resp.TenantAccessToken,
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(expiresIn),
	}

	a.mu.Lock()
	a.last = tok
	a.mu.Unlock()

	logger.DebugCF("auth", "Tenant token refreshed", map[string]interface{}{
		"expires_in": expiresIn.String(),
	})
	if a.bus != nil {
		a.bus.Publish(bus.TokenRefreshed{ExpiresIn: expiresIn})
	}
	return tok, nil
}

// tenantTokenSource is the uncached oauth2.TokenSource for one GetToken call.
type tenantTokenSource struct {
	a   *Auth
	ctx context.Context
}

func (s tenantTokenSource) Token() (*oauth2.Token, error) { return s.a.fetch(s.ctx) }
