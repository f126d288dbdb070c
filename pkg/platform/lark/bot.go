package lark

import (
	"context"
	"encoding/json"
	"sync"

	larksdk "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"

	"github.com/sipeed/feishuclaw/pkg/domain"
	"github.com/sipeed/feishuclaw/pkg/domain/channel"
	"github.com/sipeed/feishuclaw/pkg/logger"
)

const botInfoPath = "/open-apis/bot/v3/info"

// RawGetFunc performs an authenticated GET against an open-platform path.
type RawGetFunc func(ctx context.Context, path string) (*larkcore.ApiResp, error)

// TenantGet binds RawGetFunc to the SDK client with tenant credentials.
func TenantGet(client *larksdk.Client) RawGetFunc {
	return func(ctx context.Context, path string) (*larkcore.ApiResp, error) {
		return client.Get(ctx, path, nil, larkcore.AccessTokenTypeTenant)
	}
}

// BotInfo implements channel.BotInfo. The open_id is cached after the
// first successful lookup.
type BotInfo struct {
	get  RawGetFunc
	auth channel.AuthPort

	mu     sync.Mutex
	openID string
}

func NewBotInfo(get RawGetFunc, auth channel.AuthPort) *BotInfo {
	return &BotInfo{get: get, auth: auth}
}

type botInfoResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Bot  struct {
		OpenID  string `json:"open_id"`
		AppName string `json:"app_name"`
	} `json:"bot"`
}

// GetBotOpenID returns the bot's open_id, or "" when the platform does not
// report one.
func (b *BotInfo) GetBotOpenID(ctx context.Context) (string, error) {
	b.mu.Lock()
	cached := b.openID
	b.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	resp, err := b.get(ctx, botInfoPath)
	if err != nil {
		return "", domain.NewError(domain.CodeBotInfoFailed, "", err)
	}
	var body botInfoResponse
	if err := json.Unmarshal(resp.RawBody, &body); err != nil {
		return "", domain.NewError(domain.CodeBotInfoFailed, "decode response", err)
	}
	if body.Code != 0 {
		return "", domain.Errorf(domain.CodeBotInfoFailed, "%s", apiError(body.Code, body.Msg))
	}
	if body.Bot.OpenID == "" {
		logger.WarnC("bot", "Bot info has no open_id")
		return "", nil
	}

	b.mu.Lock()
	b.openID = body.Bot.OpenID
	b.mu.Unlock()
	logger.InfoCF("bot", "Resolved bot identity", map[string]interface{}{
		"open_id":  body.Bot.OpenID,
		"app_name": body.Bot.AppName,
	})
	return body.Bot.OpenID, nil
}

// HealthCheck is healthy while a tenant token can be obtained.
func (b *BotInfo) HealthCheck(ctx context.Context) bool {
	if b.auth == nil {
		return true
	}
	_, err := b.auth.GetToken(ctx)
	return err == nil
}
