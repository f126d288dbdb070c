// Package lark adapts the Feishu/Lark open-platform SDK to the channel
// ports: tenant auth, text sending, bot identity and the two inbound
// transports (long-lived WebSocket and HTTP webhook).
package lark

import (
	"fmt"
	"time"

	larksdk "github.com/larksuite/oapi-sdk-go/v3"
)

// ClientConfig identifies the app and the region it lives in.
type ClientConfig struct {
	AppID     string
	AppSecret string
	BaseURL   string
	LogLevel  string
	Timeout   time.Duration
}

// NewClient builds the SDK client shared by every adapter in this package.
func NewClient(cfg ClientConfig) *larksdk.Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = larksdk.FeishuBaseUrl
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return larksdk.NewClient(cfg.AppID, cfg.AppSecret,
		larksdk.WithOpenBaseUrl(baseURL),
		larksdk.WithReqTimeout(timeout),
		larksdk.WithEnableTokenCache(true),
		larksdk.WithLogger(NewSDKLogger("lark-sdk")),
		larksdk.WithLogLevel(SDKLogLevel(cfg.LogLevel)),
	)
}

// apiError formats a non-zero platform response code.
func apiError(code int, msg string) string {
	return fmt.Sprintf("code=%d msg=%s", code, msg)
}
