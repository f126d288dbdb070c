package lark

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/feishuclaw/pkg/bus"
	"github.com/sipeed/feishuclaw/pkg/domain"
	"github.com/sipeed/feishuclaw/pkg/domain/channel"
)

func ptr(s string) *string { return &s }

type recordingSink struct {
	mu        sync.Mutex
	connected chan struct{}
	once      sync.Once
	messages  []channel.InboundMessage
}

func newRecordingSink() *recordingSink {
	return &recordingSink{connected: make(chan struct{})}
}

func (s *recordingSink) Connected() { s.once.Do(func() { close(s.connected) }) }

func (s *recordingSink) Deliver(msg channel.InboundMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

func TestAuthCachesToken(t *testing.T) {
	b := bus.New(4)
	defer b.Close()
	sub := b.Subscribe("test")

	calls := 0
	auth := NewAuth(func(ctx context.Context) (*larkcore.TenantAccessTokenResp, error) {
		calls++
		return &larkcore.TenantAccessTokenResp{TenantAccessToken: "t-1", Expire: 7200}, nil
	}, b)

	assert.True(t, auth.IsTokenExpired())
	for i := 0; i < 3; i++ {
		tok, err := auth.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "t-1", tok)
	}
	assert.Equal(t, 1, calls)
	assert.False(t, auth.IsTokenExpired())

	select {
	case ev := <-sub.C():
		assert.Equal(t, bus.TokenRefreshed{ExpiresIn: 2 * time.Hour}, ev)
	default:
		t.Fatal("no TokenRefreshed event")
	}
}

func TestAuthPlatformError(t *testing.T) {
	auth := NewAuth(func(ctx context.Context) (*larkcore.TenantAccessTokenResp, error) {
		return &larkcore.TenantAccessTokenResp{CodeError: larkcore.CodeError{Code: 10003, Msg: "invalid app_secret"}}, nil
	}, nil)

	_, err := auth.GetToken(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTokenFetchFailed)
	assert.Contains(t, err.Error(), "code=10003")
	assert.True(t, auth.IsTokenExpired())
}

func TestAuthBreakerOpensAfterRepeatedFailures(t *testing.T) {
	calls := 0
	auth := NewAuth(func(ctx context.Context) (*larkcore.TenantAccessTokenResp, error) {
		calls++
		return nil, errors.New("connection refused")
	}, nil)

	for i := 0; i < 5; i++ {
		_, err := auth.GetToken(context.Background())
		assert.ErrorIs(t, err, domain.ErrTokenFetchFailed)
	}
	assert.Equal(t, 3, calls)
}

func TestAuthFetchHonoursCallerDeadline(t *testing.T) {
	auth := NewAuth(func(ctx context.Context) (*larkcore.TenantAccessTokenResp, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := auth.GetToken(ctx)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.ErrorIs(t, err, domain.ErrTokenFetchFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, auth.IsTokenExpired())
}

func TestSenderBuildsTextMessage(t *testing.T) {
	var gotType string
	var got *larkim.CreateMessageReqBody
	s := NewSender(func(ctx context.Context, receiveIDType string, body *larkim.CreateMessageReqBody) (*larkim.CreateMessageResp, error) {
		gotType, got = receiveIDType, body
		return &larkim.CreateMessageResp{Data: &larkim.CreateMessageRespData{MessageId: ptr("om_1")}}, nil
	})
	s.newUUID = func() string { return "fixed-uuid" }

	require.NoError(t, s.SendText(context.Background(), "oc_chat", "hello"))
	require.NotNil(t, got)
	assert.Equal(t, "chat_id", gotType)
	assert.Equal(t, "oc_chat", *got.ReceiveId)
	assert.Equal(t, larkim.MsgTypeText, *got.MsgType)
	assert.JSONEq(t, `{"text":"hello"}`, *got.Content)
	assert.Equal(t, "fixed-uuid", *got.Uuid)
}

func TestIMCreateMessagePostsToPlatform(t *testing.T) {
	var mu sync.Mutex
	var query url.Values
	var posted map[string]interface{}
	var authHeader string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(r.URL.Path, "tenant_access_token"):
			io.WriteString(w, `{"code":0,"msg":"ok","tenant_access_token":"t-test","expire":7200}`)
		case r.URL.Path == "/open-apis/im/v1/messages":
			mu.Lock()
			query = r.URL.Query()
			authHeader = r.Header.Get("Authorization")
			json.NewDecoder(r.Body).Decode(&posted)
			mu.Unlock()
			io.WriteString(w, `{"code":0,"msg":"ok","data":{"message_id":"om_9"}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{AppID: "cli_test", AppSecret: "secret", BaseURL: srv.URL})
	s := NewSender(IMCreateMessage(client))
	s.newUUID = func() string { return "fixed-uuid" }

	require.NoError(t, s.SendText(context.Background(), "oc_chat", "hello"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "chat_id", query.Get("receive_id_type"))
	assert.Equal(t, "Bearer t-test", authHeader)
	assert.Equal(t, "oc_chat", posted["receive_id"])
	assert.Equal(t, "text", posted["msg_type"])
	assert.JSONEq(t, `{"text":"hello"}`, posted["content"].(string))
	assert.Equal(t, "fixed-uuid", posted["uuid"])
}

func TestSenderErrors(t *testing.T) {
	s := NewSender(func(ctx context.Context, receiveIDType string, body *larkim.CreateMessageReqBody) (*larkim.CreateMessageResp, error) {
		return &larkim.CreateMessageResp{CodeError: larkcore.CodeError{Code: 230001, Msg: "bad receive id"}}, nil
	})
	err := s.SendText(context.Background(), "ou_x", "hi")
	assert.ErrorIs(t, err, domain.ErrSendFailed)
	assert.Contains(t, err.Error(), "230001")

	assert.ErrorIs(t, s.SendText(context.Background(), "", "hi"), domain.ErrSendFailed)

	boom := errors.New("timeout")
	s = NewSender(func(ctx context.Context, receiveIDType string, body *larkim.CreateMessageReqBody) (*larkim.CreateMessageResp, error) {
		return nil, boom
	})
	assert.ErrorIs(t, s.SendText(context.Background(), "ou_x", "hi"), boom)
}

type staticAuth struct{ err error }

func (a staticAuth) GetToken(context.Context) (string, error) { return "t", a.err }
func (a staticAuth) IsTokenExpired() bool                     { return a.err != nil }

func TestBotInfo(t *testing.T) {
	calls := 0
	b := NewBotInfo(func(ctx context.Context, path string) (*larkcore.ApiResp, error) {
		calls++
		assert.Equal(t, "/open-apis/bot/v3/info", path)
		return &larkcore.ApiResp{StatusCode: 200, RawBody: []byte(`{"code":0,"msg":"ok","bot":{"open_id":"ou_bot","app_name":"claw"}}`)}, nil
	}, staticAuth{})

	for i := 0; i < 2; i++ {
		id, err := b.GetBotOpenID(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "ou_bot", id)
	}
	assert.Equal(t, 1, calls)
	assert.True(t, b.HealthCheck(context.Background()))

	unhealthy := NewBotInfo(nil, staticAuth{err: errors.New("no token")})
	assert.False(t, unhealthy.HealthCheck(context.Background()))
}

func TestBotInfoFailures(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		err     error
		wantID  string
		wantErr bool
	}{
		{"platform error", `{"code":99991663,"msg":"token invalid"}`, nil, "", true},
		{"bad json", `not json`, nil, "", true},
		{"transport", "", errors.New("dial"), "", true},
		{"no open id", `{"code":0,"bot":{}}`, nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBotInfo(func(ctx context.Context, path string) (*larkcore.ApiResp, error) {
				if tt.err != nil {
					return nil, tt.err
				}
				return &larkcore.ApiResp{RawBody: []byte(tt.body)}, nil
			}, nil)
			id, err := b.GetBotOpenID(context.Background())
			assert.Equal(t, tt.wantID, id)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrBotInfoFailed)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func receiveEvent(chatType, content string) *larkim.P2MessageReceiveV1 {
	return &larkim.P2MessageReceiveV1{
		Event: &larkim.P2MessageReceiveV1Data{
			Sender: &larkim.EventSender{SenderId: &larkim.UserId{OpenId: ptr("ou_sender")}},
			Message: &larkim.EventMessage{
				MessageId:   ptr("om_1"),
				ChatId:      ptr("oc_chat"),
				ChatType:    ptr(chatType),
				MessageType: ptr("text"),
				Content:     ptr(content),
				CreateTime:  ptr("1700000000123"),
				Mentions: []*larkim.MentionEvent{
					{Key: ptr("@_user_1"), Id: &larkim.UserId{OpenId: ptr("ou_bot")}, Name: ptr("Claw")},
				},
			},
		},
	}
}

func TestDecodeMessageEvent(t *testing.T) {
	msg, err := DecodeMessageEvent(receiveEvent("group", `{"text":"@_user_1 status?"}`), false)
	require.NoError(t, err)
	assert.Equal(t, "om_1", msg.ID)
	assert.Equal(t, "ou_sender", msg.Sender)
	assert.Equal(t, "oc_chat", msg.ChatID)
	assert.Equal(t, "@_user_1 status?", msg.Content)
	assert.Equal(t, channel.ChatGroup, msg.ChatKind)
	assert.Equal(t, []string{"ou_bot"}, msg.Mentions)
	assert.Equal(t, time.UnixMilli(1700000000123), msg.Timestamp)

	stripped, err := DecodeMessageEvent(receiveEvent("p2p", `{"text":"@_user_1 status?"}`), true)
	require.NoError(t, err)
	assert.Equal(t, "status?", stripped.Content)
	assert.Equal(t, channel.ChatDirect, stripped.ChatKind)

	raw, err := DecodeMessageEvent(receiveEvent("topic", "not json"), false)
	require.NoError(t, err)
	assert.Equal(t, "not json", raw.Content)
	assert.Equal(t, channel.ChatUnknown, raw.ChatKind)

	_, err = DecodeMessageEvent(&larkim.P2MessageReceiveV1{}, false)
	assert.ErrorIs(t, err, domain.ErrDecodeFailed)
}

func TestWebhookGetChallenge(t *testing.T) {
	c := &WebhookConnector{Path: "/events"}
	h := c.Handler(newRecordingSink())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events?challenge=abc", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"challenge":"abc"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/events", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWebhookPostURLVerification(t *testing.T) {
	c := &WebhookConnector{Path: "/", Events: EventConfig{VerificationToken: "vt"}}
	srv := httptest.NewServer(c.Handler(newRecordingSink()))
	defer srv.Close()

	body := `{"challenge":"xyz","token":"vt","type":"url_verification"}`
	resp, err := http.Post(srv.URL+"/", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	buf := new(strings.Builder)
	_, err = io.Copy(buf, resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "xyz")
}

func TestWebhookConnectLifecycle(t *testing.T) {
	c := &WebhookConnector{Addr: "127.0.0.1:0", Path: "/"}
	sink := newRecordingSink()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- c.Connect(ctx, sink) }()

	select {
	case <-sink.connected:
	case <-time.After(time.Second):
		t.Fatal("webhook never reported connected")
	}
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook did not shut down")
	}
}

func TestWebhookConnectBindFailure(t *testing.T) {
	c := &WebhookConnector{Addr: "127.0.0.1:99999"}
	err := c.Connect(context.Background(), newRecordingSink())
	assert.ErrorIs(t, err, domain.ErrConnectFailed)
}

func TestWSStateLogger(t *testing.T) {
	state := make(chan bool, 4)
	l := wsStateLogger{Logger: NewSDKLogger("test"), state: state}
	l.Info(context.Background(), "[ws] connected to wss://example/ws")
	l.Info(context.Background(), "[ws] disconnected to wss://example/ws")
	l.Info(context.Background(), "[ws] ping success")

	require.Len(t, state, 2)
	assert.True(t, <-state)
	assert.False(t, <-state)
}
