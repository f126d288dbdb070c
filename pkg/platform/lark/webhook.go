package lark

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/larksuite/oapi-sdk-go/v3/core/httpserverext"
	larkevent "github.com/larksuite/oapi-sdk-go/v3/event"
	"golang.org/x/sync/errgroup"

	"github.com/sipeed/feishuclaw/pkg/domain"
	"github.com/sipeed/feishuclaw/pkg/domain/channel"
	"github.com/sipeed/feishuclaw/pkg/logger"
)

// WebhookConnector is the fallback inbound transport: an HTTP endpoint the
// platform posts events to. POST bodies (URL verification, signature,
// decryption, dispatch) are handled by the SDK; GET answers the challenge
// query form.
type WebhookConnector struct {
	Addr     string
	Path     string
	Events   EventConfig
	LogLevel string
}

func (c *WebhookConnector) Name() string { return "webhook" }

// Handler builds the HTTP handler delivering into sink.
func (c *WebhookConnector) Handler(sink channel.Sink) http.Handler {
	path := c.Path
	if path == "" {
		path = "/"
	}
	events := httpserverext.NewEventHandlerFunc(NewDispatcher(c.Events, sink),
		larkevent.WithLogger(NewSDKLogger("lark-webhook")),
		larkevent.WithLogLevel(SDKLogLevel(c.LogLevel)),
	)

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			events(w, r)
		case http.MethodGet:
			c.handleVerification(w, r)
		default:
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		}
	})
	return mux
}

func (c *WebhookConnector) handleVerification(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if challenge := q.Get("challenge"); challenge != "" {
		writeJSON(w, http.StatusOK, map[string]string{"challenge": challenge})
		return
	}
	if encrypted := q.Get("encrypt"); encrypted != "" && c.Events.EncryptKey != "" {
		plain, err := larkevent.EventDecrypt(encrypted, c.Events.EncryptKey)
		if err == nil {
			writeJSON(w, http.StatusOK, map[string]string{"challenge": string(plain)})
			return
		}
		logger.WarnCF("webhook", "Challenge decrypt failed", map[string]interface{}{
			"error": domain.NewError(domain.CodeWebhookSignature, "", err).Error(),
		})
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing challenge or decrypt failed"})
}

// Connect serves until ctx is cancelled (nil) or the server fails (error).
func (c *WebhookConnector) Connect(ctx context.Context, sink channel.Sink) error {
	ln, err := net.Listen("tcp", c.Addr)
	if err != nil {
		return domain.NewError(domain.CodeConnectFailed, c.Addr, err)
	}
	srv := &http.Server{
		Handler:           c.Handler(sink),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.InfoCF("webhook", "Webhook server listening", map[string]interface{}{
		"addr": ln.Addr().String(),
		"path": c.Path,
	})
	sink.Connected()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return domain.NewError(domain.CodeDisconnected, c.Name(), err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
