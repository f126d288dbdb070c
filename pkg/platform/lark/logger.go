package lark

import (
	"context"
	"fmt"
	"strings"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"

	"github.com/sipeed/feishuclaw/pkg/logger"
)

// sdkLogger routes SDK output into the component logger.
type sdkLogger struct {
	component string
}

// NewSDKLogger returns a larkcore.Logger that logs under component.
func NewSDKLogger(component string) larkcore.Logger {
	return sdkLogger{component: component}
}

func (l sdkLogger) Debug(_ context.Context, args ...interface{}) {
	logger.DebugC(l.component, fmt.Sprint(args...))
}

func (l sdkLogger) Info(_ context.Context, args ...interface{}) {
	logger.InfoC(l.component, fmt.Sprint(args...))
}

func (l sdkLogger) Warn(_ context.Context, args ...interface{}) {
	logger.WarnC(l.component, fmt.Sprint(args...))
}

func (l sdkLogger) Error(_ context.Context, args ...interface{}) {
	logger.ErrorC(l.component, fmt.Sprint(args...))
}

// SDKLogLevel maps a level name to the SDK's log level.
func SDKLogLevel(level string) larkcore.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return larkcore.LogLevelDebug
	case "warn", "warning":
		return larkcore.LogLevelWarn
	case "error":
		return larkcore.LogLevelError
	default:
		return larkcore.LogLevelInfo
	}
}
