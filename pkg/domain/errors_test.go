package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesCode(t *testing.T) {
	cause := errors.New("boom")
	err := NewError(CodeCapabilityStart, "auth", cause)
	wrapped := fmt.Errorf("startup: %w", err)

	assert.ErrorIs(t, wrapped, ErrCapabilityStart)
	assert.ErrorIs(t, wrapped, cause)
	assert.NotErrorIs(t, wrapped, ErrSendFailed)

	assert.Equal(t, CodeCapabilityStart, CodeOf(wrapped))
	assert.Equal(t, KindCapability, KindOf(wrapped))
	assert.Equal(t, "E-FEISHU-5001: capability start failed: auth: boom", err.Error())
}

func TestCodeKind(t *testing.T) {
	tests := []struct {
		code Code
		want Kind
	}{
		{CodeTokenFetchFailed, KindAuth},
		{CodeBotInfoFailed, KindAuth},
		{CodeReconnectExhausted, KindConnection},
		{CodeDecodeFailed, KindMessage},
		{CodeUnauthorized, KindAuthorization},
		{CodeCapabilityNotFound, KindCapability},
		{CodeInvalidConfig, KindConfig},
		{Code("bogus"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.Kind())
		})
	}
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, Code(""), CodeOf(nil))
}

func TestErrorf(t *testing.T) {
	err := Errorf(CodeSendFailed, "code=%d msg=%s", 230001, "bad receive id")
	assert.Equal(t, "code=230001 msg=bad receive id", err.Detail())
	assert.Nil(t, err.Unwrap())
}
