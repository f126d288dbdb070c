package lark

import (
	"context"

	"github.com/google/uuid"
	larksdk "github.com/larksuite/oapi-sdk-go/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"

	"github.com/sipeed/feishuclaw/pkg/codec"
	"github.com/sipeed/feishuclaw/pkg/domain"
	"github.com/sipeed/feishuclaw/pkg/logger"
)

// CreateMessageFunc performs one im/v1 message create call for body,
// addressed with receiveIDType.
type CreateMessageFunc func(ctx context.Context, receiveIDType string, body *larkim.CreateMessageReqBody) (*larkim.CreateMessageResp, error)

// IMCreateMessage binds CreateMessageFunc to the SDK client.
func IMCreateMessage(client *larksdk.Client) CreateMessageFunc {
	return func(ctx context.Context, receiveIDType string, body *larkim.CreateMessageReqBody) (*larkim.CreateMessageResp, error) {
		req := larkim.NewCreateMessageReqBuilder().
			ReceiveIdType(receiveIDType).
			Body(body).
			Build()
		return client.Im.V1.Message.Create(ctx, req)
	}
}

// Sender implements channel.MessageSender. Each call is a single request
// with a fresh idempotency key; failures are returned, never retried.
type Sender struct {
	create  CreateMessageFunc
	newUUID func() string
}

func NewSender(create CreateMessageFunc) *Sender {
	return &Sender{create: create, newUUID: uuid.NewString}
}

// SendText sends text to a chat (oc_), union id (on_) or open id (anything else).
func (s *Sender) SendText(ctx context.Context, recipientID, text string) error {
	if recipientID == "" {
		return domain.Errorf(domain.CodeSendFailed, "empty recipient")
	}
	idType := codec.ReceiveIDType(recipientID)

	body := larkim.NewCreateMessageReqBodyBuilder().
		ReceiveId(recipientID).
		MsgType(larkim.MsgTypeText).
		Content(codec.EncodeText(text)).
		Uuid(s.newUUID()).
		Build()

	resp, err := s.create(ctx, idType, body)
	if err != nil {
		return domain.NewError(domain.CodeSendFailed, recipientID, err)
	}
	if resp.Code != 0 {
		return domain.Errorf(domain.CodeSendFailed, "%s", apiError(resp.Code, resp.Msg))
	}

	fields := map[string]interface{}{
		"receive_id_type": idType,
		"recipient":       recipientID,
	}
	if resp.Data != nil && resp.Data.MessageId != nil {
		fields["message_id"] = *resp.Data.MessageId
	}
	logger.DebugCF("im", "Message sent", fields)
	return nil
}
