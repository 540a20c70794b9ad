// Package lark sends report notifications to a Lark chat.
package lark

import (
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"go.uber.org/zap"
)

// Receive id types accepted by the message API.
const (
	ReceiveIDChat  = "chat_id"
	ReceiveIDOpen  = "open_id"
	ReceiveIDEmail = "email"
)

// Config holds Lark client configuration
type Config struct {
	AppID         string
	AppSecret     string
	ReceiveIDType string // chat_id, open_id or email
	ReceiveID     string
}

// SDKClient wraps the Lark SDK client
type SDKClient struct {
	client *lark.Client
	logger *zap.Logger
}

// NewSDKClient creates a new Lark SDK client
func NewSDKClient(cfg Config, logger *zap.Logger) *SDKClient {
	client := lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	)

	return &SDKClient{
		client: client,
		logger: logger,
	}
}

// GetClient returns the underlying Lark SDK client
func (c *SDKClient) GetClient() *lark.Client {
	return c.client
}
