// Package lark posts operator alerts to a Lark group chat.
package lark

import (
	"context"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
)

// Config holds Lark bot configuration
type Config struct {
	AppID      string
	AppSecret  string
	ChatID     string // group chat that receives alerts
	ConsoleURL string
}

// MessageCreator is the part of the IM API the alerter calls
type MessageCreator interface {
	Create(ctx context.Context, req *larkIm.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkIm.CreateMessageResp, error)
}

// NewMessageCreator builds an SDK client with token caching enabled
func NewMessageCreator(cfg Config) MessageCreator {
	client := lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	)
	return client.Im.Message
}
