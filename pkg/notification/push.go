package notification

import (
	"context"
	"fmt"
)

// Pusher delivers the critical-path device notification. Invoked at most
// once per dispatch, never once per target.
type Pusher interface {
	SendCriticalPush(ctx context.Context, title, body string, metadata map[string]string) error
}

type JPushConfig struct {
	AppKey       string `env:"JPUSH_APP_KEY"`
	MasterSecret string `env:"JPUSH_MASTER_SECRET"`
}

// JPushClient is the injection point for the real SDK.
type JPushClient interface {
	Push(ctx context.Context, title, content string, audience map[string]interface{}, extras map[string]interface{}) error
}

// JPush broadcasts critical pushes to all registered devices.
type JPush struct {
	cfg JPushConfig
	cli JPushClient
}

func NewJPush(cfg JPushConfig, cli JPushClient) *JPush { return &JPush{cfg: cfg, cli: cli} }

func (j *JPush) SendCriticalPush(ctx context.Context, title, body string, metadata map[string]string) error {
	if j.cli == nil {
		return fmt.Errorf("jpush client not configured")
	}
	extras := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		extras[k] = v
	}
	aud := map[string]interface{}{"all": true}
	return j.cli.Push(ctx, title, body, aud, extras)
}
