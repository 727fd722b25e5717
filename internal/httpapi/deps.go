package httpapi

import (
	"context"
	"sync/atomic"

	"internship-digest/internal/config"
	"internship-digest/internal/events"
	"internship-digest/internal/poll"
)

type Deps struct {
	// BaseCtx bounds runs triggered over HTTP; cancelling it stops them.
	BaseCtx context.Context

	Runner *poll.Runner
	Hub    *events.Hub

	CfgVal *atomic.Value // stores config.Config

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	// Keychain access (inject for testability)
	SetWebhook    func(account, url string) error
	DeleteWebhook func(account string) error
}
