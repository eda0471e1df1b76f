// Package provider defines the delivery backends for outgoing replies.
package provider

import (
	"context"

	"github.com/shineum/mailthread/internal/email"
)

// Provider delivers a composed message.
type Provider interface {
	// Send delivers msg. It returns an error if the delivery fails.
	Send(ctx context.Context, msg *email.Email) error

	// Name returns the provider name used in config and logs.
	Name() string
}
