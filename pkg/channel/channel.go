// Package channel defines the contract between chat transports and the tip
// gateway.
package channel

import (
	"context"

	"tipbot/pkg/bus"
)

// Handler processes one inbound channel message and returns an outbound reply.
// An empty reply means the adapter stays silent.
type Handler func(context.Context, bus.InboundMessage) (bus.OutboundMessage, error)

// Adapter bridges one external transport (for example Telegram) into the gateway.
type Adapter interface {
	Name() string
	Run(context.Context, Handler) error
}
