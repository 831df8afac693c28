package service

import (
	"github.com/yourorg/crypto-alerts/internal/model"

	"go.uber.org/zap"
)

// MembershipSource answers who is subscribed to a symbol
type MembershipSource interface {
	MembersOf(symbol string) []string
}

// UpdateSender delivers one update to one connection
type UpdateSender interface {
	SendUpdate(connID string, update model.PriceUpdate) error
}

// Broadcaster fans a snapshot out to every subscriber of its symbol. Each
// recipient is served in its own goroutine so a slow or dead connection
// cannot hold up the others or the polling cycle.
type Broadcaster struct {
	members MembershipSource
	sender  UpdateSender
	logger  *zap.Logger
}

// NewBroadcaster creates a broadcaster
func NewBroadcaster(members MembershipSource, sender UpdateSender, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		members: members,
		sender:  sender,
		logger:  logger,
	}
}

// Publish delivers the snapshot to all current subscribers of its symbol.
// Delivery is fire-and-forget: Publish returns once the deliveries are
// dispatched, and a failed delivery is logged, not retried.
func (b *Broadcaster) Publish(snapshot *model.PriceSnapshot) {
	ids := b.members.MembersOf(snapshot.Symbol)
	if len(ids) == 0 {
		return
	}

	update := model.UpdateFromSnapshot(*snapshot)

	for _, connID := range ids {
		connID := connID
		go func() {
			if err := b.sender.SendUpdate(connID, update); err != nil {
				b.logger.Warn("Failed to deliver price update",
					zap.Error(err),
					zap.String("conn_id", connID),
					zap.String("symbol", snapshot.Symbol))
			}
		}()
	}
}
