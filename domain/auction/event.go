package auction

import (
	"time"

	"github.com/bidvault/goapi/base/ctx"
	"github.com/bidvault/goapi/domain"
)

type EventType string

const (
	EventTypeStarted   EventType = "started"
	EventTypeNewTopBid EventType = "newTopBid"
	EventTypeEnded     EventType = "ended"
	EventTypeWithdrawn EventType = "withdrawn"
)

// Event is the observable notification emitted on each successful state
// change. Events are appended to their auction's history and never mutated.
type Event struct {
	AuctionId Id        `json:"auctionId" bson:"auctionId"`
	Type      EventType `json:"type" bson:"type"`
	// Account is the bidder for newTopBid, the winner for ended (empty when
	// nobody bid) and the withdrawing identity for withdrawn
	Account   domain.Address `json:"account,omitempty" bson:"account,omitempty"`
	Amount    domain.Amount  `json:"amount,omitempty" bson:"amount,omitempty"`
	Deadline  *time.Time     `json:"deadline,omitempty" bson:"deadline,omitempty"`
	CreatedAt time.Time      `json:"createdAt" bson:"createdAt"`
}

type EventRepo interface {
	Insert(ctx ctx.Ctx, e *Event) error
	FindAll(ctx ctx.Ctx, id Id) ([]*Event, error)
}
