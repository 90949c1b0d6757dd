package auction

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bidvault/goapi/base/ctx"
	"github.com/bidvault/goapi/domain"
)

// Id is an opaque auction instance identifier
type Id string

func (i Id) String() string {
	return string(i)
}

type Lifecycle string

const (
	LifecycleUnstarted Lifecycle = "unstarted"
	LifecycleActive    Lifecycle = "active"
	LifecycleEnded     Lifecycle = "ended"
)

func ToLifecycle(name string) (Lifecycle, error) {
	switch Lifecycle(name) {
	case LifecycleUnstarted:
		return LifecycleUnstarted, nil
	case LifecycleActive:
		return LifecycleActive, nil
	case LifecycleEnded:
		return LifecycleEnded, nil
	}
	return "", domain.ErrBadParamInput
}

// AssetRef identifies the escrowed non-fungible item: registry contract plus
// token id within it.
type AssetRef struct {
	Collection domain.Address `json:"collection" bson:"collection"`
	TokenId    domain.TokenId `json:"tokenId" bson:"tokenID"`
}

func (a *AssetRef) LowerCase() {
	a.Collection = a.Collection.ToLower()
}

// Auction is the singleton record of one auction instance. It is created with
// lifecycle unstarted, mutated only by start, bid and end, and never removed;
// a concluded auction stays queryable as a historical record.
type Auction struct {
	Id           Id             `json:"auctionId" bson:"auctionId"`
	Asset        AssetRef       `json:"asset" bson:"asset"`
	Seller       domain.Address `json:"seller" bson:"seller"`
	Lifecycle    Lifecycle      `json:"lifecycle" bson:"lifecycle"`
	Deadline     time.Time      `json:"deadline" bson:"deadline"`
	ReservePrice domain.Amount  `json:"reservePrice" bson:"reservePrice"`
	TopBid       domain.Amount  `json:"topBid" bson:"topBid"`
	// TopBidder is empty while no valid bid has been accepted
	TopBidder domain.Address `json:"topBidder" bson:"topBidder"`
	CreatedAt time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt" bson:"updatedAt"`
}

func (a *Auction) LowerCase() {
	a.Asset.LowerCase()
	a.Seller = a.Seller.ToLower()
	a.TopBidder = a.TopBidder.ToLower()
}

func (a *Auction) HasBid() bool {
	return !a.TopBidder.IsEmpty()
}

type Patchable struct {
	Lifecycle    *Lifecycle      `bson:"lifecycle,omitempty"`
	Deadline     *time.Time      `bson:"deadline,omitempty"`
	ReservePrice *domain.Amount  `bson:"reservePrice,omitempty"`
	TopBid       *domain.Amount  `bson:"topBid,omitempty"`
	TopBidder    *domain.Address `bson:"topBidder,omitempty"`
	UpdatedAt    *time.Time      `bson:"updatedAt,omitempty"`
}

// Repo is the storage layer of auction records
type Repo interface {
	FindOne(ctx ctx.Ctx, id Id) (*Auction, error)
	Insert(ctx ctx.Ctx, a *Auction) error
	Patch(ctx ctx.Ctx, id Id, patchable Patchable) error
	FindAll(ctx ctx.Ctx, opts ...FindAllOptionsFunc) ([]*Auction, error)
	Count(ctx ctx.Ctx, opts ...FindAllOptionsFunc) (int, error)
}

// UseCase drives the auction lifecycle. Every operation takes the instance id
// and the caller identity resolved by the auth layer; guards reject anything
// lifecycle-illegal with the sentinel errors in domain.
type UseCase interface {
	Create(ctx ctx.Ctx, seller domain.Address, asset AssetRef) (*Auction, error)
	Start(ctx ctx.Ctx, id Id, caller domain.Address, duration time.Duration, minBid decimal.Decimal) (*Auction, error)
	Bid(ctx ctx.Ctx, id Id, caller domain.Address, amount decimal.Decimal) (*Auction, error)
	End(ctx ctx.Ctx, id Id, caller domain.Address) (*Auction, error)
	// Withdraw releases the caller's full escrow balance and returns the
	// released amount. Withdrawing a zero balance is a successful no-op.
	Withdraw(ctx ctx.Ctx, id Id, caller domain.Address) (decimal.Decimal, error)
	Get(ctx ctx.Ctx, id Id) (*Auction, error)
	FindAll(ctx ctx.Ctx, opts ...FindAllOptionsFunc) ([]*Auction, error)
	BalanceOf(ctx ctx.Ctx, id Id, address domain.Address) (decimal.Decimal, error)
	Events(ctx ctx.Ctx, id Id) ([]*Event, error)
}
