package escrow

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bidvault/goapi/base/ctx"
	"github.com/bidvault/goapi/domain"
	"github.com/bidvault/goapi/domain/auction"
)

// Entry is the fungible collateral currently held for one participant of one
// auction. Entries are created on first credit and never removed: a fully
// withdrawn entry stays at balance "0" so that repeated withdrawal reads zero
// instead of absent.
type Entry struct {
	AuctionId auction.Id     `json:"auctionId" bson:"auctionId"`
	Account   domain.Address `json:"account" bson:"account"`
	Balance   domain.Amount  `json:"balance" bson:"balance"`
	UpdatedAt time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// Repo is the storage layer of escrow entries
type Repo interface {
	// FindOne returns domain.ErrNotFound when the account never held escrow
	FindOne(ctx ctx.Ctx, id auction.Id, account domain.Address) (*Entry, error)
	FindAll(ctx ctx.Ctx, id auction.Id) ([]*Entry, error)
	Upsert(ctx ctx.Ctx, e *Entry) error
}

// Ledger owns the per-participant escrow accounting of one auction instance.
// It mirrors what the fungible custody service actually holds: the state
// machine moves balances only together with a successful custody transfer,
// never as an independent promise. The ledger itself is pure bookkeeping and
// never touches auction lifecycle state or the custody services.
type Ledger interface {
	// Credit adds amount to the account's entry. Crediting is strictly
	// additive over any pre-existing balance; the caller must already have
	// moved at least amount into custody within the same operation.
	Credit(ctx ctx.Ctx, id auction.Id, account domain.Address, amount decimal.Decimal) (decimal.Decimal, error)

	// Debit removes exactly amount from the entry without an outbound
	// transfer. Settlement uses it to convert the winning bid into seller
	// proceeds. Fails with domain.ErrInsufficientEscrowBalance if the entry
	// would go negative.
	Debit(ctx ctx.Ctx, id auction.Id, account domain.Address, amount decimal.Decimal) error

	// Release subtracts amount from the entry ahead of an outbound custody
	// transfer, which the caller drives after the entry has reached its
	// final value. This is the only path by which funds leave the ledger's
	// accounting. Fails with domain.ErrInsufficientEscrowBalance if the
	// entry would go negative.
	Release(ctx ctx.Ctx, id auction.Id, account domain.Address, amount decimal.Decimal) error

	// BalanceOf returns zero for accounts that never held escrow
	BalanceOf(ctx ctx.Ctx, id auction.Id, account domain.Address) (decimal.Decimal, error)
}
