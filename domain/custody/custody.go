package custody

import (
	"github.com/shopspring/decimal"

	"github.com/bidvault/goapi/base/ctx"
	"github.com/bidvault/goapi/domain"
	"github.com/bidvault/goapi/domain/auction"
)

// Fungible is the external custody service that actually moves fungible
// balances between accounts. Both calls are synchronous and all-or-nothing:
// a returned error means nothing moved.
type Fungible interface {
	// MoveIn pulls amount from the account into the auction's custody.
	// Requires prior authorization by the account.
	MoveIn(ctx ctx.Ctx, from domain.Address, amount decimal.Decimal) error
	// MoveOut pays amount out of the auction's custody to the account.
	MoveOut(ctx ctx.Ctx, to domain.Address, amount decimal.Decimal) error
}

// NonFungible is the external registry recording ownership of the auctioned
// item.
type NonFungible interface {
	// TransferOwnership reassigns the asset from one holder to another.
	// Requires prior authorization by the current holder.
	TransferOwnership(ctx ctx.Ctx, asset auction.AssetRef, from, to domain.Address) error
}
