package usecase

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bidvault/goapi/base/ctx"
	"github.com/bidvault/goapi/base/log"
	"github.com/bidvault/goapi/domain"
	"github.com/bidvault/goapi/domain/auction"
	"github.com/bidvault/goapi/domain/escrow"
)

type EscrowLedgerCfg struct {
	EscrowRepo escrow.Repo
}

type ledgerImpl struct {
	escrowRepo escrow.Repo
}

// NewEscrowLedger builds the ledger owning per-participant escrow accounting.
// It holds no lifecycle state and drives no custody transfers; the state
// machine decides when its operations are legal and moves the real funds.
func NewEscrowLedger(cfg *EscrowLedgerCfg) escrow.Ledger {
	return &ledgerImpl{
		escrowRepo: cfg.EscrowRepo,
	}
}

func (im *ledgerImpl) balance(ctx ctx.Ctx, id auction.Id, account domain.Address) (decimal.Decimal, error) {
	entry, err := im.escrowRepo.FindOne(ctx, id, account)
	if err == domain.ErrNotFound {
		return decimal.Zero, nil
	}
	if err != nil {
		ctx.WithFields(log.Fields{
			"err":       err,
			"auctionId": id,
			"account":   account,
		}).Error("escrowRepo.FindOne failed")
		return decimal.Zero, err
	}
	return entry.Balance.Decimal()
}

func (im *ledgerImpl) store(ctx ctx.Ctx, id auction.Id, account domain.Address, balance decimal.Decimal) error {
	return im.escrowRepo.Upsert(ctx, &escrow.Entry{
		AuctionId: id,
		Account:   account.ToLower(),
		Balance:   domain.AmountFromDecimal(balance),
		UpdatedAt: time.Now(),
	})
}

func (im *ledgerImpl) Credit(ctx ctx.Ctx, id auction.Id, account domain.Address, amount decimal.Decimal) (decimal.Decimal, error) {
	old, err := im.balance(ctx, id, account)
	if err != nil {
		return decimal.Zero, err
	}

	// additive over whatever was already held, never an overwrite
	newBalance := old.Add(amount)
	if err := im.store(ctx, id, account, newBalance); err != nil {
		return decimal.Zero, err
	}
	return newBalance, nil
}

func (im *ledgerImpl) Debit(ctx ctx.Ctx, id auction.Id, account domain.Address, amount decimal.Decimal) error {
	old, err := im.balance(ctx, id, account)
	if err != nil {
		return err
	}

	if old.LessThan(amount) {
		ctx.WithFields(log.Fields{
			"auctionId": id,
			"account":   account,
			"balance":   old,
			"amount":    amount,
		}).Error("debit would push escrow entry negative")
		return domain.ErrInsufficientEscrowBalance
	}

	return im.store(ctx, id, account, old.Sub(amount))
}

func (im *ledgerImpl) Release(ctx ctx.Ctx, id auction.Id, account domain.Address, amount decimal.Decimal) error {
	if amount.IsZero() {
		return nil
	}

	old, err := im.balance(ctx, id, account)
	if err != nil {
		return err
	}

	if old.LessThan(amount) {
		ctx.WithFields(log.Fields{
			"auctionId": id,
			"account":   account,
			"balance":   old,
			"amount":    amount,
		}).Error("release would push escrow entry negative")
		return domain.ErrInsufficientEscrowBalance
	}

	// the entry is zeroed first, so a re-entrant release finds nothing left
	// to extract; the caller issues the outbound custody transfer afterwards
	return im.store(ctx, id, account, old.Sub(amount))
}

func (im *ledgerImpl) BalanceOf(ctx ctx.Ctx, id auction.Id, account domain.Address) (decimal.Decimal, error) {
	return im.balance(ctx, id, account)
}
