package usecase

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/xerrors"

	bctx "github.com/bidvault/goapi/base/ctx"
	"github.com/bidvault/goapi/base/log"
	"github.com/bidvault/goapi/base/metrics"
	"github.com/bidvault/goapi/base/ptr"
	"github.com/bidvault/goapi/domain"
	"github.com/bidvault/goapi/domain/auction"
	"github.com/bidvault/goapi/domain/custody"
	"github.com/bidvault/goapi/domain/escrow"
	"github.com/bidvault/goapi/service/query"
)

type AuctionUseCaseCfg struct {
	AuctionRepo auction.Repo
	EventRepo   auction.EventRepo
	Ledger      escrow.Ledger
	Fungible    custody.Fungible
	NonFungible custody.NonFungible
	Query       query.Mongo
	Clock       clock.Clock
	// VaultAddress is the account under which the engine escrows value at
	// the custody services
	VaultAddress domain.Address
}

type impl struct {
	auctionRepo auction.Repo
	eventRepo   auction.EventRepo
	ledger      escrow.Ledger
	fungible    custody.Fungible
	nonFungible custody.NonFungible
	q           query.Mongo
	clock       clock.Clock
	vault       domain.Address
	met         metrics.Service
}

// New builds the auction state machine. It owns lifecycle transitions and is
// the sole writer of topBid and topBidder; all balance accounting is
// delegated to the ledger.
func New(cfg *AuctionUseCaseCfg) auction.UseCase {
	return &impl{
		auctionRepo: cfg.AuctionRepo,
		eventRepo:   cfg.EventRepo,
		ledger:      cfg.Ledger,
		fungible:    cfg.Fungible,
		nonFungible: cfg.NonFungible,
		q:           cfg.Query,
		clock:       cfg.Clock,
		vault:       cfg.VaultAddress.ToLower(),
		met:         metrics.New("auction"),
	}
}

// transfer guards an external custody call against the transaction runner
// re-invoking its callback. The driver retries a transaction on transient
// errors and rolls the staged writes back, but a custody transfer that
// already happened stays happened: it must fire at most once per operation.
type transfer struct {
	done bool
}

func (t *transfer) do(fn func() error) error {
	if t.done {
		return nil
	}
	if err := fn(); err != nil {
		return err
	}
	t.done = true
	return nil
}

func (im *impl) Create(ctx bctx.Ctx, seller domain.Address, asset auction.AssetRef) (*auction.Auction, error) {
	now := im.clock.Now()
	a := &auction.Auction{
		Id:           auction.Id(uuid.New().String()),
		Asset:        asset,
		Seller:       seller,
		Lifecycle:    auction.LifecycleUnstarted,
		ReservePrice: domain.ZeroAmount,
		TopBid:       domain.ZeroAmount,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := im.auctionRepo.Insert(ctx, a); err != nil {
		ctx.WithFields(log.Fields{
			"err":       err,
			"auctionId": a.Id,
		}).Error("auctionRepo.Insert failed")
		return nil, err
	}
	return a, nil
}

func (im *impl) Start(ctx bctx.Ctx, id auction.Id, caller domain.Address, duration time.Duration, minBid decimal.Decimal) (*auction.Auction, error) {
	if duration <= 0 || minBid.IsNegative() {
		return nil, domain.ErrBadParamInput
	}

	reserve := domain.AmountFromDecimal(minBid)

	var lock transfer
	err := im.q.RunWithTransaction(ctx, func(c bctx.Ctx) error {
		// guards run on the transaction snapshot; a conflicting write aborts
		// the transaction and the callback retries against fresh state
		a, err := im.auctionRepo.FindOne(c, id)
		if err != nil {
			return err
		}
		if a.Lifecycle != auction.LifecycleUnstarted {
			return domain.ErrWrongLifecyclePhase
		}
		if !a.Seller.Equals(caller) {
			return domain.ErrUnauthorized
		}

		// asset custody moves first; a declined transfer leaves the record
		// untouched
		if err := lock.do(func() error {
			return im.nonFungible.TransferOwnership(c, a.Asset, a.Seller, im.vault)
		}); err != nil {
			c.WithFields(log.Fields{
				"err":       err,
				"auctionId": id,
			}).Error("nonFungible.TransferOwnership failed")
			return err
		}

		deadline := im.clock.Now().Add(duration)
		active := auction.LifecycleActive
		if err := im.auctionRepo.Patch(c, id, auction.Patchable{
			Lifecycle:    &active,
			Deadline:     &deadline,
			ReservePrice: &reserve,
			UpdatedAt:    ptr.Time(im.clock.Now()),
		}); err != nil {
			return err
		}

		return im.eventRepo.Insert(c, &auction.Event{
			AuctionId: id,
			Type:      auction.EventTypeStarted,
			Amount:    reserve,
			Deadline:  &deadline,
			CreatedAt: im.clock.Now(),
		})
	})
	if err != nil {
		return nil, err
	}

	im.met.BumpSum("started", 1)
	return im.auctionRepo.FindOne(ctx, id)
}

func (im *impl) Bid(ctx bctx.Ctx, id auction.Id, caller domain.Address, amount decimal.Decimal) (*auction.Auction, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrBadParamInput
	}

	var pull transfer
	err := im.q.RunWithTransaction(ctx, func(c bctx.Ctx) error {
		a, err := im.auctionRepo.FindOne(c, id)
		if err != nil {
			return err
		}

		if a.Lifecycle != auction.LifecycleActive {
			return im.bidRejected(c, &pull, caller, amount, domain.ErrWrongLifecyclePhase)
		}
		if !im.clock.Now().Before(a.Deadline) {
			return im.bidRejected(c, &pull, caller, amount, domain.ErrTimingViolation)
		}

		held, err := im.ledger.BalanceOf(c, id, caller)
		if err != nil {
			return err
		}
		total := held.Add(amount)

		topBid, err := a.TopBid.Decimal()
		if err != nil {
			return err
		}
		reserve, err := a.ReservePrice.Decimal()
		if err != nil {
			return err
		}

		// the caller's cumulative escrow must beat the standing top bid and
		// clear the reserve floor
		if !total.GreaterThan(topBid) {
			return im.bidRejected(c, &pull, caller, amount,
				xerrors.Errorf("cumulative total %s does not exceed top bid %s: %w", total, topBid, domain.ErrInsufficientBid))
		}
		if total.LessThan(reserve) {
			return im.bidRejected(c, &pull, caller, amount,
				xerrors.Errorf("cumulative total %s is below reserve price %s: %w", total, reserve, domain.ErrInsufficientBid))
		}

		if err := pull.do(func() error {
			return im.fungible.MoveIn(c, caller, amount)
		}); err != nil {
			c.WithFields(log.Fields{
				"err":       err,
				"auctionId": id,
				"bidder":    caller,
				"amount":    amount,
			}).Error("fungible.MoveIn failed")
			return err
		}

		newBalance, err := im.ledger.Credit(c, id, caller, amount)
		if err != nil {
			return err
		}

		newTop := domain.AmountFromDecimal(newBalance)
		if err := im.auctionRepo.Patch(c, id, auction.Patchable{
			TopBid:    &newTop,
			TopBidder: caller.ToLowerPtr(),
			UpdatedAt: ptr.Time(im.clock.Now()),
		}); err != nil {
			return err
		}

		return im.eventRepo.Insert(c, &auction.Event{
			AuctionId: id,
			Type:      auction.EventTypeNewTopBid,
			Account:   caller.ToLower(),
			Amount:    newTop,
			CreatedAt: im.clock.Now(),
		})
	})
	if err != nil {
		return nil, err
	}

	im.met.BumpSum("bid.accepted", 1)
	return im.auctionRepo.FindOne(ctx, id)
}

// bidRejected surfaces a rejection from inside the bid transaction. When a
// retried callback rejects after an earlier run already pulled the funds,
// they are handed back first: without the refund a bid outbid between
// retries would strand its collateral in custody with no entry backing it.
func (im *impl) bidRejected(ctx bctx.Ctx, pull *transfer, bidder domain.Address, amount decimal.Decimal, reject error) error {
	if !pull.done {
		return reject
	}

	if err := im.fungible.MoveOut(ctx, bidder, amount); err != nil {
		ctx.WithFields(log.Fields{
			"err":    err,
			"bidder": bidder,
			"amount": amount,
		}).Error("fungible.MoveOut failed")
		return err
	}
	pull.done = false
	return reject
}

func (im *impl) End(ctx bctx.Ctx, id auction.Id, caller domain.Address) (*auction.Auction, error) {
	var a *auction.Auction
	var handoff transfer
	err := im.q.RunWithTransaction(ctx, func(c bctx.Ctx) error {
		var err error
		if a, err = im.auctionRepo.FindOne(c, id); err != nil {
			return err
		}

		if a.Lifecycle != auction.LifecycleActive {
			return domain.ErrWrongLifecyclePhase
		}
		if !a.Seller.Equals(caller) {
			return domain.ErrUnauthorized
		}
		if im.clock.Now().Before(a.Deadline) {
			return domain.ErrTimingViolation
		}

		// no bid commits past the deadline, so topBid and topBidder are
		// stable across callback retries
		if a.HasBid() {
			if err := im.settle(c, a, &handoff); err != nil {
				return err
			}
		} else {
			// nobody bid: the asset goes home and no fungible funds move
			if err := handoff.do(func() error {
				return im.nonFungible.TransferOwnership(c, a.Asset, im.vault, a.Seller)
			}); err != nil {
				return err
			}
		}

		ended := auction.LifecycleEnded
		if err := im.auctionRepo.Patch(c, id, auction.Patchable{
			Lifecycle: &ended,
			UpdatedAt: ptr.Time(im.clock.Now()),
		}); err != nil {
			return err
		}

		e := &auction.Event{
			AuctionId: id,
			Type:      auction.EventTypeEnded,
			CreatedAt: im.clock.Now(),
		}
		if a.HasBid() {
			e.Account = a.TopBidder
			e.Amount = a.TopBid
		}
		return im.eventRepo.Insert(c, e)
	})
	if err != nil {
		return nil, err
	}

	hadBid := "no"
	if a.HasBid() {
		hadBid = "yes"
	}
	im.met.BumpSum("ended", 1, "hadBid", hadBid)
	return im.auctionRepo.FindOne(ctx, id)
}

// settle converts the winning bid into seller proceeds and hands the asset to
// the winner. The winner's entry is debited before any external interaction,
// so the exact topBid amount can never be extracted again; any surplus above
// it stays withdrawable through the normal release path.
func (im *impl) settle(ctx bctx.Ctx, a *auction.Auction, handoff *transfer) error {
	winning, err := a.TopBid.Decimal()
	if err != nil {
		return err
	}

	if err := im.ledger.Debit(ctx, a.Id, a.TopBidder, winning); err != nil {
		ctx.WithFields(log.Fields{
			"err":       err,
			"auctionId": a.Id,
			"winner":    a.TopBidder,
		}).Error("ledger.Debit failed")
		return err
	}

	// the debited amount becomes the seller's proceeds, withdrawable like
	// any other escrow entry once the auction has ended
	if _, err := im.ledger.Credit(ctx, a.Id, a.Seller, winning); err != nil {
		return err
	}

	if err := handoff.do(func() error {
		return im.nonFungible.TransferOwnership(ctx, a.Asset, im.vault, a.TopBidder)
	}); err != nil {
		ctx.WithFields(log.Fields{
			"err":       err,
			"auctionId": a.Id,
			"winner":    a.TopBidder,
		}).Error("nonFungible.TransferOwnership failed")
		return err
	}
	return nil
}

func (im *impl) Withdraw(ctx bctx.Ctx, id auction.Id, caller domain.Address) (decimal.Decimal, error) {
	var held, paid decimal.Decimal
	var payout transfer
	err := im.q.RunWithTransaction(ctx, func(c bctx.Ctx) error {
		a, err := im.auctionRepo.FindOne(c, id)
		if err != nil {
			return err
		}

		// collateral stays locked until settlement
		if a.Lifecycle != auction.LifecycleEnded {
			return domain.ErrWrongLifecyclePhase
		}

		if held, err = im.ledger.BalanceOf(c, id, caller); err != nil {
			return err
		}

		// a retried callback must see the balance it already paid out;
		// anything else means a competing writer drained the entry while
		// our funds left custody
		if payout.done && !held.Equal(paid) {
			c.WithFields(log.Fields{
				"auctionId": id,
				"account":   caller,
				"balance":   held,
				"paid":      paid,
			}).Error("withdrawal balance changed across transaction retries")
			return domain.ErrInsufficientEscrowBalance
		}

		// withdrawing nothing is a successful no-op so the call is safe to
		// repeat, or to make without ever having bid
		if held.IsZero() {
			return nil
		}

		// the entry reaches its final value before the custody service is
		// invoked, and the payout fires at most once per operation
		if err := im.ledger.Release(c, id, caller, held); err != nil {
			return err
		}
		if err := payout.do(func() error {
			paid = held
			return im.fungible.MoveOut(c, caller, held)
		}); err != nil {
			c.WithFields(log.Fields{
				"err":       err,
				"auctionId": id,
				"account":   caller,
				"amount":    held,
			}).Error("fungible.MoveOut failed")
			return err
		}

		return im.eventRepo.Insert(c, &auction.Event{
			AuctionId: id,
			Type:      auction.EventTypeWithdrawn,
			Account:   caller.ToLower(),
			Amount:    domain.AmountFromDecimal(held),
			CreatedAt: im.clock.Now(),
		})
	})
	if err != nil {
		return decimal.Zero, err
	}
	if held.IsZero() {
		return decimal.Zero, nil
	}

	im.met.BumpSum("withdrawn", 1)
	return held, nil
}

func (im *impl) Get(ctx bctx.Ctx, id auction.Id) (*auction.Auction, error) {
	return im.auctionRepo.FindOne(ctx, id)
}

func (im *impl) FindAll(ctx bctx.Ctx, opts ...auction.FindAllOptionsFunc) ([]*auction.Auction, error) {
	res, err := im.auctionRepo.FindAll(ctx, opts...)
	if err != nil {
		ctx.WithFields(log.Fields{
			"err": err,
		}).Error("auctionRepo.FindAll failed")
		return nil, err
	}
	return res, nil
}

func (im *impl) BalanceOf(ctx bctx.Ctx, id auction.Id, address domain.Address) (decimal.Decimal, error) {
	if _, err := im.auctionRepo.FindOne(ctx, id); err != nil {
		return decimal.Zero, err
	}
	return im.ledger.BalanceOf(ctx, id, address)
}

func (im *impl) Events(ctx bctx.Ctx, id auction.Id) ([]*auction.Event, error) {
	return im.eventRepo.FindAll(ctx, id)
}
