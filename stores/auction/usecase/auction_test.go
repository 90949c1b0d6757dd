package usecase

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/bidvault/goapi/base/ctx"
	"github.com/bidvault/goapi/domain"
	"github.com/bidvault/goapi/domain/auction"
	mCustody "github.com/bidvault/goapi/domain/custody/mocks"
)

var (
	mockCtx = ctx.Background()
)

type auctionTestSuite struct {
	suite.Suite

	auctionRepo     *memAuctionRepo
	escrowRepo      *memEscrowRepo
	eventRepo       *memEventRepo
	mockFungible    *mCustody.Fungible
	mockNonFungible *mCustody.NonFungible
	mongo           *rerunMongo
	clock           *clock.Mock
	subject         auction.UseCase

	seller  domain.Address
	bidderA domain.Address
	bidderB domain.Address
	vault   domain.Address
	asset   auction.AssetRef
}

func TestAuctionUseCase(t *testing.T) {
	suite.Run(t, new(auctionTestSuite))
}

func (t *auctionTestSuite) SetupTest() {
	t.auctionRepo = newMemAuctionRepo()
	t.escrowRepo = newMemEscrowRepo()
	t.eventRepo = &memEventRepo{}
	t.mockFungible = &mCustody.Fungible{}
	t.mockNonFungible = &mCustody.NonFungible{}
	t.mongo = &rerunMongo{}
	t.clock = clock.NewMock()

	t.seller = domain.Address("0xce4468e7ce84aceb74363f4ea64e5a038176f369")
	t.bidderA = domain.Address("0xdf8650b0ca1260f7a2f4fdff9082aede554f65ad")
	t.bidderB = domain.Address("0x07fe9ffd85b54a3a18467d3b5e91a55ecc52a268")
	t.vault = domain.Address("0x1a01ecd2263a9d5b5967667e508ea22db478bc4b")
	t.asset = auction.AssetRef{
		Collection: domain.Address("0xdcf0de6b17785a143d006e1515a6afd123cde8ba"),
		TokenId:    domain.TokenId("42"),
	}

	ledger := NewEscrowLedger(&EscrowLedgerCfg{
		EscrowRepo: t.escrowRepo,
	})
	t.subject = New(&AuctionUseCaseCfg{
		AuctionRepo:  t.auctionRepo,
		EventRepo:    t.eventRepo,
		Ledger:       ledger,
		Fungible:     t.mockFungible,
		NonFungible:  t.mockNonFungible,
		Query:        t.mongo,
		Clock:        t.clock,
		VaultAddress: t.vault,
	})
}

// armRerun makes the next transaction replay its callback as if the driver
// had retried on a transient error, rolling the first run's writes back and
// running between (if any) before the second run.
func (t *auctionTestSuite) armRerun(between func()) {
	auctions := t.auctionRepo.snapshot()
	entries := t.escrowRepo.snapshot()
	events := t.eventRepo.snapshot()

	t.mongo.reset = func() {
		t.auctionRepo.restore(auctions)
		t.escrowRepo.restore(entries)
		t.eventRepo.restore(events)
	}
	t.mongo.between = between
	t.mongo.armed = true
}

func (t *auctionTestSuite) create() *auction.Auction {
	a, err := t.subject.Create(mockCtx, t.seller, t.asset)
	t.NoError(err)
	return a
}

func (t *auctionTestSuite) start(id auction.Id, duration time.Duration, minBid int64) {
	t.mockNonFungible.On("TransferOwnership", mock.Anything, t.asset, t.seller, t.vault).Return(nil).Once()
	_, err := t.subject.Start(mockCtx, id, t.seller, duration, decimal.NewFromInt(minBid))
	t.NoError(err)
}

func (t *auctionTestSuite) TestCreate() {
	a := t.create()

	t.Equal(auction.LifecycleUnstarted, a.Lifecycle)
	t.Equal(t.seller, a.Seller)
	t.Equal(t.asset, a.Asset)
	t.False(a.HasBid())

	got, err := t.subject.Get(mockCtx, a.Id)
	t.NoError(err)
	t.Equal(a.Id, got.Id)
}

func (t *auctionTestSuite) TestStart() {
	a := t.create()
	t.start(a.Id, 100*time.Second, 10)

	got, err := t.subject.Get(mockCtx, a.Id)
	t.NoError(err)
	t.Equal(auction.LifecycleActive, got.Lifecycle)
	t.Equal(t.clock.Now().Add(100*time.Second), got.Deadline)
	t.Equal(domain.Amount("10"), got.ReservePrice)
	t.mockNonFungible.AssertExpectations(t.T())

	events, err := t.subject.Events(mockCtx, a.Id)
	t.NoError(err)
	t.Len(events, 1)
	t.Equal(auction.EventTypeStarted, events[0].Type)
	t.NotNil(events[0].Deadline)
}

func (t *auctionTestSuite) TestStartGuards() {
	a := t.create()

	_, err := t.subject.Start(mockCtx, a.Id, t.bidderA, 100*time.Second, decimal.NewFromInt(10))
	t.ErrorIs(err, domain.ErrUnauthorized)

	_, err = t.subject.Start(mockCtx, a.Id, t.seller, 0, decimal.NewFromInt(10))
	t.ErrorIs(err, domain.ErrBadParamInput)

	t.start(a.Id, 100*time.Second, 10)

	// active auctions cannot be started again
	_, err = t.subject.Start(mockCtx, a.Id, t.seller, 100*time.Second, decimal.NewFromInt(10))
	t.ErrorIs(err, domain.ErrWrongLifecyclePhase)
}

func (t *auctionTestSuite) TestStartAbortsWhenAssetTransferDeclined() {
	a := t.create()

	t.mockNonFungible.On("TransferOwnership", mock.Anything, t.asset, t.seller, t.vault).
		Return(domain.ErrCustodyTransferFailed).Once()

	_, err := t.subject.Start(mockCtx, a.Id, t.seller, 100*time.Second, decimal.NewFromInt(10))
	t.ErrorIs(err, domain.ErrCustodyTransferFailed)

	got, err := t.subject.Get(mockCtx, a.Id)
	t.NoError(err)
	t.Equal(auction.LifecycleUnstarted, got.Lifecycle)
}

func (t *auctionTestSuite) TestBidGuards() {
	a := t.create()

	_, err := t.subject.Bid(mockCtx, a.Id, t.bidderA, decimal.NewFromInt(15))
	t.ErrorIs(err, domain.ErrWrongLifecyclePhase)

	t.start(a.Id, 100*time.Second, 10)

	_, err = t.subject.Bid(mockCtx, a.Id, t.bidderA, decimal.Zero)
	t.ErrorIs(err, domain.ErrBadParamInput)

	// below the reserve floor even though it beats the zero top bid
	_, err = t.subject.Bid(mockCtx, a.Id, t.bidderA, decimal.NewFromInt(9))
	t.ErrorIs(err, domain.ErrInsufficientBid)
	t.ErrorContains(err, "reserve price")

	t.clock.Add(100 * time.Second)
	_, err = t.subject.Bid(mockCtx, a.Id, t.bidderA, decimal.NewFromInt(15))
	t.ErrorIs(err, domain.ErrTimingViolation)
}

func (t *auctionTestSuite) TestBidRejectionMovesNoFunds() {
	a := t.create()
	t.start(a.Id, 100*time.Second, 10)

	t.mockFungible.On("MoveIn", mock.Anything, t.bidderA, decimal.NewFromInt(15)).Return(nil).Once()
	_, err := t.subject.Bid(mockCtx, a.Id, t.bidderA, decimal.NewFromInt(15))
	t.NoError(err)

	// a rejected bid never reaches the custody service, and the reason is
	// distinguishable from a reserve miss
	_, err = t.subject.Bid(mockCtx, a.Id, t.bidderB, decimal.NewFromInt(12))
	t.ErrorIs(err, domain.ErrInsufficientBid)
	t.ErrorContains(err, "top bid")
	t.mockFungible.AssertExpectations(t.T())

	balance, err := t.subject.BalanceOf(mockCtx, a.Id, t.bidderB)
	t.NoError(err)
	t.True(balance.IsZero())
}

func (t *auctionTestSuite) TestBidFailedPullLeavesStateUntouched() {
	a := t.create()
	t.start(a.Id, 100*time.Second, 10)

	t.mockFungible.On("MoveIn", mock.Anything, t.bidderA, decimal.NewFromInt(15)).
		Return(domain.ErrCustodyTransferFailed).Once()

	_, err := t.subject.Bid(mockCtx, a.Id, t.bidderA, decimal.NewFromInt(15))
	t.ErrorIs(err, domain.ErrCustodyTransferFailed)

	got, err := t.subject.Get(mockCtx, a.Id)
	t.NoError(err)
	t.False(got.HasBid())

	balance, err := t.subject.BalanceOf(mockCtx, a.Id, t.bidderA)
	t.NoError(err)
	t.True(balance.IsZero())
}

func (t *auctionTestSuite) TestCumulativeBidding() {
	a := t.create()
	t.start(a.Id, 100*time.Second, 10)

	t.mockFungible.On("MoveIn", mock.Anything, t.bidderA, decimal.NewFromInt(15)).Return(nil).Once()
	got, err := t.subject.Bid(mockCtx, a.Id, t.bidderA, decimal.NewFromInt(15))
	t.NoError(err)
	t.Equal(domain.Amount("15"), got.TopBid)
	t.Equal(t.bidderA, got.TopBidder)

	// a second deposit tops up the same entry; only the increment is pulled
	t.mockFungible.On("MoveIn", mock.Anything, t.bidderA, decimal.NewFromInt(10)).Return(nil).Once()
	got, err = t.subject.Bid(mockCtx, a.Id, t.bidderA, decimal.NewFromInt(10))
	t.NoError(err)
	t.Equal(domain.Amount("25"), got.TopBid)
	t.Equal(t.bidderA, got.TopBidder)
	t.mockFungible.AssertExpectations(t.T())

	balance, err := t.subject.BalanceOf(mockCtx, a.Id, t.bidderA)
	t.NoError(err)
	t.True(balance.Equal(decimal.NewFromInt(25)))
}

func (t *auctionTestSuite) TestEndGuards() {
	a := t.create()

	_, err := t.subject.End(mockCtx, a.Id, t.seller)
	t.ErrorIs(err, domain.ErrWrongLifecyclePhase)

	t.start(a.Id, 100*time.Second, 10)

	_, err = t.subject.End(mockCtx, a.Id, t.bidderA)
	t.ErrorIs(err, domain.ErrUnauthorized)

	// deadline not reached yet
	_, err = t.subject.End(mockCtx, a.Id, t.seller)
	t.ErrorIs(err, domain.ErrTimingViolation)
}

func (t *auctionTestSuite) TestEndWithoutBids() {
	a := t.create()
	t.start(a.Id, 100*time.Second, 10)
	t.clock.Add(100 * time.Second)

	t.mockNonFungible.On("TransferOwnership", mock.Anything, t.asset, t.vault, t.seller).Return(nil).Once()

	got, err := t.subject.End(mockCtx, a.Id, t.seller)
	t.NoError(err)
	t.Equal(auction.LifecycleEnded, got.Lifecycle)
	t.mockNonFungible.AssertExpectations(t.T())
	// no funds were ever pulled in, so none may move out
	t.mockFungible.AssertNotCalled(t.T(), "MoveOut", mock.Anything, mock.Anything, mock.Anything)
}

// the full lifecycle: two competing bidders, settlement and both withdrawal
// paths
func (t *auctionTestSuite) TestSettlementScenario() {
	a := t.create()
	t.start(a.Id, 100*time.Second, 10)

	t.mockFungible.On("MoveIn", mock.Anything, t.bidderA, decimal.NewFromInt(15)).Return(nil).Once()
	_, err := t.subject.Bid(mockCtx, a.Id, t.bidderA, decimal.NewFromInt(15))
	t.NoError(err)

	// B's cumulative 12 does not beat A's 15
	_, err = t.subject.Bid(mockCtx, a.Id, t.bidderB, decimal.NewFromInt(12))
	t.ErrorIs(err, domain.ErrInsufficientBid)

	// B escrows enough to take the lead
	t.mockFungible.On("MoveIn", mock.Anything, t.bidderB, decimal.NewFromInt(20)).Return(nil).Once()
	_, err = t.subject.Bid(mockCtx, a.Id, t.bidderB, decimal.NewFromInt(20))
	t.NoError(err)

	// A tops up to 25, reclaiming the lead over B's 20
	t.mockFungible.On("MoveIn", mock.Anything, t.bidderA, decimal.NewFromInt(10)).Return(nil).Once()
	got, err := t.subject.Bid(mockCtx, a.Id, t.bidderA, decimal.NewFromInt(10))
	t.NoError(err)
	t.Equal(domain.Amount("25"), got.TopBid)
	t.Equal(t.bidderA, got.TopBidder)

	// funds stay locked until settlement
	_, err = t.subject.Withdraw(mockCtx, a.Id, t.bidderB)
	t.ErrorIs(err, domain.ErrWrongLifecyclePhase)

	t.clock.Add(100 * time.Second)

	t.mockNonFungible.On("TransferOwnership", mock.Anything, t.asset, t.vault, t.bidderA).Return(nil).Once()
	got, err = t.subject.End(mockCtx, a.Id, t.seller)
	t.NoError(err)
	t.Equal(auction.LifecycleEnded, got.Lifecycle)
	t.mockNonFungible.AssertExpectations(t.T())

	// the winning bid became the seller's proceeds
	balance, err := t.subject.BalanceOf(mockCtx, a.Id, t.seller)
	t.NoError(err)
	t.True(balance.Equal(decimal.NewFromInt(25)))

	// the winner has nothing left to withdraw
	balance, err = t.subject.BalanceOf(mockCtx, a.Id, t.bidderA)
	t.NoError(err)
	t.True(balance.IsZero())

	withdrawn, err := t.subject.Withdraw(mockCtx, a.Id, t.bidderA)
	t.NoError(err)
	t.True(withdrawn.IsZero())

	// the outbid bidder recovers the full deposit
	t.mockFungible.On("MoveOut", mock.Anything, t.bidderB, mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.NewFromInt(20))
	})).Return(nil).Once()
	withdrawn, err = t.subject.Withdraw(mockCtx, a.Id, t.bidderB)
	t.NoError(err)
	t.True(withdrawn.Equal(decimal.NewFromInt(20)))

	// repeating the withdrawal is a harmless no-op
	withdrawn, err = t.subject.Withdraw(mockCtx, a.Id, t.bidderB)
	t.NoError(err)
	t.True(withdrawn.IsZero())

	t.mockFungible.On("MoveOut", mock.Anything, t.seller, mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.NewFromInt(25))
	})).Return(nil).Once()
	withdrawn, err = t.subject.Withdraw(mockCtx, a.Id, t.seller)
	t.NoError(err)
	t.True(withdrawn.Equal(decimal.NewFromInt(25)))
	t.mockFungible.AssertExpectations(t.T())

	// escrowed value never exceeded what custody pulled in: 15+20+10 in,
	// 20+25 out, nothing left on any entry
	for _, account := range []domain.Address{t.seller, t.bidderA, t.bidderB} {
		balance, err := t.subject.BalanceOf(mockCtx, a.Id, account)
		t.NoError(err)
		t.True(balance.IsZero())
	}
}

// the transaction runner may re-run its callback after rolling the staged
// writes back; custody transfers must not be driven a second time

func (t *auctionTestSuite) TestStartRetriedTransactionMovesAssetOnce() {
	a := t.create()

	t.armRerun(nil)
	t.start(a.Id, 100*time.Second, 10)
	t.mockNonFungible.AssertExpectations(t.T())

	got, err := t.subject.Get(mockCtx, a.Id)
	t.NoError(err)
	t.Equal(auction.LifecycleActive, got.Lifecycle)

	events, err := t.subject.Events(mockCtx, a.Id)
	t.NoError(err)
	t.Len(events, 1)
}

func (t *auctionTestSuite) TestBidRetriedTransactionPullsFundsOnce() {
	a := t.create()
	t.start(a.Id, 100*time.Second, 10)

	t.mockFungible.On("MoveIn", mock.Anything, t.bidderA, decimal.NewFromInt(15)).Return(nil).Once()
	t.armRerun(nil)
	got, err := t.subject.Bid(mockCtx, a.Id, t.bidderA, decimal.NewFromInt(15))
	t.NoError(err)
	t.mockFungible.AssertExpectations(t.T())

	// the committed run credited the single pull exactly once
	t.Equal(domain.Amount("15"), got.TopBid)
	balance, err := t.subject.BalanceOf(mockCtx, a.Id, t.bidderA)
	t.NoError(err)
	t.True(balance.Equal(decimal.NewFromInt(15)))

	events, err := t.subject.Events(mockCtx, a.Id)
	t.NoError(err)
	t.Len(events, 2)
}

func (t *auctionTestSuite) TestEndRetriedTransactionSettlesOnce() {
	a := t.create()
	t.start(a.Id, 100*time.Second, 10)

	t.mockFungible.On("MoveIn", mock.Anything, t.bidderA, decimal.NewFromInt(15)).Return(nil).Once()
	_, err := t.subject.Bid(mockCtx, a.Id, t.bidderA, decimal.NewFromInt(15))
	t.NoError(err)

	t.clock.Add(100 * time.Second)
	t.mockNonFungible.On("TransferOwnership", mock.Anything, t.asset, t.vault, t.bidderA).Return(nil).Once()
	t.armRerun(nil)
	got, err := t.subject.End(mockCtx, a.Id, t.seller)
	t.NoError(err)
	t.Equal(auction.LifecycleEnded, got.Lifecycle)
	t.mockNonFungible.AssertExpectations(t.T())

	// proceeds were credited once, not once per callback run
	balance, err := t.subject.BalanceOf(mockCtx, a.Id, t.seller)
	t.NoError(err)
	t.True(balance.Equal(decimal.NewFromInt(15)))
}

func (t *auctionTestSuite) TestWithdrawRetriedTransactionPaysOutOnce() {
	a := t.create()
	t.start(a.Id, 100*time.Second, 10)

	t.mockFungible.On("MoveIn", mock.Anything, t.bidderA, decimal.NewFromInt(15)).Return(nil).Once()
	_, err := t.subject.Bid(mockCtx, a.Id, t.bidderA, decimal.NewFromInt(15))
	t.NoError(err)
	t.mockFungible.On("MoveIn", mock.Anything, t.bidderB, decimal.NewFromInt(20)).Return(nil).Once()
	_, err = t.subject.Bid(mockCtx, a.Id, t.bidderB, decimal.NewFromInt(20))
	t.NoError(err)

	t.clock.Add(100 * time.Second)
	t.mockNonFungible.On("TransferOwnership", mock.Anything, t.asset, t.vault, t.bidderB).Return(nil).Once()
	_, err = t.subject.End(mockCtx, a.Id, t.seller)
	t.NoError(err)

	// the losing bidder's payout leaves custody exactly once
	t.mockFungible.On("MoveOut", mock.Anything, t.bidderA, mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.NewFromInt(15))
	})).Return(nil).Once()
	t.armRerun(nil)
	withdrawn, err := t.subject.Withdraw(mockCtx, a.Id, t.bidderA)
	t.NoError(err)
	t.True(withdrawn.Equal(decimal.NewFromInt(15)))
	t.mockFungible.AssertExpectations(t.T())

	balance, err := t.subject.BalanceOf(mockCtx, a.Id, t.bidderA)
	t.NoError(err)
	t.True(balance.IsZero())
}

func (t *auctionTestSuite) TestBidRefundedWhenOutbidAcrossRetries() {
	a := t.create()
	t.start(a.Id, 100*time.Second, 10)

	t.mockFungible.On("MoveIn", mock.Anything, t.bidderA, decimal.NewFromInt(15)).Return(nil).Once()
	_, err := t.subject.Bid(mockCtx, a.Id, t.bidderA, decimal.NewFromInt(15))
	t.NoError(err)

	// B's 20 beats 15 on the first run, but a competing bid lands before the
	// retry; the funds already pulled must come back
	t.mockFungible.On("MoveIn", mock.Anything, t.bidderB, decimal.NewFromInt(20)).Return(nil).Once()
	t.mockFungible.On("MoveOut", mock.Anything, t.bidderB, mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.NewFromInt(20))
	})).Return(nil).Once()
	t.armRerun(func() {
		newTop := domain.Amount("30")
		topBidder := t.bidderA
		t.NoError(t.auctionRepo.Patch(mockCtx, a.Id, auction.Patchable{
			TopBid:    &newTop,
			TopBidder: &topBidder,
		}))
	})

	_, err = t.subject.Bid(mockCtx, a.Id, t.bidderB, decimal.NewFromInt(20))
	t.ErrorIs(err, domain.ErrInsufficientBid)
	t.mockFungible.AssertExpectations(t.T())

	// no entry backs the refunded pull
	balance, err := t.subject.BalanceOf(mockCtx, a.Id, t.bidderB)
	t.NoError(err)
	t.True(balance.IsZero())
}

func (t *auctionTestSuite) TestEventHistory() {
	a := t.create()
	t.start(a.Id, 100*time.Second, 10)

	t.mockFungible.On("MoveIn", mock.Anything, t.bidderA, decimal.NewFromInt(15)).Return(nil).Once()
	_, err := t.subject.Bid(mockCtx, a.Id, t.bidderA, decimal.NewFromInt(15))
	t.NoError(err)

	t.clock.Add(100 * time.Second)
	t.mockNonFungible.On("TransferOwnership", mock.Anything, t.asset, t.vault, t.bidderA).Return(nil).Once()
	_, err = t.subject.End(mockCtx, a.Id, t.seller)
	t.NoError(err)

	t.mockFungible.On("MoveOut", mock.Anything, t.seller, mock.Anything).Return(nil).Once()
	_, err = t.subject.Withdraw(mockCtx, a.Id, t.seller)
	t.NoError(err)

	events, err := t.subject.Events(mockCtx, a.Id)
	t.NoError(err)
	t.Len(events, 4)
	t.Equal(auction.EventTypeStarted, events[0].Type)
	t.Equal(auction.EventTypeNewTopBid, events[1].Type)
	t.Equal(t.bidderA, events[1].Account)
	t.Equal(domain.Amount("15"), events[1].Amount)
	t.Equal(auction.EventTypeEnded, events[2].Type)
	t.Equal(t.bidderA, events[2].Account)
	t.Equal(auction.EventTypeWithdrawn, events[3].Type)
	t.Equal(t.seller, events[3].Account)
	t.Equal(domain.Amount("15"), events[3].Amount)
}

func (t *auctionTestSuite) TestBalanceOfUnknownAuction() {
	_, err := t.subject.BalanceOf(mockCtx, auction.Id("missing"), t.bidderA)
	t.ErrorIs(err, domain.ErrNotFound)
}
