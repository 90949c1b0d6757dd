package usecase

import (
	"strings"

	"github.com/bidvault/goapi/base/ctx"
	"github.com/bidvault/goapi/domain"
	"github.com/bidvault/goapi/domain/auction"
	"github.com/bidvault/goapi/domain/escrow"
	"github.com/bidvault/goapi/service/query"
)

// in-memory repos backing the state machine tests. They implement the same
// contracts as the mongo repositories so scenarios can run several operations
// back to back against real accumulated state.

type memAuctionRepo struct {
	auctions map[auction.Id]*auction.Auction
}

func newMemAuctionRepo() *memAuctionRepo {
	return &memAuctionRepo{auctions: map[auction.Id]*auction.Auction{}}
}

func (r *memAuctionRepo) FindOne(c ctx.Ctx, id auction.Id) (*auction.Auction, error) {
	a, ok := r.auctions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memAuctionRepo) Insert(c ctx.Ctx, a *auction.Auction) error {
	if _, ok := r.auctions[a.Id]; ok {
		return domain.ErrConflict
	}
	a.LowerCase()
	cp := *a
	r.auctions[a.Id] = &cp
	return nil
}

func (r *memAuctionRepo) Patch(c ctx.Ctx, id auction.Id, p auction.Patchable) error {
	a, ok := r.auctions[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Lifecycle != nil {
		a.Lifecycle = *p.Lifecycle
	}
	if p.Deadline != nil {
		a.Deadline = *p.Deadline
	}
	if p.ReservePrice != nil {
		a.ReservePrice = *p.ReservePrice
	}
	if p.TopBid != nil {
		a.TopBid = *p.TopBid
	}
	if p.TopBidder != nil {
		a.TopBidder = *p.TopBidder
	}
	if p.UpdatedAt != nil {
		a.UpdatedAt = *p.UpdatedAt
	}
	return nil
}

func (r *memAuctionRepo) FindAll(c ctx.Ctx, opts ...auction.FindAllOptionsFunc) ([]*auction.Auction, error) {
	res := []*auction.Auction{}
	for _, a := range r.auctions {
		cp := *a
		res = append(res, &cp)
	}
	return res, nil
}

func (r *memAuctionRepo) Count(c ctx.Ctx, opts ...auction.FindAllOptionsFunc) (int, error) {
	return len(r.auctions), nil
}

type memEscrowRepo struct {
	entries map[string]*escrow.Entry
}

func newMemEscrowRepo() *memEscrowRepo {
	return &memEscrowRepo{entries: map[string]*escrow.Entry{}}
}

func escrowKey(id auction.Id, account domain.Address) string {
	return id.String() + "/" + strings.ToLower(string(account))
}

func (r *memEscrowRepo) FindOne(c ctx.Ctx, id auction.Id, account domain.Address) (*escrow.Entry, error) {
	e, ok := r.entries[escrowKey(id, account)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *memEscrowRepo) FindAll(c ctx.Ctx, id auction.Id) ([]*escrow.Entry, error) {
	res := []*escrow.Entry{}
	for _, e := range r.entries {
		if e.AuctionId == id {
			cp := *e
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (r *memEscrowRepo) Upsert(c ctx.Ctx, e *escrow.Entry) error {
	cp := *e
	r.entries[escrowKey(e.AuctionId, e.Account)] = &cp
	return nil
}

type memEventRepo struct {
	events []*auction.Event
}

func (r *memEventRepo) Insert(c ctx.Ctx, e *auction.Event) error {
	cp := *e
	r.events = append(r.events, &cp)
	return nil
}

func (r *memEventRepo) FindAll(c ctx.Ctx, id auction.Id) ([]*auction.Event, error) {
	res := []*auction.Event{}
	for _, e := range r.events {
		if e.AuctionId == id {
			res = append(res, e)
		}
	}
	return res, nil
}

func (r *memAuctionRepo) snapshot() map[auction.Id]*auction.Auction {
	s := map[auction.Id]*auction.Auction{}
	for k, v := range r.auctions {
		cp := *v
		s[k] = &cp
	}
	return s
}

func (r *memAuctionRepo) restore(s map[auction.Id]*auction.Auction) {
	r.auctions = s
}

func (r *memEscrowRepo) snapshot() map[string]*escrow.Entry {
	s := map[string]*escrow.Entry{}
	for k, v := range r.entries {
		cp := *v
		s[k] = &cp
	}
	return s
}

func (r *memEscrowRepo) restore(s map[string]*escrow.Entry) {
	r.entries = s
}

func (r *memEventRepo) snapshot() []*auction.Event {
	return append([]*auction.Event{}, r.events...)
}

func (r *memEventRepo) restore(s []*auction.Event) {
	r.events = s
}

// rerunMongo satisfies query.Mongo for the transaction wrapper; the repos
// above keep their own state so there is no session to manage. When armed it
// mimics the driver hitting a transient error after the callback succeeded:
// the staged writes are rolled back via reset and the callback runs again,
// optionally after a competing write injected through between.
type rerunMongo struct {
	query.Mongo

	armed   bool
	reset   func()
	between func()
}

func (m *rerunMongo) RunWithTransaction(c ctx.Ctx, run func(ctx.Ctx) error) error {
	if !m.armed {
		return run(c)
	}
	m.armed = false

	if err := run(c); err != nil {
		return err
	}
	m.reset()
	if m.between != nil {
		m.between()
	}
	return run(c)
}
