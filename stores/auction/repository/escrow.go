package repository

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/bidvault/goapi/base/ctx"
	"github.com/bidvault/goapi/base/log"
	"github.com/bidvault/goapi/domain"
	"github.com/bidvault/goapi/domain/auction"
	"github.com/bidvault/goapi/domain/escrow"
	"github.com/bidvault/goapi/service/query"
)

type escrowRepoImpl struct {
	q query.Mongo
}

func NewEscrowRepo(q query.Mongo) escrow.Repo {
	return &escrowRepoImpl{q}
}

func (im *escrowRepoImpl) selector(id auction.Id, account domain.Address) bson.M {
	return bson.M{
		"auctionId": id,
		"account":   account.ToLower(),
	}
}

func (im *escrowRepoImpl) FindOne(ctx ctx.Ctx, id auction.Id, account domain.Address) (*escrow.Entry, error) {
	res := &escrow.Entry{}
	if err := im.q.FindOne(ctx, domain.TableEscrowEntries, im.selector(id, account), res); err != nil {
		if err == query.ErrNotFound {
			return nil, domain.ErrNotFound
		}
		ctx.WithFields(log.Fields{
			"err":       err,
			"auctionId": id,
			"account":   account,
		}).Error("failed to q.FindOne")
		return nil, err
	}
	return res, nil
}

func (im *escrowRepoImpl) FindAll(ctx ctx.Ctx, id auction.Id) ([]*escrow.Entry, error) {
	res := []*escrow.Entry{}
	if err := im.q.Search(ctx, domain.TableEscrowEntries, 0, 0, "account", bson.M{"auctionId": id}, &res); err != nil {
		ctx.WithFields(log.Fields{
			"err":       err,
			"auctionId": id,
		}).Error("failed to q.Search")
		return nil, err
	}
	return res, nil
}

func (im *escrowRepoImpl) Upsert(ctx ctx.Ctx, e *escrow.Entry) error {
	e.Account = e.Account.ToLower()
	if err := im.q.Upsert(ctx, domain.TableEscrowEntries, im.selector(e.AuctionId, e.Account), e); err != nil {
		ctx.WithFields(log.Fields{
			"err":       err,
			"auctionId": e.AuctionId,
			"account":   e.Account,
		}).Error("failed to q.Upsert")
		return err
	}
	return nil
}
