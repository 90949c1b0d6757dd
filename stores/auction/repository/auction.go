package repository

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/bidvault/goapi/base/ctx"
	"github.com/bidvault/goapi/base/database/mongoclient"
	"github.com/bidvault/goapi/base/log"
	"github.com/bidvault/goapi/domain"
	"github.com/bidvault/goapi/domain/auction"
	"github.com/bidvault/goapi/service/query"
)

type auctionRepoImpl struct {
	q query.Mongo
}

func NewAuctionRepo(q query.Mongo) auction.Repo {
	return &auctionRepoImpl{q}
}

func (im *auctionRepoImpl) makeQuery(opts ...auction.FindAllOptionsFunc) (bson.M, error) {
	options, err := auction.GetFindAllOptions(opts...)
	if err != nil {
		return nil, err
	}
	query := bson.M{}

	if options.Seller != nil {
		query["seller"] = *options.Seller
	}

	if options.Lifecycle != nil {
		query["lifecycle"] = *options.Lifecycle
	}

	return query, nil
}

func (im *auctionRepoImpl) FindOne(ctx ctx.Ctx, id auction.Id) (*auction.Auction, error) {
	res := &auction.Auction{}
	if err := im.q.FindOne(ctx, domain.TableAuctions, bson.M{"auctionId": id}, res); err != nil {
		if err == query.ErrNotFound {
			return nil, domain.ErrNotFound
		}
		ctx.WithFields(log.Fields{
			"err":       err,
			"auctionId": id,
		}).Error("failed to q.FindOne")
		return nil, err
	}
	return res, nil
}

func (im *auctionRepoImpl) Insert(ctx ctx.Ctx, a *auction.Auction) error {
	a.LowerCase()
	if err := im.q.Insert(ctx, domain.TableAuctions, a); err != nil {
		if err == query.ErrDuplicateKey {
			return domain.ErrConflict
		}
		ctx.WithFields(log.Fields{
			"err":       err,
			"auctionId": a.Id,
		}).Error("failed to q.Insert")
		return err
	}
	return nil
}

func (im *auctionRepoImpl) Patch(ctx ctx.Ctx, id auction.Id, patchable auction.Patchable) error {
	update, err := mongoclient.MakeBsonM(patchable)
	if err != nil {
		ctx.WithFields(log.Fields{
			"err":       err,
			"patchable": patchable,
		}).Error("failed to mongoclient.MakeBsonM")
		return err
	}

	if err := im.q.Patch(ctx, domain.TableAuctions, bson.M{"auctionId": id}, update); err != nil {
		if err == query.ErrNotFound {
			return domain.ErrNotFound
		}
		ctx.WithFields(log.Fields{
			"err":       err,
			"auctionId": id,
		}).Error("failed to q.Patch")
		return err
	}
	return nil
}

func (im *auctionRepoImpl) FindAll(ctx ctx.Ctx, opts ...auction.FindAllOptionsFunc) ([]*auction.Auction, error) {
	query, err := im.makeQuery(opts...)
	if err != nil {
		ctx.WithFields(log.Fields{
			"err": err,
		}).Error("im.makeQuery")
		return nil, err
	}

	options, _ := auction.GetFindAllOptions(opts...)
	offset, limit := int32(0), int32(0)
	if options.Offset != nil {
		offset = *options.Offset
	}
	if options.Limit != nil {
		limit = *options.Limit
	}
	sort := "-createdAt"
	if options.SortBy != nil {
		sort = *options.SortBy
		if options.SortDir != nil && *options.SortDir == domain.SortDirDesc {
			sort = "-" + sort
		}
	}

	res := []*auction.Auction{}
	if err := im.q.Search(ctx, domain.TableAuctions, int(offset), int(limit), sort, query, &res); err != nil {
		ctx.WithFields(log.Fields{
			"err":   err,
			"query": query,
		}).Error("failed to q.Search")
		return nil, err
	}
	return res, nil
}

func (im *auctionRepoImpl) Count(ctx ctx.Ctx, opts ...auction.FindAllOptionsFunc) (int, error) {
	query, err := im.makeQuery(opts...)
	if err != nil {
		ctx.WithFields(log.Fields{
			"err": err,
		}).Error("im.makeQuery")
		return 0, err
	}

	cnt, err := im.q.Count(ctx, domain.TableAuctions, query)
	if err != nil {
		ctx.WithFields(log.Fields{
			"err":   err,
			"query": query,
		}).Error("failed to q.Count")
		return 0, err
	}
	return cnt, nil
}
