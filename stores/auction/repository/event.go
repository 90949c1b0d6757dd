package repository

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/bidvault/goapi/base/ctx"
	"github.com/bidvault/goapi/base/log"
	"github.com/bidvault/goapi/domain"
	"github.com/bidvault/goapi/domain/auction"
	"github.com/bidvault/goapi/service/query"
)

type eventRepoImpl struct {
	q query.Mongo
}

func NewEventRepo(q query.Mongo) auction.EventRepo {
	return &eventRepoImpl{q}
}

func (im *eventRepoImpl) Insert(ctx ctx.Ctx, e *auction.Event) error {
	if err := im.q.Insert(ctx, domain.TableAuctionEvents, e); err != nil {
		ctx.WithFields(log.Fields{
			"err":       err,
			"auctionId": e.AuctionId,
			"type":      e.Type,
		}).Error("failed to q.Insert")
		return err
	}
	return nil
}

func (im *eventRepoImpl) FindAll(ctx ctx.Ctx, id auction.Id) ([]*auction.Event, error) {
	res := []*auction.Event{}
	if err := im.q.Search(ctx, domain.TableAuctionEvents, 0, 0, "createdAt", bson.M{"auctionId": id}, &res); err != nil {
		ctx.WithFields(log.Fields{
			"err":       err,
			"auctionId": id,
		}).Error("failed to q.Search")
		return nil, err
	}
	return res, nil
}
