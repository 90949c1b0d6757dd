package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	bCtx "github.com/bidvault/goapi/base/ctx"
	"github.com/bidvault/goapi/base/delivery"
	"github.com/bidvault/goapi/base/validator"
	"github.com/bidvault/goapi/domain"
	dAuction "github.com/bidvault/goapi/domain/auction"
	"github.com/bidvault/goapi/middleware"
	authMiddleware "github.com/bidvault/goapi/stores/auth/delivery/http/middleware"
)

type handler struct {
	auction dAuction.UseCase
}

func New(e *echo.Echo, auction dAuction.UseCase, authMiddleware *authMiddleware.AuthMiddleware) {
	h := &handler{auction}
	g := e.Group("/auction")
	g.POST("", h.create, authMiddleware.Auth())
	g.GET("", h.list)
	g.GET("/:auctionId", h.get)
	g.POST("/:auctionId/start", h.start, authMiddleware.Auth())
	g.POST("/:auctionId/bid", h.bid, authMiddleware.Auth())
	g.POST("/:auctionId/end", h.end, authMiddleware.Auth())
	g.POST("/:auctionId/withdraw", h.withdraw, authMiddleware.Auth())
	g.GET("/:auctionId/balance/:address", h.balanceOf, middleware.IsValidAddress("address"))
	g.GET("/:auctionId/events", h.getEvents)
}

// create
//
//	@Summary		Create auction
//	@Description	Register a new auction instance for the caller's asset
//	@Tags			auction
//	@Accept			json
//	@Produce		json
//	@Param			params	body		http.create.params	true	"params"
//	@Success		201		{object}	object{data=auction.Auction}
//	@Failure		400
//	@Failure		500
//	@Router			/auction [post]
func (h *handler) create(c echo.Context) error {
	ctx := c.Get("ctx").(bCtx.Ctx)
	seller := c.Get("address").(domain.Address)

	type params struct {
		Collection domain.Address `json:"collection"`
		TokenId    domain.TokenId `json:"tokenId"`
	}

	p := &params{}
	if err := c.Bind(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, "invalid params")
	}
	if !validator.IsValidAddress(string(p.Collection)) {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrInvalidAddress)
	}

	res, err := h.auction.Create(ctx, seller, dAuction.AssetRef{
		Collection: p.Collection,
		TokenId:    p.TokenId,
	})
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusCreated, res)
}

// start
//
//	@Summary		Start auction
//	@Description	Escrow the asset and open the bidding window
//	@Tags			auction
//	@Accept			json
//	@Produce		json
//	@Param			auctionId	path		string				true	"auction id"
//	@Param			params		body		http.start.params	true	"params"
//	@Success		200			{object}	object{data=auction.Auction}
//	@Failure		400
//	@Failure		401
//	@Failure		404
//	@Router			/auction/{auctionId}/start [post]
func (h *handler) start(c echo.Context) error {
	ctx := c.Get("ctx").(bCtx.Ctx)
	caller := c.Get("address").(domain.Address)
	id := dAuction.Id(c.Param("auctionId"))

	type params struct {
		DurationSeconds int64  `json:"durationSeconds"`
		MinBid          string `json:"minBid"`
	}

	p := &params{}
	if err := c.Bind(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, "invalid params")
	}
	if !validator.IsValidAmount(p.MinBid) {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrInvalidAmountFormat)
	}

	minBid, err := decimal.NewFromString(p.MinBid)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrInvalidAmountFormat)
	}

	res, err := h.auction.Start(ctx, id, caller, time.Duration(p.DurationSeconds)*time.Second, minBid)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, res)
}

// bid
//
//	@Summary		Place bid
//	@Description	Escrow additional funds; the caller's cumulative deposit becomes the bid
//	@Tags			auction
//	@Accept			json
//	@Produce		json
//	@Param			auctionId	path		string			true	"auction id"
//	@Param			params		body		http.bid.params	true	"params"
//	@Success		200			{object}	object{data=auction.Auction}
//	@Failure		400
//	@Failure		404
//	@Failure		502
//	@Router			/auction/{auctionId}/bid [post]
func (h *handler) bid(c echo.Context) error {
	ctx := c.Get("ctx").(bCtx.Ctx)
	caller := c.Get("address").(domain.Address)
	id := dAuction.Id(c.Param("auctionId"))

	type params struct {
		Amount string `json:"amount"`
	}

	p := &params{}
	if err := c.Bind(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, "invalid params")
	}
	if !validator.IsValidAmount(p.Amount) {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrInvalidAmountFormat)
	}

	amount, err := decimal.NewFromString(p.Amount)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrInvalidAmountFormat)
	}

	res, err := h.auction.Bid(ctx, id, caller, amount)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, res)
}

// end
//
//	@Summary		End auction
//	@Description	Settle after the deadline: asset and winning bid change hands
//	@Tags			auction
//	@Produce		json
//	@Param			auctionId	path		string	true	"auction id"
//	@Success		200			{object}	object{data=auction.Auction}
//	@Failure		400
//	@Failure		401
//	@Failure		404
//	@Router			/auction/{auctionId}/end [post]
func (h *handler) end(c echo.Context) error {
	ctx := c.Get("ctx").(bCtx.Ctx)
	caller := c.Get("address").(domain.Address)
	id := dAuction.Id(c.Param("auctionId"))

	res, err := h.auction.End(ctx, id, caller)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, res)
}

// withdraw
//
//	@Summary		Withdraw escrow
//	@Description	Release the caller's remaining balance once the auction has ended
//	@Tags			auction
//	@Produce		json
//	@Param			auctionId	path		string	true	"auction id"
//	@Success		200			{object}	object{data=string}
//	@Failure		400
//	@Failure		404
//	@Router			/auction/{auctionId}/withdraw [post]
func (h *handler) withdraw(c echo.Context) error {
	ctx := c.Get("ctx").(bCtx.Ctx)
	caller := c.Get("address").(domain.Address)
	id := dAuction.Id(c.Param("auctionId"))

	amount, err := h.auction.Withdraw(ctx, id, caller)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}

	res := struct {
		Withdrawn domain.Amount `json:"withdrawn"`
	}{
		Withdrawn: domain.AmountFromDecimal(amount),
	}
	return delivery.MakeJsonResp(c, http.StatusOK, res)
}

// get
//
//	@Summary		Get auction
//	@Tags			auction
//	@Produce		json
//	@Param			auctionId	path		string	true	"auction id"
//	@Success		200			{object}	object{data=auction.Auction}
//	@Failure		404
//	@Router			/auction/{auctionId} [get]
func (h *handler) get(c echo.Context) error {
	ctx := c.Get("ctx").(bCtx.Ctx)
	id := dAuction.Id(c.Param("auctionId"))

	res, err := h.auction.Get(ctx, id)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, res)
}

// list
//
//	@Summary		List auctions
//	@Tags			auction
//	@Produce		json
//	@Param			seller		query		string	false	"filter by seller"
//	@Param			lifecycle	query		string	false	"filter by lifecycle phase"
//	@Success		200			{object}	object{data=[]auction.Auction}
//	@Router			/auction [get]
func (h *handler) list(c echo.Context) error {
	ctx := c.Get("ctx").(bCtx.Ctx)

	type params struct {
		SortBy    *string         `query:"sortBy"`
		SortDir   *domain.SortDir `query:"sortDir"`
		Offset    int32           `query:"offset"`
		Limit     int32           `query:"limit"`
		Seller    *domain.Address `query:"seller"`
		Lifecycle *string         `query:"lifecycle"`
	}

	p := &params{}
	if err := c.Bind(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, "invalid params")
	}

	opts := []dAuction.FindAllOptionsFunc{
		dAuction.WithPagination(p.Offset, p.Limit),
	}
	if p.SortBy != nil && p.SortDir != nil {
		opts = append(opts, dAuction.WithSort(*p.SortBy, *p.SortDir))
	}
	if p.Seller != nil {
		opts = append(opts, dAuction.WithSeller(*p.Seller))
	}
	if p.Lifecycle != nil {
		lc, err := dAuction.ToLifecycle(*p.Lifecycle)
		if err != nil {
			return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
		}
		opts = append(opts, dAuction.WithLifecycle(lc))
	}

	res, err := h.auction.FindAll(ctx, opts...)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, res)
}

// balanceOf
//
//	@Summary		Get escrow balance
//	@Tags			auction
//	@Produce		json
//	@Param			auctionId	path		string	true	"auction id"
//	@Param			address		path		string	true	"account address"
//	@Success		200			{object}	object{data=string}
//	@Failure		404
//	@Router			/auction/{auctionId}/balance/{address} [get]
func (h *handler) balanceOf(c echo.Context) error {
	ctx := c.Get("ctx").(bCtx.Ctx)
	id := dAuction.Id(c.Param("auctionId"))
	address := domain.Address(c.Param("address"))

	balance, err := h.auction.BalanceOf(ctx, id, address)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}

	res := struct {
		Balance domain.Amount `json:"balance"`
	}{
		Balance: domain.AmountFromDecimal(balance),
	}
	return delivery.MakeJsonResp(c, http.StatusOK, res)
}

// getEvents
//
//	@Summary		Get event history
//	@Tags			auction
//	@Produce		json
//	@Param			auctionId	path		string	true	"auction id"
//	@Success		200			{object}	object{data=[]auction.Event}
//	@Failure		404
//	@Router			/auction/{auctionId}/events [get]
func (h *handler) getEvents(c echo.Context) error {
	ctx := c.Get("ctx").(bCtx.Ctx)
	id := dAuction.Id(c.Param("auctionId"))

	res, err := h.auction.Events(ctx, id)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, res)
}
