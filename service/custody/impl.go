package custody

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/xerrors"

	"github.com/bidvault/goapi/base/backoff"
	bCtx "github.com/bidvault/goapi/base/ctx"
	"github.com/bidvault/goapi/base/log"
	"github.com/bidvault/goapi/domain"
	"github.com/bidvault/goapi/domain/auction"
	"github.com/bidvault/goapi/domain/custody"
)

const (
	maxAttempts  = 3
	backoffStart = 200 * time.Millisecond
	backoffLimit = 2 * time.Second
)

type client struct {
	cfg *ClientCfg
}

// NewClient builds a custody gateway client covering both the fungible and
// the non-fungible transfer interfaces of the gateway.
func NewClient(cfg *ClientCfg) (custody.Fungible, custody.NonFungible) {
	c := &client{cfg: cfg}
	return c, c
}

func (c *client) MoveIn(ctx bCtx.Ctx, from domain.Address, amount decimal.Decimal) error {
	return c.post(ctx, "/v1/funds/pull", &transferReq{
		From:   from.ToLowerStr(),
		To:     c.cfg.VaultAddress,
		Amount: amount.String(),
	})
}

func (c *client) MoveOut(ctx bCtx.Ctx, to domain.Address, amount decimal.Decimal) error {
	return c.post(ctx, "/v1/funds/payout", &transferReq{
		From:   c.cfg.VaultAddress,
		To:     to.ToLowerStr(),
		Amount: amount.String(),
	})
}

func (c *client) TransferOwnership(ctx bCtx.Ctx, asset auction.AssetRef, from, to domain.Address) error {
	return c.post(ctx, "/v1/assets/transfer", &transferReq{
		From:       from.ToLowerStr(),
		To:         to.ToLowerStr(),
		Collection: asset.Collection.ToLowerStr(),
		TokenId:    asset.TokenId.String(),
	})
}

func (c *client) post(ctx bCtx.Ctx, path string, body *transferReq) error {
	url := c.cfg.BaseUrl + path

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	// one key per logical transfer, stable across retries, so the gateway
	// can deduplicate a request that already landed before the retry
	key := uuid.NewString()

	// transient failures are retried, declines are final
	bo := backoff.NewExponential(backoffStart, backoffLimit)
	for attempt := 1; ; attempt++ {
		retryable, err := c.do(ctx, url, key, payload)
		if err == nil || !retryable || attempt >= maxAttempts {
			return err
		}
		ctx.WithFields(log.Fields{
			"url":     url,
			"attempt": attempt,
			"err":     err,
		}).Warn("retrying custody gateway request")
		if berr := bo.Backoff(ctx); berr != nil {
			return err
		}
	}
}

func (c *client) do(ctx bCtx.Ctx, url, key string, payload []byte) (bool, error) {
	withTimeout, cancel := bCtx.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(withTimeout, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Idempotency-Key", key)
	if c.cfg.Apikey != "" {
		req.Header.Set("X-API-KEY", c.cfg.Apikey)
	}

	resp, err := c.cfg.HttpClient.Do(req)
	if err != nil {
		ctx.WithFields(log.Fields{
			"url": url,
			"err": err,
		}).Error("custody gateway request failed")
		return true, xerrors.Errorf("custody gateway unreachable: %w", domain.ErrCustodyTransferFailed)
	}
	defer resp.Body.Close()

	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return false, err
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		ctx.WithFields(log.Fields{
			"url":        url,
			"statusCode": resp.StatusCode,
		}).Warn("custody gateway server error")
		return true, xerrors.Errorf("custody gateway error %d: %w", resp.StatusCode, domain.ErrCustodyTransferFailed)
	}

	if resp.StatusCode != http.StatusOK {
		ctx.WithFields(log.Fields{
			"url":        url,
			"statusCode": resp.StatusCode,
			"body":       string(data),
		}).Warn("custody gateway declined transfer")
		return false, declineError(data)
	}
	return false, nil
}

// declineError surfaces the gateway's reason while keeping the domain
// sentinel matchable with errors.Is
func declineError(data []byte) error {
	r := &transferResp{}
	if err := json.Unmarshal(data, r); err == nil && r.Reason != "" {
		return xerrors.Errorf("%s: %w", r.Reason, domain.ErrCustodyTransferFailed)
	}
	return fmt.Errorf("transfer declined: %w", domain.ErrCustodyTransferFailed)
}
