package custody

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	bCtx "github.com/bidvault/goapi/base/ctx"
	"github.com/bidvault/goapi/domain"
	"github.com/bidvault/goapi/domain/auction"
	"github.com/bidvault/goapi/domain/custody"
)

const vault = "0x0e5e5e05e405ca500b16e8761dbb319eb9325175"

func newTestClient(url string) (custody.Fungible, custody.NonFungible) {
	return NewClient(&ClientCfg{
		HttpClient:   http.Client{},
		BaseUrl:      url,
		Timeout:      5 * time.Second,
		Apikey:       "api_key",
		VaultAddress: vault,
	})
}

func TestMoveIn(t *testing.T) {
	req := require.New(t)

	var got transferReq
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		req.Equal("/v1/funds/pull", r.URL.Path)
		req.Equal("api_key", r.Header.Get("X-API-KEY"))
		req.NoError(json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	fungible, _ := newTestClient(srv.URL)
	err := fungible.MoveIn(bCtx.Background(), "0xDF8650B0CA1260F7A2F4FDFF9082AEDE554F65AD", decimal.NewFromInt(15))
	req.NoError(err)
	req.Equal(1, calls)
	req.Equal("0xdf8650b0ca1260f7a2f4fdff9082aede554f65ad", got.From)
	req.Equal(vault, got.To)
	req.Equal("15", got.Amount)
}

func TestDeclineIsNotRetried(t *testing.T) {
	req := require.New(t)

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(transferResp{Reason: "insufficient funds"})
	}))
	defer srv.Close()

	fungible, _ := newTestClient(srv.URL)
	err := fungible.MoveIn(bCtx.Background(), "0xdf8650b0ca1260f7a2f4fdff9082aede554f65ad", decimal.NewFromInt(15))
	req.Error(err)
	req.True(errors.Is(err, domain.ErrCustodyTransferFailed))
	req.Contains(err.Error(), "insufficient funds")
	req.Equal(1, calls)
}

func TestServerErrorIsRetried(t *testing.T) {
	req := require.New(t)

	calls := 0
	keys := []string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		keys = append(keys, r.Header.Get("X-Idempotency-Key"))
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, nonFungible := newTestClient(srv.URL)
	err := nonFungible.TransferOwnership(bCtx.Background(), auction.AssetRef{
		Collection: "0x18c7766a10df15df8c971f6e8c1d2bba7c7a410b",
		TokenId:    "4858",
	}, "0xdf8650b0ca1260f7a2f4fdff9082aede554f65ad", vault)
	req.NoError(err)
	req.Equal(2, calls)

	// the retry carries the same idempotency key so the gateway can dedupe
	// a transfer that already landed
	req.NotEmpty(keys[0])
	req.Equal(keys[0], keys[1])
}

func TestUnreachableGateway(t *testing.T) {
	req := require.New(t)

	fungible, _ := newTestClient("http://127.0.0.1:1")
	err := fungible.MoveIn(bCtx.Background(), "0xdf8650b0ca1260f7a2f4fdff9082aede554f65ad", decimal.NewFromInt(15))
	req.Error(err)
	req.True(errors.Is(err, domain.ErrCustodyTransferFailed))
}
