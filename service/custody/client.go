package custody

import (
	"net/http"
	"time"
)

// ClientCfg configures the custody gateway client
type ClientCfg struct {
	HttpClient http.Client
	// BaseUrl of the custody gateway, e.g. https://custody.internal
	BaseUrl string
	Timeout time.Duration
	Apikey  string
	// VaultAddress is the account the gateway holds escrowed funds under
	VaultAddress string
}

type transferReq struct {
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Amount string `json:"amount,omitempty"`
	// asset transfer fields
	Collection string `json:"collection,omitempty"`
	TokenId    string `json:"tokenId,omitempty"`
}

type transferResp struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}
