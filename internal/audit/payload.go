package audit

import (
	"context"
	"encoding/json"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	httpclient "github.com/ghostagent/ghost-oracle/internal/client/http"
	"github.com/pkg/errors"
)

// IntentPayload is the off-chain data describing a declared intent. It is
// fetched fresh per audit and never cached across intents.
type IntentPayload struct {
	Timestamp     int64
	AmountWei     *big.Int
	OriginCountry string
	Metadata      map[string]interface{}
	IntentHash    string
}

// intentPayloadWire is the JSON shape served by the intent store. AmountWei
// is a json.Number so arbitrarily large wei values survive decoding.
type intentPayloadWire struct {
	Timestamp     int64                  `json:"timestamp"`
	AmountWei     json.Number            `json:"amountWei"`
	OriginCountry string                 `json:"originCountry"`
	Metadata      map[string]interface{} `json:"metadata"`
	IntentHash    string                 `json:"intentHash"`
}

// PayloadClient fetches intent payloads from the off-chain store.
type PayloadClient struct {
	client *httpclient.HTTPClient
}

// NewPayloadClient creates a client for the store at baseURL.
func NewPayloadClient(baseURL string, timeout time.Duration) *PayloadClient {
	return &PayloadClient{
		client: httpclient.NewHTTPClient(
			httpclient.WithBaseURL(baseURL),
			httpclient.WithTimeout(timeout),
		),
	}
}

// Fetch retrieves the payload for the given intent identifier. Transport
// errors, non-2xx responses and malformed bodies are all reported as errors;
// the caller treats them as audit errors, not failing checks.
func (c *PayloadClient) Fetch(ctx context.Context, intentHash common.Hash) (*IntentPayload, error) {
	resp, err := c.client.Get(ctx, "/intents/"+intentHash.Hex())
	if err != nil {
		return nil, errors.Wrap(err, "fetching intent payload")
	}

	var wire intentPayloadWire
	if err := c.client.ProcessJSONResponse(resp, &wire); err != nil {
		return nil, errors.Wrap(err, "decoding intent payload")
	}

	// A missing amount defaults to zero.
	amount := new(big.Int)
	if wire.AmountWei != "" {
		parsed, ok := new(big.Int).SetString(wire.AmountWei.String(), 10)
		if !ok {
			return nil, errors.Errorf("malformed amountWei %q in intent payload", wire.AmountWei)
		}
		amount = parsed
	}

	return &IntentPayload{
		Timestamp:     wire.Timestamp,
		AmountWei:     amount,
		OriginCountry: wire.OriginCountry,
		Metadata:      wire.Metadata,
		IntentHash:    wire.IntentHash,
	}, nil
}
