package audit

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	httpclient "github.com/ghostagent/ghost-oracle/internal/client/http"
	"github.com/pkg/errors"
)

type riskRequest struct {
	IntentHash string                 `json:"intentHash"`
	Metadata   map[string]interface{} `json:"metadata"`
}

type riskResponse struct {
	RiskScore int `json:"riskScore"`
}

// RiskClient scores intents against the external risk service.
type RiskClient struct {
	client *httpclient.HTTPClient
	url    string
	token  string
}

// NewRiskClient creates a bearer-token-authenticated client for the risk
// service endpoint.
func NewRiskClient(url, token string, timeout time.Duration) *RiskClient {
	return &RiskClient{
		client: httpclient.NewHTTPClient(httpclient.WithTimeout(timeout)),
		url:    url,
		token:  token,
	}
}

// Score posts the intent identifier and metadata to the risk service and
// returns the numeric risk score.
func (c *RiskClient) Score(ctx context.Context, intentHash common.Hash, metadata map[string]interface{}) (int, error) {
	resp, err := c.client.Post(ctx, c.url, riskRequest{
		IntentHash: intentHash.Hex(),
		Metadata:   metadata,
	}, httpclient.WithBearerToken(c.token))
	if err != nil {
		return 0, errors.Wrap(err, "calling risk service")
	}

	var out riskResponse
	if err := c.client.ProcessJSONResponse(resp, &out); err != nil {
		return 0, errors.Wrap(err, "decoding risk service response")
	}
	return out.RiskScore, nil
}
