package ledger

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"certportal/apperror"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
)

var txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// Anchor is the issuance event recorded on chain.
type Anchor struct {
	CertificateID    string `json:"certificateId"`
	RecipientName    string `json:"recipientName"`
	RecipientAddress string `json:"recipientAddress,omitempty"`
	Issuer           string `json:"issuer"`
	OrganizationName string `json:"organizationName"`
	ContentHash      string `json:"contentHash"`
}

// GatewayClient submits issuance events to the contract gateway, which
// signs and broadcasts the issueCertificate transaction.
type GatewayClient struct {
	client *resty.Client
}

func NewGatewayClient(baseURL, apiKey string, timeout time.Duration) *GatewayClient {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &GatewayClient{client: client}
}

type anchorResponse struct {
	TxHash string `json:"txHash"`
}

// Anchor returns the transaction hash of the recorded event.
func (g *GatewayClient) Anchor(ctx context.Context, a Anchor) (string, error) {
	if a.RecipientAddress != "" {
		if !common.IsHexAddress(a.RecipientAddress) {
			return "", apperror.Field("recipientAddress", "Invalid wallet address!")
		}
		a.RecipientAddress = common.HexToAddress(a.RecipientAddress).Hex()
	}

	var out anchorResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(a).
		SetResult(&out).
		Post("/certificates")
	if err != nil {
		return "", apperror.Dependency("Failed to record certificate on ledger!", err)
	}
	if resp.IsError() {
		return "", apperror.Dependency("Failed to record certificate on ledger!", fmt.Errorf("ledger gateway: status %d: %s", resp.StatusCode(), resp.String()))
	}
	if !txHashPattern.MatchString(out.TxHash) {
		return "", apperror.Dependency("Failed to record certificate on ledger!", fmt.Errorf("ledger gateway: malformed tx hash %q", out.TxHash))
	}
	return common.HexToHash(out.TxHash).Hex(), nil
}
