package ledger

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"certportal/apperror"

	"github.com/go-resty/resty/v2"
)

// IPFSClient talks to the HTTP RPC API of an IPFS node (kubo).
type IPFSClient struct {
	client  *resty.Client
	gateway string
}

func NewIPFSClient(apiURL, gatewayURL string, timeout time.Duration) *IPFSClient {
	client := resty.New().
		SetBaseURL(strings.TrimRight(apiURL, "/")).
		SetTimeout(timeout)
	return &IPFSClient{client: client, gateway: strings.TrimRight(gatewayURL, "/") + "/"}
}

type addResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// Add pins content and returns its CID.
func (c *IPFSClient) Add(ctx context.Context, filename string, content io.Reader) (string, error) {
	var out addResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("pin", "true").
		SetFileReader("file", filename, content).
		SetResult(&out).
		Post("/api/v0/add")
	if err != nil {
		return "", apperror.Dependency("Failed to upload document to IPFS!", err)
	}
	if resp.IsError() {
		return "", apperror.Dependency("Failed to upload document to IPFS!", fmt.Errorf("ipfs add: status %d: %s", resp.StatusCode(), resp.String()))
	}
	if out.Hash == "" {
		return "", apperror.Dependency("Failed to upload document to IPFS!", fmt.Errorf("ipfs add: empty hash"))
	}
	return out.Hash, nil
}

// Cat streams the content stored under cid. The caller closes the reader.
func (c *IPFSClient) Cat(ctx context.Context, cid string) (io.ReadCloser, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("arg", cid).
		SetDoNotParseResponse(true).
		Post("/api/v0/cat")
	if err != nil {
		return nil, apperror.Dependency("Failed to fetch document from IPFS!", err)
	}
	body := resp.RawBody()
	if resp.StatusCode() != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(body, 512))
		body.Close()
		return nil, apperror.Dependency("Failed to fetch document from IPFS!", fmt.Errorf("ipfs cat: status %d: %s", resp.StatusCode(), msg))
	}
	return body, nil
}

// GatewayURL is the public link for a CID.
func (c *IPFSClient) GatewayURL(cid string) string {
	return c.gateway + cid
}
