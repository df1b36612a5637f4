// Package pinning uploads content to IPFS through a pinning service.
package pinning

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sigweihq/beatmarket/pkg/utils"
)

// DefaultPinataURL is Pinata's API root
const DefaultPinataURL = "https://api.pinata.cloud"

// Pinner stores content and returns its content identifier
type Pinner interface {
	Pin(ctx context.Context, name string, content any) (string, error)
}

// Client pins JSON documents with Pinata
type Client struct {
	baseURL    string
	jwt        string
	httpClient *http.Client
}

// NewClient creates a Pinata client. baseURL may be empty for the public API.
func NewClient(baseURL, jwt string) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultPinataURL
	}
	if err := utils.ValidateServiceURL(baseURL); err != nil {
		return nil, err
	}
	if jwt == "" {
		return nil, errors.New("pinata JWT is required")
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		jwt:        jwt,
		httpClient: utils.CreateHTTPClientWithTimeouts(),
	}, nil
}

type pinRequest struct {
	Content  any         `json:"pinataContent"`
	Metadata pinMetadata `json:"pinataMetadata"`
}

type pinMetadata struct {
	Name string `json:"name"`
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// Pin uploads content under name and returns its IPFS hash
func (c *Client) Pin(ctx context.Context, name string, content any) (string, error) {
	resp, err := utils.MakeJSONRequest[pinResponse](
		ctx,
		c.httpClient,
		http.MethodPost,
		c.baseURL+"/pinning/pinJSONToIPFS",
		pinRequest{Content: content, Metadata: pinMetadata{Name: name}},
		map[string]string{"Authorization": "Bearer " + c.jwt},
		"pinJSONToIPFS",
	)
	if err != nil {
		return "", err
	}
	if resp.IpfsHash == "" {
		return "", fmt.Errorf("pinJSONToIPFS returned no hash")
	}
	return resp.IpfsHash, nil
}
