// Package notary calls the external identity-notarization service that
// anchors a tourist's registration on chain and returns the resulting
// digital-identity hash. The service is an external collaborator; intake
// never blocks on it.
package notary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client posts registration details to the notarization endpoint. A nil
// Client is safe to use -- NotarizeIdentity returns an empty hash.
type Client struct {
	endpoint string
	http     *http.Client
}

// New returns a Client for endpoint, or nil when endpoint is empty.
func New(endpoint string) *Client {
	if endpoint == "" {
		return nil
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

type notarizeRequest struct {
	TouristID      string `json:"touristId"`
	Name           string `json:"name"`
	DocumentNumber string `json:"documentNumber"`
	Nationality    string `json:"nationality"`
}

type notarizeResponse struct {
	Hash string `json:"hash"`
}

// NotarizeIdentity submits the identity fields and returns the hash the
// chain produced for them.
func (c *Client) NotarizeIdentity(ctx context.Context, touristID, name, documentNumber, nationality string) (string, error) {
	if c == nil {
		return "", nil
	}
	data, err := json.Marshal(notarizeRequest{
		TouristID:      touristID,
		Name:           name,
		DocumentNumber: documentNumber,
		Nationality:    nationality,
	})
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("notary returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var nr notarizeResponse
	if err := json.Unmarshal(body, &nr); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	return nr.Hash, nil
}
