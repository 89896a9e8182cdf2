// Package directory holds thin HTTP clients for the marketplace services that
// own properties and escrow transactions. The chat service only reads from
// them to resolve room metadata and participants.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Property is the subset of a property listing the chat service cares about.
type Property struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	OwnerID string `json:"owner_id"`
	Price   int64  `json:"price"`
	City    string `json:"city"`
	Status  string `json:"status"`
}

// Escrow is the subset of an escrow transaction the chat service cares about.
type Escrow struct {
	ID         string `json:"id"`
	PropertyID string `json:"property_id"`
	BuyerID    string `json:"buyer_id"`
	SellerID   string `json:"seller_id"`
	Status     string `json:"status"`
}

// PropertyClient reads property listings from the property service.
type PropertyClient struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// NewPropertyClient constructs a property service client.
func NewPropertyClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *PropertyClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PropertyClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "property_directory").Logger(),
	}
}

// GetProperty fetches a single property by id.
func (c *PropertyClient) GetProperty(ctx context.Context, propertyID string) (Property, error) {
	var property Property
	path := fmt.Sprintf("/api/v1/properties/%s", url.PathEscape(propertyID))
	if err := c.getJSON(ctx, path, &property); err != nil {
		return Property{}, err
	}
	return property, nil
}

func (c *PropertyClient) getJSON(ctx context.Context, path string, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("property service url not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("property service request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("property service returned status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// EscrowClient reads escrow transactions from the escrow service.
type EscrowClient struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// NewEscrowClient constructs an escrow service client.
func NewEscrowClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *EscrowClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &EscrowClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "escrow_directory").Logger(),
	}
}

// GetEscrow fetches a single escrow transaction by id.
func (c *EscrowClient) GetEscrow(ctx context.Context, escrowID string) (Escrow, error) {
	if c.baseURL == "" {
		return Escrow{}, fmt.Errorf("escrow service url not configured")
	}

	path := fmt.Sprintf("/api/v1/escrow/%s", url.PathEscape(escrowID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return Escrow{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Escrow{}, fmt.Errorf("escrow service request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return Escrow{}, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return Escrow{}, fmt.Errorf("escrow service returned status %d", resp.StatusCode)
	}

	var escrow Escrow
	if err := json.NewDecoder(resp.Body).Decode(&escrow); err != nil {
		return Escrow{}, err
	}
	return escrow, nil
}
