package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Transition names understood by the hosted marketplace state machine.
const (
	TransitionInquire  = "transition/inquire"
	TransitionAccept   = "transition/accept"
	TransitionDecline  = "transition/decline"
	TransitionComplete = "transition/mark-completed"
)

// APIError carries the marketplace's HTTP status so callers can tell an
// authorization failure from a plain dependency failure.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("marketplace API error (status %d): %s", e.StatusCode, e.Message)
}

// IsAuthError reports whether err is a marketplace 401/403.
func IsAuthError(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden)
}

type UserView struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	DisplayName string         `json:"display_name"`
	PublicData  map[string]any `json:"public_data"`
}

type TransactionView struct {
	ID             string    `json:"id"`
	LastTransition string    `json:"last_transition"`
	ListingID      string    `json:"listing_id"`
	ListingTitle   string    `json:"listing_title"`
	Customer       *UserView `json:"customer"`
	Provider       *UserView `json:"provider"`
}

type ListingView struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	AuthorID   string         `json:"author_id"`
	PublicData map[string]any `json:"public_data"`
}

// Client is the surface of the hosted marketplace the reconciler and the
// dispatcher need. The HTTP implementation below is the only production one;
// tests substitute fakes.
type Client interface {
	InitiateTransaction(ctx context.Context, transition, listingID string) (string, error)
	PostMessage(ctx context.Context, transactionID, content string) error
	TransitionTransaction(ctx context.Context, transactionID, transition string) error
	ShowTransaction(ctx context.Context, transactionID string, include ...string) (*TransactionView, error)
	ShowUser(ctx context.Context, userID string) (*UserView, error)
	ShowListing(ctx context.Context, listingID string) (*ListingView, error)
	VerifyListingOwnership(ctx context.Context, listingID, callerID string) (bool, error)
}

type ClientConfig struct {
	BaseURL string
	APIKey  string
}

func NewClientConfig() *ClientConfig {
	baseURL := os.Getenv("MARKETPLACE_API_URL")
	if baseURL == "" {
		log.Fatal("MARKETPLACE_API_URL not set")
	}
	return &ClientConfig{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  os.Getenv("MARKETPLACE_API_KEY"),
	}
}

type HTTPClient struct {
	config     *ClientConfig
	httpClient *http.Client
}

func NewHTTPClient(config *ClientConfig) Client {
	return &HTTPClient{
		config:     config,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type initiateRequest struct {
	Transition string `json:"transition"`
	ListingID  string `json:"listing_id"`
}

type initiateResponse struct {
	TransactionID string `json:"transaction_id"`
}

type messageRequest struct {
	Content string `json:"content"`
}

type transitionRequest struct {
	Transition string `json:"transition"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *HTTPClient) InitiateTransaction(ctx context.Context, transition, listingID string) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/v1/transactions/initiate", initiateRequest{
		Transition: transition,
		ListingID:  listingID,
	})
	if err != nil {
		return "", err
	}
	var parsed initiateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode initiate response: %w", err)
	}
	return parsed.TransactionID, nil
}

func (c *HTTPClient) PostMessage(ctx context.Context, transactionID, content string) error {
	_, err := c.do(ctx, http.MethodPost, "/v1/transactions/"+url.PathEscape(transactionID)+"/messages", messageRequest{Content: content})
	return err
}

func (c *HTTPClient) TransitionTransaction(ctx context.Context, transactionID, transition string) error {
	_, err := c.do(ctx, http.MethodPost, "/v1/transactions/"+url.PathEscape(transactionID)+"/transition", transitionRequest{Transition: transition})
	return err
}

func (c *HTTPClient) ShowTransaction(ctx context.Context, transactionID string, include ...string) (*TransactionView, error) {
	path := "/v1/transactions/" + url.PathEscape(transactionID)
	if len(include) > 0 {
		path += "?include=" + url.QueryEscape(strings.Join(include, ","))
	}
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var parsed TransactionView
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode transaction response: %w", err)
	}
	return &parsed, nil
}

func (c *HTTPClient) ShowUser(ctx context.Context, userID string) (*UserView, error) {
	body, err := c.do(ctx, http.MethodGet, "/v1/users/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, err
	}
	var parsed UserView
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode user response: %w", err)
	}
	return &parsed, nil
}

func (c *HTTPClient) ShowListing(ctx context.Context, listingID string) (*ListingView, error) {
	body, err := c.do(ctx, http.MethodGet, "/v1/listings/"+url.PathEscape(listingID), nil)
	if err != nil {
		return nil, err
	}
	var parsed ListingView
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode listing response: %w", err)
	}
	return &parsed, nil
}

func (c *HTTPClient) VerifyListingOwnership(ctx context.Context, listingID, callerID string) (bool, error) {
	listing, err := c.ShowListing(ctx, listingID)
	if err != nil {
		return false, err
	}
	return listing.AuthorID == callerID, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("marketplace request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read marketplace response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var parsed errorResponse
		json.Unmarshal(body, &parsed)
		message := parsed.Error
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: message}
	}
	return body, nil
}
