// Package trello implements the board.Client interface against the Trello
// REST API. Authentication is a key/token pair sent as query parameters on
// every request.
package trello

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/meetflow/meetflow-api/internal/board"
	"github.com/meetflow/meetflow-api/internal/config"
)

// defaultBaseURL is the Trello REST API root.
const defaultBaseURL = "https://api.trello.com/1"

// ErrRequestFailed is returned when the Trello API responds with a
// non-success status code.
var ErrRequestFailed = errors.New("trello API request failed")

// Client is an HTTP client for the Trello REST API.
type Client struct {
	baseURL    string
	apiKey     string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Ensure Client implements board.Client interface
var _ board.Client = (*Client)(nil)

// NewClient creates a Trello API client from the given configuration.
func NewClient(cfg config.TrelloConfig, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" || cfg.Token == "" {
		return nil, fmt.Errorf("%w: API key and token are required", board.ErrInvalidConfig)
	}

	if logger == nil {
		logger = slog.Default()
	}

	timeout := time.Duration(cfg.RequestTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    defaultBaseURL,
		apiKey:     cfg.APIKey,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "trello_client")),
	}, nil
}

// trelloCard is the subset of the Trello card resource the pipeline needs.
type trelloCard struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// trelloLabel is the Trello label resource.
type trelloLabel struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// createCardPayload is the request body for POST /cards.
// New cards go to the top of their list so the freshest meeting is the
// first thing on the board.
type createCardPayload struct {
	Name   string `json:"name"`
	Desc   string `json:"desc"`
	IDList string `json:"idList"`
	Pos    string `json:"pos"`
	Due    string `json:"due"`
}

// CreateCard implements board.Client.CreateCard
func (c *Client) CreateCard(ctx context.Context, req board.CardRequest) (*board.CardRef, error) {
	payload := createCardPayload{
		Name:   req.Name,
		Desc:   req.Description,
		IDList: req.ListID,
		Pos:    "top",
		Due:    req.Due.UTC().Format(time.RFC3339),
	}

	var card trelloCard
	if err := c.post(ctx, "/cards", payload, &card); err != nil {
		return nil, err
	}

	c.logger.Debug("created trello card",
		slog.String("card_id", card.ID),
		slog.String("list_id", req.ListID))
	return &board.CardRef{ID: card.ID, URL: card.URL}, nil
}

// ListLabels implements board.Client.ListLabels
func (c *Client) ListLabels(ctx context.Context, boardID string) ([]board.Label, error) {
	var labels []trelloLabel
	if err := c.get(ctx, "/boards/"+url.PathEscape(boardID)+"/labels", &labels); err != nil {
		return nil, err
	}

	result := make([]board.Label, 0, len(labels))
	for _, l := range labels {
		result = append(result, board.Label{ID: l.ID, Name: l.Name, Color: l.Color})
	}
	return result, nil
}

// createLabelPayload is the request body for POST /labels.
type createLabelPayload struct {
	Name    string `json:"name"`
	Color   string `json:"color"`
	IDBoard string `json:"idBoard"`
}

// CreateLabel implements board.Client.CreateLabel
func (c *Client) CreateLabel(ctx context.Context, boardID, name, color string) (*board.Label, error) {
	var label trelloLabel
	payload := createLabelPayload{Name: name, Color: color, IDBoard: boardID}
	if err := c.post(ctx, "/labels", payload, &label); err != nil {
		return nil, err
	}

	return &board.Label{ID: label.ID, Name: label.Name, Color: label.Color}, nil
}

// attachLabelPayload is the request body for POST /cards/{id}/idLabels.
type attachLabelPayload struct {
	Value string `json:"value"`
}

// AttachLabel implements board.Client.AttachLabel
func (c *Client) AttachLabel(ctx context.Context, cardID, labelID string) error {
	return c.post(ctx, "/cards/"+url.PathEscape(cardID)+"/idLabels", attachLabelPayload{Value: labelID}, nil)
}

// CheckConnection implements board.Client.CheckConnection by fetching the
// board resource itself: it exercises the credentials, the board id and the
// network path in one request.
func (c *Client) CheckConnection(ctx context.Context, boardID string) error {
	var brd struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := c.get(ctx, "/boards/"+url.PathEscape(boardID), &brd); err != nil {
		return err
	}

	c.logger.Debug("trello connection verified", slog.String("board_name", brd.Name))
	return nil
}

// post sends a JSON POST request to the given API path.
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request for %s: %w", path, err)
	}

	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), out)
}

// get sends a GET request to the given API path.
func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// do executes one API request, appending the auth parameters and decoding
// the response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	reqURL, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("building URL for %s: %w", path, err)
	}

	query := reqURL.Query()
	query.Set("key", c.apiKey)
	query.Set("token", c.token)
	reqURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrRequestFailed, method, path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("failed to close response body", slog.String("error", err.Error()))
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		// Trello error bodies are short plain-text or JSON messages; keep a
		// bounded slice of it for diagnostics.
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("trello API returned error status",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode))
		return fmt.Errorf("%w: %s %s: status %d: %s", ErrRequestFailed, method, path, resp.StatusCode, detail)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response for %s %s: %v", ErrRequestFailed, method, path, err)
	}

	return nil
}
