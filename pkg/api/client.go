package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/matt-steen/chore-board/pkg/board"
	"github.com/matt-steen/chore-board/pkg/model"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultTimeout  = 10 * time.Second
	editTokenHeader = "X-Edit-Token"
	apiDateLayout   = "2006-01-02"
)

// Client talks to the remote board service over HTTP and returns domain values.
type Client struct {
	baseURL    string
	httpClient *http.Client
	authToken  string
	now        func() time.Time
	logger     zerolog.Logger
}

var _ board.Repository = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithAuthToken sends the token as a bearer Authorization header on every request.
func WithAuthToken(token string) Option {
	return func(c *Client) {
		c.authToken = token
	}
}

// WithClock sets the clock used to pick the item date ("today").
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client for the service rooted at baseURL, e.g. http://localhost:8108/api.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing board service url %q: %w", baseURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("error parsing board service url %q: unsupported scheme %q", baseURL, u.Scheme)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		now:        time.Now,
		logger:     log.Logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Client) today() string {
	return c.now().Format(apiDateLayout)
}

func boardPath(boardCode string, parts ...string) string {
	p := "/boards/" + url.PathEscape(boardCode)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}

	return p
}

// do sends a request and decodes a JSON response into out when out is not nil.
func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, body, out any) error {
	var reader io.Reader

	if body != nil {
		data, err := sonic.Marshal(body)
		if err != nil {
			return fmt.Errorf("error encoding %s %s request: %w", method, path, err)
		}

		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("error building %s %s request: %w", method, path, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	c.logger.Debug().Str("method", method).Str("path", path).Msg("board service request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error calling %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading %s %s response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, data)}

		c.logger.Debug().Err(apiErr).Str("method", method).Str("path", path).Msg("board service error")

		return fmt.Errorf("error calling %s %s: %w", method, path, apiErr)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := sonic.Unmarshal(data, out); err != nil {
		return fmt.Errorf("error decoding %s %s response: %w", method, path, err)
	}

	return nil
}

// errorMessage pulls a message out of an error body, falling back to the status code.
func errorMessage(status int, data []byte) string {
	var body wireErrorBody

	if err := sonic.Unmarshal(data, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}

		if body.Error != nil && body.Error.Message != "" {
			return body.Error.Message
		}
	}

	return fmt.Sprintf("HTTP %d", status)
}

func editHeaders(editToken string) map[string]string {
	if editToken == "" {
		return nil
	}

	return map[string]string{editTokenHeader: editToken}
}

// FetchBoard loads the board and today's items in parallel.
func (c *Client) FetchBoard(ctx context.Context, boardCode, editToken string) (*model.Board, error) {
	var (
		wg       sync.WaitGroup
		wb       wireBoard
		wi       wireItems
		boardErr error
		itemsErr error
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	headers := editHeaders(editToken)
	itemsPath := boardPath(boardCode, "chores") + "?date=" + url.QueryEscape(c.today())

	wg.Add(2)

	go func() {
		defer wg.Done()

		if boardErr = c.do(ctx, http.MethodGet, boardPath(boardCode), headers, nil, &wb); boardErr != nil {
			cancel()
		}
	}()

	go func() {
		defer wg.Done()

		if itemsErr = c.do(ctx, http.MethodGet, itemsPath, headers, nil, &wi); itemsErr != nil {
			cancel()
		}
	}()

	wg.Wait()

	// report the board error first; a cancelled items call is a consequence of it
	if boardErr != nil {
		return nil, fmt.Errorf("error fetching board %s: %w", boardCode, boardErr)
	}

	if itemsErr != nil {
		return nil, fmt.Errorf("error fetching items of board %s: %w", boardCode, itemsErr)
	}

	return composeBoard(&wb, wi, editToken != ""), nil
}

// CreateItem creates an item dated today.
func (c *Client) CreateItem(ctx context.Context, boardCode, title, assigneeID string) (*model.ChoreItem, error) {
	var wi wireItem

	body := createItemRequest{Date: c.today(), Title: title, AssigneeID: wireRef(assigneeID)}
	if err := c.do(ctx, http.MethodPost, boardPath(boardCode, "chores"), nil, body, &wi); err != nil {
		return nil, fmt.Errorf("error creating item %q: %w", title, err)
	}

	return toItem(&wi), nil
}

// UpdateItem sends the non-nil fields of update. An empty AssigneeID unassigns the item.
func (c *Client) UpdateItem(ctx context.Context, boardCode, itemID string, update model.ItemUpdate) (*model.ChoreItem, error) {
	var wi wireItem

	body := map[string]any{}
	if update.Title != nil {
		body["title"] = *update.Title
	}

	if update.AssigneeID != nil {
		body["assigneeId"] = wireRef(*update.AssigneeID)
	}

	if err := c.do(ctx, http.MethodPut, boardPath(boardCode, "chores", itemID), nil, body, &wi); err != nil {
		return nil, fmt.Errorf("error updating item %s: %w", itemID, err)
	}

	return toItem(&wi), nil
}

// ToggleCompletion flips the completion state of an item.
func (c *Client) ToggleCompletion(ctx context.Context, boardCode, itemID string) (*model.ChoreItem, error) {
	var wi wireItem

	if err := c.do(ctx, http.MethodPatch, boardPath(boardCode, "chores", itemID, "complete"), nil, nil, &wi); err != nil {
		return nil, fmt.Errorf("error toggling item %s: %w", itemID, err)
	}

	return toItem(&wi), nil
}

// DeleteItem deletes an item.
func (c *Client) DeleteItem(ctx context.Context, boardCode, itemID string) error {
	if err := c.do(ctx, http.MethodDelete, boardPath(boardCode, "chores", itemID), nil, nil, nil); err != nil {
		return fmt.Errorf("error deleting item %s: %w", itemID, err)
	}

	return nil
}

// UpdateItemOrder sets the sort order of a single item.
func (c *Client) UpdateItemOrder(ctx context.Context, boardCode, itemID string, sortOrder int) error {
	path := boardPath(boardCode, "chores", itemID, "order")
	if err := c.do(ctx, http.MethodPatch, path, nil, orderRequest{SortOrder: sortOrder}, nil); err != nil {
		return fmt.Errorf("error updating order of item %s: %w", itemID, err)
	}

	return nil
}

// BulkUpdateAssignees sets the assignee of several items in one call.
func (c *Client) BulkUpdateAssignees(ctx context.Context, boardCode string, changes []model.AssigneeChange) error {
	body := bulkAssigneesRequest{Items: make([]assigneeEntry, 0, len(changes))}
	for _, ch := range changes {
		body.Items = append(body.Items, assigneeEntry{ID: wireRef(ch.ItemID), AssigneeID: wireRef(ch.AssigneeID)})
	}

	if err := c.do(ctx, http.MethodPatch, boardPath(boardCode, "chores", "assignees"), nil, body, nil); err != nil {
		return fmt.Errorf("error updating %d assignees: %w", len(changes), err)
	}

	return nil
}
