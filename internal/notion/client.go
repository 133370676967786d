package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/GengGeng026/habitboard/internal/model"
)

// Client talks to the Notion API: database queries for pagination and
// single-page lookups for category resolution.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	databaseID string
	version    string

	titleProperty   string
	parentProperty  string
	measureProperty string
}

// NewClient creates a client from the given Notion configuration
func NewClient(cfg model.NotionConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient:      &http.Client{Timeout: timeout},
		baseURL:         strings.TrimSuffix(cfg.BaseURL, "/"),
		token:           cfg.Token,
		databaseID:      cfg.DatabaseID,
		version:         cfg.Version,
		titleProperty:   cfg.TitleProperty,
		parentProperty:  cfg.ParentProperty,
		measureProperty: cfg.MeasureProperty,
	}
}

// QueryResponse is one page of database query results
type QueryResponse struct {
	Records    []model.Record
	HasMore    bool
	NextCursor string
}

type queryRequest struct {
	PageSize    int          `json:"page_size"`
	StartCursor string       `json:"start_cursor,omitempty"`
	Filter      *queryFilter `json:"filter,omitempty"`
	Sorts       []querySort  `json:"sorts,omitempty"`
}

type queryFilter struct {
	Property string       `json:"property"`
	Number   numberFilter `json:"number"`
}

type numberFilter struct {
	GreaterThan float64 `json:"greater_than"`
}

type querySort struct {
	Property  string `json:"property"`
	Direction string `json:"direction"`
}

// Wire representations of the subset of page properties we read
type wirePage struct {
	ID         string                  `json:"id"`
	Properties map[string]wireProperty `json:"properties"`
}

type wireProperty struct {
	Title    []wireRichText `json:"title,omitempty"`
	Relation []wireRelation `json:"relation,omitempty"`
	Formula  *wireFormula   `json:"formula,omitempty"`
}

type wireRichText struct {
	PlainText string `json:"plain_text"`
}

type wireRelation struct {
	ID string `json:"id"`
}

type wireFormula struct {
	Number *float64 `json:"number"`
}

type wireQueryResponse struct {
	Results    []wirePage `json:"results"`
	HasMore    bool       `json:"has_more"`
	NextCursor string     `json:"next_cursor"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// QueryDatabase fetches one page of the habits database, filtered to
// pages with a positive measure and sorted by it descending.
func (c *Client) QueryDatabase(ctx context.Context, pageSize int, startCursor string) (*QueryResponse, error) {
	reqBody := queryRequest{
		PageSize:    pageSize,
		StartCursor: startCursor,
		Filter: &queryFilter{
			Property: c.measureProperty,
			Number:   numberFilter{GreaterThan: 0},
		},
		Sorts: []querySort{{Property: c.measureProperty, Direction: "descending"}},
	}

	url := fmt.Sprintf("%s/v1/databases/%s/query", c.baseURL, c.databaseID)
	var wireResp wireQueryResponse
	if err := c.doJSON(ctx, http.MethodPost, url, reqBody, &wireResp); err != nil {
		return nil, err
	}

	records := make([]model.Record, 0, len(wireResp.Results))
	for _, page := range wireResp.Results {
		records = append(records, c.toRecord(page))
	}

	return &QueryResponse{
		Records:    records,
		HasMore:    wireResp.HasMore,
		NextCursor: wireResp.NextCursor,
	}, nil
}

// GetPage fetches a single page by id. Used to resolve a category
// reference to its display name.
func (c *Client) GetPage(ctx context.Context, pageID string) (model.Record, error) {
	url := fmt.Sprintf("%s/v1/pages/%s", c.baseURL, pageID)
	var page wirePage
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &page); err != nil {
		return model.Record{}, err
	}
	return c.toRecord(page), nil
}

// CheckConnectivity verifies the API host is reachable. Failures are
// informational; callers log them and proceed.
func (c *Client) CheckConnectivity(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("reach %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var wireErr wireError
		if json.Unmarshal(data, &wireErr) == nil {
			apiErr.Code = wireErr.Code
			apiErr.Message = wireErr.Message
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// toRecord extracts the fields we care about from a page's properties
func (c *Client) toRecord(page wirePage) model.Record {
	rec := model.Record{ID: page.ID}

	if title, ok := page.Properties[c.titleProperty]; ok && len(title.Title) > 0 {
		rec.Title = title.Title[0].PlainText
	}
	if parent, ok := page.Properties[c.parentProperty]; ok && len(parent.Relation) > 0 {
		rec.ParentID = parent.Relation[0].ID
	}
	if measure, ok := page.Properties[c.measureProperty]; ok && measure.Formula != nil && measure.Formula.Number != nil {
		rec.Measure = *measure.Formula.Number
	}
	return rec
}
