package magento

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"catalog-migration-service/internal/catalog"
	"catalog-migration-service/internal/clients"

	"golang.org/x/time/rate"
)

const (
	attributePageSize = 500
	defaultPageSize   = 100
	defaultMaxPages   = 50
	maxErrorBody      = 512
)

// Client is a Magento REST client implementing clients.SourceClient
type Client struct {
	httpClient  *http.Client
	baseURL     string
	token       string
	pageSize    int
	maxPages    int
	rateLimiter *rate.Limiter
	retrier     *clients.Retrier
}

var _ clients.SourceClient = (*Client)(nil)

// Option configures a Client
type Option func(*Client)

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithPaging sets the product page size and the maximum number of pages read per query
func WithPaging(pageSize, maxPages int) Option {
	return func(c *Client) {
		if pageSize > 0 {
			c.pageSize = pageSize
		}
		if maxPages > 0 {
			c.maxPages = maxPages
		}
	}
}

// WithRateLimit overrides the request rate (requests per second)
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) { c.rateLimiter = rate.NewLimiter(rate.Limit(perSecond), 1) }
}

// WithRetrier overrides the transport retrier
func WithRetrier(retrier *clients.Retrier) Option {
	return func(c *Client) { c.retrier = retrier }
}

// NewClient creates a client for the store at baseURL authenticated with an integration token
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		baseURL:     strings.TrimRight(baseURL, "/"),
		token:       token,
		pageSize:    defaultPageSize,
		maxPages:    defaultMaxPages,
		rateLimiter: rate.NewLimiter(rate.Limit(4), 2),
		retrier:     clients.NewRetrier(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type attributeListResponse struct {
	Items      []catalog.AttributeMetadata `json:"items"`
	TotalCount int                         `json:"total_count"`
}

type productListResponse struct {
	Items      []catalog.SourceProduct `json:"items"`
	TotalCount int                     `json:"total_count"`
}

// FetchAttributeSchema returns the product attribute listing in one large page
func (c *Client) FetchAttributeSchema(ctx context.Context) ([]catalog.AttributeMetadata, error) {
	params := url.Values{}
	params.Set("searchCriteria[pageSize]", strconv.Itoa(attributePageSize))
	params.Set("searchCriteria[currentPage]", "1")

	var response attributeListResponse
	if err := c.get(ctx, "fetchAttributeSchema", "/rest/V1/products/attributes", params, &response); err != nil {
		return nil, err
	}
	return response.Items, nil
}

// FetchSourceProducts returns products created inside the window, newest first
func (c *Client) FetchSourceProducts(ctx context.Context, window clients.DateWindow) ([]catalog.SourceProduct, error) {
	params := url.Values{}
	addFilter(params, 0, 0, "created_at", window.From.Format(clients.SourceFormat), "gteq")
	addFilter(params, 1, 0, "created_at", window.To.Format(clients.SourceFormat), "lteq")
	params.Set("searchCriteria[sortOrders][0][field]", "created_at")
	params.Set("searchCriteria[sortOrders][0][direction]", "DESC")

	return c.listProducts(ctx, "fetchSourceProducts", params)
}

// FetchConfigurableCandidates returns configurable products whose name is LIKE any fragment.
// Fragments share one filter group so they are OR'd; the type filter is a second group.
func (c *Client) FetchConfigurableCandidates(ctx context.Context, nameFragments []string) ([]catalog.SourceProduct, error) {
	if len(nameFragments) == 0 {
		return []catalog.SourceProduct{}, nil
	}

	params := url.Values{}
	for i, fragment := range nameFragments {
		addFilter(params, 0, i, "name", "%"+fragment+"%", "like")
	}
	addFilter(params, 1, 0, "type_id", catalog.TypeConfigurable, "eq")

	products, err := c.listProducts(ctx, "fetchConfigurableCandidates", params)
	if err != nil {
		return nil, err
	}

	configurables := make([]catalog.SourceProduct, 0, len(products))
	for _, p := range products {
		if p.IsConfigurable() {
			configurables = append(configurables, p)
		}
	}
	return configurables, nil
}

// listProducts pages through /V1/products until total_count is reached or maxPages is hit
func (c *Client) listProducts(ctx context.Context, operation string, params url.Values) ([]catalog.SourceProduct, error) {
	var all []catalog.SourceProduct
	params.Set("searchCriteria[pageSize]", strconv.Itoa(c.pageSize))

	for page := 1; page <= c.maxPages; page++ {
		params.Set("searchCriteria[currentPage]", strconv.Itoa(page))

		var response productListResponse
		if err := c.get(ctx, operation, "/rest/V1/products", params, &response); err != nil {
			return nil, err
		}
		all = append(all, response.Items...)

		if len(response.Items) < c.pageSize || len(all) >= response.TotalCount {
			break
		}
	}
	if all == nil {
		all = []catalog.SourceProduct{}
	}
	return all, nil
}

func addFilter(params url.Values, group, index int, field, value, condition string) {
	prefix := fmt.Sprintf("searchCriteria[filterGroups][%d][filters][%d]", group, index)
	params.Set(prefix+"[field]", field)
	params.Set(prefix+"[value]", value)
	params.Set(prefix+"[condition_type]", condition)
}

func (c *Client) get(ctx context.Context, operation, path string, params url.Values, out interface{}) error {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	resp, result := c.retrier.DoHTTP(ctx, func(ctx context.Context) (*http.Response, error) {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")
		return c.httpClient.Do(req)
	})
	if resp == nil {
		msg := "no response"
		if result.LastError != nil {
			msg = result.LastError.Error()
		}
		return &clients.TransportError{Operation: operation, Message: msg}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &clients.TransportError{Operation: operation, StatusCode: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return &clients.TransportError{Operation: operation, StatusCode: resp.StatusCode, Message: string(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", operation, err)
	}
	return nil
}
