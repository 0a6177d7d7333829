package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"catalog-migration-service/internal/catalog"
	"catalog-migration-service/internal/clients"

	"golang.org/x/time/rate"
)

const (
	// titleSearchLimit caps destination products returned by a title lookup
	titleSearchLimit = 10
	// maxErrorBody limits how much of an error response is kept in a TransportError
	maxErrorBody = 512
)

// Client is a Shopify Admin GraphQL client implementing clients.DestinationClient
type Client struct {
	httpClient  *http.Client
	endpoint    string
	accessToken string
	rateLimiter *rate.Limiter
	retrier     *clients.Retrier
}

var _ clients.DestinationClient = (*Client)(nil)

// Option configures a Client
type Option func(*Client)

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithRateLimit overrides the request rate (requests per second)
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) { c.rateLimiter = rate.NewLimiter(rate.Limit(perSecond), 1) }
}

// WithRetrier overrides the transport retrier
func WithRetrier(retrier *clients.Retrier) Option {
	return func(c *Client) { c.retrier = retrier }
}

// NewClient creates a client for the Admin GraphQL endpoint
// (https://{store}.myshopify.com/admin/api/{version}/graphql.json)
func NewClient(endpoint, accessToken string, opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		endpoint:    endpoint,
		accessToken: accessToken,
		rateLimiter: rate.NewLimiter(rate.Limit(2), 1), // 2 requests per second
		retrier:     clients.NewRetrier(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EndpointURL builds the Admin GraphQL endpoint for a store and API version
func EndpointURL(storeURL, apiVersion string) string {
	return fmt.Sprintf("%s/admin/api/%s/graphql.json", strings.TrimRight(storeURL, "/"), apiVersion)
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// throttledCode marks a request rejected by the query cost limit; it was not applied
const throttledCode = "THROTTLED"

// Execute runs one read-only GraphQL document and decodes its data into out.
// Throttled, unavailable and failed transport attempts are retried.
// Non-2xx responses and top-level errors are returned as *clients.TransportError.
func (c *Client) Execute(ctx context.Context, operation, query string, variables map[string]interface{}, out interface{}) error {
	return c.execute(ctx, c.retrier, operation, query, variables, out)
}

// Mutate runs one GraphQL mutation. Only throttled attempts are retried;
// network errors and 5xx responses surface immediately since the write may have landed.
func (c *Client) Mutate(ctx context.Context, operation, query string, variables map[string]interface{}, out interface{}) error {
	return c.execute(ctx, c.retrier.ThrottleOnly(), operation, query, variables, out)
}

func (c *Client) execute(ctx context.Context, retrier *clients.Retrier, operation, query string, variables map[string]interface{}, out interface{}) error {
	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", operation, err)
	}

	for attempt := 0; ; attempt++ {
		throttled, err := c.post(ctx, retrier, operation, payload, out)
		if !throttled || attempt >= retrier.MaxRetries() {
			return err
		}
		if waitErr := retrier.Sleep(ctx, attempt, 0); waitErr != nil {
			return &clients.TransportError{Operation: operation, Message: waitErr.Error()}
		}
	}
}

// post sends one request through the retrier and reports whether the
// response was a GraphQL THROTTLED rejection
func (c *Client) post(ctx context.Context, retrier *clients.Retrier, operation string, payload []byte, out interface{}) (bool, error) {
	resp, result := retrier.DoHTTP(ctx, func(ctx context.Context) (*http.Response, error) {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Shopify-Access-Token", c.accessToken)
		req.Header.Set("Content-Type", "application/json")
		return c.httpClient.Do(req)
	})
	if resp == nil {
		return false, &clients.TransportError{Operation: operation, Message: errorMessage(result.LastError)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, &clients.TransportError{Operation: operation, StatusCode: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, &clients.TransportError{Operation: operation, StatusCode: resp.StatusCode, Message: truncate(string(body), maxErrorBody)}
	}

	var decoded graphQLResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return false, &clients.TransportError{Operation: operation, StatusCode: resp.StatusCode, Message: "invalid response: " + err.Error()}
	}
	if len(decoded.Errors) > 0 {
		throttled := false
		messages := make([]string, 0, len(decoded.Errors))
		for _, e := range decoded.Errors {
			messages = append(messages, e.Message)
			if e.Extensions.Code == throttledCode {
				throttled = true
			}
		}
		return throttled, &clients.TransportError{Operation: operation, StatusCode: resp.StatusCode, Message: strings.Join(messages, "; ")}
	}
	if out == nil || len(decoded.Data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(decoded.Data, out); err != nil {
		return false, &clients.TransportError{Operation: operation, StatusCode: resp.StatusCode, Message: "invalid data: " + err.Error()}
	}
	return false, nil
}

const productCreateMutation = `
mutation createProduct($input: ProductInput!, $media: [CreateMediaInput!]) {
  productCreate(input: $input, media: $media) {
    product {
      id
      title
      variants(first: 5) {
        nodes {
          id
          title
          selectedOptions { name value }
        }
      }
      media(first: 50) {
        nodes { id alt }
      }
    }
    userErrors { field message }
  }
}`

// CreateProduct creates a product with its first media batch
func (c *Client) CreateProduct(ctx context.Context, input *clients.ProductCreateInput) (*clients.ProductCreateResult, error) {
	var data struct {
		ProductCreate struct {
			Product *struct {
				ID       string `json:"id"`
				Title    string `json:"title"`
				Variants struct {
					Nodes []clients.DestinationVariantNode `json:"nodes"`
				} `json:"variants"`
				Media struct {
					Nodes []clients.DestinationMedia `json:"nodes"`
				} `json:"media"`
			} `json:"product"`
			UserErrors []clients.UserError `json:"userErrors"`
		} `json:"productCreate"`
	}

	variables := map[string]interface{}{"input": input}
	if len(input.Media) > 0 {
		variables["media"] = input.Media
	}
	if err := c.Mutate(ctx, "productCreate", productCreateMutation, variables, &data); err != nil {
		return nil, err
	}

	result := &clients.ProductCreateResult{UserErrors: data.ProductCreate.UserErrors}
	if p := data.ProductCreate.Product; p != nil {
		result.Product = &clients.DestinationProduct{
			ID:       p.ID,
			Title:    p.Title,
			Variants: p.Variants.Nodes,
			Media:    p.Media.Nodes,
		}
	}
	return result, nil
}

const productCreateMediaMutation = `
mutation productCreateMedia($media: [CreateMediaInput!]!, $productId: ID!) {
  productCreateMedia(media: $media, productId: $productId) {
    media { id alt }
    mediaUserErrors { field message }
  }
}`

// CreateMedia attaches media to an existing product
func (c *Client) CreateMedia(ctx context.Context, productID string, media []catalog.Media) (*clients.MediaCreateResult, error) {
	var data struct {
		ProductCreateMedia struct {
			Media           []clients.DestinationMedia `json:"media"`
			MediaUserErrors []clients.UserError        `json:"mediaUserErrors"`
		} `json:"productCreateMedia"`
	}
	variables := map[string]interface{}{"productId": productID, "media": media}
	if err := c.Mutate(ctx, "productCreateMedia", productCreateMediaMutation, variables, &data); err != nil {
		return nil, err
	}
	return &clients.MediaCreateResult{
		Media:      data.ProductCreateMedia.Media,
		UserErrors: data.ProductCreateMedia.MediaUserErrors,
	}, nil
}

const variantsBulkUpdateMutation = `
mutation productVariantsBulkUpdate($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
  productVariantsBulkUpdate(productId: $productId, variants: $variants) {
    productVariants { id sku title }
    userErrors { field message }
  }
}`

// UpdateVariants updates existing variants in one bulk mutation
func (c *Client) UpdateVariants(ctx context.Context, productID string, variants []clients.VariantInput) (*clients.VariantsResult, error) {
	var data struct {
		Payload variantsPayload `json:"productVariantsBulkUpdate"`
	}
	variables := map[string]interface{}{"productId": productID, "variants": variants}
	if err := c.Mutate(ctx, "productVariantsBulkUpdate", variantsBulkUpdateMutation, variables, &data); err != nil {
		return nil, err
	}
	return data.Payload.result(), nil
}

const variantsBulkCreateMutation = `
mutation createProductVariants($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
  productVariantsBulkCreate(productId: $productId, variants: $variants) {
    productVariants { id sku title }
    userErrors { field message }
  }
}`

// CreateVariants creates variants in one bulk mutation
func (c *Client) CreateVariants(ctx context.Context, productID string, variants []clients.VariantInput) (*clients.VariantsResult, error) {
	var data struct {
		Payload variantsPayload `json:"productVariantsBulkCreate"`
	}
	variables := map[string]interface{}{"productId": productID, "variants": variants}
	if err := c.Mutate(ctx, "productVariantsBulkCreate", variantsBulkCreateMutation, variables, &data); err != nil {
		return nil, err
	}
	return data.Payload.result(), nil
}

type variantsPayload struct {
	ProductVariants []clients.DestinationVariant `json:"productVariants"`
	UserErrors      []clients.UserError          `json:"userErrors"`
}

func (p variantsPayload) result() *clients.VariantsResult {
	return &clients.VariantsResult{Variants: p.ProductVariants, UserErrors: p.UserErrors}
}

const findProductsQuery = `
query findProducts($first: Int!, $query: String!) {
  products(first: $first, query: $query) {
    nodes { id title }
  }
}`

// FindProductsByTitle searches destination products by title
func (c *Client) FindProductsByTitle(ctx context.Context, title string) ([]clients.ProductRef, error) {
	var data struct {
		Products struct {
			Nodes []clients.ProductRef `json:"nodes"`
		} `json:"products"`
	}
	variables := map[string]interface{}{
		"first": titleSearchLimit,
		"query": titleQuery(title),
	}
	if err := c.Execute(ctx, "products", findProductsQuery, variables, &data); err != nil {
		return nil, err
	}
	return data.Products.Nodes, nil
}

// titleQuery builds a search-syntax title filter, quoting the value
func titleQuery(title string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(title)
	return `title:"` + escaped + `"`
}

func errorMessage(err error) string {
	if err == nil {
		return "no response"
	}
	return err.Error()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
