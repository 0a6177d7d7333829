package clients

import (
	"context"
	"fmt"
	"strings"
	"time"

	"catalog-migration-service/internal/catalog"
)

// SourceClient reads catalog data from the source platform
type SourceClient interface {
	// FetchAttributeSchema returns the attribute listing (single large page)
	FetchAttributeSchema(ctx context.Context) ([]catalog.AttributeMetadata, error)

	// FetchSourceProducts returns products created inside the window
	FetchSourceProducts(ctx context.Context, window DateWindow) ([]catalog.SourceProduct, error)

	// FetchConfigurableCandidates returns configurable products whose name matches any fragment
	FetchConfigurableCandidates(ctx context.Context, nameFragments []string) ([]catalog.SourceProduct, error)
}

// DestinationClient executes typed mutations against the destination platform.
// A returned error is always fatal for the product; user errors are advisory.
type DestinationClient interface {
	CreateProduct(ctx context.Context, input *ProductCreateInput) (*ProductCreateResult, error)
	CreateMedia(ctx context.Context, productID string, media []catalog.Media) (*MediaCreateResult, error)
	UpdateVariants(ctx context.Context, productID string, variants []VariantInput) (*VariantsResult, error)
	CreateVariants(ctx context.Context, productID string, variants []VariantInput) (*VariantsResult, error)
	FindProductsByTitle(ctx context.Context, title string) ([]ProductRef, error)
}

// DateWindow bounds a source product query on creation time
type DateWindow struct {
	From time.Time
	To   time.Time
}

// SourceFormat is the timestamp layout the source platform filters on
const SourceFormat = "2006-01-02 15:04:05"

// =============================================================================
// DESTINATION TYPES
// =============================================================================

// SelectedOption is an option value selected on a destination variant
type SelectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// DestinationVariantNode is a variant as returned with a created product
type DestinationVariantNode struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	SelectedOptions []SelectedOption `json:"selectedOptions"`
}

// DestinationMedia is a media node with its alt text
type DestinationMedia struct {
	ID  string `json:"id"`
	Alt string `json:"alt"`
}

// DestinationProduct is a created product with its default variant and media
type DestinationProduct struct {
	ID       string                   `json:"id"`
	Title    string                   `json:"title"`
	Variants []DestinationVariantNode `json:"variants"`
	Media    []DestinationMedia       `json:"media"`
}

// DestinationVariant is a variant returned by bulk variant mutations
type DestinationVariant struct {
	ID    string `json:"id"`
	SKU   string `json:"sku"`
	Title string `json:"title"`
}

// ProductRef is a destination product found by title
type ProductRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// SEOInput carries search-engine fields for a new product
type SEOInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ProductCreateInput is the destination product creation payload
type ProductCreateInput struct {
	Title           string                  `json:"title"`
	DescriptionHTML string                  `json:"descriptionHtml"`
	Vendor          string                  `json:"vendor"`
	ProductType     string                  `json:"productType"`
	Status          catalog.ProductStatus   `json:"status"`
	ProductOptions  []catalog.ProductOption `json:"productOptions,omitempty"`
	Tags            []string                `json:"tags"`
	SEO             SEOInput                `json:"seo"`
	Metafields      []catalog.Metafield     `json:"metafields,omitempty"`
	Media           []catalog.Media         `json:"-"`
}

// InventoryItemInput sets sku and tracking on a variant
type InventoryItemInput struct {
	SKU     string `json:"sku"`
	Tracked bool   `json:"tracked"`
}

// VariantInput is one entry of a bulk variant mutation
type VariantInput struct {
	ID            string                       `json:"id,omitempty"`
	Price         string                       `json:"price"`
	OptionValues  []catalog.VariantOptionValue `json:"optionValues"`
	InventoryItem InventoryItemInput           `json:"inventoryItem"`
	MediaID       string                       `json:"mediaId,omitempty"`
}

// UserError is a validation message inside an otherwise successful response
type UserError struct {
	Field   []string `json:"field,omitempty"`
	Message string   `json:"message"`
}

func (e UserError) String() string {
	if len(e.Field) == 0 {
		return e.Message
	}
	return strings.Join(e.Field, ".") + ": " + e.Message
}

// ProductCreateResult is the outcome of a product creation
type ProductCreateResult struct {
	Product    *DestinationProduct
	UserErrors []UserError
}

// MediaCreateResult is the outcome of a media upload
type MediaCreateResult struct {
	Media      []DestinationMedia
	UserErrors []UserError
}

// VariantsResult is the outcome of a bulk variant mutation
type VariantsResult struct {
	Variants   []DestinationVariant
	UserErrors []UserError
}

// TransportError is returned when a platform call fails at the transport or query level
type TransportError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s failed (status %d): %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Message)
}
