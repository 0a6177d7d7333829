package catalog

import (
	"encoding/json"
	"strings"
)

// Source product types
const (
	TypeConfigurable = "configurable"
	TypeSimple       = "simple"
)

// ProductStatus is the destination publication status
type ProductStatus string

const (
	StatusActive   ProductStatus = "ACTIVE"
	StatusDraft    ProductStatus = "DRAFT"
	StatusArchived ProductStatus = "ARCHIVED"
)

// MediaKindImage is the only media kind the formatter produces
const MediaKindImage = "IMAGE"

// =============================================================================
// SOURCE RECORDS (Magento REST shapes)
// =============================================================================

// AttributeValue is a custom attribute value; Magento sends either a string or a list of strings.
type AttributeValue struct {
	Single string
	List   []string
	IsList bool
}

// UnmarshalJSON accepts strings, numbers and string lists
func (v *AttributeValue) UnmarshalJSON(data []byte) error {
	var list []interface{}
	if err := json.Unmarshal(data, &list); err == nil {
		v.IsList = true
		v.List = make([]string, 0, len(list))
		for _, item := range list {
			v.List = append(v.List, scalarString(item))
		}
		return nil
	}
	var scalar interface{}
	if err := json.Unmarshal(data, &scalar); err != nil {
		return err
	}
	v.Single = scalarString(scalar)
	return nil
}

// MarshalJSON writes the value back in its original shape
func (v AttributeValue) MarshalJSON() ([]byte, error) {
	if v.IsList {
		return json.Marshal(v.List)
	}
	return json.Marshal(v.Single)
}

// String returns the value, comma-joining lists
func (v AttributeValue) String() string {
	if v.IsList {
		return strings.Join(v.List, ",")
	}
	return v.Single
}

// Values returns the value as a list
func (v AttributeValue) Values() []string {
	if v.IsList {
		return v.List
	}
	if v.Single == "" {
		return nil
	}
	return []string{v.Single}
}

func scalarString(value interface{}) string {
	switch t := value.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		b, _ := json.Marshal(t)
		return string(b)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// CustomAttribute is a coded attribute on a source product
type CustomAttribute struct {
	AttributeCode string         `json:"attribute_code"`
	Value         AttributeValue `json:"value"`
}

// GalleryEntry is a media gallery entry on a source product
type GalleryEntry struct {
	ID        int      `json:"id"`
	MediaType string   `json:"media_type"`
	Label     string   `json:"label"`
	Position  int      `json:"position"`
	Disabled  bool     `json:"disabled"`
	Types     []string `json:"types"`
	File      string   `json:"file"`
}

// OptionValueIndex references one option value of a configurable attribute
type OptionValueIndex struct {
	ValueIndex int `json:"value_index"`
}

// ConfigurableOption is an option axis defined on a configurable product
type ConfigurableOption struct {
	ID          int                `json:"id"`
	AttributeID string             `json:"attribute_id"`
	Label       string             `json:"label"`
	Position    int                `json:"position"`
	Values      []OptionValueIndex `json:"values"`
}

// ExtensionAttributes carries configurable product links and options
type ExtensionAttributes struct {
	ConfigurableProductOptions []ConfigurableOption `json:"configurable_product_options,omitempty"`
	ConfigurableProductLinks   []int                `json:"configurable_product_links,omitempty"`
}

// SourceProduct is a raw source product record
type SourceProduct struct {
	ID                  int                 `json:"id"`
	SKU                 string              `json:"sku"`
	Name                string              `json:"name"`
	Price               float64             `json:"price"`
	Status              int                 `json:"status"`
	Visibility          int                 `json:"visibility"`
	TypeID              string              `json:"type_id"`
	CreatedAt           string              `json:"created_at"`
	UpdatedAt           string              `json:"updated_at"`
	Weight              float64             `json:"weight"`
	CustomAttributes    []CustomAttribute   `json:"custom_attributes"`
	MediaGalleryEntries []GalleryEntry      `json:"media_gallery_entries"`
	ExtensionAttributes ExtensionAttributes `json:"extension_attributes"`
}

// IsConfigurable reports whether the record is a configurable parent
func (p *SourceProduct) IsConfigurable() bool {
	return p.TypeID == TypeConfigurable
}

// Attribute returns the first custom attribute with the given code
func (p *SourceProduct) Attribute(code string) (AttributeValue, bool) {
	for _, attr := range p.CustomAttributes {
		if attr.AttributeCode == code {
			return attr.Value, true
		}
	}
	return AttributeValue{}, false
}

// LinksChild reports whether the configurable record links the given child id
func (p *SourceProduct) LinksChild(childID int) bool {
	for _, id := range p.ExtensionAttributes.ConfigurableProductLinks {
		if id == childID {
			return true
		}
	}
	return false
}

// AttributeOption is one selectable value of an attribute
type AttributeOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// AttributeMetadata is one entry of the source attribute schema
type AttributeMetadata struct {
	AttributeID          string            `json:"attribute_id"`
	AttributeCode        string            `json:"attribute_code"`
	DefaultFrontendLabel string            `json:"default_frontend_label"`
	FrontendInput        string            `json:"frontend_input"`
	Options              []AttributeOption `json:"options"`
}

// UnmarshalJSON tolerates numeric attribute ids
func (m *AttributeMetadata) UnmarshalJSON(data []byte) error {
	type alias AttributeMetadata
	var raw struct {
		alias
		AttributeID interface{} `json:"attribute_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = AttributeMetadata(raw.alias)
	m.AttributeID = scalarString(raw.AttributeID)
	return nil
}

// =============================================================================
// CANONICAL PRODUCT
// =============================================================================

// OptionValue is one value of a canonical option
type OptionValue struct {
	Name string `json:"name"`
}

// ProductOption is a destination-facing selectable axis
type ProductOption struct {
	Name   string        `json:"name"`
	Values []OptionValue `json:"values"`
}

// VariantOptionValue binds a variant to one option value
type VariantOptionValue struct {
	OptionName string `json:"optionName"`
	Name       string `json:"name"`
}

// Media is a product image
type Media struct {
	MediaContentType string `json:"mediaContentType"`
	OriginalSource   string `json:"originalSource"`
	Alt              string `json:"alt,omitempty"`
}

// Metafield is a custom field carried over from the source
type Metafield struct {
	Key       string `json:"key"`
	Namespace string `json:"namespace"`
	Type      string `json:"type"`
	Value     string `json:"value"`
}

// CanonicalVariant is one purchasable combination of a canonical product
type CanonicalVariant struct {
	Price        string               `json:"price"`
	SKU          string               `json:"sku"`
	OptionValues []VariantOptionValue `json:"optionValues"`
	Media        Media                `json:"media"`
}

// CanonicalProduct is the platform-agnostic product passed to review and reconciliation
type CanonicalProduct struct {
	Title                 string             `json:"title"`
	SKU                   string             `json:"sku"`
	DescriptionHTML       string             `json:"descriptionHtml"`
	Vendor                string             `json:"vendor"`
	ProductType           string             `json:"productType"`
	Tags                  []string           `json:"tags"`
	Status                ProductStatus      `json:"status"`
	Options               []ProductOption    `json:"productOptions"`
	Variants              []CanonicalVariant `json:"variants"`
	Media                 []Media            `json:"media"`
	Metafields            []Metafield        `json:"metafields"`
	ExistingDestinationID string             `json:"shopifyProductId,omitempty"`
}

// Family is a configurable parent with its children, or a standalone simple record
type Family struct {
	Parent   *SourceProduct
	Children []SourceProduct
}

// IsStandalone reports whether the family is a single simple record without a parent
func (f Family) IsStandalone() bool {
	return f.Parent == nil && len(f.Children) == 1
}
