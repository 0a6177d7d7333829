package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// MetafieldNamespace groups metafields carried over from the source
	MetafieldNamespace = "magento_import"
	// MetafieldType is the destination type of carried-over metafields
	MetafieldType = "multi_line_text_field"
)

// Source attribute codes with a fixed meaning
const (
	attrCategoryIDs  = "category_ids"
	attrBrand        = "brand"
	attrManufacturer = "manufacturer"
	attrDescription  = "description"
	attrProductType  = "product_type"
)

// excludedMetafields are attribute labels never carried over as metafields
var excludedMetafields = map[string]bool{
	"Short Description": true,
}

// Formatter converts families into canonical products
type Formatter struct {
	resolver     LabelResolver
	mediaBaseURL string
}

// NewFormatter creates a formatter. mediaBaseURL is prefixed to gallery file paths.
func NewFormatter(resolver LabelResolver, mediaBaseURL string) *Formatter {
	return &Formatter{
		resolver:     resolver,
		mediaBaseURL: strings.TrimRight(mediaBaseURL, "/"),
	}
}

// resolvedOption is a kept option axis with the attribute code backing it
type resolvedOption struct {
	name string
	code string
}

// Format converts one family into a canonical product
func (f *Formatter) Format(family Family) (*CanonicalProduct, error) {
	if family.Parent != nil {
		return f.formatConfigurable(family.Parent, family.Children), nil
	}
	if len(family.Children) != 1 {
		return nil, fmt.Errorf("family without parent must have exactly one record, got %d", len(family.Children))
	}
	return f.formatStandalone(&family.Children[0]), nil
}

func (f *Formatter) formatConfigurable(parent *SourceProduct, children []SourceProduct) *CanonicalProduct {
	options := f.resolveOptions(parent)

	variants := make([]CanonicalVariant, 0, len(children))
	media := make([]Media, 0, len(children))
	usedAlts := make(map[string]bool, len(children))
	for i := range children {
		child := &children[i]
		variant := f.formatVariant(child, options)
		variant.Media.Alt = distinctAlt(child.Name, child.SKU, usedAlts)
		variants = append(variants, variant)
		if len(child.MediaGalleryEntries) > 0 {
			media = append(media, Media{
				MediaContentType: MediaKindImage,
				OriginalSource:   f.mediaURL(child.MediaGalleryEntries[0].File),
				Alt:              variant.Media.Alt,
			})
		}
	}

	productOptions, variants := collectVariantOptions(variants)

	product := f.baseProduct(parent, f.brandVendor(parent))
	product.Options = productOptions
	product.Variants = variants
	product.Media = media
	return product
}

func (f *Formatter) formatStandalone(record *SourceProduct) *CanonicalProduct {
	media := make([]Media, 0, len(record.MediaGalleryEntries))
	for i, entry := range record.MediaGalleryEntries {
		alt := entry.Label
		if i == 0 {
			alt = record.Name
		} else if alt == record.Name {
			alt = fmt.Sprintf("%s (%d)", entry.Label, entry.Position)
		}
		media = append(media, Media{
			MediaContentType: MediaKindImage,
			OriginalSource:   f.mediaURL(entry.File),
			Alt:              alt,
		})
	}

	product := f.baseProduct(record, f.attributeString(record, attrManufacturer))
	product.Options = []ProductOption{}
	product.Variants = []CanonicalVariant{f.formatVariant(record, nil)}
	product.Media = media
	return product
}

// distinctAlt returns name, qualified by sku when another child of the family already uses it.
// Alt text is the only join key between a variant and its product image.
func distinctAlt(name, sku string, used map[string]bool) string {
	alt := name
	if used[alt] {
		alt = fmt.Sprintf("%s (%s)", name, sku)
	}
	for n := 2; used[alt]; n++ {
		alt = fmt.Sprintf("%s (%s %d)", name, sku, n)
	}
	used[alt] = true
	return alt
}

// baseProduct fills the product-level fields shared by both family kinds
func (f *Formatter) baseProduct(record *SourceProduct, vendor string) *CanonicalProduct {
	status := StatusDraft
	if record.Status == 1 {
		status = StatusActive
	}

	return &CanonicalProduct{
		Title:           record.Name,
		SKU:             record.SKU,
		DescriptionHTML: f.attributeString(record, attrDescription),
		Vendor:          vendor,
		ProductType:     f.attributeString(record, attrProductType),
		Tags:            tags(record),
		Status:          status,
		Metafields:      f.metafields(record),
	}
}

// resolveOptions maps the configurable option definitions to labelled axes,
// keeping only axes with at least two distinct values
func (f *Formatter) resolveOptions(parent *SourceProduct) []resolvedOption {
	var kept []resolvedOption
	for _, def := range parent.ExtensionAttributes.ConfigurableProductOptions {
		name, ok := f.resolver.OptionLabel(def.AttributeID)
		if !ok {
			name = def.Label
		}
		code, _ := f.resolver.CodeForLabel(name)

		distinct := make(map[string]bool, len(def.Values))
		for _, v := range def.Values {
			raw := strconv.Itoa(v.ValueIndex)
			label, ok := f.resolver.ValueLabel(code, raw)
			if !ok {
				label = raw
			}
			distinct[label] = true
		}
		if len(distinct) < 2 {
			continue
		}
		kept = append(kept, resolvedOption{name: name, code: code})
	}
	return kept
}

func (f *Formatter) formatVariant(record *SourceProduct, options []resolvedOption) CanonicalVariant {
	optionValues := make([]VariantOptionValue, 0, len(options))
	for _, opt := range options {
		raw := ""
		if value, ok := record.Attribute(opt.code); ok && opt.code != "" {
			raw = value.String()
		}
		label, ok := f.resolver.ValueLabel(opt.code, raw)
		if !ok {
			label = raw
		}
		optionValues = append(optionValues, VariantOptionValue{OptionName: opt.name, Name: label})
	}

	variant := CanonicalVariant{
		Price:        strconv.FormatFloat(record.Price, 'f', -1, 64),
		SKU:          record.SKU,
		OptionValues: optionValues,
		Media:        Media{MediaContentType: MediaKindImage, Alt: record.Name},
	}
	if len(record.MediaGalleryEntries) > 0 {
		variant.Media.OriginalSource = f.mediaURL(record.MediaGalleryEntries[0].File)
	}
	return variant
}

// collectVariantOptions rebuilds the option list from the values present on variants.
// Options left with fewer than two values are removed from the product and its variants.
func collectVariantOptions(variants []CanonicalVariant) ([]ProductOption, []CanonicalVariant) {
	options := []ProductOption{}
	index := make(map[string]int)
	seenValues := make(map[string]map[string]bool)

	for _, variant := range variants {
		for _, ov := range variant.OptionValues {
			i, ok := index[ov.OptionName]
			if !ok {
				i = len(options)
				index[ov.OptionName] = i
				options = append(options, ProductOption{Name: ov.OptionName, Values: []OptionValue{}})
				seenValues[ov.OptionName] = make(map[string]bool)
			}
			if !seenValues[ov.OptionName][ov.Name] {
				seenValues[ov.OptionName][ov.Name] = true
				options[i].Values = append(options[i].Values, OptionValue{Name: ov.Name})
			}
		}
	}

	dropped := make(map[string]bool)
	kept := options[:0]
	for _, opt := range options {
		if len(opt.Values) < 2 {
			dropped[opt.Name] = true
			continue
		}
		kept = append(kept, opt)
	}
	if len(dropped) == 0 {
		return kept, variants
	}

	for i := range variants {
		values := make([]VariantOptionValue, 0, len(variants[i].OptionValues))
		for _, ov := range variants[i].OptionValues {
			if !dropped[ov.OptionName] {
				values = append(values, ov)
			}
		}
		variants[i].OptionValues = values
	}
	return kept, variants
}

// brandVendor resolves the brand option to its label; an unresolved brand gives ""
func (f *Formatter) brandVendor(record *SourceProduct) string {
	if brand, ok := record.Attribute(attrBrand); ok {
		if label, ok := f.resolver.ValueLabel(attrBrand, brand.String()); ok {
			return label
		}
	}
	return ""
}

func (f *Formatter) attributeString(record *SourceProduct, code string) string {
	if value, ok := record.Attribute(code); ok {
		return value.String()
	}
	return ""
}

func (f *Formatter) metafields(record *SourceProduct) []Metafield {
	seen := make(map[string]bool, len(record.CustomAttributes))
	metafields := make([]Metafield, 0, len(record.CustomAttributes))
	for _, attr := range record.CustomAttributes {
		if seen[attr.AttributeCode] {
			continue
		}
		seen[attr.AttributeCode] = true

		key, ok := f.resolver.AttributeLabel(attr.AttributeCode)
		if !ok {
			key = attr.AttributeCode
		}
		if excludedMetafields[key] {
			continue
		}
		metafields = append(metafields, Metafield{
			Key:       key,
			Namespace: MetafieldNamespace,
			Type:      MetafieldType,
			Value:     attr.Value.String(),
		})
	}
	return metafields
}

func (f *Formatter) mediaURL(file string) string {
	return f.mediaBaseURL + "/" + strings.TrimLeft(file, "/")
}

func tags(record *SourceProduct) []string {
	out := []string{}
	value, ok := record.Attribute(attrCategoryIDs)
	if !ok {
		return out
	}
	seen := make(map[string]bool)
	for _, tag := range value.Values() {
		if seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
