package services

import (
	"context"
	"fmt"
	"strings"

	"catalog-migration-service/internal/catalog"
	"catalog-migration-service/internal/clients"

	"github.com/sirupsen/logrus"
)

const (
	// seoDescriptionLimit is the maximum SEO description length sent on create
	seoDescriptionLimit = 160
	// DefaultMediaBatchSize is the number of media entries sent per mutation
	DefaultMediaBatchSize = 50
)

// DefaultVariantMatcher reports whether a canonical variant corresponds to the
// variant the destination generates when a product is created
type DefaultVariantMatcher func(optionValues []catalog.VariantOptionValue, selected []clients.SelectedOption) bool

// MatchLiteral compares each selected option's name and value against the option name
func MatchLiteral(optionValues []catalog.VariantOptionValue, selected []clients.SelectedOption) bool {
	return matchAll(optionValues, selected, func(ov catalog.VariantOptionValue, so clients.SelectedOption) bool {
		return so.Name == ov.OptionName && so.Value == ov.OptionName
	})
}

// MatchByValue compares each selected option's name with the option name and its value with the value name
func MatchByValue(optionValues []catalog.VariantOptionValue, selected []clients.SelectedOption) bool {
	return matchAll(optionValues, selected, func(ov catalog.VariantOptionValue, so clients.SelectedOption) bool {
		return so.Name == ov.OptionName && so.Value == ov.Name
	})
}

// matchAll is true when every option value has a matching selected option.
// An empty option value list matches.
func matchAll(optionValues []catalog.VariantOptionValue, selected []clients.SelectedOption, eq func(catalog.VariantOptionValue, clients.SelectedOption) bool) bool {
	for _, ov := range optionValues {
		found := false
		for _, so := range selected {
			if eq(ov, so) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// MatcherByName returns the matcher for a configuration value ("literal" or "value")
func MatcherByName(name string) (DefaultVariantMatcher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "literal":
		return MatchLiteral, nil
	case "value":
		return MatchByValue, nil
	default:
		return nil, fmt.Errorf("unknown default variant matcher %q", name)
	}
}

// MediaJoiner resolves the destination media id for a variant
type MediaJoiner interface {
	MediaID(variant catalog.CanonicalVariant, media []clients.DestinationMedia) string
}

// AltTextJoiner joins variants to media by exact alt text; the first match wins
type AltTextJoiner struct{}

// MediaID returns the id of the first media whose alt equals the variant media alt, or ""
func (AltTextJoiner) MediaID(variant catalog.CanonicalVariant, media []clients.DestinationMedia) string {
	for _, m := range media {
		if m.Alt == variant.Media.Alt {
			return m.ID
		}
	}
	return ""
}

// ReconcileResult is the outcome of reconciling one product
type ReconcileResult struct {
	ProductID       string   `json:"productId"`
	Created         bool     `json:"created"`
	DefaultVariant  bool     `json:"defaultVariantUpdated"`
	VariantsCreated int      `json:"variantsCreated"`
	MediaCreated    int      `json:"mediaCreated"`
	Warnings        []string `json:"warnings,omitempty"`
}

// ReconcilerConfig holds the reconciler's pluggable behavior
type ReconcilerConfig struct {
	Matcher        DefaultVariantMatcher
	Joiner         MediaJoiner
	MediaBatchSize int
}

// Reconciler drives the destination mutations for one canonical product
type Reconciler struct {
	destination    clients.DestinationClient
	matcher        DefaultVariantMatcher
	joiner         MediaJoiner
	mediaBatchSize int
	logger         *logrus.Entry
}

// NewReconciler creates a reconciler; zero config values fall back to defaults
func NewReconciler(destination clients.DestinationClient, cfg ReconcilerConfig, logger *logrus.Entry) *Reconciler {
	if cfg.Matcher == nil {
		cfg.Matcher = MatchLiteral
	}
	if cfg.Joiner == nil {
		cfg.Joiner = AltTextJoiner{}
	}
	if cfg.MediaBatchSize <= 0 {
		cfg.MediaBatchSize = DefaultMediaBatchSize
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Reconciler{
		destination:    destination,
		matcher:        cfg.Matcher,
		joiner:         cfg.Joiner,
		mediaBatchSize: cfg.MediaBatchSize,
		logger:         logger.WithField("component", "reconciler"),
	}
}

// Reconcile creates the product or augments an existing one and returns its destination id.
// Transport errors abort the product; user errors are collected as warnings. Once a
// destination product exists, a failure still returns the partial result with its id.
func (r *Reconciler) Reconcile(ctx context.Context, product *catalog.CanonicalProduct) (*ReconcileResult, error) {
	log := r.logger.WithFields(logrus.Fields{"title": product.Title, "sku": product.SKU})

	var (
		result   *ReconcileResult
		variants []catalog.CanonicalVariant
		media    []clients.DestinationMedia
		err      error
	)
	if product.ExistingDestinationID == "" {
		result, variants, media, err = r.create(ctx, product, log)
	} else {
		result, variants, media, err = r.augment(ctx, product, log)
	}
	if err != nil {
		return result, err
	}

	if len(variants) == 0 {
		log.WithField("productId", result.ProductID).Debug("No additional variants to create")
		return result, nil
	}

	inputs := make([]clients.VariantInput, 0, len(variants))
	for _, v := range variants {
		inputs = append(inputs, r.variantInput(v, "", media))
	}
	created, err := r.destination.CreateVariants(ctx, result.ProductID, inputs)
	if err != nil {
		return result, fmt.Errorf("failed to create variants for %q: %w", product.Title, err)
	}
	result.VariantsCreated = len(created.Variants)
	result.Warnings = append(result.Warnings, r.warn(log, "productVariantsBulkCreate", created.UserErrors)...)

	log.WithFields(logrus.Fields{
		"productId": result.ProductID,
		"created":   result.Created,
		"variants":  result.VariantsCreated,
		"warnings":  len(result.Warnings),
	}).Info("Product reconciled")
	return result, nil
}

// create issues productCreate, uploads remaining media and updates the default variant.
// It returns the variants still to be created and the known destination media.
func (r *Reconciler) create(ctx context.Context, product *catalog.CanonicalProduct, log *logrus.Entry) (*ReconcileResult, []catalog.CanonicalVariant, []clients.DestinationMedia, error) {
	batches := batchMedia(product.Media, r.mediaBatchSize)
	var firstBatch []catalog.Media
	if len(batches) > 0 {
		firstBatch = batches[0]
	}

	input := &clients.ProductCreateInput{
		Title:           product.Title,
		DescriptionHTML: product.DescriptionHTML,
		Vendor:          product.Vendor,
		ProductType:     product.ProductType,
		Status:          catalog.StatusDraft,
		ProductOptions:  product.Options,
		Tags:            product.Tags,
		SEO: clients.SEOInput{
			Title:       product.Title,
			Description: truncateRunes(product.DescriptionHTML, seoDescriptionLimit),
		},
		Metafields: product.Metafields,
		Media:      firstBatch,
	}

	createResult, err := r.destination.CreateProduct(ctx, input)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create product %q: %w", product.Title, err)
	}
	result := &ReconcileResult{Created: true}
	result.Warnings = append(result.Warnings, r.warn(log, "productCreate", createResult.UserErrors)...)
	if createResult.Product == nil || createResult.Product.ID == "" {
		return nil, nil, nil, fmt.Errorf("product %q was not created: %s", product.Title, strings.Join(result.Warnings, "; "))
	}
	created := createResult.Product
	result.ProductID = created.ID

	media := append([]clients.DestinationMedia{}, created.Media...)
	result.MediaCreated = len(created.Media)
	if len(batches) > 1 {
		more, warnings, err := r.uploadMedia(ctx, created.ID, batches[1:], log)
		if err != nil {
			return result, nil, nil, err
		}
		media = append(media, more...)
		result.MediaCreated += len(more)
		result.Warnings = append(result.Warnings, warnings...)
	}

	remaining := product.Variants
	if len(created.Variants) == 0 {
		log.WithField("productId", created.ID).Warn("Created product returned no default variant")
		return result, remaining, media, nil
	}
	defaultNode := created.Variants[0]

	matchIndex := -1
	matches := 0
	for i, v := range product.Variants {
		if r.matcher(v.OptionValues, defaultNode.SelectedOptions) {
			if matchIndex < 0 {
				matchIndex = i
			}
			matches++
		}
	}
	if matches > 1 {
		log.WithField("matches", matches).Warn("Several variants match the default variant; updating the first")
	}
	if matchIndex < 0 {
		log.WithField("productId", created.ID).Debug("No variant matches the default variant")
		return result, remaining, media, nil
	}

	defaultVariant := product.Variants[matchIndex]
	remaining = make([]catalog.CanonicalVariant, 0, len(product.Variants)-1)
	remaining = append(remaining, product.Variants[:matchIndex]...)
	remaining = append(remaining, product.Variants[matchIndex+1:]...)

	updated, err := r.destination.UpdateVariants(ctx, created.ID, []clients.VariantInput{
		r.variantInput(defaultVariant, defaultNode.ID, media),
	})
	if err != nil {
		return result, nil, nil, fmt.Errorf("failed to update default variant of %q: %w", product.Title, err)
	}
	result.DefaultVariant = true
	result.Warnings = append(result.Warnings, r.warn(log, "productVariantsBulkUpdate", updated.UserErrors)...)

	return result, remaining, media, nil
}

// augment attaches media to an existing product; every variant is still to be created
func (r *Reconciler) augment(ctx context.Context, product *catalog.CanonicalProduct, log *logrus.Entry) (*ReconcileResult, []catalog.CanonicalVariant, []clients.DestinationMedia, error) {
	result := &ReconcileResult{ProductID: product.ExistingDestinationID}
	media, warnings, err := r.uploadMedia(ctx, product.ExistingDestinationID, batchMedia(product.Media, r.mediaBatchSize), log)
	if err != nil {
		return result, nil, nil, err
	}
	result.MediaCreated = len(media)
	result.Warnings = warnings
	return result, product.Variants, media, nil
}

func (r *Reconciler) uploadMedia(ctx context.Context, productID string, batches [][]catalog.Media, log *logrus.Entry) ([]clients.DestinationMedia, []string, error) {
	var (
		media    []clients.DestinationMedia
		warnings []string
	)
	for _, batch := range batches {
		created, err := r.destination.CreateMedia(ctx, productID, batch)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create media for %s: %w", productID, err)
		}
		media = append(media, created.Media...)
		warnings = append(warnings, r.warn(log, "productCreateMedia", created.UserErrors)...)
	}
	return media, warnings, nil
}

func (r *Reconciler) variantInput(v catalog.CanonicalVariant, id string, media []clients.DestinationMedia) clients.VariantInput {
	optionValues := v.OptionValues
	if optionValues == nil {
		optionValues = []catalog.VariantOptionValue{}
	}
	return clients.VariantInput{
		ID:            id,
		Price:         v.Price,
		OptionValues:  optionValues,
		InventoryItem: clients.InventoryItemInput{SKU: v.SKU, Tracked: true},
		MediaID:       r.joiner.MediaID(v, media),
	}
}

func (r *Reconciler) warn(log *logrus.Entry, operation string, userErrors []clients.UserError) []string {
	if len(userErrors) == 0 {
		return nil
	}
	warnings := make([]string, 0, len(userErrors))
	for _, ue := range userErrors {
		warnings = append(warnings, operation+": "+ue.String())
	}
	log.WithFields(logrus.Fields{
		"operation":  operation,
		"userErrors": warnings,
	}).Warn("Destination reported user errors")
	return warnings
}

func batchMedia(media []catalog.Media, size int) [][]catalog.Media {
	var batches [][]catalog.Media
	for start := 0; start < len(media); start += size {
		end := start + size
		if end > len(media) {
			end = len(media)
		}
		batches = append(batches, media[start:end])
	}
	return batches
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
