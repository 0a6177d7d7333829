package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
)

// PlatformSecret represents the structure of the platform credential secret stored in GCP
type PlatformSecret struct {
	Magento   *MagentoCredentials `json:"magento,omitempty"`
	Shopify   *ShopifyCredentials `json:"shopify,omitempty"`
	UpdatedAt time.Time           `json:"updated_at,omitempty"`
}

// MagentoCredentials represents Magento REST integration credentials
type MagentoCredentials struct {
	APIURL      string `json:"api_url,omitempty"`
	AccessToken string `json:"access_token"`
}

// ShopifyCredentials represents Shopify Admin API credentials
type ShopifyCredentials struct {
	Store       string `json:"store,omitempty"` // https://{store}.myshopify.com
	APIVersion  string `json:"api_version,omitempty"`
	AccessToken string `json:"access_token"`
}

// secretAccessor is the subset of the Secret Manager client used here
type secretAccessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// cacheEntry represents a cached secret with expiration
type cacheEntry struct {
	secret    *PlatformSecret
	expiresAt time.Time
}

// GCPSecretManager reads platform credentials from Google Cloud Secret Manager
type GCPSecretManager struct {
	client    secretAccessor
	projectID string
	cache     map[string]*cacheEntry
	cacheMu   sync.RWMutex
	cacheTTL  time.Duration
}

// NewGCPSecretManager creates a new GCP Secret Manager client
func NewGCPSecretManager(ctx context.Context, projectID string) (*GCPSecretManager, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}
	return newManager(client, projectID), nil
}

func newManager(client secretAccessor, projectID string) *GCPSecretManager {
	return &GCPSecretManager{
		client:    client,
		projectID: projectID,
		cache:     make(map[string]*cacheEntry),
		cacheTTL:  5 * time.Minute,
	}
}

// Close closes the Secret Manager client
func (sm *GCPSecretManager) Close() error {
	if sm.client != nil {
		return sm.client.Close()
	}
	return nil
}

// BuildSecretName constructs the full resource name for a secret id.
// Format: projects/{project}/secrets/{secret_id}
func (sm *GCPSecretManager) BuildSecretName(secretID string) string {
	if strings.HasPrefix(secretID, "projects/") {
		return secretID
	}
	return fmt.Sprintf("projects/%s/secrets/%s", sm.projectID, sanitizeSecretID(secretID))
}

// GetPlatformSecret retrieves the latest version of a platform credential secret
func (sm *GCPSecretManager) GetPlatformSecret(ctx context.Context, secretID string) (*PlatformSecret, error) {
	secretName := sm.BuildSecretName(secretID)

	sm.cacheMu.RLock()
	if entry, ok := sm.cache[secretName]; ok && time.Now().Before(entry.expiresAt) {
		sm.cacheMu.RUnlock()
		return entry.secret, nil
	}
	sm.cacheMu.RUnlock()

	result, err := sm.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName + "/versions/latest",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access secret: %w", err)
	}

	var secret PlatformSecret
	if err := json.Unmarshal(result.GetPayload().GetData(), &secret); err != nil {
		return nil, fmt.Errorf("failed to unmarshal secret: %w", err)
	}

	sm.cacheMu.Lock()
	sm.cache[secretName] = &cacheEntry{
		secret:    &secret,
		expiresAt: time.Now().Add(sm.cacheTTL),
	}
	sm.cacheMu.Unlock()

	return &secret, nil
}

// InvalidateCache removes a secret from the cache
func (sm *GCPSecretManager) InvalidateCache(secretID string) {
	sm.cacheMu.Lock()
	delete(sm.cache, sm.BuildSecretName(secretID))
	sm.cacheMu.Unlock()
}

// sanitizeSecretID removes or replaces invalid characters for GCP secret IDs
// Secret IDs can only contain alphanumeric characters, hyphens, and underscores
func sanitizeSecretID(input string) string {
	var result strings.Builder
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		} else {
			result.WriteRune('-')
		}
	}
	return result.String()
}
