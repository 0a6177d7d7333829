package services

import (
	"context"

	"catalog-migration-service/internal/catalog"
	"catalog-migration-service/internal/clients"

	"github.com/stretchr/testify/mock"
)

// MockDestinationClient is a mock implementation of clients.DestinationClient
type MockDestinationClient struct {
	mock.Mock
}

var _ clients.DestinationClient = (*MockDestinationClient)(nil)

func (m *MockDestinationClient) CreateProduct(ctx context.Context, input *clients.ProductCreateInput) (*clients.ProductCreateResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.ProductCreateResult), args.Error(1)
}

func (m *MockDestinationClient) CreateMedia(ctx context.Context, productID string, media []catalog.Media) (*clients.MediaCreateResult, error) {
	args := m.Called(ctx, productID, media)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.MediaCreateResult), args.Error(1)
}

func (m *MockDestinationClient) UpdateVariants(ctx context.Context, productID string, variants []clients.VariantInput) (*clients.VariantsResult, error) {
	args := m.Called(ctx, productID, variants)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.VariantsResult), args.Error(1)
}

func (m *MockDestinationClient) CreateVariants(ctx context.Context, productID string, variants []clients.VariantInput) (*clients.VariantsResult, error) {
	args := m.Called(ctx, productID, variants)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.VariantsResult), args.Error(1)
}

func (m *MockDestinationClient) FindProductsByTitle(ctx context.Context, title string) ([]clients.ProductRef, error) {
	args := m.Called(ctx, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]clients.ProductRef), args.Error(1)
}

// MockSourceClient is a mock implementation of clients.SourceClient
type MockSourceClient struct {
	mock.Mock
}

var _ clients.SourceClient = (*MockSourceClient)(nil)

func (m *MockSourceClient) FetchAttributeSchema(ctx context.Context) ([]catalog.AttributeMetadata, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.AttributeMetadata), args.Error(1)
}

func (m *MockSourceClient) FetchSourceProducts(ctx context.Context, window clients.DateWindow) ([]catalog.SourceProduct, error) {
	args := m.Called(ctx, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.SourceProduct), args.Error(1)
}

func (m *MockSourceClient) FetchConfigurableCandidates(ctx context.Context, nameFragments []string) ([]catalog.SourceProduct, error) {
	args := m.Called(ctx, nameFragments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.SourceProduct), args.Error(1)
}
