package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCandidateFetcher is a mock implementation of CandidateFetcher
type MockCandidateFetcher struct {
	mock.Mock
}

var _ CandidateFetcher = (*MockCandidateFetcher)(nil)

func (m *MockCandidateFetcher) FetchConfigurableCandidates(ctx context.Context, nameFragments []string) ([]SourceProduct, error) {
	args := m.Called(ctx, nameFragments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]SourceProduct), args.Error(1)
}

func configurable(id int, name string, links ...int) SourceProduct {
	return SourceProduct{
		ID:                  id,
		Name:                name,
		TypeID:              TypeConfigurable,
		ExtensionAttributes: ExtensionAttributes{ConfigurableProductLinks: links},
	}
}

func TestNameFragment(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Brand Flavor 30ml - Red", "Brand Flavor 30ml"},
		{"Brand X-Large Red", "Brand"},
		{"Cola Zero 330ml", "Cola Zero"},
		{"Single", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NameFragment(tt.name))
		})
	}
}

func TestGroup_AssignsChildrenAndStandalones(t *testing.T) {
	records := []SourceProduct{
		{ID: 2, Name: "Tee Cotton - Red", TypeID: TypeSimple},
		{ID: 50, Name: "Tee Cotton", TypeID: TypeConfigurable},
		{ID: 3, Name: "Tee Cotton - Blue", TypeID: TypeSimple},
		{ID: 9, Name: "Lonely Mug Large", TypeID: TypeSimple},
		{ID: 4, Name: "Cap Wool - Black", TypeID: TypeSimple},
	}

	fetcher := new(MockCandidateFetcher)
	fetcher.On("FetchConfigurableCandidates", mock.Anything, []string{"Tee Cotton", "Lonely Mug", "Cap Wool"}).Return([]SourceProduct{
		configurable(100, "Tee Cotton", 2, 3),
		configurable(101, "Tee Cotton Dup", 3),
		configurable(100, "Tee Cotton", 2, 3),
		configurable(102, "Cap Wool"),
	}, nil)

	families, stats, err := NewGrouper(fetcher).Group(context.Background(), records)
	require.NoError(t, err)
	fetcher.AssertExpectations(t)

	require.Len(t, families, 5)
	assert.Equal(t, 100, families[0].Parent.ID)
	assert.Equal(t, []int{2, 3}, ids(families[0].Children))
	assert.Equal(t, 101, families[1].Parent.ID)
	assert.Empty(t, families[1].Children)
	assert.Equal(t, 102, families[2].Parent.ID)
	assert.Empty(t, families[2].Children)
	assert.True(t, families[3].IsStandalone())
	assert.Equal(t, 9, families[3].Children[0].ID)
	assert.Equal(t, 4, families[4].Children[0].ID)

	assert.Equal(t, &GroupingStats{Simples: 4, Configurable: 1, Candidates: 3, Matched: 2, Standalone: 2}, stats)
}

func TestGroup_CoversEverySimpleOnce(t *testing.T) {
	records := []SourceProduct{
		{ID: 1, Name: "A B - x", TypeID: TypeSimple},
		{ID: 2, Name: "A B - y", TypeID: TypeSimple},
		{ID: 3, Name: "C D - z", TypeID: TypeSimple},
	}
	fetcher := new(MockCandidateFetcher)
	fetcher.On("FetchConfigurableCandidates", mock.Anything, mock.Anything).Return([]SourceProduct{
		configurable(10, "A", 1, 2, 3),
		configurable(11, "C", 3),
	}, nil)

	families, _, err := NewGrouper(fetcher).Group(context.Background(), records)
	require.NoError(t, err)

	count := map[int]int{}
	for _, fam := range families {
		for _, c := range fam.Children {
			count[c.ID]++
		}
	}
	assert.Equal(t, map[int]int{1: 1, 2: 1, 3: 1}, count)
}

func TestGroup_NoCandidates(t *testing.T) {
	records := []SourceProduct{
		{ID: 1, Name: "Foo Bar", TypeID: TypeSimple},
		{ID: 2, Name: "Baz", TypeID: TypeSimple},
	}
	fetcher := new(MockCandidateFetcher)
	fetcher.On("FetchConfigurableCandidates", mock.Anything, []string{"Foo"}).Return([]SourceProduct{}, nil)

	families, stats, err := NewGrouper(fetcher).Group(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, families, 2)
	for _, fam := range families {
		assert.True(t, fam.IsStandalone())
	}
	assert.Equal(t, 2, stats.Standalone)
}

func TestGroup_SkipsFetchWithoutFragments(t *testing.T) {
	fetcher := new(MockCandidateFetcher)
	families, _, err := NewGrouper(fetcher).Group(context.Background(), []SourceProduct{{ID: 1, Name: "Mug", TypeID: TypeSimple}})
	require.NoError(t, err)
	require.Len(t, families, 1)
	fetcher.AssertNotCalled(t, "FetchConfigurableCandidates", mock.Anything, mock.Anything)
}

func TestGroup_FetchError(t *testing.T) {
	fetcher := new(MockCandidateFetcher)
	fetcher.On("FetchConfigurableCandidates", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

	_, _, err := NewGrouper(fetcher).Group(context.Background(), []SourceProduct{{ID: 1, Name: "Tee Cotton - Red", TypeID: TypeSimple}})
	assert.Error(t, err)
}

func ids(products []SourceProduct) []int {
	out := make([]int, 0, len(products))
	for _, p := range products {
		out = append(out, p.ID)
	}
	return out
}
