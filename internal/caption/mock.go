package caption

import "context"

// MockCaptioner returns canned descriptions for tests. DescribeFunc, when
// set, overrides the canned behavior entirely.
type MockCaptioner struct {
	Info         *ItemInfo
	Err          error
	DescribeFunc func(ctx context.Context, image []byte) (*ItemInfo, error)
}

// Describe returns the configured result.
func (m *MockCaptioner) Describe(ctx context.Context, image []byte) (*ItemInfo, error) {
	if m.DescribeFunc != nil {
		return m.DescribeFunc(ctx, image)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Info != nil {
		return m.Info, nil
	}
	return &ItemInfo{Name: "unknown object", Description: "an unidentified object"}, nil
}
