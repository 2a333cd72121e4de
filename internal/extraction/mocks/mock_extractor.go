package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"docvault/internal/extraction"
)

// MockExtractor reads the whole file before recording the call so tests can assert on the body.
type MockExtractor struct {
	mock.Mock
}

var _ extraction.Extractor = (*MockExtractor)(nil)

func (m *MockExtractor) ExtractTextFromFile(ctx context.Context, file extraction.File, ocrLanguages []string) (extraction.Result, error) {
	body, err := io.ReadAll(file.Reader)
	if err != nil {
		return extraction.Result{}, err
	}
	args := m.Called(ctx, string(body), file.MimeType, ocrLanguages)
	return args.Get(0).(extraction.Result), args.Error(1)
}
