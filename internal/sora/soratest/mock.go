// Package soratest provides a testify mock of sora.Client.
package soratest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/maauso/sora-studio/internal/sora"
)

// MockClient implements sora.Client for testing.
type MockClient struct {
	mock.Mock
}

var _ sora.Client = (*MockClient)(nil)

func (m *MockClient) CreateVideo(ctx context.Context, params sora.CreateParams) (*sora.Video, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sora.Video), args.Error(1)
}

func (m *MockClient) RemixVideo(ctx context.Context, videoID, prompt string) (*sora.Video, error) {
	args := m.Called(ctx, videoID, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sora.Video), args.Error(1)
}

func (m *MockClient) GetVideo(ctx context.Context, videoID string) (*sora.Video, error) {
	args := m.Called(ctx, videoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sora.Video), args.Error(1)
}

func (m *MockClient) ListVideos(ctx context.Context, params sora.ListParams) (*sora.VideoList, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sora.VideoList), args.Error(1)
}

func (m *MockClient) DeleteVideo(ctx context.Context, videoID string) (*sora.DeletionResult, error) {
	args := m.Called(ctx, videoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sora.DeletionResult), args.Error(1)
}

func (m *MockClient) DownloadContent(ctx context.Context, videoID string, variant sora.Variant) ([]byte, error) {
	args := m.Called(ctx, videoID, variant)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
