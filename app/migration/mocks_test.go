package migration

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/lysyi3m/post-migrate/app/database"
	"github.com/lysyi3m/post-migrate/app/source"
)

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	args := m.Called(ctx, url)
	data, _ := args.Get(0).([]byte)
	return data, args.String(1), args.Error(2)
}

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, data []byte, suggestedPath, contentType string) (string, error) {
	args := m.Called(ctx, data, suggestedPath, contentType)
	return args.String(0), args.Error(1)
}

type MockPostRepository struct {
	mock.Mock
}

func (m *MockPostRepository) UpsertPost(ctx context.Context, post database.Post) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *MockPostRepository) GetPost(ctx context.Context, id string) (*database.Post, error) {
	args := m.Called(ctx, id)
	post, _ := args.Get(0).(*database.Post)
	return post, args.Error(1)
}

func (m *MockPostRepository) GetPostCount(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) SaveRun(ctx context.Context, run database.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepository) GetLatestRun(ctx context.Context) (*database.Run, error) {
	args := m.Called(ctx)
	run, _ := args.Get(0).(*database.Run)
	return run, args.Error(1)
}

type MockSource struct {
	mock.Mock
}

func (m *MockSource) FetchPostsPage(ctx context.Context, pageIndex, pageSize int) ([]source.Post, error) {
	args := m.Called(ctx, pageIndex, pageSize)
	posts, _ := args.Get(0).([]source.Post)
	return posts, args.Error(1)
}

// migratorFunc adapts a function to PostMigrator and records the posts it saw.
type migratorFunc struct {
	mu   sync.Mutex
	seen []string
	fn   func(ctx context.Context, post source.Post) Outcome
}

func (m *migratorFunc) Migrate(ctx context.Context, post source.Post) Outcome {
	m.mu.Lock()
	m.seen = append(m.seen, post.ID)
	m.mu.Unlock()
	return m.fn(ctx, post)
}

func (m *migratorFunc) Seen() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.seen...)
}

func succeed(ctx context.Context, post source.Post) Outcome {
	return Outcome{PostID: post.ID, Success: true, ImagesMigrated: 1}
}
