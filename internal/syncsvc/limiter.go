package syncsvc

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/tracsync/tracsync/internal/sync"
)

// limitedClient bounds in-flight remote calls with a weighted semaphore
// shared across every caller of the service.
type limitedClient struct {
	inner sync.RemoteClient
	sem   *semaphore.Weighted
}

func newLimitedClient(inner sync.RemoteClient, maxParallel int64) *limitedClient {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &limitedClient{inner: inner, sem: semaphore.NewWeighted(maxParallel)}
}

func (l *limitedClient) ListPages(ctx context.Context) ([]string, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer l.sem.Release(1)
	return l.inner.ListPages(ctx)
}

func (l *limitedClient) GetPage(ctx context.Context, name string) (string, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer l.sem.Release(1)
	return l.inner.GetPage(ctx, name)
}

func (l *limitedClient) GetPageVersion(ctx context.Context, name string, version int) (string, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer l.sem.Release(1)
	return l.inner.GetPageVersion(ctx, name, version)
}

func (l *limitedClient) PageVersion(ctx context.Context, name string) (int, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	defer l.sem.Release(1)
	return l.inner.PageVersion(ctx, name)
}

func (l *limitedClient) PutPage(ctx context.Context, name, content, comment string, version int) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.sem.Release(1)
	return l.inner.PutPage(ctx, name, content, comment, version)
}
