package testutil

import (
	"context"
	"os"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// OpenClient connects to TEST_REDIS_URL, or starts a container when TESTCONTAINERS=1.
// The test is skipped when neither is available.
func OpenClient(t *testing.T) *goredis.Client {
	t.Helper()
	ctx := context.Background()

	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		if os.Getenv("TESTCONTAINERS") != "1" {
			t.Skip("TEST_REDIS_URL not set; skipping redis integration test")
		}
		container, err := tcredis.Run(ctx, "redis:7-alpine")
		if err != nil {
			t.Fatalf("start redis container: %v", err)
		}
		t.Cleanup(func() {
			if err := testcontainers.TerminateContainer(container); err != nil {
				t.Logf("terminate redis container: %v", err)
			}
		})
		url, err = container.ConnectionString(ctx)
		if err != nil {
			t.Fatalf("redis connection string: %v", err)
		}
	}

	opts, err := goredis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Fatalf("ping redis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}
