package analytics

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestVisitorKey(t *testing.T) {
	tests := []struct {
		name       string
		customerID int64
		ip         net.IP
		want       string
	}{
		{"customer wins over ip", 5, net.ParseIP("10.0.0.1"), "views:1:customer:5"},
		{"anonymous by ip", 0, net.ParseIP("10.0.0.1"), "views:1:ip:10.0.0.1"},
		{"unidentifiable", 0, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := visitorKey(1, tt.customerID, tt.ip); got != tt.want {
				t.Errorf("visitorKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})

	cleanup := func() {
		client.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return client, cleanup
}

func TestFirstViewDedupWithRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	client, cleanup := setupTestRedis(t)
	defer cleanup()

	tracker := NewTracker(nil, client, time.Hour)
	ctx := context.Background()
	ip := net.ParseIP("192.0.2.10")

	first, err := tracker.firstView(ctx, 1, 0, ip)
	if err != nil {
		t.Fatalf("firstView: %v", err)
	}
	if !first {
		t.Error("expected the first view to be unique")
	}

	again, err := tracker.firstView(ctx, 1, 0, ip)
	if err != nil {
		t.Fatalf("firstView: %v", err)
	}
	if again {
		t.Error("expected a repeat view inside the window not to be unique")
	}

	other, err := tracker.firstView(ctx, 2, 0, ip)
	if err != nil {
		t.Fatalf("firstView: %v", err)
	}
	if !other {
		t.Error("expected a view of another product to be unique")
	}
}
