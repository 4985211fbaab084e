package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// HealthChecker reports whether any configured broker accepts TCP connections.
// It backs the readiness probe so a dead broker shows up before the outbox grows.
type HealthChecker struct {
	brokers []string
	timeout time.Duration
}

func NewHealthChecker(brokers string) *HealthChecker {
	var list []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			list = append(list, b)
		}
	}
	return &HealthChecker{brokers: list, timeout: 2 * time.Second}
}

// Check returns nil once a single broker is reachable.
func (h *HealthChecker) Check(ctx context.Context) error {
	if len(h.brokers) == 0 {
		return fmt.Errorf("kafka brokers not configured")
	}
	var errs []error
	dialer := net.Dialer{Timeout: h.timeout}
	for _, broker := range h.brokers {
		conn, err := dialer.DialContext(ctx, "tcp", broker)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		_ = conn.Close()
		return nil
	}
	return fmt.Errorf("no kafka brokers reachable: %w", errors.Join(errs...))
}
