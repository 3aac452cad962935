// Package devicesessions enforces the concurrent-device cap of a rental.
package devicesessions

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/playgate/internal/policy"
	pkgerrors "github.com/angelmondragon/playgate/pkg/errors"
)

// DefaultSessionTTL bounds how long an unreleased device slot stays occupied.
const DefaultSessionTTL = 4 * time.Hour

// Ledger admits and releases device sessions against a rental's device cap.
// Admit returns nil when the session holds a slot and DEVICE_LIMIT_EXCEEDED
// otherwise. claimed is true only when this call took a new slot; re-admission
// of a session that already holds one refreshes it and reports false.
// Release is idempotent.
type Ledger interface {
	Name() string
	Admit(ctx context.Context, rental policy.RentalRecord, sessionID string) (claimed bool, err error)
	Release(ctx context.Context, rental policy.RentalRecord, sessionID string) error
	Active(ctx context.Context, rental policy.RentalRecord) (int, error)
}

// Reaper is implemented by ledgers whose expired sessions need explicit cleanup.
type Reaper interface {
	ReapExpired(ctx context.Context) (int, error)
}

func errDeviceLimit(rental policy.RentalRecord) error {
	return pkgerrors.New(pkgerrors.CodeDeviceLimitExceeded, "too many devices are playing this rental").
		WithDetails(map[string]any{"max_devices": capOf(rental)})
}

func errUpstream(err error, op string) error {
	return pkgerrors.Wrap(pkgerrors.CodeUpstreamUnavailable, err, "device session ledger "+op+" failed")
}

func validateSessionID(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "device session id is required").
			WithDetails(map[string]string{"device_session_id": "is required"})
	}
	return nil
}

func capOf(rental policy.RentalRecord) int {
	if rental.MaxDevices < 1 {
		return 1
	}
	return rental.MaxDevices
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultSessionTTL
	}
	return ttl
}
