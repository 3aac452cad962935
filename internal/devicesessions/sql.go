package devicesessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/playgate/internal/policy"
	"github.com/angelmondragon/playgate/internal/repo"
	"github.com/angelmondragon/playgate/pkg/db"
	"github.com/angelmondragon/playgate/pkg/db/models"
	pkgerrors "github.com/angelmondragon/playgate/pkg/errors"
)

const reapBatchSize = 500

var errAlreadyAdmitted = errors.New("session already admitted")

// SQLLedger keeps the cap on the rentals row: rentals.active_devices always
// equals the number of device_sessions rows for the rental, and admission is a
// conditional increment that only succeeds while below max_devices.
type SQLLedger struct {
	base repo.Base
	ttl  time.Duration
	now  func() time.Time
}

// NewSQLLedger builds a database-backed ledger.
func NewSQLLedger(conn *gorm.DB, ttl time.Duration, now func() time.Time) *SQLLedger {
	if now == nil {
		now = time.Now
	}
	return &SQLLedger{base: repo.NewBase(conn), ttl: ttlOrDefault(ttl), now: now}
}

func (l *SQLLedger) Name() string { return "sql" }

func (l *SQLLedger) Admit(ctx context.Context, rental policy.RentalRecord, sessionID string) (bool, error) {
	if err := validateSessionID(sessionID); err != nil {
		return false, err
	}
	now := l.now()
	expiresAt := now.Add(l.ttl)

	claimedSlot := false
	err := l.base.Transaction(ctx, func(tx repo.Base) error {
		conn := tx.DB(ctx)
		if _, err := pruneRental(conn, rental.ID, now); err != nil {
			return err
		}

		refreshed, err := refreshSession(conn, rental.ID, sessionID, expiresAt)
		if err != nil {
			return err
		}
		if refreshed {
			return nil
		}

		claimed := conn.Model(&models.Rental{}).
			Where("id = ? AND active_devices < max_devices", rental.ID).
			UpdateColumn("active_devices", gorm.Expr("active_devices + 1"))
		if claimed.Error != nil {
			return claimed.Error
		}
		if claimed.RowsAffected == 0 {
			// A concurrent admit of the same session may have committed while
			// this transaction waited on the rentals row; under read committed
			// the next statement sees its row.
			refreshed, err := refreshSession(conn, rental.ID, sessionID, expiresAt)
			if err != nil {
				return err
			}
			if refreshed {
				return nil
			}
			return errDeviceLimit(rental)
		}

		session := &models.DeviceSession{RentalID: rental.ID, SessionID: sessionID, ExpiresAt: expiresAt}
		if err := conn.Create(session).Error; err != nil {
			if db.IsUniqueViolation(err, "") {
				return errAlreadyAdmitted
			}
			return err
		}
		claimedSlot = true
		return nil
	})

	switch {
	case err == nil:
		return claimedSlot, nil
	case errors.Is(err, errAlreadyAdmitted):
		return false, nil
	case pkgerrors.As(err) != nil:
		return false, err
	default:
		return false, errUpstream(err, "admit")
	}
}

func refreshSession(conn *gorm.DB, rentalID uuid.UUID, sessionID string, expiresAt time.Time) (bool, error) {
	res := conn.Model(&models.DeviceSession{}).
		Where("rental_id = ? AND session_id = ?", rentalID, sessionID).
		UpdateColumn("expires_at", expiresAt)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (l *SQLLedger) Release(ctx context.Context, rental policy.RentalRecord, sessionID string) error {
	err := l.base.Transaction(ctx, func(tx repo.Base) error {
		conn := tx.DB(ctx)
		deleted := conn.Where("rental_id = ? AND session_id = ?", rental.ID, sessionID).
			Delete(&models.DeviceSession{})
		if deleted.Error != nil {
			return deleted.Error
		}
		return decrement(conn, rental.ID, deleted.RowsAffected)
	})
	if err != nil {
		return errUpstream(err, "release")
	}
	return nil
}

func (l *SQLLedger) Active(ctx context.Context, rental policy.RentalRecord) (int, error) {
	var count int64
	err := l.base.DB(ctx).Model(&models.DeviceSession{}).
		Where("rental_id = ? AND expires_at > ?", rental.ID, l.now()).
		Count(&count).Error
	if err != nil {
		return 0, errUpstream(err, "count")
	}
	return int(count), nil
}

// ReapExpired frees slots held by sessions whose TTL passed without a release.
func (l *SQLLedger) ReapExpired(ctx context.Context) (int, error) {
	now := l.now()
	var rentalIDs []uuid.UUID
	err := l.base.DB(ctx).Model(&models.DeviceSession{}).
		Distinct("rental_id").
		Where("expires_at <= ?", now).
		Limit(reapBatchSize).
		Pluck("rental_id", &rentalIDs).Error
	if err != nil {
		return 0, errUpstream(err, "reap")
	}

	total := 0
	for _, id := range rentalIDs {
		var pruned int64
		err := l.base.Transaction(ctx, func(tx repo.Base) error {
			n, err := pruneRental(tx.DB(ctx), id, now)
			pruned = n
			return err
		})
		if err != nil {
			return total, errUpstream(err, "reap")
		}
		total += int(pruned)
	}
	return total, nil
}

func pruneRental(conn *gorm.DB, rentalID uuid.UUID, now time.Time) (int64, error) {
	deleted := conn.Where("rental_id = ? AND expires_at <= ?", rentalID, now).Delete(&models.DeviceSession{})
	if deleted.Error != nil {
		return 0, deleted.Error
	}
	return deleted.RowsAffected, decrement(conn, rentalID, deleted.RowsAffected)
}

func decrement(conn *gorm.DB, rentalID uuid.UUID, n int64) error {
	if n <= 0 {
		return nil
	}
	return conn.Model(&models.Rental{}).
		Where("id = ?", rentalID).
		UpdateColumn("active_devices", gorm.Expr("CASE WHEN active_devices >= ? THEN active_devices - ? ELSE 0 END", n, n)).
		Error
}
