package devicesessions

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/playgate/internal/policy"
	"github.com/angelmondragon/playgate/pkg/db/models"
	"github.com/angelmondragon/playgate/pkg/enums"
	pkgerrors "github.com/angelmondragon/playgate/pkg/errors"
	pgredis "github.com/angelmondragon/playgate/pkg/redis"
)

const testTTL = time.Hour

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	ledger    Ledger
	clock     *fakeClock
	newRental func(t *testing.T, maxDevices int) policy.RentalRecord
}

func memoryHarness(t *testing.T) harness {
	clock := newFakeClock()
	return harness{
		ledger:    NewMemoryLedger(testTTL, clock.Now),
		clock:     clock,
		newRental: plainRental,
	}
}

func redisHarness(t *testing.T) harness {
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	clock := newFakeClock()
	return harness{
		ledger:    NewRedisLedger(pgredis.NewFromRaw(raw), testTTL, clock.Now),
		clock:     clock,
		newRental: plainRental,
	}
}

func sqlHarness(t *testing.T) harness {
	conn := openLedgerDB(t)
	clock := newFakeClock()
	return harness{
		ledger: NewSQLLedger(conn, testTTL, clock.Now),
		clock:  clock,
		newRental: func(t *testing.T, maxDevices int) policy.RentalRecord {
			return insertRental(t, conn, clock.Now(), maxDevices)
		},
	}
}

func openLedgerDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:ledger_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func insertRental(t *testing.T, conn *gorm.DB, now time.Time, maxDevices int) policy.RentalRecord {
	t.Helper()
	content := &models.Content{
		Kind:             enums.ContentKindMovie,
		Title:            "Ledger Movie",
		Tier:             enums.AccessTierRent,
		RentalPrice:      decimal.RequireFromString("2.99"),
		RentalPeriodDays: 2,
		RentalMaxDevices: maxDevices,
	}
	if err := conn.Create(content).Error; err != nil {
		t.Fatalf("create content: %v", err)
	}
	row := &models.Rental{
		ViewerID:      uuid.New(),
		ContentID:     content.ID,
		StartsAt:      now.Add(-time.Hour),
		EndsAt:        now.Add(48 * time.Hour),
		PaymentStatus: enums.RentalPaymentCompleted,
		MaxDevices:    maxDevices,
	}
	if err := conn.Create(row).Error; err != nil {
		t.Fatalf("create rental: %v", err)
	}
	return policy.RentalRecord{
		ID:            row.ID,
		ViewerID:      row.ViewerID,
		ContentID:     row.ContentID,
		StartsAt:      row.StartsAt,
		EndsAt:        row.EndsAt,
		PaymentStatus: row.PaymentStatus,
		MaxDevices:    row.MaxDevices,
	}
}

func plainRental(t *testing.T, maxDevices int) policy.RentalRecord {
	return policy.RentalRecord{
		ID:            uuid.New(),
		ViewerID:      uuid.New(),
		ContentID:     uuid.New(),
		PaymentStatus: enums.RentalPaymentCompleted,
		MaxDevices:    maxDevices,
	}
}

func forEachLedger(t *testing.T, fn func(t *testing.T, h harness)) {
	builders := map[string]func(t *testing.T) harness{
		"memory": memoryHarness,
		"redis":  redisHarness,
		"sql":    sqlHarness,
	}
	for _, name := range []string{"memory", "redis", "sql"} {
		build := builders[name]
		t.Run(name, func(t *testing.T) {
			fn(t, build(t))
		})
	}
}

func admit(l Ledger, ctx context.Context, rental policy.RentalRecord, sessionID string) error {
	_, err := l.Admit(ctx, rental, sessionID)
	return err
}

func mustActive(t *testing.T, h harness, rental policy.RentalRecord, want int) {
	t.Helper()
	got, err := h.ledger.Active(context.Background(), rental)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if got != want {
		t.Fatalf("expected %d active sessions, got %d", want, got)
	}
}

func TestAdmitReleaseScenario(t *testing.T) {
	forEachLedger(t, func(t *testing.T, h harness) {
		ctx := context.Background()
		rental := h.newRental(t, 2)

		if err := admit(h.ledger, ctx, rental, "device-a"); err != nil {
			t.Fatalf("admit A: %v", err)
		}
		if err := admit(h.ledger, ctx, rental, "device-b"); err != nil {
			t.Fatalf("admit B: %v", err)
		}
		err := admit(h.ledger, ctx, rental, "device-c")
		if !pkgerrors.IsCode(err, pkgerrors.CodeDeviceLimitExceeded) {
			t.Fatalf("expected DEVICE_LIMIT_EXCEEDED for C, got %v", err)
		}

		if err := h.ledger.Release(ctx, rental, "device-a"); err != nil {
			t.Fatalf("release A: %v", err)
		}
		if err := admit(h.ledger, ctx, rental, "device-c"); err != nil {
			t.Fatalf("admit C after release: %v", err)
		}
		mustActive(t, h, rental, 2)
	})
}

func TestReadmitIsIdempotent(t *testing.T) {
	forEachLedger(t, func(t *testing.T, h harness) {
		ctx := context.Background()
		rental := h.newRental(t, 2)

		for i := 0; i < 3; i++ {
			claimed, err := h.ledger.Admit(ctx, rental, "device-a")
			if err != nil {
				t.Fatalf("admit #%d: %v", i, err)
			}
			if claimed != (i == 0) {
				t.Fatalf("admit #%d: expected claimed=%v, got %v", i, i == 0, claimed)
			}
		}
		mustActive(t, h, rental, 1)
		if err := admit(h.ledger, ctx, rental, "device-b"); err != nil {
			t.Fatalf("second device should still fit: %v", err)
		}
	})
}

func TestReleaseAbsentSessionIsNoop(t *testing.T) {
	forEachLedger(t, func(t *testing.T, h harness) {
		ctx := context.Background()
		rental := h.newRental(t, 1)
		if err := h.ledger.Release(ctx, rental, "never-admitted"); err != nil {
			t.Fatalf("release: %v", err)
		}
		if err := admit(h.ledger, ctx, rental, "device-a"); err != nil {
			t.Fatalf("admit: %v", err)
		}
		if err := h.ledger.Release(ctx, rental, "device-a"); err != nil {
			t.Fatalf("release: %v", err)
		}
		if err := h.ledger.Release(ctx, rental, "device-a"); err != nil {
			t.Fatalf("double release: %v", err)
		}
		mustActive(t, h, rental, 0)
	})
}

func TestExpiredSessionsFreeSlots(t *testing.T) {
	forEachLedger(t, func(t *testing.T, h harness) {
		ctx := context.Background()
		rental := h.newRental(t, 1)
		if err := admit(h.ledger, ctx, rental, "device-a"); err != nil {
			t.Fatalf("admit: %v", err)
		}
		if err := admit(h.ledger, ctx, rental, "device-b"); !pkgerrors.IsCode(err, pkgerrors.CodeDeviceLimitExceeded) {
			t.Fatalf("expected limit, got %v", err)
		}

		h.clock.Advance(testTTL + time.Second)
		mustActive(t, h, rental, 0)
		if err := admit(h.ledger, ctx, rental, "device-b"); err != nil {
			t.Fatalf("admit after expiry: %v", err)
		}
	})
}

func TestConcurrentAdmitsNeverExceedCap(t *testing.T) {
	forEachLedger(t, func(t *testing.T, h harness) {
		ctx := context.Background()
		const maxDevices = 3
		const attempts = 24
		rental := h.newRental(t, maxDevices)

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			admitted int
			refused  int
		)
		start := make(chan struct{})
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				err := admit(h.ledger, ctx, rental, fmt.Sprintf("device-%d", i))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					admitted++
				case pkgerrors.IsCode(err, pkgerrors.CodeDeviceLimitExceeded):
					refused++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		close(start)
		wg.Wait()

		if admitted != maxDevices {
			t.Fatalf("expected exactly %d admissions, got %d", maxDevices, admitted)
		}
		if refused != attempts-maxDevices {
			t.Fatalf("expected %d refusals, got %d", attempts-maxDevices, refused)
		}
		mustActive(t, h, rental, maxDevices)
	})
}

func TestConcurrentReadmitsOfOneSession(t *testing.T) {
	forEachLedger(t, func(t *testing.T, h harness) {
		ctx := context.Background()
		rental := h.newRental(t, 2)

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			claimed int
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				took, err := h.ledger.Admit(ctx, rental, "same-device")
				if err != nil {
					t.Errorf("admit: %v", err)
					return
				}
				if took {
					mu.Lock()
					claimed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if claimed != 1 {
			t.Fatalf("expected exactly one call to claim the slot, got %d", claimed)
		}
		mustActive(t, h, rental, 1)
	})
}

func TestAdmitRequiresSessionID(t *testing.T) {
	forEachLedger(t, func(t *testing.T, h harness) {
		err := admit(h.ledger, context.Background(), h.newRental(t, 1), "  ")
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}
