package postgresadapter

import (
	"context"
	"testing"
	"time"

	"adreel/contexts/billing/webhook-reconciler/ports"

	"github.com/DATA-DOG/go-sqlmock"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestIsProcessedIgnoresExpiredRows(t *testing.T) {
	store, mock := newMockDedupStore(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "processed_webhook_events" WHERE event_id = .* AND expires_at > `).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	processed, err := store.IsProcessed(context.Background(), "evt_1")
	if err != nil {
		t.Fatalf("IsProcessed: %v", err)
	}
	if !processed {
		t.Fatal("expected event to be processed")
	}

	mock.ExpectQuery(`SELECT count\(\*\) FROM "processed_webhook_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	processed, err = store.IsProcessed(context.Background(), "evt_2")
	if err != nil {
		t.Fatalf("IsProcessed: %v", err)
	}
	if processed {
		t.Fatal("expected unknown event to be unprocessed")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMarkProcessedUpsertsOnlyExpiredRows(t *testing.T) {
	store, mock := newMockDedupStore(t)
	now := time.Date(2026, time.February, 6, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO "processed_webhook_events" .* ON CONFLICT \("event_id"\) DO UPDATE SET .* WHERE processed_webhook_events.expires_at < `).
		WillReturnResult(sqlmock.NewResult(0, 1))
	err := store.MarkProcessed(context.Background(), ports.ProcessedEvent{
		EventID:     "evt_1",
		EventType:   "payment_intent.succeeded",
		PayloadHash: "abc",
		ProcessedAt: now,
		ExpiresAt:   now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestClaimTakesFreeOrExpiredLease(t *testing.T) {
	until := time.Date(2026, time.February, 6, 12, 1, 0, 0, time.UTC)
	tests := []struct {
		name        string
		processed   int
		inserted    int64
		wantClaimed bool
	}{
		{name: "free lease", inserted: 1, wantClaimed: true},
		{name: "held lease", inserted: 0},
		{name: "processed event", processed: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockDedupStore(t)
			mock.ExpectQuery(`SELECT count\(\*\) FROM "processed_webhook_events" WHERE event_id = `).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(tt.processed))
			if tt.processed == 0 {
				mock.ExpectExec(`INSERT INTO "webhook_event_claims" .* ON CONFLICT \("event_id"\) DO UPDATE SET .* WHERE webhook_event_claims.expires_at < `).
					WillReturnResult(sqlmock.NewResult(0, tt.inserted))
			}

			claimed, err := store.Claim(context.Background(), "evt_1", until)
			if err != nil {
				t.Fatalf("Claim: %v", err)
			}
			if claimed != tt.wantClaimed {
				t.Fatalf("expected claimed=%v, got %v", tt.wantClaimed, claimed)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func newMockDedupStore(t *testing.T) (*DedupStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open gorm: %v", err)
	}
	return NewDedupStore(db), mock
}
