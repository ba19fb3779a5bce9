package services

import (
	"context"
	stderrors "errors"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"

	"treecert/internal/errors"
	"treecert/internal/models"
)

func TestPageWindow(t *testing.T) {
	tests := []struct {
		name       string
		limit      int
		page       int
		wantLimit  int
		wantOffset int
		wantErr    bool
	}{
		{name: "first page", limit: 50, page: 0, wantLimit: 50, wantOffset: 0},
		{name: "third page", limit: 50, page: 2, wantLimit: 50, wantOffset: 100},
		{name: "capped", limit: 5000, page: 1, wantLimit: 1000, wantOffset: 1000},
		{name: "unlimited", limit: 0, page: 3, wantLimit: 0, wantOffset: 0},
		{name: "negative limit", limit: -1, wantErr: true},
		{name: "negative page", limit: 10, page: -1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, offset, err := pageWindow(tt.limit, tt.page)
			if tt.wantErr {
				if !stderrors.Is(err, errors.ErrInvalidInput) {
					t.Errorf("pageWindow(%d, %d) error = %v, want ErrInvalidInput", tt.limit, tt.page, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if limit != tt.wantLimit || offset != tt.wantOffset {
				t.Errorf("pageWindow(%d, %d) = (%d, %d), want (%d, %d)", tt.limit, tt.page, limit, offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

// emulatorLedger connects to the Firestore emulator in a fresh collection.
// Start one with `gcloud emulators firestore start` and export
// FIRESTORE_EMULATOR_HOST to run these tests.
func emulatorLedger(t *testing.T) *LedgerService {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	client, err := firestore.NewClient(context.Background(), "treecert-test")
	if err != nil {
		t.Fatalf("firestore.NewClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return NewLedgerService(client, "certificates-"+uuid.NewString())
}

func issued(treeID, owner string, at time.Time) *models.IssuedCertificate {
	data := &models.CertificateData{Certificate: models.Certificate{TreeID: treeID, Owner: owner}}
	name := data.DefaultFileName()
	return models.NewIssuedCertificate(data, name, "/tmp/"+name, 1024, at)
}

func TestLedgerService_RecordAndGet(t *testing.T) {
	ls := emulatorLedger(t)
	ctx := context.Background()
	at := time.Date(2026, 4, 1, 10, 30, 0, 0, time.UTC)

	entry := issued("VE-229", "Anna Berger", at)
	id, err := ls.Record(ctx, entry)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if id == "" || entry.Id != id {
		t.Errorf("Record id = %q, entry.Id = %q", id, entry.Id)
	}

	got, err := ls.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Id != id || got.TreeID != "VE-229" || got.Owner != "Anna Berger" || got.SizeBytes != 1024 {
		t.Errorf("Get = %+v", got)
	}
	if !got.IssuedAt.Equal(at) {
		t.Errorf("IssuedAt = %v, want %v", got.IssuedAt, at)
	}

	if _, err := ls.Get(ctx, "missing"); !stderrors.Is(err, errors.ErrNotFound) {
		t.Errorf("Get(missing) = %v, want ErrNotFound", err)
	}

	broken := ls.client.Collection(ls.collection).Doc("broken")
	if _, err := broken.Set(ctx, map[string]interface{}{"treeId": "VE-1", "issuedAt": "yesterday"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := ls.Get(ctx, "broken"); !stderrors.Is(err, errors.ErrInternal) {
		t.Errorf("Get(broken) = %v, want ErrInternal", err)
	}
}

func TestLedgerService_FindByTreeIDAndList(t *testing.T) {
	ls := emulatorLedger(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	for i, e := range []*models.IssuedCertificate{
		issued("VE-229", "Anna", base),
		issued("VE-230", "Ben", base.Add(time.Hour)),
		issued("VE-229", "Anna", base.Add(2*time.Hour)),
	} {
		if _, err := ls.Record(ctx, e); err != nil {
			t.Fatalf("Record #%d: %v", i, err)
		}
	}

	found, err := ls.FindByTreeID(ctx, "VE-229")
	if err != nil {
		t.Fatalf("FindByTreeID: %v", err)
	}
	if len(found) != 2 || !found[0].IssuedAt.After(found[1].IssuedAt) {
		t.Errorf("FindByTreeID returned %d entries, want 2 newest first", len(found))
	}

	if _, err := ls.FindByTreeID(ctx, "VE-999"); !stderrors.Is(err, errors.ErrNotFound) {
		t.Errorf("FindByTreeID(unknown) = %v, want ErrNotFound", err)
	}

	page, err := ls.List(ctx, 2, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page) != 2 || page[0].TreeID != "VE-229" || page[1].TreeID != "VE-230" {
		t.Errorf("List(2, 0) = %d entries", len(page))
	}

	rest, err := ls.List(ctx, 2, 1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rest) != 1 || !rest[0].IssuedAt.Equal(base) {
		t.Errorf("List(2, 1) = %d entries, want the oldest", len(rest))
	}
}
