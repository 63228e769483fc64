package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"adreel/contexts/ads-accounts/link-service/adapters/googleads"
	"adreel/contexts/ads-accounts/link-service/adapters/memory"
	"adreel/contexts/ads-accounts/link-service/domain/entities"
	domainerrors "adreel/contexts/ads-accounts/link-service/domain/errors"
)

var testNow = time.Date(2026, time.February, 6, 12, 0, 0, 0, time.UTC)

func TestRequestLinkRecordsPendingInvitation(t *testing.T) {
	service, store, gateway := newService(nil)

	account, err := service.RequestLink(context.Background(), "user-1", "123-456-7890")
	if err != nil {
		t.Fatalf("request link: %v", err)
	}
	if account.LinkStatus != entities.LinkStatusPending || account.GoogleCustomerID != "1234567890" {
		t.Fatalf("unexpected account: %+v", account)
	}
	if account.ResourceName == "" || account.LinkRequestedAt == nil || !account.LinkRequestedAt.Equal(testNow) {
		t.Fatalf("expected invitation to be recorded, got %+v", account)
	}
	if len(gateway.Created) != 1 || gateway.Created[0] != "1234567890" {
		t.Fatalf("expected one invitation for the clean id, got %v", gateway.Created)
	}
	stored, err := store.GetByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if stored.ResourceName != account.ResourceName {
		t.Fatalf("expected stored resource name %q, got %q", account.ResourceName, stored.ResourceName)
	}
}

func TestRequestLinkRejectsInvalidCustomerID(t *testing.T) {
	service, _, gateway := newService(nil)

	_, err := service.RequestLink(context.Background(), "user-1", "12345")
	if !errors.Is(err, domainerrors.ErrInvalidCustomerID) {
		t.Fatalf("expected ErrInvalidCustomerID, got %v", err)
	}
	if len(gateway.Created) != 0 {
		t.Fatal("expected no external call for an invalid id")
	}
}

func TestRequestLinkConflicts(t *testing.T) {
	linkedAt := testNow.Add(-time.Hour)
	service, _, _ := newService([]entities.ClientAccount{{
		ClientAccountID:  "acct-2",
		UserID:           "user-2",
		GoogleCustomerID: "1234567890",
		LinkStatus:       entities.LinkStatusLinked,
		ResourceName:     "customers/0000000000/customerClientLinks/1234567890~1",
		LinkedAt:         &linkedAt,
	}})

	_, err := service.RequestLink(context.Background(), "user-1", "1234567890")
	if !errors.Is(err, domainerrors.ErrCustomerAlreadyLinked) {
		t.Fatalf("expected conflict for another user's linked account, got %v", err)
	}
	_, err = service.RequestLink(context.Background(), "user-2", "123-456-7890")
	if !errors.Is(err, domainerrors.ErrCustomerAlreadyLinked) {
		t.Fatalf("expected conflict for an account already linked to this user, got %v", err)
	}
}

func TestRequestLinkGatewayFailureIsExternal(t *testing.T) {
	service, store, gateway := newService(nil)
	gateway.LinkErr = errors.New("quota exhausted")

	_, err := service.RequestLink(context.Background(), "user-1", "1234567890")
	if !errors.Is(err, domainerrors.ErrExternalService) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	account, err := store.GetByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.ResourceName != "" {
		t.Fatal("expected no invitation to be stored")
	}
}

func TestReconcileActiveLinksAndLaterFailureKeepsLinked(t *testing.T) {
	service, _, gateway := newService(nil)
	ctx := context.Background()

	requested, err := service.RequestLink(ctx, "user-1", "1234567890")
	if err != nil {
		t.Fatalf("request link: %v", err)
	}
	gateway.SetStatus(requested.ResourceName, entities.ExternalStatusActive)

	linked, err := service.Reconcile(ctx, "user-1")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if linked.LinkStatus != entities.LinkStatusLinked || linked.LinkedAt == nil || !linked.LinkedAt.Equal(testNow) {
		t.Fatalf("expected LINKED with linkedAt, got %+v", linked)
	}
	if linked.LastSyncAt == nil {
		t.Fatal("expected lastSyncAt after a successful query")
	}

	gateway.SetQueryErr(errors.New("api unavailable"))
	after, err := service.Reconcile(ctx, "user-1")
	if err != nil {
		t.Fatalf("reconcile with failing gateway: %v", err)
	}
	if after.LinkStatus != entities.LinkStatusLinked {
		t.Fatalf("expected LINKED to survive a failed query, got %s", after.LinkStatus)
	}
	if after.LinkedAt == nil || !after.LinkedAt.Equal(testNow) {
		t.Fatalf("expected linkedAt to be kept, got %v", after.LinkedAt)
	}
	if after.LastSyncAt == nil || !after.LastSyncAt.Equal(testNow) {
		t.Fatalf("expected the failed attempt to be stamped, got %v", after.LastSyncAt)
	}
}

func TestReconcileRevokedLinkBecomesRefused(t *testing.T) {
	linkedAt := testNow.Add(-48 * time.Hour)
	resource := "customers/0000000000/customerClientLinks/1234567890~1"
	service, _, gateway := newService([]entities.ClientAccount{{
		ClientAccountID:  "acct-1",
		UserID:           "user-1",
		GoogleCustomerID: "1234567890",
		LinkStatus:       entities.LinkStatusLinked,
		ResourceName:     resource,
		LinkedAt:         &linkedAt,
	}})
	gateway.SetStatus(resource, entities.ExternalStatusCancelled)

	account, err := service.Reconcile(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if account.LinkStatus != entities.LinkStatusRefused || account.LinkedAt != nil {
		t.Fatalf("expected REFUSED without linkedAt, got %+v", account)
	}
}

func TestReconcileWithoutInvitationSkipsGateway(t *testing.T) {
	service, _, gateway := newService(nil)
	gateway.SetQueryErr(errors.New("must not be called"))

	account, err := service.Reconcile(context.Background(), "user-unknown")
	if err != nil {
		t.Fatalf("reconcile unknown user: %v", err)
	}
	if account.LinkStatus != entities.LinkStatusPending {
		t.Fatalf("expected PENDING, got %s", account.LinkStatus)
	}

	if _, err := service.EnsureClientAccount(context.Background(), "user-1"); err != nil {
		t.Fatalf("ensure account: %v", err)
	}
	account, err = service.Reconcile(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("reconcile account without invitation: %v", err)
	}
	if account.LinkStatus != entities.LinkStatusPending || account.LastSyncAt != nil {
		t.Fatalf("expected untouched PENDING account, got %+v", account)
	}
}

func TestEnsureClientAccountIsIdempotent(t *testing.T) {
	service, _, _ := newService(nil)
	ctx := context.Background()

	first, err := service.EnsureClientAccount(ctx, "user-1")
	if err != nil {
		t.Fatalf("ensure account: %v", err)
	}
	second, err := service.EnsureClientAccount(ctx, "user-1")
	if err != nil {
		t.Fatalf("ensure account again: %v", err)
	}
	if first.ClientAccountID == "" || first.ClientAccountID != second.ClientAccountID {
		t.Fatalf("expected the same account, got %q and %q", first.ClientAccountID, second.ClientAccountID)
	}
	if _, err := service.EnsureClientAccount(ctx, " "); !errors.Is(err, domainerrors.ErrInvalidUser) {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}
}

func TestClientAccountLooksUpWithoutCreating(t *testing.T) {
	service, store, _ := newService(nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		userID  string
		wantErr error
	}{
		{name: "unknown user", userID: "user-1", wantErr: domainerrors.ErrClientAccountNotFound},
		{name: "blank user", userID: "  ", wantErr: domainerrors.ErrInvalidUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := service.ClientAccount(ctx, tt.userID); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
	if _, err := store.GetByUser(ctx, "user-1"); !errors.Is(err, domainerrors.ErrClientAccountNotFound) {
		t.Fatalf("expected lookup to leave no account behind, got %v", err)
	}

	opened, err := service.EnsureClientAccount(ctx, "user-1")
	if err != nil {
		t.Fatalf("open account: %v", err)
	}
	found, err := service.ClientAccount(ctx, "user-1")
	if err != nil {
		t.Fatalf("lookup after opening: %v", err)
	}
	if found.ClientAccountID != opened.ClientAccountID {
		t.Fatalf("expected %q, got %q", opened.ClientAccountID, found.ClientAccountID)
	}
}

func newService(seed []entities.ClientAccount) (Service, *memory.Store, *googleads.StaticGateway) {
	store := memory.NewStore(seed)
	gateway := &googleads.StaticGateway{}
	return Service{
		Accounts:    store,
		Gateway:     gateway,
		Clock:       fixedClock{now: testNow},
		IDGenerator: store,
	}, store, gateway
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }
