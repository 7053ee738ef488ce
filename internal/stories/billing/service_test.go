package billing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/samber/lo"

	"blockhost/internal/stories/catalog"
	"blockhost/internal/stories/orders"
	"blockhost/internal/stories/provisioning"
)

type fakeStorage struct {
	knownEvents map[string]bool
	order       *orders.Order
	plan        *catalog.Plan
	product     *catalog.Product
	variant     *catalog.Variant
	customerID  *string
	customerErr error
	invoices    []*Invoice

	createdOrder     *orders.Order
	createdInvoice   *Invoice
	updatedParams    *orders.UpdateParams
	processedEvents  []string
	failedEvents     []string
	upsertedCustomer string
	listCriteria     *ListInvoicesCriteria
}

func (f *fakeStorage) InsertWebhookEvent(_ context.Context, event WebhookEvent) (bool, error) {
	if f.knownEvents == nil {
		f.knownEvents = map[string]bool{}
	}
	if f.knownEvents[event.EventID] {
		return false, nil
	}
	f.knownEvents[event.EventID] = true
	return true, nil
}

func (f *fakeStorage) MarkWebhookEventProcessed(_ context.Context, _, eventID string) error {
	f.processedEvents = append(f.processedEvents, eventID)
	return nil
}

func (f *fakeStorage) MarkWebhookEventFailed(_ context.Context, _, eventID, _ string) error {
	f.failedEvents = append(f.failedEvents, eventID)
	return nil
}

func (f *fakeStorage) CreateOrder(_ context.Context, order orders.Order) (*orders.Order, error) {
	order.ID = "ord-new"
	order.DisplayID = "ORD-1001"
	f.createdOrder = &order
	return &order, nil
}

func (f *fakeStorage) GetOrder(_ context.Context, _ orders.GetCriteria) (*orders.Order, error) {
	return f.order, nil
}

func (f *fakeStorage) UpdateOrder(_ context.Context, _ orders.GetCriteria, params orders.UpdateParams) (*orders.Order, error) {
	f.updatedParams = &params
	updated := *f.order
	if params.Status != nil {
		updated.Status = *params.Status
	}
	return &updated, nil
}

func (f *fakeStorage) CreateInvoice(_ context.Context, invoice Invoice) (*Invoice, error) {
	f.createdInvoice = &invoice
	return &invoice, nil
}

func (f *fakeStorage) GetPlan(_ context.Context, _ catalog.GetPlanCriteria) (*catalog.Plan, error) {
	return f.plan, nil
}

func (f *fakeStorage) GetProduct(_ context.Context, _ catalog.GetProductCriteria) (*catalog.Product, error) {
	return f.product, nil
}

func (f *fakeStorage) GetVariant(_ context.Context, _ catalog.GetVariantCriteria) (*catalog.Variant, error) {
	return f.variant, nil
}

func (f *fakeStorage) GetCustomerUserID(_ context.Context, _ string) (*string, error) {
	return f.customerID, f.customerErr
}

func (f *fakeStorage) ListInvoices(_ context.Context, criteria ListInvoicesCriteria) ([]*Invoice, error) {
	f.listCriteria = &criteria
	return f.invoices, nil
}

func (f *fakeStorage) UpsertCustomer(_ context.Context, stripeCustomerID, _ string) error {
	f.upsertedCustomer = stripeCustomerID
	return nil
}

type fakeBillingProvider struct {
	periodEnd time.Time
	err       error
}

func (f *fakeBillingProvider) SubscriptionPeriodEnd(_ context.Context, _ string) (time.Time, error) {
	return f.periodEnd, f.err
}

type fakeProvisioner struct {
	calls []string
	err   error
}

func (f *fakeProvisioner) ProvisionOrder(_ context.Context, orderID string) (*provisioning.Result, error) {
	f.calls = append(f.calls, orderID)
	if f.err != nil {
		return nil, f.err
	}
	return &provisioning.Result{ServerID: 1, ServerIdentifier: "a1b2c3d4"}, nil
}

type fakeLifecycle struct {
	cancelled []string
	order     *orders.Order
}

func (f *fakeLifecycle) Cancel(_ context.Context, orderID string) (*orders.Order, error) {
	f.cancelled = append(f.cancelled, orderID)
	if f.order != nil {
		return f.order, nil
	}
	return &orders.Order{ID: orderID, DisplayID: "ORD-1001", Status: orders.StatusCancelled}, nil
}

type fakeSuspender struct {
	suspended []int64
	err       error
}

func (f *fakeSuspender) SuspendServer(_ context.Context, serverID int64) error {
	f.suspended = append(f.suspended, serverID)
	return f.err
}

type fixture struct {
	storage     *fakeStorage
	provider    *fakeBillingProvider
	provisioner *fakeProvisioner
	lifecycle   *fakeLifecycle
	panel       *fakeSuspender
	svc         *Service
}

func newFixture(storage *fakeStorage) *fixture {
	f := &fixture{
		storage:     storage,
		provider:    &fakeBillingProvider{periodEnd: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)},
		provisioner: &fakeProvisioner{},
		lifecycle:   &fakeLifecycle{},
		panel:       &fakeSuspender{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewService(storage, storage, f.provider, f.provisioner, f.lifecycle, f.panel, logger)
	return f
}

func catalogFixture() *fakeStorage {
	return &fakeStorage{
		plan: &catalog.Plan{
			ID:        "plan-1",
			ProductID: "prod-1",
			Name:      "Iron Plan",
			Price:     9.99,
			RAM:       4096,
			CPU:       200,
			Disk:      20480,
		},
		product: &catalog.Product{
			ID:     "prod-1",
			Name:   "Minecraft Hosting",
			GameID: "minecraft",
		},
	}
}

func checkoutEvent(metadata string) Event {
	payload := `{
		"id": "cs_test_1",
		"customer": "cus_123",
		"subscription": "sub_123",
		"metadata": ` + metadata + `,
		"customer_details": {"email": "alice@example.com"}
	}`
	return Event{ID: "evt_1", Type: EventCheckoutCompleted, Payload: []byte(payload)}
}

func TestProcessIgnoresUnhandledEventTypes(t *testing.T) {
	f := newFixture(&fakeStorage{})

	err := f.svc.Process(context.Background(), Event{ID: "evt_x", Type: "charge.refunded", Payload: []byte(`{}`)})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if len(f.storage.knownEvents) != 0 {
		t.Error("unhandled event types must not be recorded")
	}
}

func TestProcessSkipsDuplicateDeliveries(t *testing.T) {
	f := newFixture(catalogFixture())
	event := checkoutEvent(`{"user_id": "user-1", "plan_id": "plan-1"}`)

	if err := f.svc.Process(context.Background(), event); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	firstOrder := f.storage.createdOrder
	if firstOrder == nil {
		t.Fatal("first delivery should create an order")
	}

	f.storage.createdOrder = nil
	if err := f.svc.Process(context.Background(), event); err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if f.storage.createdOrder != nil {
		t.Error("duplicate delivery must not create a second order")
	}
}

func TestCheckoutMissingPlanIDFailsClosed(t *testing.T) {
	f := newFixture(catalogFixture())
	event := checkoutEvent(`{"user_id": "user-1"}`)

	if err := f.svc.Process(context.Background(), event); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if f.storage.createdOrder != nil {
		t.Error("no order may be created when plan_id is missing")
	}
	if len(f.storage.failedEvents) != 0 {
		t.Error("missing metadata is a skip, not a processing failure")
	}
	if len(f.storage.processedEvents) != 1 {
		t.Error("the event must still be acknowledged as processed")
	}
}

func TestCheckoutMissingUserIDFailsClosed(t *testing.T) {
	f := newFixture(catalogFixture())
	event := checkoutEvent(`{"plan_id": "plan-1"}`)

	if err := f.svc.Process(context.Background(), event); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if f.storage.createdOrder != nil {
		t.Error("no order may be created when user_id is missing")
	}
}

func TestCheckoutCreatesPendingOrderAndProvisions(t *testing.T) {
	f := newFixture(catalogFixture())
	event := checkoutEvent(`{"user_id": "user-1", "plan_id": "plan-1"}`)

	if err := f.svc.Process(context.Background(), event); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	created := f.storage.createdOrder
	if created == nil {
		t.Fatal("expected an order to be created")
	}
	if created.Status != orders.StatusPending {
		t.Errorf("status = %s, want pending", created.Status)
	}
	if created.UserID != "user-1" {
		t.Errorf("user id = %s", created.UserID)
	}
	if created.UserEmail != "alice@example.com" {
		t.Errorf("user email = %s", created.UserEmail)
	}
	if created.Price != 9.99 {
		t.Errorf("price = %v, want 9.99", created.Price)
	}
	if created.StripeSubscriptionID == nil || *created.StripeSubscriptionID != "sub_123" {
		t.Errorf("subscription id = %v", created.StripeSubscriptionID)
	}
	if created.NextBillingDate == nil || !created.NextBillingDate.Equal(f.provider.periodEnd) {
		t.Errorf("next billing date = %v, want %v", created.NextBillingDate, f.provider.periodEnd)
	}

	if len(f.provisioner.calls) != 1 || f.provisioner.calls[0] != "ord-new" {
		t.Errorf("provisioner calls = %v, want [ord-new]", f.provisioner.calls)
	}
	if f.storage.upsertedCustomer != "cus_123" {
		t.Errorf("customer mapping = %q, want cus_123", f.storage.upsertedCustomer)
	}
}

func TestCheckoutProvisioningFailureKeepsOrder(t *testing.T) {
	f := newFixture(catalogFixture())
	f.provisioner.err = errors.New("no nodes available")
	event := checkoutEvent(`{"user_id": "user-1", "plan_id": "plan-1"}`)

	if err := f.svc.Process(context.Background(), event); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if f.storage.createdOrder == nil {
		t.Fatal("order insert must survive a provisioning failure")
	}
	if len(f.storage.processedEvents) != 1 {
		t.Error("the webhook event is still processed; the retry worker owns the remediation")
	}
}

func TestInvoicePaidReactivatesPaymentFailedOrder(t *testing.T) {
	storage := catalogFixture()
	storage.order = &orders.Order{
		ID:                   "ord-1",
		DisplayID:            "ORD-1001",
		UserID:               "user-1",
		Status:               orders.StatusPaymentFailed,
		StripeSubscriptionID: lo.ToPtr("sub_123"),
	}
	f := newFixture(storage)

	payload := `{
		"id": "in_1",
		"customer": "cus_123",
		"parent": {"subscription_details": {"subscription": "sub_123"}},
		"amount_paid": 999,
		"currency": "usd"
	}`
	err := f.svc.Process(context.Background(), Event{ID: "evt_2", Type: EventInvoicePaid, Payload: []byte(payload)})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if storage.createdInvoice == nil {
		t.Fatal("expected an invoice record")
	}
	if storage.createdInvoice.Amount != 9.99 {
		t.Errorf("invoice amount = %v, want 9.99", storage.createdInvoice.Amount)
	}
	if storage.createdInvoice.OrderID == nil || *storage.createdInvoice.OrderID != "ord-1" {
		t.Errorf("invoice order linkage = %v", storage.createdInvoice.OrderID)
	}
	if storage.updatedParams == nil || storage.updatedParams.Status == nil || *storage.updatedParams.Status != orders.StatusActive {
		t.Errorf("order should flip to active, got %+v", storage.updatedParams)
	}
	if storage.updatedParams.NextBillingDate == nil || !storage.updatedParams.NextBillingDate.Equal(f.provider.periodEnd) {
		t.Errorf("next billing date not refreshed: %v", storage.updatedParams.NextBillingDate)
	}
}

func TestInvoicePaidDoesNotResurrectCancelledOrder(t *testing.T) {
	storage := catalogFixture()
	storage.order = &orders.Order{
		ID:                   "ord-1",
		DisplayID:            "ORD-1001",
		Status:               orders.StatusCancelled,
		StripeSubscriptionID: lo.ToPtr("sub_123"),
	}
	f := newFixture(storage)

	payload := `{"id": "in_1", "parent": {"subscription_details": {"subscription": "sub_123"}}, "amount_paid": 999, "currency": "usd"}`
	err := f.svc.Process(context.Background(), Event{ID: "evt_3", Type: EventInvoicePaid, Payload: []byte(payload)})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if storage.createdInvoice == nil {
		t.Error("the invoice is still recorded")
	}
	if storage.updatedParams != nil {
		t.Errorf("terminal order must not change status, got %+v", storage.updatedParams)
	}
}

func TestInvoicePaidWithoutOrderStillRecordsInvoice(t *testing.T) {
	f := newFixture(catalogFixture())

	payload := `{"id": "in_1", "subscription": "sub_unknown", "amount_paid": 500, "currency": "usd"}`
	err := f.svc.Process(context.Background(), Event{ID: "evt_4", Type: EventInvoicePaid, Payload: []byte(payload)})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	inv := f.storage.createdInvoice
	if inv == nil {
		t.Fatal("expected an invoice record without order linkage")
	}
	if inv.OrderID != nil {
		t.Errorf("order id = %v, want nil", inv.OrderID)
	}
}

func TestInvoicePaidCustomerLookupFailureIsBestEffort(t *testing.T) {
	storage := catalogFixture()
	storage.customerErr = errors.New("connection reset")
	storage.order = &orders.Order{
		ID:                   "ord-1",
		DisplayID:            "ORD-1001",
		UserID:               "user-1",
		Status:               orders.StatusActive,
		StripeSubscriptionID: lo.ToPtr("sub_123"),
	}
	f := newFixture(storage)

	payload := `{
		"id": "in_1",
		"customer": "cus_123",
		"parent": {"subscription_details": {"subscription": "sub_123"}},
		"amount_paid": 999,
		"currency": "usd"
	}`
	err := f.svc.Process(context.Background(), Event{ID: "evt_10", Type: EventInvoicePaid, Payload: []byte(payload)})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	inv := storage.createdInvoice
	if inv == nil {
		t.Fatal("the invoice must still be recorded when the customer lookup fails")
	}
	if inv.UserID == nil || *inv.UserID != "user-1" {
		t.Errorf("user attribution = %v, want fallback to the order's user", inv.UserID)
	}
}

func TestListInvoicesPassesCriteriaThrough(t *testing.T) {
	storage := catalogFixture()
	storage.invoices = []*Invoice{{ID: "inv-1", Amount: 9.99}}
	f := newFixture(storage)

	invoices, err := f.svc.ListInvoices(context.Background(), ListInvoicesCriteria{UserID: lo.ToPtr("user-1"), Limit: 10})
	if err != nil {
		t.Fatalf("ListInvoices returned error: %v", err)
	}
	if len(invoices) != 1 || invoices[0].ID != "inv-1" {
		t.Errorf("invoices = %+v", invoices)
	}
	if storage.listCriteria == nil || storage.listCriteria.UserID == nil || *storage.listCriteria.UserID != "user-1" {
		t.Errorf("criteria = %+v", storage.listCriteria)
	}
}

func TestInvoiceFailedMarksOrderPaymentFailed(t *testing.T) {
	storage := catalogFixture()
	storage.order = &orders.Order{
		ID:                   "ord-1",
		DisplayID:            "ORD-1001",
		Status:               orders.StatusActive,
		StripeSubscriptionID: lo.ToPtr("sub_123"),
	}
	f := newFixture(storage)

	payload := `{"id": "in_2", "parent": {"subscription_details": {"subscription": "sub_123"}}}`
	err := f.svc.Process(context.Background(), Event{ID: "evt_5", Type: EventInvoiceFailed, Payload: []byte(payload)})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if storage.updatedParams == nil || storage.updatedParams.Status == nil || *storage.updatedParams.Status != orders.StatusPaymentFailed {
		t.Errorf("order should flip to payment_failed, got %+v", storage.updatedParams)
	}
}

func TestSubscriptionDeletedCancelsAndSuspends(t *testing.T) {
	storage := catalogFixture()
	storage.order = &orders.Order{
		ID:                   "ord-1",
		DisplayID:            "ORD-1001",
		Status:               orders.StatusActive,
		PanelServerID:        lo.ToPtr(int64(42)),
		StripeSubscriptionID: lo.ToPtr("sub_123"),
	}
	f := newFixture(storage)

	payload := `{"id": "sub_123", "status": "canceled"}`
	err := f.svc.Process(context.Background(), Event{ID: "evt_6", Type: EventSubscriptionDeleted, Payload: []byte(payload)})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if len(f.lifecycle.cancelled) != 1 || f.lifecycle.cancelled[0] != "ord-1" {
		t.Errorf("lifecycle cancels = %v, want [ord-1]", f.lifecycle.cancelled)
	}
	if len(f.panel.suspended) != 1 || f.panel.suspended[0] != 42 {
		t.Errorf("panel suspensions = %v, want [42]", f.panel.suspended)
	}
}

func TestSubscriptionDeletedPanelFailureIsBestEffort(t *testing.T) {
	storage := catalogFixture()
	storage.order = &orders.Order{
		ID:                   "ord-1",
		DisplayID:            "ORD-1001",
		Status:               orders.StatusActive,
		PanelServerID:        lo.ToPtr(int64(42)),
		StripeSubscriptionID: lo.ToPtr("sub_123"),
	}
	f := newFixture(storage)
	f.panel.err = errors.New("panel down")

	payload := `{"id": "sub_123", "status": "canceled"}`
	err := f.svc.Process(context.Background(), Event{ID: "evt_7", Type: EventSubscriptionDeleted, Payload: []byte(payload)})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if len(f.storage.processedEvents) != 1 {
		t.Error("the event is processed even when the panel suspend fails")
	}
}

func TestSubscriptionUpdatedTerminalOrderIgnored(t *testing.T) {
	storage := catalogFixture()
	storage.order = &orders.Order{
		ID:                   "ord-1",
		DisplayID:            "ORD-1001",
		Status:               orders.StatusCancelled,
		StripeSubscriptionID: lo.ToPtr("sub_123"),
	}
	f := newFixture(storage)

	payload := `{"id": "sub_123", "status": "active"}`
	err := f.svc.Process(context.Background(), Event{ID: "evt_8", Type: EventSubscriptionUpdated, Payload: []byte(payload)})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if storage.updatedParams != nil {
		t.Errorf("cancelled orders never leave the terminal state, got %+v", storage.updatedParams)
	}
	if len(f.lifecycle.cancelled) != 0 {
		t.Error("no cancel call expected")
	}
}

func TestSubscriptionUpdatedStatusMapping(t *testing.T) {
	tests := []struct {
		name         string
		stripeStatus string
		want         orders.Status
	}{
		{name: "past_due maps to payment_failed", stripeStatus: "past_due", want: orders.StatusPaymentFailed},
		{name: "unpaid maps to suspended", stripeStatus: "unpaid", want: orders.StatusSuspended},
		{name: "active maps to active", stripeStatus: "active", want: orders.StatusActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := catalogFixture()
			storage.order = &orders.Order{
				ID:                   "ord-1",
				DisplayID:            "ORD-1001",
				Status:               orders.StatusActive,
				StripeSubscriptionID: lo.ToPtr("sub_123"),
			}
			f := newFixture(storage)

			payload := `{"id": "sub_123", "status": "` + tt.stripeStatus + `"}`
			err := f.svc.Process(context.Background(), Event{ID: "evt_" + tt.stripeStatus, Type: EventSubscriptionUpdated, Payload: []byte(payload)})
			if err != nil {
				t.Fatalf("Process returned error: %v", err)
			}

			if storage.updatedParams == nil || storage.updatedParams.Status == nil || *storage.updatedParams.Status != tt.want {
				t.Errorf("status update = %+v, want %s", storage.updatedParams, tt.want)
			}
		})
	}
}

func TestSubscriptionUpdatedCanceledDelegatesToLifecycle(t *testing.T) {
	storage := catalogFixture()
	storage.order = &orders.Order{
		ID:                   "ord-1",
		DisplayID:            "ORD-1001",
		Status:               orders.StatusActive,
		StripeSubscriptionID: lo.ToPtr("sub_123"),
	}
	f := newFixture(storage)

	payload := `{"id": "sub_123", "status": "canceled"}`
	err := f.svc.Process(context.Background(), Event{ID: "evt_9", Type: EventSubscriptionUpdated, Payload: []byte(payload)})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if len(f.lifecycle.cancelled) != 1 {
		t.Errorf("lifecycle cancels = %v, want one call", f.lifecycle.cancelled)
	}
	if storage.updatedParams != nil {
		t.Error("cancellation goes through the lifecycle service, not a raw status write")
	}
}

func TestSubscriptionPeriodEndFromItems(t *testing.T) {
	payload := subscriptionPayload{}
	payload.Items.Data = []struct {
		CurrentPeriodEnd int64 `json:"current_period_end"`
	}{{CurrentPeriodEnd: 1750000000}}

	end := payload.periodEnd()
	if end == nil {
		t.Fatal("expected period end from subscription items")
	}
	if end.Unix() != 1750000000 {
		t.Errorf("period end = %v", end)
	}
}

func TestReprocessMarksProcessedOnSuccess(t *testing.T) {
	storage := catalogFixture()
	f := newFixture(storage)

	record := WebhookEvent{
		EventID:   "evt_retry",
		EventType: EventCheckoutCompleted,
		Payload:   []byte(`{"id": "cs_2", "metadata": {"user_id": "user-1", "plan_id": "plan-1"}, "customer_details": {"email": "bob@example.com"}}`),
		Attempts:  1,
	}

	if err := f.svc.Reprocess(context.Background(), record); err != nil {
		t.Fatalf("Reprocess returned error: %v", err)
	}
	if len(storage.processedEvents) != 1 || storage.processedEvents[0] != "evt_retry" {
		t.Errorf("processed events = %v", storage.processedEvents)
	}
}
