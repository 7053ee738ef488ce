package billing

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"blockhost/internal/metrics"
	"blockhost/internal/stories/catalog"
	"blockhost/internal/stories/orders"
)

const provider = "stripe"

// Service consumes verified billing events and performs the minimal set
// of idempotent writes that keep orders and invoices consistent, then
// triggers provisioning as a best-effort side effect. Database state is
// committed before any external side effect runs.
type Service struct {
	storage     Storage
	catalog     Catalog
	billing     BillingProvider
	provisioner Provisioner
	lifecycle   OrderLifecycle
	panel       Panel
	logger      *slog.Logger
}

func NewService(storage Storage, catalog Catalog, billing BillingProvider, provisioner Provisioner, lifecycle OrderLifecycle, panel Panel, logger *slog.Logger) *Service {
	return &Service{
		storage:     storage,
		catalog:     catalog,
		billing:     billing,
		provisioner: provisioner,
		lifecycle:   lifecycle,
		panel:       panel,
		logger:      logger,
	}
}

// ListInvoices returns recorded billing history, newest first.
func (s *Service) ListInvoices(ctx context.Context, criteria ListInvoicesCriteria) ([]*Invoice, error) {
	invoices, err := s.storage.ListInvoices(ctx, criteria)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list invoices from storage")
	}
	return invoices, nil
}

// Process handles one verified webhook event. Redeliveries of an event
// id that was already recorded are skipped. Handler failures are
// recorded on the stored event for the retry worker and do not
// propagate; the webhook must still be acknowledged to the processor.
func (s *Service) Process(ctx context.Context, event Event) error {
	switch event.Type {
	case EventCheckoutCompleted, EventInvoicePaid, EventInvoiceFailed,
		EventSubscriptionDeleted, EventSubscriptionUpdated:
	default:
		s.logger.Info("ignoring unhandled webhook event", "event_id", event.ID, "type", event.Type)
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, "ignored").Inc()
		return nil
	}

	created, err := s.storage.InsertWebhookEvent(ctx, WebhookEvent{
		Provider:  provider,
		EventID:   event.ID,
		EventType: event.Type,
		Payload:   event.Payload,
	})
	if err != nil {
		return errors.Wrap(err, "failed to record webhook event")
	}
	if !created {
		s.logger.Info("duplicate webhook delivery, skipping", "event_id", event.ID, "type", event.Type)
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, "duplicate").Inc()
		return nil
	}

	if err := s.dispatch(ctx, event); err != nil {
		s.logger.Error("webhook event processing failed",
			"event_id", event.ID,
			"type", event.Type,
			"error", err)
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, "failed").Inc()
		if markErr := s.storage.MarkWebhookEventFailed(ctx, provider, event.ID, err.Error()); markErr != nil {
			s.logger.Error("failed to mark webhook event as failed", "event_id", event.ID, "error", markErr)
		}
		return nil
	}

	metrics.WebhookEventsTotal.WithLabelValues(event.Type, "processed").Inc()
	if err := s.storage.MarkWebhookEventProcessed(ctx, provider, event.ID); err != nil {
		s.logger.Error("failed to mark webhook event as processed", "event_id", event.ID, "error", err)
	}
	return nil
}

// Reprocess re-drives a stored event that failed on first delivery.
// Used by the retry worker.
func (s *Service) Reprocess(ctx context.Context, record WebhookEvent) error {
	event := Event{ID: record.EventID, Type: record.EventType, Payload: record.Payload}

	if err := s.dispatch(ctx, event); err != nil {
		if markErr := s.storage.MarkWebhookEventFailed(ctx, provider, record.EventID, err.Error()); markErr != nil {
			s.logger.Error("failed to mark webhook event as failed", "event_id", record.EventID, "error", markErr)
		}
		return err
	}

	return s.storage.MarkWebhookEventProcessed(ctx, provider, record.EventID)
}

func (s *Service) dispatch(ctx context.Context, event Event) error {
	switch event.Type {
	case EventCheckoutCompleted:
		return s.handleCheckoutCompleted(ctx, event)
	case EventInvoicePaid:
		return s.handleInvoicePaid(ctx, event)
	case EventInvoiceFailed:
		return s.handleInvoiceFailed(ctx, event)
	case EventSubscriptionDeleted:
		return s.handleSubscriptionDeleted(ctx, event)
	case EventSubscriptionUpdated:
		return s.handleSubscriptionUpdated(ctx, event)
	}
	return nil
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, event Event) error {
	var session checkoutSessionPayload
	if err := json.Unmarshal(event.Payload, &session); err != nil {
		return errors.Wrap(err, "parse checkout session")
	}

	userID := session.Metadata["user_id"]
	planID := session.Metadata["plan_id"]
	if userID == "" || planID == "" {
		// Fail closed: never guess the owner or the plan.
		s.logger.Warn("checkout session missing required metadata, skipping",
			"event_id", event.ID,
			"session_id", session.ID,
			"has_user_id", userID != "",
			"has_plan_id", planID != "")
		return nil
	}

	existing, err := s.storage.GetOrder(ctx, orders.GetCriteria{StripeCheckoutSessionID: &session.ID})
	if err != nil {
		return errors.Wrap(err, "check for existing order")
	}
	if existing != nil {
		s.logger.Info("order already exists for checkout session",
			"session_id", session.ID,
			"order", existing.DisplayID)
		return nil
	}

	plan, err := s.catalog.GetPlan(ctx, catalog.GetPlanCriteria{ID: &planID})
	if err != nil {
		return errors.Wrap(err, "get plan")
	}
	if plan == nil {
		return errors.Errorf("plan %s referenced by checkout session %s not found", planID, session.ID)
	}

	product, err := s.catalog.GetProduct(ctx, catalog.GetProductCriteria{ID: &plan.ProductID})
	if err != nil {
		return errors.Wrap(err, "get product")
	}
	if product == nil {
		return errors.Errorf("product %s for plan %s not found", plan.ProductID, planID)
	}

	variant, err := s.resolveVariant(ctx, session.Metadata["variant_id"], product.ID)
	if err != nil {
		return err
	}

	if session.Customer != "" {
		if err := s.storage.UpsertCustomer(ctx, session.Customer, userID); err != nil {
			s.logger.Error("failed to upsert customer mapping",
				"stripe_customer_id", session.Customer,
				"error", err)
		}
	}

	var nextBilling *time.Time
	if session.Subscription != "" {
		end, err := s.billing.SubscriptionPeriodEnd(ctx, session.Subscription)
		if err != nil {
			s.logger.Warn("failed to resolve subscription period end",
				"subscription_id", session.Subscription,
				"error", err)
		} else {
			nextBilling = &end
		}
	}

	order := orders.Order{
		UserID:                  userID,
		UserEmail:               session.CustomerDetails.Email,
		ProductID:               &product.ID,
		ProductName:             metadataOr(session.Metadata, "product_name", product.Name),
		PlanID:                  &plan.ID,
		PlanName:                metadataOr(session.Metadata, "plan_name", plan.Name),
		Price:                   plan.Price,
		Status:                  orders.StatusPending,
		StripeCheckoutSessionID: &session.ID,
		NextBillingDate:         nextBilling,
	}
	if session.Subscription != "" {
		order.StripeSubscriptionID = &session.Subscription
	}
	if variant != nil {
		order.VariantID = &variant.ID
		order.VariantName = lo.ToPtr(metadataOr(session.Metadata, "variant_name", variant.Name))
	}

	created, err := s.storage.CreateOrder(ctx, order)
	if err != nil {
		return errors.Wrap(err, "create order")
	}

	s.logger.Info("order created from checkout",
		"order", created.DisplayID,
		"user_id", userID,
		"plan", created.PlanName)

	// The order is committed; a provisioning failure leaves it in
	// pending/failed for the retry worker and admin tooling.
	if _, err := s.provisioner.ProvisionOrder(ctx, created.ID); err != nil {
		s.logger.Error("provisioning after checkout failed",
			"order", created.DisplayID,
			"error", err)
	}

	return nil
}

func (s *Service) resolveVariant(ctx context.Context, variantID, productID string) (*catalog.Variant, error) {
	if variantID != "" {
		variant, err := s.catalog.GetVariant(ctx, catalog.GetVariantCriteria{ID: &variantID})
		if err != nil {
			return nil, errors.Wrap(err, "get variant")
		}
		return variant, nil
	}

	variant, err := s.catalog.GetVariant(ctx, catalog.GetVariantCriteria{DefaultOfProduct: &productID})
	if err != nil {
		return nil, errors.Wrap(err, "get default variant")
	}
	return variant, nil
}

func (s *Service) handleInvoicePaid(ctx context.Context, event Event) error {
	var inv invoicePayload
	if err := json.Unmarshal(event.Payload, &inv); err != nil {
		return errors.Wrap(err, "parse invoice")
	}

	var userID *string
	if inv.Customer != "" {
		var err error
		userID, err = s.storage.GetCustomerUserID(ctx, inv.Customer)
		if err != nil {
			// Best-effort: the order lookup below can still attribute the
			// invoice to a user.
			s.logger.Warn("failed to resolve customer mapping for invoice",
				"stripe_customer_id", inv.Customer,
				"invoice_id", inv.ID,
				"error", err)
		}
	}

	subID := inv.subscriptionID()

	var order *orders.Order
	if subID != "" {
		var err error
		order, err = s.storage.GetOrder(ctx, orders.GetCriteria{StripeSubscriptionID: &subID})
		if err != nil {
			return errors.Wrap(err, "lookup order for invoice")
		}
	}

	invoice := Invoice{
		UserID:          userID,
		StripeInvoiceID: inv.ID,
		Amount:          float64(inv.AmountPaid) / 100,
		Currency:        inv.Currency,
		Status:          InvoicePaid,
	}
	if subID != "" {
		invoice.StripeSubscriptionID = &subID
	}
	if order != nil {
		invoice.OrderID = &order.ID
		if userID == nil {
			invoice.UserID = &order.UserID
		}
	}
	if inv.InvoicePDF != "" {
		invoice.PDFURL = &inv.InvoicePDF
	}
	if inv.HostedInvoiceURL != "" {
		invoice.HostedURL = &inv.HostedInvoiceURL
	}
	if inv.PeriodStart > 0 {
		invoice.PeriodStart = lo.ToPtr(time.Unix(inv.PeriodStart, 0).UTC())
	}
	if inv.PeriodEnd > 0 {
		invoice.PeriodEnd = lo.ToPtr(time.Unix(inv.PeriodEnd, 0).UTC())
	}

	if _, err := s.storage.CreateInvoice(ctx, invoice); err != nil {
		return errors.Wrap(err, "record invoice")
	}

	if order == nil {
		s.logger.Info("invoice recorded without order linkage",
			"invoice_id", inv.ID,
			"subscription_id", subID)
		return nil
	}

	if orders.IsTerminal(order.Status) {
		s.logger.Info("order is terminal, not reactivating on paid invoice",
			"order", order.DisplayID,
			"status", order.Status)
		return nil
	}

	params := orders.UpdateParams{Status: lo.ToPtr(orders.StatusActive)}
	if end, err := s.billing.SubscriptionPeriodEnd(ctx, subID); err != nil {
		s.logger.Warn("failed to refresh next billing date",
			"subscription_id", subID,
			"error", err)
	} else {
		params.NextBillingDate = &end
	}

	if _, err := s.storage.UpdateOrder(ctx, orders.GetCriteria{ID: &order.ID}, params); err != nil {
		return errors.Wrap(err, "activate order on paid invoice")
	}

	s.logger.Info("order activated on paid invoice",
		"order", order.DisplayID,
		"invoice_id", inv.ID)
	return nil
}

func (s *Service) handleInvoiceFailed(ctx context.Context, event Event) error {
	var inv invoicePayload
	if err := json.Unmarshal(event.Payload, &inv); err != nil {
		return errors.Wrap(err, "parse invoice")
	}

	subID := inv.subscriptionID()
	if subID == "" {
		s.logger.Info("failed invoice has no subscription reference, skipping", "invoice_id", inv.ID)
		return nil
	}

	order, err := s.storage.GetOrder(ctx, orders.GetCriteria{StripeSubscriptionID: &subID})
	if err != nil {
		return errors.Wrap(err, "lookup order for failed invoice")
	}
	if order == nil {
		s.logger.Info("no order for failed invoice", "subscription_id", subID)
		return nil
	}
	if orders.IsTerminal(order.Status) {
		return nil
	}

	_, err = s.storage.UpdateOrder(ctx, orders.GetCriteria{ID: &order.ID}, orders.UpdateParams{
		Status: lo.ToPtr(orders.StatusPaymentFailed),
	})
	if err != nil {
		return errors.Wrap(err, "mark order payment_failed")
	}

	s.logger.Info("order marked payment_failed", "order", order.DisplayID, "invoice_id", inv.ID)
	return nil
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, event Event) error {
	var sub subscriptionPayload
	if err := json.Unmarshal(event.Payload, &sub); err != nil {
		return errors.Wrap(err, "parse subscription")
	}

	order, err := s.storage.GetOrder(ctx, orders.GetCriteria{StripeSubscriptionID: &sub.ID})
	if err != nil {
		return errors.Wrap(err, "lookup order for deleted subscription")
	}
	if order == nil {
		s.logger.Info("no order for deleted subscription", "subscription_id", sub.ID)
		return nil
	}

	cancelled, err := s.lifecycle.Cancel(ctx, order.ID)
	if err != nil {
		return errors.Wrap(err, "cancel order")
	}

	// Best-effort: the cancellation is committed, a panel failure is
	// only logged and left to manual remediation.
	if order.PanelServerID != nil {
		if err := s.panel.SuspendServer(ctx, *order.PanelServerID); err != nil {
			s.logger.Error("failed to suspend panel server for cancelled order",
				"order", cancelled.DisplayID,
				"server_id", *order.PanelServerID,
				"error", err)
		}
	}

	s.logger.Info("order cancelled on subscription deletion", "order", cancelled.DisplayID)
	return nil
}

func (s *Service) handleSubscriptionUpdated(ctx context.Context, event Event) error {
	var sub subscriptionPayload
	if err := json.Unmarshal(event.Payload, &sub); err != nil {
		return errors.Wrap(err, "parse subscription")
	}

	order, err := s.storage.GetOrder(ctx, orders.GetCriteria{StripeSubscriptionID: &sub.ID})
	if err != nil {
		return errors.Wrap(err, "lookup order for updated subscription")
	}
	if order == nil {
		s.logger.Info("no order for updated subscription", "subscription_id", sub.ID)
		return nil
	}
	if orders.IsTerminal(order.Status) {
		// Leaving a terminal state requires an explicit admin action.
		s.logger.Info("order is terminal, ignoring subscription update",
			"order", order.DisplayID,
			"status", order.Status,
			"subscription_status", sub.Status)
		return nil
	}

	status := mapSubscriptionStatus(sub.Status)
	if status == orders.StatusCancelled {
		if _, err := s.lifecycle.Cancel(ctx, order.ID); err != nil {
			return errors.Wrap(err, "cancel order on subscription update")
		}
		return nil
	}

	params := orders.UpdateParams{Status: &status}
	if end := sub.periodEnd(); end != nil {
		params.NextBillingDate = end
	}

	if _, err := s.storage.UpdateOrder(ctx, orders.GetCriteria{ID: &order.ID}, params); err != nil {
		return errors.Wrap(err, "update order from subscription")
	}

	s.logger.Info("order updated from subscription",
		"order", order.DisplayID,
		"status", status)
	return nil
}

func mapSubscriptionStatus(stripeStatus string) orders.Status {
	switch stripeStatus {
	case "past_due":
		return orders.StatusPaymentFailed
	case "canceled":
		return orders.StatusCancelled
	case "unpaid":
		return orders.StatusSuspended
	default:
		return orders.StatusActive
	}
}

func metadataOr(metadata map[string]string, key, fallback string) string {
	if v := metadata[key]; v != "" {
		return v
	}
	return fallback
}
