package stripe

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	stripesdk "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Client wraps the Stripe SDK for the two things the service needs from
// it: webhook event verification and subscription lookups.
type Client struct {
	api           *client.API
	webhookSecret string
	logger        *slog.Logger
}

func NewClient(secretKey, webhookSecret string, logger *slog.Logger) *Client {
	api := &client.API{}
	api.Init(secretKey, nil)

	if webhookSecret == "" {
		logger.Warn("STRIPE_WEBHOOK_SECRET is empty; webhook signatures will NOT be verified (insecure, test mode only)")
	}

	return &Client{
		api:           api,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// VerifyEvent checks the webhook signature and returns the parsed event.
// With no webhook secret configured the payload is trusted as-is.
func (c *Client) VerifyEvent(payload []byte, sigHeader string) (stripesdk.Event, error) {
	if c.webhookSecret == "" {
		var event stripesdk.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return stripesdk.Event{}, errors.Wrap(err, "parse unverified event")
		}
		return event, nil
	}

	event, err := webhook.ConstructEvent(payload, sigHeader, c.webhookSecret)
	if err != nil {
		return stripesdk.Event{}, errors.Wrap(err, "verify webhook signature")
	}
	return event, nil
}

// SubscriptionPeriodEnd resolves the current billing-period end of a
// subscription. Since the Basil API the period bounds live on the
// subscription items.
func (c *Client) SubscriptionPeriodEnd(ctx context.Context, subscriptionID string) (time.Time, error) {
	params := &stripesdk.SubscriptionParams{}
	params.Context = ctx

	sub, err := c.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "fetch subscription %s", subscriptionID)
	}

	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item.CurrentPeriodEnd > 0 {
				return time.Unix(item.CurrentPeriodEnd, 0).UTC(), nil
			}
		}
	}

	return time.Time{}, errors.Errorf("subscription %s has no current period end", subscriptionID)
}
