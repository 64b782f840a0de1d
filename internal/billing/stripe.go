// Package billing wraps the Stripe API surface the gateway depends on:
// customer bookkeeping, checkout sessions, cancellation and webhook
// signature verification. Subscription state is never mutated from here
// directly; every state change arrives through verified webhook events.
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

const apiCallTimeout = 10 * time.Second

// CheckoutSession is the subset of a Stripe checkout session the handlers
// return to callers.
type CheckoutSession struct {
	ID  string
	URL string
}

// SubscriptionState is the authoritative provider-side view of a
// subscription, re-fetched whenever a payload alone is ambiguous.
type SubscriptionState struct {
	ID                string
	CustomerID        string
	Status            string
	PeriodStart       time.Time
	PeriodEnd         time.Time
	CancelAtPeriodEnd bool
	CancelAt          *time.Time
}

// Provider is the billing collaborator consumed by the rest of the core.
type Provider interface {
	CreateCustomer(ctx context.Context, userID, email string) (string, error)
	ResolveOwner(ctx context.Context, customerID string) (string, error)
	CreateSubscriptionCheckout(ctx context.Context, customerID, successURL, cancelURL string) (*CheckoutSession, error)
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*SubscriptionState, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionState, error)
	VerifyWebhookSignature(payload []byte, signature string) (*stripe.Event, error)
}

type Client struct {
	sc             *stripe.Client
	webhookSecret  string
	premiumPriceID string
}

func NewClient(secretKey, webhookSecret, premiumPriceID string) *Client {
	return &Client{
		sc:             stripe.NewClient(secretKey),
		webhookSecret:  webhookSecret,
		premiumPriceID: premiumPriceID,
	}
}

func (c *Client) CreateCustomer(ctx context.Context, userID, email string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, apiCallTimeout)
	defer cancel()

	params := &stripe.CustomerCreateParams{
		Email:    stripe.String(email),
		Metadata: map[string]string{"user_id": userID},
	}
	cust, err := c.sc.V1Customers.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to create customer: %w", err)
	}
	return cust.ID, nil
}

// ResolveOwner maps a billing customer back to the local user via the
// user_id metadata attached at customer creation. The customer object is
// fetched from Stripe rather than trusted from any webhook payload.
func (c *Client) ResolveOwner(ctx context.Context, customerID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, apiCallTimeout)
	defer cancel()

	cust, err := c.sc.V1Customers.Retrieve(ctx, customerID, nil)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve customer %s: %w", customerID, err)
	}

	userID := cust.Metadata["user_id"]
	if userID == "" {
		return "", errors.New("customer has no user_id metadata")
	}
	return userID, nil
}

func (c *Client) CreateSubscriptionCheckout(ctx context.Context, customerID, successURL, cancelURL string) (*CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, apiCallTimeout)
	defer cancel()

	params := &stripe.CheckoutSessionCreateParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(c.premiumPriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	session, err := c.sc.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// CancelAtPeriodEnd schedules the cancellation on the provider side. The
// local row transitions only when the resulting webhook arrives.
func (c *Client) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*SubscriptionState, error) {
	ctx, cancel := context.WithTimeout(ctx, apiCallTimeout)
	defer cancel()

	params := &stripe.SubscriptionUpdateParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	sub, err := c.sc.V1Subscriptions.Update(ctx, subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel subscription %s: %w", subscriptionID, err)
	}
	return subscriptionState(sub)
}

func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionState, error) {
	ctx, cancel := context.WithTimeout(ctx, apiCallTimeout)
	defer cancel()

	sub, err := c.sc.V1Subscriptions.Retrieve(ctx, subscriptionID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve subscription %s: %w", subscriptionID, err)
	}
	return subscriptionState(sub)
}

func (c *Client) VerifyWebhookSignature(payload []byte, signature string) (*stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, c.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}
	return &event, nil
}

func subscriptionState(sub *stripe.Subscription) (*SubscriptionState, error) {
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil, fmt.Errorf("subscription %s has no items", sub.ID)
	}
	item := sub.Items.Data[0]

	state := &SubscriptionState{
		ID:                sub.ID,
		Status:            string(sub.Status),
		PeriodStart:       time.Unix(item.CurrentPeriodStart, 0),
		PeriodEnd:         time.Unix(item.CurrentPeriodEnd, 0),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		state.CustomerID = sub.Customer.ID
	}
	if sub.CancelAt > 0 {
		cancelAt := time.Unix(sub.CancelAt, 0)
		state.CancelAt = &cancelAt
	}
	return state, nil
}
