// Package subscription reconciles asynchronous billing-provider events into
// local subscription and plan state. Events may arrive out of order,
// duplicated or retried; every handler is idempotent by upserting on the
// external subscription id. Status reconciliation is last-write-wins, which
// is a known limitation when the provider reorders payment events.
package subscription

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v84"
)

// EventKind is the closed set of billing events this service reacts to.
// Anything else decodes as KindUnrecognized and is acknowledged untouched.
type EventKind int

const (
	KindUnrecognized EventKind = iota
	KindSubscriptionCreated
	KindSubscriptionUpdated
	KindSubscriptionDeleted
	KindInvoicePaymentSucceeded
	KindInvoicePaymentFailed
	KindCheckoutCompleted
)

func (k EventKind) String() string {
	switch k {
	case KindSubscriptionCreated:
		return "subscription.created"
	case KindSubscriptionUpdated:
		return "subscription.updated"
	case KindSubscriptionDeleted:
		return "subscription.deleted"
	case KindInvoicePaymentSucceeded:
		return "invoice.payment_succeeded"
	case KindInvoicePaymentFailed:
		return "invoice.payment_failed"
	case KindCheckoutCompleted:
		return "checkout.completed"
	default:
		return "unrecognized"
	}
}

// Event is the provider notification decoded once at the boundary.
type Event struct {
	ID                string
	Kind              EventKind
	CustomerID        string
	SubscriptionID    string
	Status            string
	PeriodStart       *time.Time
	PeriodEnd         *time.Time
	CancelAtPeriodEnd bool
	TrialStart        *time.Time
	TrialEnd          *time.Time
}

type subscriptionPayload struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	Status            string `json:"status"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	TrialStart        int64  `json:"trial_start"`
	TrialEnd          int64  `json:"trial_end"`
	Items             struct {
		Data []struct {
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

type invoicePayload struct {
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
}

type checkoutPayload struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
}

// DecodeEvent maps a verified provider event onto the closed event set.
func DecodeEvent(raw *stripe.Event) (*Event, error) {
	kind := kindFor(string(raw.Type))
	ev := &Event{ID: raw.ID, Kind: kind}

	switch kind {
	case KindSubscriptionCreated, KindSubscriptionUpdated, KindSubscriptionDeleted:
		payload, err := parseEventData[subscriptionPayload](raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse subscription payload: %w", err)
		}
		ev.SubscriptionID = payload.ID
		ev.CustomerID = payload.Customer
		ev.Status = payload.Status
		ev.CancelAtPeriodEnd = payload.CancelAtPeriodEnd
		ev.TrialStart = unixTime(payload.TrialStart)
		ev.TrialEnd = unixTime(payload.TrialEnd)
		if len(payload.Items.Data) > 0 {
			ev.PeriodStart = unixTime(payload.Items.Data[0].CurrentPeriodStart)
			ev.PeriodEnd = unixTime(payload.Items.Data[0].CurrentPeriodEnd)
		}
	case KindInvoicePaymentSucceeded, KindInvoicePaymentFailed:
		payload, err := parseEventData[invoicePayload](raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse invoice payload: %w", err)
		}
		ev.CustomerID = payload.Customer
		ev.SubscriptionID = payload.Subscription
	case KindCheckoutCompleted:
		payload, err := parseEventData[checkoutPayload](raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse checkout payload: %w", err)
		}
		ev.CustomerID = payload.Customer
		ev.SubscriptionID = payload.Subscription
	}

	return ev, nil
}

func kindFor(eventType string) EventKind {
	switch eventType {
	case "customer.subscription.created":
		return KindSubscriptionCreated
	case "customer.subscription.updated":
		return KindSubscriptionUpdated
	case "customer.subscription.deleted":
		return KindSubscriptionDeleted
	case "invoice.payment_succeeded":
		return KindInvoicePaymentSucceeded
	case "invoice.payment_failed":
		return KindInvoicePaymentFailed
	case "checkout.session.completed":
		return KindCheckoutCompleted
	default:
		return KindUnrecognized
	}
}

func parseEventData[T any](event *stripe.Event) (*T, error) {
	var data T
	if err := json.Unmarshal(event.Data.Raw, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func unixTime(ts int64) *time.Time {
	if ts <= 0 {
		return nil
	}
	t := time.Unix(ts, 0)
	return &t
}
