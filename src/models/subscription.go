package models

import (
	"time"
)

// -----------------------------------------------------------------------------

// MSubscriptionAction is the verb carried by a control-plane message.
type MSubscriptionAction string

const (
	ActionSubscribe   MSubscriptionAction = "subscribe"
	ActionUnsubscribe MSubscriptionAction = "unsubscribe"
)

// MSubscriptionRequest is the message the API publishes on the control plane
// and the collector consumes. Delivery is at-least-once; the consumer treats
// duplicates for an already-active symbol as no-ops.
type MSubscriptionRequest struct {
	Symbol      string              `json:"symbol"`
	Exchange    string              `json:"exchange"`
	Action      MSubscriptionAction `json:"action"`
	RequestedAt time.Time           `json:"requested_at"`
}

// -----------------------------------------------------------------------------

// MSubscriptionState is one state of the per-symbol subscription lifecycle:
// unsubscribed -> pending -> subscribed, subscribed -> unsubscribed on an
// unsubscribe request, and pending -> subscription_failed once the feed
// adapter retries are exhausted.
type MSubscriptionState string

const (
	SubStateUnsubscribed MSubscriptionState = "unsubscribed"
	SubStatePending      MSubscriptionState = "pending"
	SubStateSubscribed   MSubscriptionState = "subscribed"
	SubStateFailed       MSubscriptionState = "subscription_failed"
)

// MSubscriptionStatus is the queryable view of one symbol's state machine.
type MSubscriptionStatus struct {
	Symbol    string             `json:"symbol"`
	Exchange  string             `json:"exchange"`
	State     MSubscriptionState `json:"state"`
	UpdatedAt time.Time          `json:"updated_at"`
}
