package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/clinickit/pkg/email"
)

// Deliverer pushes a stored notification to its recipient.
type Deliverer interface {
	Deliver(ctx context.Context, n Notification) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, n Notification) error

// Deliver calls f.
func (f DelivererFunc) Deliver(ctx context.Context, n Notification) error { return f(ctx, n) }

// NoOpDeliverer accepts everything. In-app (system) notifications need no
// delivery beyond being stored.
type NoOpDeliverer struct{}

// Deliver does nothing.
func (NoOpDeliverer) Deliver(context.Context, Notification) error { return nil }

// ChannelSupporter is implemented by deliverers that handle only some
// channels. Manager.Send refuses channels they do not support.
type ChannelSupporter interface {
	Supports(ch Channel) bool
}

// ChannelRouter dispatches by Notification.Channel.
type ChannelRouter struct {
	routes map[Channel]Deliverer
}

// NewChannelRouter returns a router with ChannelSystem mapped to
// NoOpDeliverer.
func NewChannelRouter() *ChannelRouter {
	return &ChannelRouter{routes: map[Channel]Deliverer{ChannelSystem: NoOpDeliverer{}}}
}

// Route maps ch to d and returns the router for chaining.
func (r *ChannelRouter) Route(ch Channel, d Deliverer) *ChannelRouter {
	r.routes[ch] = d
	return r
}

// Supports reports whether ch has a route.
func (r *ChannelRouter) Supports(ch Channel) bool {
	_, ok := r.routes[ch]
	return ok
}

// Deliver hands n to the deliverer of its channel. Unrouted channels
// return ErrNoDeliverer.
func (r *ChannelRouter) Deliver(ctx context.Context, n Notification) error {
	d, ok := r.routes[n.Channel]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoDeliverer, n.Channel)
	}
	return d.Deliver(ctx, n)
}

// AddressResolver looks up the email address of a tenant user.
type AddressResolver func(ctx context.Context, tenantID, userID uuid.UUID) (string, error)

// EmailDeliverer sends email channel notifications through an email.Sender.
type EmailDeliverer struct {
	sender  email.Sender
	address AddressResolver
}

// NewEmailDeliverer sends notifications through sender to the address
// resolved for each recipient.
func NewEmailDeliverer(sender email.Sender, address AddressResolver) *EmailDeliverer {
	return &EmailDeliverer{sender: sender, address: address}
}

// Deliver emails n to its recipient.
func (d *EmailDeliverer) Deliver(ctx context.Context, n Notification) error {
	to, err := d.address(ctx, n.TenantID, n.RecipientID)
	if err != nil {
		return errors.Join(errors.New("notifications: resolve recipient address"), err)
	}
	return d.sender.Send(ctx, email.Message{
		To:       to,
		Subject:  n.Title,
		TextBody: n.Message,
		Tag:      "notification-" + string(n.Type),
	})
}
