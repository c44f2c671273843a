// Package subs owns the fixed channel/instrument subscription set for
// one websocket session.
package subs

import "coinflow/models"

// Controller produces the subscribe/unsubscribe control frames for the
// session. The set is decided at connector construction and never
// renegotiated at runtime; a replay after reconnect reproduces the
// exact same args in the same grouping as the original subscribe.
type Controller struct {
	args []models.SubscriptionArg
}

func New(args []models.SubscriptionArg) *Controller {
	copied := make([]models.SubscriptionArg, len(args))
	copy(copied, args)
	return &Controller{args: copied}
}

// Args returns the subscription set. The returned slice is a copy.
func (c *Controller) Args() []models.SubscriptionArg {
	out := make([]models.SubscriptionArg, len(c.args))
	copy(out, c.args)
	return out
}

func (c *Controller) SubscribeFrame() models.ControlFrame {
	return c.frame(models.OpSubscribe)
}

func (c *Controller) UnsubscribeFrame() models.ControlFrame {
	return c.frame(models.OpUnsubscribe)
}

func (c *Controller) frame(op string) models.ControlFrame {
	args := make([]any, len(c.args))
	for i, a := range c.args {
		args[i] = a
	}
	return models.ControlFrame{Op: op, Args: args}
}
