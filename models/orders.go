package models

import "fmt"

// Credential holds the venue API credential supplied at connector
// construction. It is immutable and must never appear in logs.
type Credential struct {
	Key        string
	Secret     string
	Passphrase string
}

// String redacts the secret material so an accidental %v cannot leak it.
func (c Credential) String() string {
	return fmt.Sprintf("Credential{key:%s****}", firstN(c.Key, 4))
}

func firstN(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}

// OrderSide is the direction of an order or trade.
type OrderSide string

const (
	OrderBuy  OrderSide = "buy"
	OrderSell OrderSide = "sell"
)

// ParseOrderSide validates a wire order side value.
func ParseOrderSide(s string) (OrderSide, error) {
	switch s {
	case "buy":
		return OrderBuy, nil
	case "sell":
		return OrderSell, nil
	default:
		return "", fmt.Errorf("unknown order side %q", s)
	}
}

// OrderState is the normalized lifecycle state of an order. The mapping
// from venue states is fixed here; unknown venue states are rejected as
// malformed rather than passed through.
type OrderState string

const (
	StateOpen            OrderState = "open"
	StatePartiallyFilled OrderState = "partially_filled"
	StateFilled          OrderState = "filled"
	StateCancelled       OrderState = "cancelled"
	StateRejected        OrderState = "rejected"
)

// ParseOrderState maps the venue's documented order states onto the
// normalized set.
func ParseOrderState(s string) (OrderState, error) {
	switch s {
	case "live":
		return StateOpen, nil
	case "partially_filled":
		return StatePartiallyFilled, nil
	case "filled":
		return StateFilled, nil
	case "cancelled":
		return StateCancelled, nil
	case "rejected":
		return StateRejected, nil
	default:
		return "", fmt.Errorf("unknown order state %q", s)
	}
}

// OrderIntent is a single order the caller wants placed. ClientOrderID
// may be empty; the gateway assigns one before submission.
type OrderIntent struct {
	ClientOrderID string    `json:"clientOid"`
	Symbol        string    `json:"instId"`
	Side          OrderSide `json:"side"`
	Price         string    `json:"price"`
	Size          string    `json:"size"`
	OrderType     string    `json:"ordType"`
}

// OrderOutcome is the per-order result of a batch submission. Index
// refers back to the position in the original request.
type OrderOutcome struct {
	Index         int    `json:"index"`
	ClientOrderID string `json:"clientOid"`
	OrderID       string `json:"orderId,omitempty"`
	OK            bool   `json:"ok"`
	Reason        string `json:"reason,omitempty"`
}

// Balance is one asset's account balance. Assets absent from the venue
// response are treated as zero, not as errors.
type Balance struct {
	Asset     string `json:"asset"`
	Available string `json:"available"`
	Hold      string `json:"hold"`
}

// OpenOrder is a resting order as reported by the venue.
type OpenOrder struct {
	OrderID       string     `json:"orderId"`
	ClientOrderID string     `json:"clientOid"`
	Symbol        string     `json:"instId"`
	Side          OrderSide  `json:"side"`
	Price         string     `json:"price"`
	Size          string     `json:"size"`
	FilledSize    string     `json:"filledSize"`
	State         OrderState `json:"state"`
	CreatedAt     int64      `json:"createdAt"`
}
