package models

import "fmt"

// Side identifies which half of the book a price level belongs to.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// ParseSide validates a wire side value. Anything other than the two
// canonical values is a malformed message.
func ParseSide(s string) (Side, error) {
	switch s {
	case "bid":
		return SideBid, nil
	case "ask":
		return SideAsk, nil
	default:
		return "", fmt.Errorf("unknown side %q", s)
	}
}

// PriceLevel is a single entry in one side of an order book. Price and
// Quantity are kept as the venue's canonical decimal strings; removal
// matches on exact price-string identity.
type PriceLevel struct {
	Side      Side   `json:"side"`
	Price     string `json:"price"`
	Quantity  string `json:"quantity"`
	EventTime int64  `json:"event_time"`
}

// EventKind tags the concrete type carried by an Event.
type EventKind string

const (
	KindTicker      EventKind = "ticker"
	KindTrade       EventKind = "trade"
	KindTopOfBook   EventKind = "top_of_book"
	KindOrderStatus EventKind = "order_status"
)

// Event is the normalized message shape handed to the caller's sink.
// Concrete types are Ticker, Trade, TopOfBook and OrderStatusUpdate.
type Event interface {
	Kind() EventKind
}

// Ticker carries the venue's last traded price for a symbol.
type Ticker struct {
	Symbol    string `json:"symbol"`
	LastPrice string `json:"last_price"`
	Timestamp int64  `json:"timestamp"`
}

func (Ticker) Kind() EventKind { return KindTicker }

// Trade is a single public fill reported by the venue. Side is the
// taker side using the venue's buy/sell enumeration, mapped one to one.
type Trade struct {
	Symbol    string    `json:"symbol"`
	TradeID   string    `json:"trade_id"`
	Price     string    `json:"price"`
	Size      string    `json:"size"`
	Side      OrderSide `json:"side"`
	Timestamp int64     `json:"timestamp"`
}

func (Trade) Kind() EventKind { return KindTrade }

// TopOfBook is emitted after a book-affecting message once both sides
// of the ladder are populated.
type TopOfBook struct {
	Symbol    string     `json:"symbol"`
	Bid       PriceLevel `json:"bid"`
	Ask       PriceLevel `json:"ask"`
	Timestamp int64      `json:"timestamp"`
}

func (TopOfBook) Kind() EventKind { return KindTopOfBook }

// OrderStatusUpdate reports a private order transition.
type OrderStatusUpdate struct {
	Symbol        string     `json:"symbol"`
	OrderID       string     `json:"order_id"`
	ClientOrderID string     `json:"client_order_id"`
	Price         string     `json:"price"`
	Size          string     `json:"size"`
	FilledSize    string     `json:"filled_size"`
	Side          OrderSide  `json:"order_side"`
	State         OrderState `json:"state"`
	Timestamp     int64      `json:"timestamp"`
}

func (OrderStatusUpdate) Kind() EventKind { return KindOrderStatus }

// Sink receives normalized events. It is never invoked with an empty
// slice; an inbound wire message that normalizes to nothing produces no
// call at all.
type Sink func(events []Event)
