package models

import (
	"encoding/json"
	"fmt"
)

// Websocket channel names used by the venue.
const (
	ChannelLevel2 = "level2"
	ChannelTicker = "ticker"
	ChannelTrades = "trades"
	ChannelOrders = "orders"
)

// Websocket event names carried in the envelope.
const (
	EventSnapshot   = "snapshot"
	EventUpdate     = "update"
	EventSubscribed = "subscribe"
	EventLogin      = "login"
	EventError      = "error"
	EventPong       = "pong"
)

// WireMessage is the envelope of every inbound websocket frame:
// {event, channel, timestamp, sequence_num, data}. Data is decoded per
// channel; an unrecognized shape is a malformed message, not a silent
// pass-through.
type WireMessage struct {
	Event       string          `json:"event"`
	Channel     string          `json:"channel,omitempty"`
	Timestamp   int64           `json:"timestamp,omitempty"`
	SequenceNum int64           `json:"sequence_num,omitempty"`
	Code        string          `json:"code,omitempty"`
	Msg         string          `json:"msg,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// DecodeWireMessage parses a raw frame into the envelope. Frames
// without an event field are rejected.
func DecodeWireMessage(raw []byte) (*WireMessage, error) {
	var msg WireMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("decode wire message: %w", err)
	}
	if msg.Event == "" {
		return nil, fmt.Errorf("wire message missing event field")
	}
	return &msg, nil
}

// DepthEntry is one level2 data element: a per-side add, replace or
// remove (new_quantity == "0") against the current ladder.
type DepthEntry struct {
	Side        string `json:"side"`
	EventTime   int64  `json:"event_time"`
	PriceLevel  string `json:"price_level"`
	NewQuantity string `json:"new_quantity"`
}

// TickerEntry is one ticker data element.
type TickerEntry struct {
	InstID    string `json:"instId"`
	LastPrice string `json:"lastPrice"`
	Timestamp int64  `json:"timestamp"`
}

// TradeEntry is one public trade data element.
type TradeEntry struct {
	InstID    string `json:"instId"`
	TradeID   string `json:"tradeId"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Side      string `json:"side"`
	Timestamp int64  `json:"timestamp"`
}

// OrderEntry is one private order-status data element.
type OrderEntry struct {
	InstID        string `json:"instId"`
	OrderID       string `json:"orderId"`
	ClientOrderID string `json:"clientOid"`
	Price         string `json:"price"`
	Size          string `json:"size"`
	FilledSize    string `json:"filledSize"`
	Side          string `json:"side"`
	State         string `json:"state"`
	Timestamp     int64  `json:"timestamp"`
}

// Control frame op values.
const (
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
	OpLogin       = "login"
	OpOrder       = "order"
	OpPing        = "ping"
)

// SubscriptionArg names one channel/instrument pair.
type SubscriptionArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

// LoginArg carries the signed websocket authentication payload.
type LoginArg struct {
	APIKey     string `json:"apiKey"`
	Passphrase string `json:"passphrase"`
	Timestamp  string `json:"timestamp"`
	Signature  string `json:"signature"`
}

// ControlFrame is an outbound {op, args} control message.
type ControlFrame struct {
	Op   string `json:"op"`
	Args []any  `json:"args,omitempty"`
}

// RawFrame is one inbound websocket frame queued for the connector's
// single consumer goroutine.
type RawFrame struct {
	Data       []byte
	ReceivedAt int64
}
