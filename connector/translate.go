package connector

import (
	"encoding/json"
	"fmt"

	"coinflow/logger"
	"coinflow/models"
)

// translate maps one venue wire message into zero or more normalized
// events, mutating the book for level2 messages. Book mutation only
// ever happens here, on the consumer goroutine.
func (c *Connector) translate(raw []byte) ([]models.Event, error) {
	msg, err := models.DecodeWireMessage(raw)
	if err != nil {
		return nil, err
	}

	switch msg.Channel {
	case models.ChannelLevel2:
		return c.translateLevel2(msg)
	case models.ChannelTicker:
		return c.translateTicker(msg)
	case models.ChannelTrades:
		return c.translateTrades(msg)
	case models.ChannelOrders:
		return c.translateOrders(msg)
	default:
		return nil, fmt.Errorf("unknown channel %q", msg.Channel)
	}
}

func (c *Connector) translateLevel2(msg *models.WireMessage) ([]models.Event, error) {
	var entries []models.DepthEntry
	if err := json.Unmarshal(msg.Data, &entries); err != nil {
		return nil, fmt.Errorf("decode level2 data: %w", err)
	}

	updates := make([]models.PriceLevel, len(entries))
	for i, e := range entries {
		side, err := models.ParseSide(e.Side)
		if err != nil {
			return nil, err
		}
		updates[i] = models.PriceLevel{
			Side:      side,
			Price:     e.PriceLevel,
			Quantity:  e.NewQuantity,
			EventTime: e.EventTime,
		}
	}

	c.bookMu.Lock()
	defer c.bookMu.Unlock()

	switch msg.Event {
	case models.EventSnapshot:
		if err := c.book.ApplySnapshot(c.symbol, updates); err != nil {
			return nil, err
		}
		logger.IncrementSnapshotApplied()
	case models.EventUpdate:
		if err := c.book.ApplyDelta(c.symbol, updates); err != nil {
			return nil, err
		}
		logger.IncrementDeltaApplied()
	default:
		return nil, fmt.Errorf("unknown level2 event %q", msg.Event)
	}

	bid, ask, ok := c.book.BestBidAsk(c.symbol)
	if !ok {
		// No tradable top of book yet; nothing to tell the caller.
		return nil, nil
	}
	return []models.Event{models.TopOfBook{
		Symbol:    c.symbol,
		Bid:       bid,
		Ask:       ask,
		Timestamp: msg.Timestamp,
	}}, nil
}

func (c *Connector) translateTicker(msg *models.WireMessage) ([]models.Event, error) {
	var entries []models.TickerEntry
	if err := json.Unmarshal(msg.Data, &entries); err != nil {
		return nil, fmt.Errorf("decode ticker data: %w", err)
	}
	events := make([]models.Event, 0, len(entries))
	for _, e := range entries {
		events = append(events, models.Ticker{
			Symbol:    e.InstID,
			LastPrice: e.LastPrice,
			Timestamp: e.Timestamp,
		})
	}
	return events, nil
}

func (c *Connector) translateTrades(msg *models.WireMessage) ([]models.Event, error) {
	var entries []models.TradeEntry
	if err := json.Unmarshal(msg.Data, &entries); err != nil {
		return nil, fmt.Errorf("decode trade data: %w", err)
	}
	events := make([]models.Event, 0, len(entries))
	for _, e := range entries {
		side, err := models.ParseOrderSide(e.Side)
		if err != nil {
			return nil, err
		}
		events = append(events, models.Trade{
			Symbol:    e.InstID,
			TradeID:   e.TradeID,
			Price:     e.Price,
			Size:      e.Size,
			Side:      side,
			Timestamp: e.Timestamp,
		})
	}
	return events, nil
}

func (c *Connector) translateOrders(msg *models.WireMessage) ([]models.Event, error) {
	var entries []models.OrderEntry
	if err := json.Unmarshal(msg.Data, &entries); err != nil {
		return nil, fmt.Errorf("decode order data: %w", err)
	}
	events := make([]models.Event, 0, len(entries))
	for _, e := range entries {
		side, err := models.ParseOrderSide(e.Side)
		if err != nil {
			return nil, err
		}
		state, err := models.ParseOrderState(e.State)
		if err != nil {
			return nil, err
		}
		events = append(events, models.OrderStatusUpdate{
			Symbol:        e.InstID,
			OrderID:       e.OrderID,
			ClientOrderID: e.ClientOrderID,
			Price:         e.Price,
			Size:          e.Size,
			FilledSize:    e.FilledSize,
			Side:          side,
			State:         state,
			Timestamp:     e.Timestamp,
		})
	}
	return events, nil
}
