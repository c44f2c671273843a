// Package book maintains per-symbol bid/ask ladders from the venue's
// snapshot+delta level2 feed.
package book

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"coinflow/models"
)

type level struct {
	price     string
	px        decimal.Decimal
	quantity  string
	eventTime int64
}

type ladder struct {
	bids []level
	asks []level
}

// Engine applies snapshots and deltas and answers best-bid/best-ask.
// It is not safe for concurrent use; the connector serializes all book
// mutation and reads through its single consumer goroutine.
type Engine struct {
	books map[string]*ladder
}

func NewEngine() *Engine {
	return &Engine{books: make(map[string]*ladder)}
}

// ApplySnapshot replaces all prior state for the symbol. Zero-quantity
// entries are skipped; a repeated price within one side keeps the later
// entry so each side holds at most one entry per price from the start.
func (e *Engine) ApplySnapshot(symbol string, updates []models.PriceLevel) error {
	next := &ladder{}
	seen := map[models.Side]map[string]int{
		models.SideBid: {},
		models.SideAsk: {},
	}
	for _, u := range updates {
		lvl, err := toLevel(u)
		if err != nil {
			return err
		}
		var side *[]level
		switch u.Side {
		case models.SideBid:
			side = &next.bids
		case models.SideAsk:
			side = &next.asks
		default:
			return fmt.Errorf("snapshot for %s: unknown side %q", symbol, u.Side)
		}
		if lvl.zeroQty {
			continue
		}
		if i, ok := seen[u.Side][u.Price]; ok {
			(*side)[i] = lvl.level
			continue
		}
		seen[u.Side][u.Price] = len(*side)
		*side = append(*side, lvl.level)
	}
	sortSide(next.bids, true)
	sortSide(next.asks, false)
	e.books[symbol] = next
	return nil
}

// ApplyDelta applies each update in arrival order against the existing
// ladder. A zero quantity removes the entry at that exact price string;
// a positive quantity replaces in place or inserts and re-sorts. A
// delta for an unknown symbol starts an empty ladder, matching venues
// that elide an explicit empty snapshot.
func (e *Engine) ApplyDelta(symbol string, updates []models.PriceLevel) error {
	// Validate the whole delta before touching the ladder so a
	// malformed update cannot leave a half-applied book behind.
	parsed := make([]parsedLevel, len(updates))
	for i, u := range updates {
		if u.Side != models.SideBid && u.Side != models.SideAsk {
			return fmt.Errorf("delta for %s: unknown side %q", symbol, u.Side)
		}
		lvl, err := toLevel(u)
		if err != nil {
			return err
		}
		parsed[i] = lvl
	}

	lad, ok := e.books[symbol]
	if !ok {
		lad = &ladder{}
		e.books[symbol] = lad
	}
	for i, u := range updates {
		lvl := parsed[i]
		var side *[]level
		var descending bool
		if u.Side == models.SideBid {
			side, descending = &lad.bids, true
		} else {
			side, descending = &lad.asks, false
		}
		idx := -1
		for i := range *side {
			if (*side)[i].price == u.Price {
				idx = i
				break
			}
		}
		if lvl.zeroQty {
			if idx >= 0 {
				*side = append((*side)[:idx], (*side)[idx+1:]...)
			}
			continue
		}
		if idx >= 0 {
			(*side)[idx].quantity = lvl.quantity
			(*side)[idx].eventTime = lvl.eventTime
			continue
		}
		*side = append(*side, lvl.level)
		sortSide(*side, descending)
	}
	return nil
}

// BestBidAsk returns the top of book for the symbol. ok is false until
// both sides hold at least one entry; callers treat that as "no
// tradable top-of-book yet", not an error.
func (e *Engine) BestBidAsk(symbol string) (bid, ask models.PriceLevel, ok bool) {
	lad, found := e.books[symbol]
	if !found || len(lad.bids) == 0 || len(lad.asks) == 0 {
		return models.PriceLevel{}, models.PriceLevel{}, false
	}
	return fromLevel(lad.bids[0], models.SideBid), fromLevel(lad.asks[0], models.SideAsk), true
}

// Depth reports the number of entries on each side, mainly for stats.
func (e *Engine) Depth(symbol string) (bids, asks int) {
	lad, ok := e.books[symbol]
	if !ok {
		return 0, 0
	}
	return len(lad.bids), len(lad.asks)
}

type parsedLevel struct {
	level
	zeroQty bool
}

func toLevel(u models.PriceLevel) (parsedLevel, error) {
	px, err := decimal.NewFromString(u.Price)
	if err != nil {
		return parsedLevel{}, fmt.Errorf("invalid price %q: %w", u.Price, err)
	}
	qty, err := decimal.NewFromString(u.Quantity)
	if err != nil {
		return parsedLevel{}, fmt.Errorf("invalid quantity %q: %w", u.Quantity, err)
	}
	if qty.IsNegative() {
		return parsedLevel{}, fmt.Errorf("negative quantity %q at price %q", u.Quantity, u.Price)
	}
	return parsedLevel{
		level:   level{price: u.Price, px: px, quantity: u.Quantity, eventTime: u.EventTime},
		zeroQty: qty.IsZero(),
	}, nil
}

func fromLevel(l level, side models.Side) models.PriceLevel {
	return models.PriceLevel{Side: side, Price: l.price, Quantity: l.quantity, EventTime: l.eventTime}
}

// sortSide orders by decimal price value, not lexical string order.
func sortSide(side []level, descending bool) {
	sort.SliceStable(side, func(i, j int) bool {
		if descending {
			return side[i].px.GreaterThan(side[j].px)
		}
		return side[i].px.LessThan(side[j].px)
	})
}
