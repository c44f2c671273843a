package book

import (
	"testing"

	"github.com/shopspring/decimal"

	"coinflow/models"
)

func bid(price, qty string) models.PriceLevel {
	return models.PriceLevel{Side: models.SideBid, Price: price, Quantity: qty}
}

func ask(price, qty string) models.PriceLevel {
	return models.PriceLevel{Side: models.SideAsk, Price: price, Quantity: qty}
}

func mustApplySnapshot(t *testing.T, e *Engine, symbol string, updates []models.PriceLevel) {
	t.Helper()
	if err := e.ApplySnapshot(symbol, updates); err != nil {
		t.Fatalf("apply snapshot: %v", err)
	}
}

func mustApplyDelta(t *testing.T, e *Engine, symbol string, updates []models.PriceLevel) {
	t.Helper()
	if err := e.ApplyDelta(symbol, updates); err != nil {
		t.Fatalf("apply delta: %v", err)
	}
}

func TestSnapshotThenDeltaScenario(t *testing.T) {
	e := NewEngine()
	mustApplySnapshot(t, e, "BTCUSDT", []models.PriceLevel{bid("100", "5"), ask("101", "3")})

	b, a, ok := e.BestBidAsk("BTCUSDT")
	if !ok {
		t.Fatalf("expected top of book after snapshot")
	}
	if b.Price != "100" || b.Quantity != "5" || a.Price != "101" || a.Quantity != "3" {
		t.Fatalf("unexpected top of book: bid=%+v ask=%+v", b, a)
	}

	// Removing the only bid empties that side and the top of book.
	mustApplyDelta(t, e, "BTCUSDT", []models.PriceLevel{bid("100", "0")})
	if _, _, ok := e.BestBidAsk("BTCUSDT"); ok {
		t.Fatalf("expected no top of book with empty bid side")
	}

	mustApplyDelta(t, e, "BTCUSDT", []models.PriceLevel{bid("99", "2")})
	b, a, ok = e.BestBidAsk("BTCUSDT")
	if !ok {
		t.Fatalf("expected top of book after bid insert")
	}
	if b.Price != "99" || b.Quantity != "2" || a.Price != "101" || a.Quantity != "3" {
		t.Fatalf("unexpected top of book: bid=%+v ask=%+v", b, a)
	}
}

func TestBestBidAskRequiresBothSides(t *testing.T) {
	e := NewEngine()
	if _, _, ok := e.BestBidAsk("BTCUSDT"); ok {
		t.Fatalf("expected no top of book for unknown symbol")
	}

	mustApplySnapshot(t, e, "BTCUSDT", []models.PriceLevel{bid("100", "5")})
	if _, _, ok := e.BestBidAsk("BTCUSDT"); ok {
		t.Fatalf("expected no top of book with empty ask side")
	}

	mustApplyDelta(t, e, "BTCUSDT", []models.PriceLevel{ask("101", "1")})
	if _, _, ok := e.BestBidAsk("BTCUSDT"); !ok {
		t.Fatalf("expected top of book once both sides populated")
	}
}

func TestZeroQuantityForMissingPriceIsNoOp(t *testing.T) {
	e := NewEngine()
	mustApplySnapshot(t, e, "BTCUSDT", []models.PriceLevel{bid("100", "5"), ask("101", "3")})
	mustApplyDelta(t, e, "BTCUSDT", []models.PriceLevel{bid("98", "0")})

	bids, asks := e.Depth("BTCUSDT")
	if bids != 1 || asks != 1 {
		t.Fatalf("expected untouched book, got bids=%d asks=%d", bids, asks)
	}
}

func TestReplaceInPlaceKeepsOneEntryPerPrice(t *testing.T) {
	e := NewEngine()
	mustApplySnapshot(t, e, "BTCUSDT", []models.PriceLevel{bid("100", "5"), ask("101", "3")})

	mustApplyDelta(t, e, "BTCUSDT", []models.PriceLevel{bid("100", "7")})

	bids, _ := e.Depth("BTCUSDT")
	if bids != 1 {
		t.Fatalf("expected single bid entry after replace, got %d", bids)
	}
	b, _, _ := e.BestBidAsk("BTCUSDT")
	if b.Quantity != "7" {
		t.Fatalf("expected replaced quantity 7, got %s", b.Quantity)
	}
}

func TestSidesStaySortedNumerically(t *testing.T) {
	e := NewEngine()
	mustApplySnapshot(t, e, "BTCUSDT", []models.PriceLevel{
		bid("9", "1"), bid("10", "1"), bid("9.5", "1"),
		ask("11", "1"), ask("10.5", "1"), ask("100", "1"),
	})
	// "9" sorts after "10" lexically; numeric ordering must win.
	mustApplyDelta(t, e, "BTCUSDT", []models.PriceLevel{bid("9.9", "1"), ask("10.9", "1")})

	lad := e.books["BTCUSDT"]
	prev := decimal.RequireFromString(lad.bids[0].price)
	for _, lvl := range lad.bids[1:] {
		cur := decimal.RequireFromString(lvl.price)
		if !cur.LessThan(prev) {
			t.Fatalf("bids not strictly descending: %s then %s", prev, cur)
		}
		prev = cur
	}
	prev = decimal.RequireFromString(lad.asks[0].price)
	for _, lvl := range lad.asks[1:] {
		cur := decimal.RequireFromString(lvl.price)
		if !cur.GreaterThan(prev) {
			t.Fatalf("asks not strictly ascending: %s then %s", prev, cur)
		}
		prev = cur
	}

	if lad.bids[0].price != "10" {
		t.Fatalf("expected best bid 10, got %s", lad.bids[0].price)
	}
	if lad.asks[0].price != "10.5" {
		t.Fatalf("expected best ask 10.5, got %s", lad.asks[0].price)
	}
}

func TestUnknownSideRejectedWithoutMutation(t *testing.T) {
	e := NewEngine()
	mustApplySnapshot(t, e, "BTCUSDT", []models.PriceLevel{bid("100", "5"), ask("101", "3")})

	err := e.ApplyDelta("BTCUSDT", []models.PriceLevel{
		bid("100", "0"),
		{Side: "offer", Price: "102", Quantity: "1"},
	})
	if err == nil {
		t.Fatalf("expected error on unknown side")
	}

	// The malformed delta must not have been half-applied.
	bids, asks := e.Depth("BTCUSDT")
	if bids != 1 || asks != 1 {
		t.Fatalf("book mutated by rejected delta: bids=%d asks=%d", bids, asks)
	}
}

func TestSnapshotReplacesPriorState(t *testing.T) {
	e := NewEngine()
	mustApplySnapshot(t, e, "BTCUSDT", []models.PriceLevel{bid("100", "5"), bid("99", "4"), ask("101", "3")})
	mustApplySnapshot(t, e, "BTCUSDT", []models.PriceLevel{bid("95", "1"), ask("96", "1")})

	b, a, ok := e.BestBidAsk("BTCUSDT")
	if !ok || b.Price != "95" || a.Price != "96" {
		t.Fatalf("snapshot did not replace state: bid=%+v ask=%+v ok=%v", b, a, ok)
	}
	bids, asks := e.Depth("BTCUSDT")
	if bids != 1 || asks != 1 {
		t.Fatalf("stale levels survived snapshot: bids=%d asks=%d", bids, asks)
	}
}

func TestSnapshotDuplicatePriceKeepsLatest(t *testing.T) {
	e := NewEngine()
	mustApplySnapshot(t, e, "BTCUSDT", []models.PriceLevel{
		bid("100", "5"),
		ask("101", "3"),
		bid("100", "7"),
	})

	bids, _ := e.Depth("BTCUSDT")
	if bids != 1 {
		t.Fatalf("duplicate snapshot price produced %d bid entries", bids)
	}
	b, _, ok := e.BestBidAsk("BTCUSDT")
	if !ok || b.Price != "100" || b.Quantity != "7" {
		t.Fatalf("expected later duplicate to win, got %+v", b)
	}
}

func TestSymbolsAreIndependent(t *testing.T) {
	e := NewEngine()
	mustApplySnapshot(t, e, "BTCUSDT", []models.PriceLevel{bid("100", "5"), ask("101", "3")})
	mustApplySnapshot(t, e, "ETHUSDT", []models.PriceLevel{bid("10", "5"), ask("11", "3")})

	mustApplyDelta(t, e, "ETHUSDT", []models.PriceLevel{bid("10", "0")})

	if _, _, ok := e.BestBidAsk("BTCUSDT"); !ok {
		t.Fatalf("BTCUSDT book affected by ETHUSDT delta")
	}
	if _, _, ok := e.BestBidAsk("ETHUSDT"); ok {
		t.Fatalf("expected empty ETHUSDT bid side")
	}
}
