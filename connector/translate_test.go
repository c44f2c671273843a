package connector

import (
	"testing"

	appconfig "coinflow/config"
	"coinflow/logger"
	"coinflow/models"
)

func testConfig(restURL string) *appconfig.Config {
	return &appconfig.Config{
		Coinflow: appconfig.CoinflowConfig{Name: "test", Version: "0"},
		Venue: appconfig.VenueConfig{
			WSPublicURL:  "ws://test/public",
			WSPrivateURL: "ws://test/private",
			RestURL:      restURL,
			BatchLimit:   20,
			RateLimit:    appconfig.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		},
		Channels: appconfig.ChannelsConfig{RawBuffer: 16},
		Markets:  []appconfig.MarketConfig{{Group: "BTC", QuoteAsset: "USDT"}},
	}
}

func testConnector(cred *models.Credential) *Connector {
	cfg := testConfig("http://unused")
	return New(cfg, cfg.Markets[0], cred, logger.GetLogger())
}

func TestSymbolConcatenatesGroupAndQuote(t *testing.T) {
	c := testConnector(nil)
	if c.Symbol() != "BTCUSDT" {
		t.Fatalf("unexpected symbol %q", c.Symbol())
	}
}

func TestTranslateSnapshotEmitsTopOfBook(t *testing.T) {
	c := testConnector(nil)
	events, err := c.translate([]byte(`{"event":"snapshot","channel":"level2","timestamp":5,"sequence_num":1,"data":[
		{"side":"bid","event_time":1,"price_level":"100","new_quantity":"5"},
		{"side":"ask","event_time":1,"price_level":"101","new_quantity":"3"}]}`))
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	top, ok := events[0].(models.TopOfBook)
	if !ok {
		t.Fatalf("expected TopOfBook, got %T", events[0])
	}
	if top.Symbol != "BTCUSDT" || top.Bid.Price != "100" || top.Ask.Price != "101" || top.Timestamp != 5 {
		t.Fatalf("unexpected top of book: %+v", top)
	}
}

func TestTranslateOneSidedBookEmitsNothing(t *testing.T) {
	c := testConnector(nil)
	events, err := c.translate([]byte(`{"event":"snapshot","channel":"level2","timestamp":5,"data":[
		{"side":"bid","event_time":1,"price_level":"100","new_quantity":"5"}]}`))
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("one-sided book must yield no events, got %d", len(events))
	}
}

func TestTranslateDeltaMutatesBook(t *testing.T) {
	c := testConnector(nil)
	if _, err := c.translate([]byte(`{"event":"snapshot","channel":"level2","timestamp":1,"data":[
		{"side":"bid","event_time":1,"price_level":"100","new_quantity":"5"},
		{"side":"ask","event_time":1,"price_level":"101","new_quantity":"3"}]}`)); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	events, err := c.translate([]byte(`{"event":"update","channel":"level2","timestamp":2,"data":[
		{"side":"bid","event_time":2,"price_level":"100","new_quantity":"0"},
		{"side":"bid","event_time":2,"price_level":"99","new_quantity":"2"}]}`))
	if err != nil {
		t.Fatalf("delta: %v", err)
	}
	top := events[0].(models.TopOfBook)
	if top.Bid.Price != "99" || top.Bid.Quantity != "2" {
		t.Fatalf("unexpected best bid after delta: %+v", top.Bid)
	}

	bid, ask, ok := c.BestBidAsk()
	if !ok || bid.Price != "99" || ask.Price != "101" {
		t.Fatalf("unexpected accessor top of book: %+v / %+v / %v", bid, ask, ok)
	}
}

func TestTranslateTicker(t *testing.T) {
	c := testConnector(nil)
	events, err := c.translate([]byte(`{"event":"update","channel":"ticker","timestamp":9,"data":[
		{"instId":"BTCUSDT","lastPrice":"64000.5","timestamp":9}]}`))
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	tick := events[0].(models.Ticker)
	if tick.Symbol != "BTCUSDT" || tick.LastPrice != "64000.5" {
		t.Fatalf("unexpected ticker: %+v", tick)
	}
}

func TestTranslateTrades(t *testing.T) {
	c := testConnector(nil)
	events, err := c.translate([]byte(`{"event":"update","channel":"trades","timestamp":9,"data":[
		{"instId":"BTCUSDT","tradeId":"t1","price":"64000","size":"0.1","side":"buy","timestamp":9},
		{"instId":"BTCUSDT","tradeId":"t2","price":"64001","size":"0.2","side":"sell","timestamp":9}]}`))
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(events))
	}
	first := events[0].(models.Trade)
	if first.TradeID != "t1" || first.Side != models.OrderBuy {
		t.Fatalf("unexpected trade: %+v", first)
	}
}

func TestTranslateOrderStatus(t *testing.T) {
	c := testConnector(nil)
	events, err := c.translate([]byte(`{"event":"update","channel":"orders","timestamp":9,"data":[
		{"instId":"BTCUSDT","orderId":"o1","clientOid":"c1","price":"64000","size":"1","filledSize":"0.5","side":"sell","state":"partially_filled","timestamp":9}]}`))
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	upd := events[0].(models.OrderStatusUpdate)
	if upd.OrderID != "o1" || upd.State != models.StatePartiallyFilled || upd.Side != models.OrderSell {
		t.Fatalf("unexpected order update: %+v", upd)
	}
}

func TestTranslateRejectsMalformedShapes(t *testing.T) {
	c := testConnector(nil)
	cases := map[string]string{
		"no event":      `{"channel":"level2","data":[]}`,
		"bad json":      `{not json`,
		"bad channel":   `{"event":"update","channel":"candles","data":[]}`,
		"bad side":      `{"event":"update","channel":"level2","data":[{"side":"offer","price_level":"1","new_quantity":"1"}]}`,
		"bad event":     `{"event":"refresh","channel":"level2","data":[]}`,
		"bad state":     `{"event":"update","channel":"orders","data":[{"instId":"BTCUSDT","side":"buy","state":"teleported"}]}`,
		"bad order side": `{"event":"update","channel":"trades","data":[{"instId":"BTCUSDT","side":"bid"}]}`,
	}
	for name, raw := range cases {
		if _, err := c.translate([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestMalformedDeltaLeavesBookUntouched(t *testing.T) {
	c := testConnector(nil)
	if _, err := c.translate([]byte(`{"event":"snapshot","channel":"level2","timestamp":1,"data":[
		{"side":"bid","event_time":1,"price_level":"100","new_quantity":"5"},
		{"side":"ask","event_time":1,"price_level":"101","new_quantity":"3"}]}`)); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	if _, err := c.translate([]byte(`{"event":"update","channel":"level2","timestamp":2,"data":[
		{"side":"bid","event_time":2,"price_level":"100","new_quantity":"0"},
		{"side":"offer","event_time":2,"price_level":"102","new_quantity":"1"}]}`)); err == nil {
		t.Fatalf("expected malformed side error")
	}

	bid, _, ok := c.BestBidAsk()
	if !ok || bid.Price != "100" {
		t.Fatalf("book mutated by malformed delta: %+v ok=%v", bid, ok)
	}
}
