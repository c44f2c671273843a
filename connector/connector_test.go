package connector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"coinflow/logger"
	"coinflow/models"
)

func balancesHandler(t *testing.T, balances []models.Balance) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := json.Marshal(balances)
		json.NewEncoder(w).Encode(map[string]any{"code": "0", "msg": "", "data": json.RawMessage(raw)})
	})
}

func privateConnector(t *testing.T, handler http.Handler) *Connector {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := testConfig(srv.URL)
	cred := &models.Credential{Key: "k", Secret: "s", Passphrase: "p"}
	return New(cfg, cfg.Markets[0], cred, logger.GetLogger())
}

func TestGetBalancePercentage(t *testing.T) {
	c := privateConnector(t, balancesHandler(t, []models.Balance{
		{Asset: "BTC", Available: "2", Hold: "0"},
		{Asset: "USDT", Available: "100", Hold: "0"},
	}))

	// base value = 2 * 50 = 100, total = 200
	pct, err := c.GetBalancePercentage(context.Background(), "50")
	if err != nil {
		t.Fatalf("balance percentage: %v", err)
	}
	if pct.String() != "0.5" {
		t.Fatalf("expected 0.5, got %s", pct)
	}
}

func TestGetBalancePercentageAbsentAssetIsZero(t *testing.T) {
	c := privateConnector(t, balancesHandler(t, []models.Balance{
		{Asset: "BTC", Available: "2", Hold: "0"},
	}))

	pct, err := c.GetBalancePercentage(context.Background(), "50")
	if err != nil {
		t.Fatalf("balance percentage: %v", err)
	}
	if pct.String() != "1" {
		t.Fatalf("expected 1 with zero quote balance, got %s", pct)
	}
}

func TestGetBalancePercentageEmptyAccount(t *testing.T) {
	c := privateConnector(t, balancesHandler(t, nil))

	pct, err := c.GetBalancePercentage(context.Background(), "50")
	if err != nil {
		t.Fatalf("balance percentage: %v", err)
	}
	if !pct.IsZero() {
		t.Fatalf("expected zero for empty account, got %s", pct)
	}
}

func TestPrivateOperationsRequireCredential(t *testing.T) {
	c := testConnector(nil)
	ctx := context.Background()

	if _, err := c.PlaceOrders(ctx, []models.OrderIntent{{Symbol: "BTCUSDT"}}); err == nil {
		t.Fatalf("expected error placing orders without credential")
	}
	if _, err := c.DeleteAllOrders(ctx, []string{"1"}); err == nil {
		t.Fatalf("expected error cancelling without credential")
	}
	if _, err := c.GetBalancePercentage(ctx, "1"); err == nil {
		t.Fatalf("expected error fetching balance without credential")
	}
	if _, err := c.GetCurrentActiveOrders(ctx); err == nil {
		t.Fatalf("expected error listing orders without credential")
	}
}

func TestStopWithoutConnectIsNoOp(t *testing.T) {
	c := testConnector(nil)
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("stop on unconnected connector: %v", err)
	}
}
