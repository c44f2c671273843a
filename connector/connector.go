// Package connector ties the session manager, book engine, translator
// and order gateway into the venue connector exposed to callers.
package connector

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	appconfig "coinflow/config"
	"coinflow/internal/book"
	"coinflow/internal/channel"
	"coinflow/internal/rest"
	"coinflow/internal/sign"
	"coinflow/internal/subs"
	"coinflow/internal/ws"
	"coinflow/logger"
	"coinflow/models"
)

// Connector is one venue connection for one instrument. Instances do
// not share state; each owns its book, session and subscription set.
type Connector struct {
	cfg    *appconfig.Config
	market appconfig.MarketConfig
	symbol string
	cred   *models.Credential
	log    *logger.Log

	bookMu  sync.RWMutex
	book    *book.Engine
	subs    *subs.Controller
	manager *ws.Manager
	chans   *channel.Channels
	gateway *rest.Gateway

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a connector for the market's instrument. A nil credential
// yields a public, market-data-only connector; supplying one enables
// the private channel and the order gateway.
func New(cfg *appconfig.Config, market appconfig.MarketConfig, cred *models.Credential, log *logger.Log) *Connector {
	symbol := market.Symbol()

	args := []models.SubscriptionArg{
		{Channel: models.ChannelLevel2, InstID: symbol},
		{Channel: models.ChannelTicker, InstID: symbol},
		{Channel: models.ChannelTrades, InstID: symbol},
	}
	if cred != nil {
		args = append(args, models.SubscriptionArg{Channel: models.ChannelOrders, InstID: symbol})
	}

	c := &Connector{
		cfg:    cfg,
		market: market,
		symbol: symbol,
		cred:   cred,
		log:    log,
		book:   book.NewEngine(),
		subs:   subs.New(args),
	}

	if cred != nil {
		signer := sign.New(*cred)
		client := rest.NewClient(rest.ClientOptions{
			BaseURL:           cfg.Venue.RestURL,
			Timeout:           cfg.Venue.RequestTimeout.Std(),
			RequestsPerSecond: cfg.Venue.RateLimit.RequestsPerSecond,
			Burst:             cfg.Venue.RateLimit.Burst,
		}, signer, log)
		c.gateway = rest.NewGateway(client, cfg.Venue.BatchLimit, log)
	}

	log.WithComponent("connector").WithFields(logger.Fields{
		"symbol":  symbol,
		"private": cred != nil,
	}).Info("connector initialized")
	return c
}

// Symbol returns the instrument this connector trades.
func (c *Connector) Symbol() string { return c.symbol }

// Connect opens the websocket session and starts delivering normalized
// events to onMessage. The sink is invoked from a single goroutine, so
// callers observe events for this connector strictly in arrival order.
func (c *Connector) Connect(ctx context.Context, onMessage models.Sink) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("connector for %s already connected", c.symbol)
	}
	c.running = true
	c.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.chans = channel.NewChannels(c.cfg.Channels.RawBuffer, c.log)

	url := c.cfg.Venue.WSPublicURL
	opts := ws.Options{
		URL:            url,
		ReconnectDelay: c.cfg.Venue.ReconnectDelay.Std(),
		PingInterval:   c.cfg.Venue.PingInterval.Std(),
		AuthTimeout:    c.cfg.Venue.AuthTimeout.Std(),
	}
	if c.cred != nil {
		opts.URL = c.cfg.Venue.WSPrivateURL
		opts.Private = true
		opts.Signer = sign.New(*c.cred)
	}

	c.manager = ws.NewManager(opts, c.subs, func(frame models.RawFrame) {
		if !c.chans.SendRaw(runCtx, frame) && runCtx.Err() == nil {
			c.log.WithComponent("connector").Warn("raw frame channel full, dropping message")
		}
	}, c.log)

	c.wg.Add(1)
	go c.consume(runCtx, c.chans, onMessage)

	if err := c.manager.Connect(runCtx); err != nil {
		c.teardown()
		return err
	}
	return nil
}

// consume is the single owner of the book: it serializes translation,
// book mutation and sink delivery for every inbound frame.
func (c *Connector) consume(ctx context.Context, chans *channel.Channels, onMessage models.Sink) {
	defer c.wg.Done()
	log := c.log.WithComponent("connector").WithFields(logger.Fields{"worker": "consumer"})

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-chans.Raw:
			if !ok {
				return
			}
			events, err := c.translate(frame.Data)
			if err != nil {
				log.WithError(err).Warn("dropping malformed message")
				logger.IncrementMalformed()
				continue
			}
			if len(events) > 0 {
				onMessage(events)
			}
		}
	}
}

// Stop shuts the connector down: best-effort cancel of resting orders,
// unsubscribe, transport close. Cancel failures are logged and
// swallowed because shutdown must still release the socket. Stopping a
// connector that never connected is a no-op.
func (c *Connector) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.mu.Unlock()

	log := c.log.WithComponent("connector")
	log.Info("stopping connector")

	if c.gateway != nil {
		if orders, err := c.gateway.OpenOrders(ctx, c.symbol); err != nil {
			log.WithError(err).Warn("could not list open orders during stop")
		} else if len(orders) > 0 {
			ids := make([]string, len(orders))
			for i, o := range orders {
				ids[i] = o.OrderID
			}
			for _, outcome := range c.gateway.CancelAll(ctx, ids) {
				if !outcome.OK {
					log.WithFields(logger.Fields{"order_id": outcome.OrderID, "reason": outcome.Reason}).Warn("cancel during stop failed")
				}
			}
		}
	}

	c.manager.Stop()
	c.teardown()
	log.Info("connector stopped")
	return nil
}

func (c *Connector) teardown() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	// Safe to close here: the manager's read loop has already stopped,
	// so no further SendRaw can race the close.
	if c.chans != nil {
		c.chans.Close()
		c.chans = nil
	}
	c.wg.Wait()
}

// PlaceOrders submits the batch through the order gateway. Outcomes
// are reported per order in the input's order; a failed chunk never
// aborts its siblings.
func (c *Connector) PlaceOrders(ctx context.Context, intents []models.OrderIntent) ([]models.OrderOutcome, error) {
	if c.gateway == nil {
		return nil, fmt.Errorf("connector for %s has no credential", c.symbol)
	}
	return c.gateway.PlaceOrders(ctx, intents), nil
}

// DeleteAllOrders cancels the given order ids in batches.
func (c *Connector) DeleteAllOrders(ctx context.Context, ids []string) ([]models.OrderOutcome, error) {
	if c.gateway == nil {
		return nil, fmt.Errorf("connector for %s has no credential", c.symbol)
	}
	return c.gateway.CancelAll(ctx, ids), nil
}

// GetBalancePercentage reports the share of the portfolio held in the
// base asset, valuing it at lastPrice. An asset missing from the venue
// response counts as zero balance.
func (c *Connector) GetBalancePercentage(ctx context.Context, lastPrice string) (decimal.Decimal, error) {
	if c.gateway == nil {
		return decimal.Zero, fmt.Errorf("connector for %s has no credential", c.symbol)
	}
	price, err := decimal.NewFromString(lastPrice)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid last price %q: %w", lastPrice, err)
	}

	balances, err := c.gateway.Balances(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	base := balanceAmount(balances, c.market.Group)
	quote := balanceAmount(balances, c.market.QuoteAsset)

	baseValue := base.Mul(price)
	total := baseValue.Add(quote)
	if total.IsZero() {
		return decimal.Zero, nil
	}
	return baseValue.Div(total), nil
}

func balanceAmount(balances map[string]models.Balance, asset string) decimal.Decimal {
	b, ok := balances[asset]
	if !ok {
		return decimal.Zero
	}
	amount, err := decimal.NewFromString(b.Available)
	if err != nil {
		return decimal.Zero
	}
	return amount
}

// GetCurrentActiveOrders lists the connector's resting orders.
func (c *Connector) GetCurrentActiveOrders(ctx context.Context) ([]models.OpenOrder, error) {
	if c.gateway == nil {
		return nil, fmt.Errorf("connector for %s has no credential", c.symbol)
	}
	return c.gateway.OpenOrders(ctx, c.symbol)
}

// BestBidAsk exposes the current top of book. ok is false until both
// sides of the ladder are populated.
func (c *Connector) BestBidAsk() (bid, ask models.PriceLevel, ok bool) {
	c.bookMu.RLock()
	defer c.bookMu.RUnlock()
	return c.book.BestBidAsk(c.symbol)
}

// State reports the session lifecycle state.
func (c *Connector) State() ws.State {
	if c.manager == nil {
		return ws.Disconnected
	}
	return c.manager.State()
}
