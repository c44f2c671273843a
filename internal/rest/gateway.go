package rest

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"

	"coinflow/logger"
	"coinflow/models"
)

const (
	pathBatchOrders = "/api/v1/trade/batch-orders"
	pathCancelBatch = "/api/v1/trade/cancel-batch"
	pathOpenOrders  = "/api/v1/trade/open-orders"
	pathBalances    = "/api/v1/account/balances"
)

// DefaultBatchLimit is the venue's maximum order intents per signed
// request.
const DefaultBatchLimit = 20

// Gateway splits order and cancel requests into size-bounded batches,
// submits the chunks concurrently and aggregates per-order results
// back into the caller's original order.
type Gateway struct {
	client     *Client
	batchLimit int
	log        *logger.Log
}

func NewGateway(client *Client, batchLimit int, log *logger.Log) *Gateway {
	if batchLimit <= 0 {
		batchLimit = DefaultBatchLimit
	}
	return &Gateway{client: client, batchLimit: batchLimit, log: log}
}

type placeResult struct {
	ClientOrderID string `json:"clientOid"`
	OrderID       string `json:"orderId"`
	Code          string `json:"code"`
	Msg           string `json:"msg"`
}

// PlaceOrders submits the intents in chunks of at most the batch
// limit, each chunk signed independently with a fresh timestamp. A
// failed chunk never rolls back or aborts its siblings; the aggregate
// reports success or failure per original position.
func (g *Gateway) PlaceOrders(ctx context.Context, intents []models.OrderIntent) []models.OrderOutcome {
	log := g.log.WithComponent("order_gateway")
	outcomes := make([]models.OrderOutcome, len(intents))
	if len(intents) == 0 {
		return outcomes
	}

	submitted := make([]models.OrderIntent, len(intents))
	copy(submitted, intents)
	for i := range submitted {
		if submitted[i].ClientOrderID == "" {
			submitted[i].ClientOrderID = uuid.New().String()
		}
		outcomes[i] = models.OrderOutcome{Index: i, ClientOrderID: submitted[i].ClientOrderID}
	}

	var wg sync.WaitGroup
	for start := 0; start < len(submitted); start += g.batchLimit {
		end := start + g.batchLimit
		if end > len(submitted) {
			end = len(submitted)
		}
		wg.Add(1)
		go func(offset int, chunk []models.OrderIntent) {
			defer wg.Done()
			g.submitChunk(ctx, offset, chunk, outcomes)
		}(start, submitted[start:end])
	}
	wg.Wait()

	placed, failed := 0, 0
	for _, o := range outcomes {
		if o.OK {
			placed++
		} else {
			failed++
		}
	}
	logger.IncrementOrdersPlaced(placed)
	logger.IncrementOrderFailures(failed)
	log.WithFields(logger.Fields{"orders": len(intents), "placed": placed, "failed": failed}).Info("batch order submission complete")
	return outcomes
}

// submitChunk fills outcomes[offset:offset+len(chunk)]. Chunks share
// the outcomes slice but write disjoint index ranges.
func (g *Gateway) submitChunk(ctx context.Context, offset int, chunk []models.OrderIntent, outcomes []models.OrderOutcome) {
	var results []placeResult
	err := g.client.Do(ctx, http.MethodPost, pathBatchOrders, map[string]any{"args": chunk}, &results)
	if err != nil {
		for i := range chunk {
			outcomes[offset+i].OK = false
			outcomes[offset+i].Reason = err.Error()
		}
		g.log.WithComponent("order_gateway").WithError(err).Warn("order chunk submission failed")
		return
	}

	byClientID := make(map[string]placeResult, len(results))
	for _, r := range results {
		byClientID[r.ClientOrderID] = r
	}
	for i, intent := range chunk {
		r, ok := byClientID[intent.ClientOrderID]
		if !ok {
			outcomes[offset+i].OK = false
			outcomes[offset+i].Reason = "no result returned for order"
			continue
		}
		if r.Code != "" && r.Code != "0" {
			outcomes[offset+i].OK = false
			outcomes[offset+i].Reason = r.Msg
			continue
		}
		outcomes[offset+i].OK = true
		outcomes[offset+i].OrderID = r.OrderID
	}
}

// CancelAll cancels the given order ids with the same chunking
// discipline. It is best-effort: used from shutdown, where failures
// are logged and must not keep the transport open.
func (g *Gateway) CancelAll(ctx context.Context, ids []string) []models.OrderOutcome {
	log := g.log.WithComponent("order_gateway")
	outcomes := make([]models.OrderOutcome, len(ids))
	if len(ids) == 0 {
		return outcomes
	}

	type cancelArg struct {
		OrderID string `json:"orderId"`
	}

	var wg sync.WaitGroup
	for start := 0; start < len(ids); start += g.batchLimit {
		end := start + g.batchLimit
		if end > len(ids) {
			end = len(ids)
		}
		wg.Add(1)
		go func(offset int, chunk []string) {
			defer wg.Done()
			args := make([]cancelArg, len(chunk))
			for i, id := range chunk {
				args[i] = cancelArg{OrderID: id}
				outcomes[offset+i] = models.OrderOutcome{Index: offset + i, OrderID: id}
			}
			var results []placeResult
			err := g.client.Do(ctx, http.MethodPost, pathCancelBatch, map[string]any{"args": args}, &results)
			if err != nil {
				for i := range chunk {
					outcomes[offset+i].Reason = err.Error()
				}
				log.WithError(err).Warn("cancel chunk failed")
				return
			}
			byOrderID := make(map[string]placeResult, len(results))
			for _, r := range results {
				byOrderID[r.OrderID] = r
			}
			for i, id := range chunk {
				r, ok := byOrderID[id]
				if ok && (r.Code == "" || r.Code == "0") {
					outcomes[offset+i].OK = true
				} else if ok {
					outcomes[offset+i].Reason = r.Msg
				} else {
					outcomes[offset+i].Reason = "no result returned for cancel"
				}
			}
		}(start, ids[start:end])
	}
	wg.Wait()
	return outcomes
}

// Balances fetches account balances keyed by asset. Assets the venue
// omits are simply absent; callers treat absence as zero.
func (g *Gateway) Balances(ctx context.Context) (map[string]models.Balance, error) {
	var list []models.Balance
	if err := g.client.Get(ctx, pathBalances, nil, &list); err != nil {
		return nil, err
	}
	out := make(map[string]models.Balance, len(list))
	for _, b := range list {
		out[b.Asset] = b
	}
	return out, nil
}

// OpenOrders fetches the resting orders for one instrument.
func (g *Gateway) OpenOrders(ctx context.Context, symbol string) ([]models.OpenOrder, error) {
	q := url.Values{}
	q.Set("instId", symbol)
	var list []models.OpenOrder
	if err := g.client.Get(ctx, pathOpenOrders, q, &list); err != nil {
		return nil, err
	}
	return list, nil
}
