package esplorawallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tdex-network/watchdescriptor/pkg/circuitbreaker"
	"github.com/tdex-network/watchdescriptor/pkg/stats"
	"go.uber.org/ratelimit"
)

// confirmedPageSize is the max number of confirmed txs returned by esplora
// for every page of an address history.
const confirmedPageSize = 25

type client struct {
	baseURL string
	http    *http.Client
	limiter ratelimit.Limiter
	cb      *gobreaker.CircuitBreaker
}

func newClient(baseURL string, requestsPerSecond int, timeout time.Duration) *client {
	limiter := ratelimit.NewUnlimited()
	if requestsPerSecond > 0 {
		limiter = ratelimit.New(requestsPerSecond)
	}
	return &client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		limiter: limiter,
		cb:      circuitbreaker.NewCircuitBreaker("esplora"),
	}
}

func (c *client) getTipHeight(ctx context.Context) (uint32, error) {
	resp, err := c.get(ctx, "/blocks/tip/height")
	if err != nil {
		return 0, err
	}
	height, err := strconv.ParseUint(strings.TrimSpace(resp), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid tip height %q: %w", resp, err)
	}
	return uint32(height), nil
}

func (c *client) getTipHash(ctx context.Context) (string, error) {
	resp, err := c.get(ctx, "/blocks/tip/hash")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp), nil
}

func (c *client) getBlockHash(ctx context.Context, height uint32) (string, error) {
	resp, err := c.get(ctx, fmt.Sprintf("/block-height/%d", height))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp), nil
}

// getAddressTxs returns the whole history of the given address, paging
// through the confirmed transactions.
func (c *client) getAddressTxs(ctx context.Context, address string) ([]esploraTx, error) {
	txs, err := c.getTxs(ctx, fmt.Sprintf("/address/%s/txs", address))
	if err != nil {
		return nil, err
	}

	page := confirmedOnly(txs)
	for len(page) >= confirmedPageSize {
		lastSeen := page[len(page)-1].Txid
		page, err = c.getTxs(
			ctx, fmt.Sprintf("/address/%s/txs/chain/%s", address, lastSeen),
		)
		if err != nil {
			return nil, err
		}
		txs = append(txs, page...)
	}
	return txs, nil
}

func (c *client) getTxs(ctx context.Context, path string) ([]esploraTx, error) {
	resp, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	txs := make([]esploraTx, 0)
	if err := json.Unmarshal([]byte(resp), &txs); err != nil {
		return nil, fmt.Errorf("failed to parse txs from %s: %w", path, err)
	}
	return txs, nil
}

func (c *client) get(ctx context.Context, path string) (string, error) {
	c.limiter.Take()

	resp, err := c.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(
			ctx, http.MethodGet, c.baseURL+path, nil,
		)
		if err != nil {
			return nil, err
		}

		rs, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer rs.Body.Close()

		body, err := io.ReadAll(rs.Body)
		if err != nil {
			return nil, err
		}
		if rs.StatusCode != http.StatusOK {
			return nil, fmt.Errorf(
				"GET %s: %s: %s", path, rs.Status, strings.TrimSpace(string(body)),
			)
		}
		return string(body), nil
	})
	if err != nil {
		outcome := "failure"
		if errors.Is(err, gobreaker.ErrOpenState) ||
			errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "rejected"
		}
		stats.ExplorerRequests.WithLabelValues(outcome).Inc()
		return "", err
	}

	stats.ExplorerRequests.WithLabelValues("success").Inc()
	return resp.(string), nil
}

func confirmedOnly(txs []esploraTx) []esploraTx {
	confirmed := make([]esploraTx, 0, len(txs))
	for _, tx := range txs {
		if tx.Status.Confirmed {
			confirmed = append(confirmed, tx)
		}
	}
	return confirmed
}
