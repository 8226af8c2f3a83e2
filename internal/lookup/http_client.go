package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/cartkeeper/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	breakerFailureThreshold = 5
	breakerOpenTimeout      = 30 * time.Second
	maxResponseBytes        = 1 << 20
)

// HTTPClient talks to the JSON lookup API: GET stock/{id} and GET products/{id}.
// It implements both StockOracle and ProductCatalog.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

type stockDTO struct {
	ID     *int64 `json:"id"`
	Amount *int   `json:"amount"`
}

type productDTO struct {
	ID    *int64  `json:"id"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
	Image string  `json:"image"`
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        "lookup-api",
			MaxRequests: 1,
			Timeout:     breakerOpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerFailureThreshold
			},
			// a missing product is an answer, not an outage
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrNotFound)
			},
		}),
	}
}

func (c *HTTPClient) GetStock(ctx context.Context, productID int64) (domain.StockSnapshot, error) {
	body, err := c.get(ctx, fmt.Sprintf("stock/%d", productID))
	if err != nil {
		return domain.StockSnapshot{}, err
	}

	var dto stockDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return domain.StockSnapshot{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if dto.ID == nil || dto.Amount == nil {
		return domain.StockSnapshot{}, fmt.Errorf("%w: stock %d missing id or amount", ErrMalformedResponse, productID)
	}
	if *dto.ID != productID || *dto.Amount < 0 {
		return domain.StockSnapshot{}, fmt.Errorf("%w: stock %d has id %d amount %d", ErrMalformedResponse, productID, *dto.ID, *dto.Amount)
	}

	return domain.StockSnapshot{ProductID: productID, Available: *dto.Amount}, nil
}

func (c *HTTPClient) GetProduct(ctx context.Context, productID int64) (domain.Product, error) {
	body, err := c.get(ctx, fmt.Sprintf("products/%d", productID))
	if err != nil {
		return domain.Product{}, err
	}

	var dto productDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return domain.Product{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if dto.ID == nil || *dto.ID != productID || dto.Title == "" {
		return domain.Product{}, fmt.Errorf("%w: product %d missing id or title", ErrMalformedResponse, productID)
	}

	return domain.Product{
		ID:    productID,
		Title: dto.Title,
		Price: dto.Price,
		Image: dto.Image,
	}, nil
}

func (c *HTTPClient) get(ctx context.Context, path string) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+path, nil)
		if err != nil {
			return nil, fmt.Errorf("build request failed: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("GET %s failed: %w", path, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, fmt.Errorf("read %s failed: %w", path, err)
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, ErrNotFound
		case resp.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("GET %s returned status %d", path, resp.StatusCode)
		}
		return body, nil
	})
}
