package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/cartkeeper/internal/domain"
	"github.com/fjod/go_cart/cartkeeper/internal/hub"
	"github.com/fjod/go_cart/cartkeeper/internal/lookup"
	"github.com/fjod/go_cart/cartkeeper/internal/notify"
	"github.com/fjod/go_cart/cartkeeper/internal/persistence"
	"github.com/fjod/go_cart/cartkeeper/internal/store"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const persistTimeout = 10 * time.Second

const (
	OpAdd       = "add"
	OpRemove    = "remove"
	OpSetAmount = "set_amount"
)

var failureMessages = map[string]string{
	OpAdd:       "error adding product",
	OpRemove:    "error removing product",
	OpSetAmount: "error changing product quantity",
}

// Dependencies are the collaborators a CartService is wired with.
// Sink and Log default to no-ops when nil.
type Dependencies struct {
	Stock         lookup.StockOracle
	Catalog       lookup.ProductCatalog
	Persistence   persistence.Adapter
	Sink          notify.Sink
	Log           logrus.FieldLogger
	LookupTimeout time.Duration
}

// CartService is the only writer of the cart. It runs add, remove and
// set-amount requests one at a time: each request holds the mutation slot
// from its stock lookup through the write-through, so two requests can never
// interleave their read-decide-write sequences.
type CartService struct {
	store         store.CartStore
	stock         lookup.StockOracle
	catalog       lookup.ProductCatalog
	persist       persistence.Adapter
	sink          notify.Sink
	hub           *hub.Hub
	log           logrus.FieldLogger
	tracer        trace.Tracer
	lookupTimeout time.Duration

	sem chan struct{} // mutation slot
}

// Open restores the last persisted cart and returns a service owning it.
// A missing, unreadable or invalid snapshot yields an empty cart.
func Open(ctx context.Context, deps Dependencies) *CartService {
	s := &CartService{
		store:         store.NewMemoryStore(),
		stock:         deps.Stock,
		catalog:       deps.Catalog,
		persist:       deps.Persistence,
		sink:          deps.Sink,
		log:           deps.Log,
		tracer:        otel.Tracer("github.com/fjod/go_cart/cartkeeper/internal/service"),
		lookupTimeout: deps.LookupTimeout,
		sem:           make(chan struct{}, 1),
	}
	if s.sink == nil {
		s.sink = notify.Discard
	}
	if s.log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		s.log = l
	}

	s.restore(ctx)
	s.hub = hub.New(s.store.Snapshot())
	return s
}

func (s *CartService) restore(ctx context.Context) {
	data, err := s.persist.Load(ctx)
	if errors.Is(err, persistence.ErrNotFound) {
		return
	}
	if err != nil {
		s.log.WithError(err).Warn("could not load persisted cart, starting empty")
		return
	}

	cart, err := persistence.Decode(data)
	if err != nil {
		s.log.WithError(err).Warn("could not decode persisted cart, starting empty")
		return
	}
	if err := s.store.Replace(cart); err != nil {
		s.log.WithError(err).Warn("persisted cart is invalid, starting empty")
		return
	}
	s.log.WithField("entries", len(cart)).Info("cart restored")
}

// CurrentCart returns a snapshot of the cart.
func (s *CartService) CurrentCart() domain.Cart {
	return s.store.Snapshot()
}

// Subscribe returns a channel receiving the cart after every mutation call.
func (s *CartService) Subscribe() (<-chan domain.Cart, func()) {
	return s.hub.Subscribe()
}

// Close releases subscribers.
func (s *CartService) Close() {
	s.hub.Close()
}

// AddProduct puts one more unit of productID in the cart. A product already
// in the cart is incremented only while stock strictly exceeds the amount held.
func (s *CartService) AddProduct(ctx context.Context, productID int64) error {
	return s.mutate(ctx, OpAdd, productID, func(ctx context.Context) (int, error) {
		stock, err := s.getStock(ctx, productID)
		if err != nil {
			return 0, err
		}

		before := s.store.Snapshot()
		if e, ok := s.store.Find(productID); ok {
			if stock.Available <= e.Amount {
				return 0, fail(KindOutOfStock, fmt.Errorf("holding %d, available %d", e.Amount, stock.Available))
			}
			next := e.Amount + 1
			if err := s.store.ApplySetQuantity(productID, next); err != nil {
				return 0, storeFailure(err)
			}
			return next, s.commit(ctx, before)
		}

		if stock.Available <= 0 {
			return 0, fail(KindOutOfStock, fmt.Errorf("available %d", stock.Available))
		}
		product, err := s.getProduct(ctx, productID)
		if err != nil {
			return 0, err
		}
		product.ID = productID

		if err := s.store.ApplyAdd(domain.CartEntry{Product: product, Amount: 1}); err != nil {
			return 0, storeFailure(err)
		}
		return 1, s.commit(ctx, before)
	})
}

// RemoveProduct deletes the entry for productID. The cart may become empty.
func (s *CartService) RemoveProduct(ctx context.Context, productID int64) error {
	return s.mutate(ctx, OpRemove, productID, func(ctx context.Context) (int, error) {
		before := s.store.Snapshot()
		if err := s.store.ApplyRemove(productID); err != nil {
			return 0, storeFailure(err)
		}
		return 0, s.commit(ctx, before)
	})
}

// SetProductAmount sets the held amount of a product already in the cart.
// Non-positive amounts are rejected, not treated as a removal.
func (s *CartService) SetProductAmount(ctx context.Context, productID int64, amount int) error {
	return s.mutate(ctx, OpSetAmount, productID, func(ctx context.Context) (int, error) {
		if amount <= 0 {
			return 0, fail(KindInvalidAmount, fmt.Errorf("requested %d", amount))
		}
		if _, ok := s.store.Find(productID); !ok {
			return 0, fail(KindEntryNotFound, store.ErrEntryNotFound)
		}

		stock, err := s.getStock(ctx, productID)
		if err != nil {
			return 0, err
		}
		if stock.Available <= 0 || stock.Available < amount {
			return 0, fail(KindOutOfStock, fmt.Errorf("requested %d, available %d", amount, stock.Available))
		}

		before := s.store.Snapshot()
		if err := s.store.ApplySetQuantity(productID, amount); err != nil {
			return 0, storeFailure(err)
		}
		return amount, s.commit(ctx, before)
	})
}

// mutate runs apply inside the mutation slot and republishes the cart before
// giving the slot up. The sink hears about the outcome after the slot is released.
func (s *CartService) mutate(ctx context.Context, op string, productID int64, apply func(context.Context) (int, error)) error {
	ctx, span := s.tracer.Start(ctx, "cart."+op, trace.WithAttributes(attribute.Int64("product_id", productID)))
	defer span.End()

	if err := s.acquire(ctx); err != nil {
		span.SetStatus(codes.Error, "cancelled while queued")
		return fmt.Errorf("%s product %d: %w", op, productID, err)
	}
	outcome, err := s.runLocked(ctx, op, productID, apply)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome.Kind)
	}
	s.sink.Notify(ctx, outcome)
	return err
}

// runLocked must be called holding the mutation slot; it releases it.
func (s *CartService) runLocked(ctx context.Context, op string, productID int64, apply func(context.Context) (int, error)) (notify.Outcome, error) {
	defer func() { <-s.sem }()

	amount, err := apply(ctx)
	outcome := notify.Outcome{Op: op, ProductID: productID}

	if err == nil {
		outcome.Amount = amount
	} else {
		var merr *MutationError
		if !errors.As(err, &merr) {
			merr = fail(KindLookupFailed, err)
		}
		merr.Op, merr.ProductID = op, productID
		err = merr

		outcome.Kind = merr.Kind.String()
		outcome.Message = failureMessages[op]
		if merr.Kind == KindOutOfStock {
			outcome.Message = ErrOutOfStock.Error()
		}
		outcome.Err = merr
	}

	s.hub.Publish(s.store.Snapshot())
	return outcome, err
}

func (s *CartService) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// commit writes the cart through to persistence. On failure the in-memory
// cart is put back to before, so memory and storage never diverge.
func (s *CartService) commit(ctx context.Context, before domain.Cart) error {
	data, err := persistence.Encode(s.store.Snapshot())
	if err == nil {
		// the write outlives the caller
		storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		err = s.persist.Store(storeCtx, data)
		cancel()
	}
	if err == nil {
		return nil
	}

	if rbErr := s.store.Replace(before); rbErr != nil {
		s.log.WithError(rbErr).Error("rollback after failed save was rejected")
	}
	s.log.WithError(err).Error("failed to persist cart, mutation rolled back")
	return fail(KindPersistenceFailed, err)
}

func (s *CartService) getStock(ctx context.Context, productID int64) (domain.StockSnapshot, error) {
	ctx, cancel := s.withLookupTimeout(ctx)
	defer cancel()

	stock, err := s.stock.GetStock(ctx, productID)
	if err != nil {
		s.log.WithError(err).WithField("product_id", productID).Error("stock lookup failed")
		return domain.StockSnapshot{}, fail(KindLookupFailed, err)
	}
	return stock, nil
}

func (s *CartService) getProduct(ctx context.Context, productID int64) (domain.Product, error) {
	ctx, cancel := s.withLookupTimeout(ctx)
	defer cancel()

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		s.log.WithError(err).WithField("product_id", productID).Error("catalog lookup failed")
		return domain.Product{}, fail(KindLookupFailed, err)
	}
	return product, nil
}

func (s *CartService) withLookupTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.lookupTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.lookupTimeout)
}

func storeFailure(err error) *MutationError {
	switch {
	case errors.Is(err, store.ErrEntryNotFound):
		return fail(KindEntryNotFound, err)
	case errors.Is(err, store.ErrInvalidAmount):
		return fail(KindInvalidAmount, err)
	case errors.Is(err, store.ErrDuplicateEntry):
		return fail(KindDuplicateEntry, err)
	default:
		return fail(KindPersistenceFailed, err)
	}
}
