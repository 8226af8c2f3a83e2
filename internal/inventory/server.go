package inventory

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/cartkeeper/internal/lookup"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var _ lookup.StockServer = (*Server)(nil)

// Server answers stock queries from the cart over gRPC
type Server struct {
	store Store
	log   logrus.FieldLogger
}

func NewServer(store Store, log logrus.FieldLogger) *Server {
	return &Server{store: store, log: log}
}

// GetStock returns the available quantity for the requested product id
func (s *Server) GetStock(_ context.Context, req *wrapperspb.Int64Value) (*wrapperspb.Int32Value, error) {
	if req.GetValue() <= 0 {
		return nil, status.Error(codes.InvalidArgument, "product_id must be greater than 0")
	}

	n, err := s.store.GetStock(req.GetValue())
	if err != nil {
		s.log.WithError(err).WithField("product_id", req.GetValue()).Debug("stock query failed")
		return nil, mapStoreError(err)
	}
	return wrapperspb.Int32(n), nil
}

// mapStoreError converts store errors to gRPC status codes
func mapStoreError(err error) error {
	switch {
	case errors.Is(err, ErrProductNotFound):
		return status.Error(codes.NotFound, "product not found")
	default:
		return status.Errorf(codes.Internal, "internal error: %v", err)
	}
}
