package lookup

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/cartkeeper/internal/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	inventoryServiceName = "cartkeeper.v1.Inventory"
	getStockMethod       = "/" + inventoryServiceName + "/GetStock"
)

// StockServer is the server side of the inventory GetStock RPC.
// The request carries the product id, the response the available quantity.
type StockServer interface {
	GetStock(ctx context.Context, req *wrapperspb.Int64Value) (*wrapperspb.Int32Value, error)
}

func RegisterStockServer(s grpc.ServiceRegistrar, srv StockServer) {
	s.RegisterService(&inventoryServiceDesc, srv)
}

var inventoryServiceDesc = grpc.ServiceDesc{
	ServiceName: inventoryServiceName,
	HandlerType: (*StockServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetStock",
			Handler:    getStockHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cartkeeper/v1/inventory.proto",
}

func getStockHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.Int64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StockServer).GetStock(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: getStockMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StockServer).GetStock(ctx, req.(*wrapperspb.Int64Value))
	}
	return interceptor(ctx, in, info, handler)
}

// GRPCStockOracle asks the inventory service for stock over gRPC.
type GRPCStockOracle struct {
	conn grpc.ClientConnInterface
}

func NewGRPCStockOracle(conn grpc.ClientConnInterface) *GRPCStockOracle {
	return &GRPCStockOracle{conn: conn}
}

func (g *GRPCStockOracle) GetStock(ctx context.Context, productID int64) (domain.StockSnapshot, error) {
	out := new(wrapperspb.Int32Value)
	err := g.conn.Invoke(ctx, getStockMethod, wrapperspb.Int64(productID), out)
	if err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
			return domain.StockSnapshot{}, ErrNotFound
		}
		return domain.StockSnapshot{}, fmt.Errorf("inventory GetStock failed: %w", err)
	}
	if out.GetValue() < 0 {
		return domain.StockSnapshot{}, fmt.Errorf("%w: stock %d is negative", ErrMalformedResponse, productID)
	}

	return domain.StockSnapshot{ProductID: productID, Available: int(out.GetValue())}, nil
}
