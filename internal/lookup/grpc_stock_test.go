package lookup

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type stubStockServer struct {
	stock map[int64]int32
	err   error
}

func (s stubStockServer) GetStock(_ context.Context, req *wrapperspb.Int64Value) (*wrapperspb.Int32Value, error) {
	if s.err != nil {
		return nil, s.err
	}
	n, ok := s.stock[req.GetValue()]
	if !ok {
		return nil, status.Error(codes.NotFound, "product not found")
	}
	return wrapperspb.Int32(n), nil
}

func setupGRPC(t *testing.T, srv StockServer) *GRPCStockOracle {
	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	RegisterStockServer(server, srv)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewGRPCStockOracle(conn)
}

func TestGRPCStockOracle_GetStock(t *testing.T) {
	oracle := setupGRPC(t, stubStockServer{stock: map[int64]int32{1: 5}})

	stock, err := oracle.GetStock(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stock.ProductID)
	assert.Equal(t, 5, stock.Available)
}

func TestGRPCStockOracle_NotFound(t *testing.T) {
	oracle := setupGRPC(t, stubStockServer{stock: map[int64]int32{}})

	_, err := oracle.GetStock(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGRPCStockOracle_Unavailable(t *testing.T) {
	oracle := setupGRPC(t, stubStockServer{err: status.Error(codes.Unavailable, "down")})

	_, err := oracle.GetStock(context.Background(), 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestGRPCStockOracle_Negative(t *testing.T) {
	oracle := setupGRPC(t, stubStockServer{stock: map[int64]int32{1: -1}})

	_, err := oracle.GetStock(context.Background(), 1)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}
