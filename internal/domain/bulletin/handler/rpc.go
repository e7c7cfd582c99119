package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/repository"
)

const (
	// PriceServiceName is the fully-qualified name of the RPC service.
	PriceServiceName = "pricemon.v1.PriceService"

	// PriceServiceGetLatestPricesProcedure is the full procedure path of GetLatestPrices.
	PriceServiceGetLatestPricesProcedure = "/" + PriceServiceName + "/GetLatestPrices"
)

// rpcHandler serves GetLatestPrices over Connect. Messages are well-known
// types, so Connect, gRPC and gRPC-Web clients can call it without generated
// stubs.
func (h *PriceHandler) rpcHandler() (string, http.Handler) {
	return PriceServiceGetLatestPricesProcedure, connect.NewUnaryHandler(
		PriceServiceGetLatestPricesProcedure,
		h.GetLatestPricesRPC,
	)
}

// GetLatestPricesRPC returns the most recent report as a Struct.
func (h *PriceHandler) GetLatestPricesRPC(
	ctx context.Context,
	_ *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	rec, err := h.svc.Latest(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, connect.NewError(connect.CodeNotFound, errors.New("no price data found"))
	}
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	msg, err := toStruct(rec)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return structpb.NewStruct(m)
}
