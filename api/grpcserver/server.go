// Package grpcserver adapts the engine service to gRPC. It also serializes
// requests: the engine is single-writer and concurrent handlers must not
// overlap.
package grpcserver

import (
	"context"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"freya/api/pb"
	"freya/domain/book"
	"freya/service"
)

type Server struct {
	mu  sync.Mutex
	svc *service.Engine
}

func NewServer(svc *service.Engine) *Server {
	return &Server{svc: svc}
}

// -------------------- Commands --------------------

func (s *Server) Submit(ctx context.Context, req *pb.SubmitRequest) (*pb.SubmitResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.svc.Submit(req.Caller, book.Side(req.Side), req.Price, req.Qty)
	if err != nil {
		return nil, toStatus(err)
	}
	log.Printf("[grpc] submit caller=%d side=%v price=%d qty=%d id=%d filled=%d",
		req.Caller, book.Side(req.Side), req.Price, req.Qty, res.OrderID, res.Filled)

	return &pb.SubmitResponse{
		OrderID: res.OrderID,
		Filled:  res.Filled,
		Rested:  res.Rested,
	}, nil
}

func (s *Server) SubmitBatch(ctx context.Context, req *pb.SubmitBatchRequest) (*pb.SubmitBatchResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := make([]service.Submission, 0, len(req.Entries))
	for _, e := range req.Entries {
		subs = append(subs, service.Submission{
			Side:  book.Side(e.Side),
			Price: e.Price,
			Qty:   e.Qty,
		})
	}
	results, err := s.svc.SubmitBatch(req.Caller, subs)
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &pb.SubmitBatchResponse{Results: make([]pb.SubmitBatchResult, 0, len(results))}
	for _, r := range results {
		out := pb.SubmitBatchResult{
			OrderID: r.OrderID,
			Filled:  r.Filled,
			Rested:  r.Rested,
		}
		if r.Err != nil {
			out.Error = r.Err.Error()
		}
		resp.Results = append(resp.Results, out)
	}
	return resp, nil
}

func (s *Server) Cancel(ctx context.Context, req *pb.CancelRequest) (*pb.CancelResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.svc.Cancel(req.Caller, req.OrderID); err != nil {
		return nil, toStatus(err)
	}
	log.Printf("[grpc] cancel caller=%d id=%d", req.Caller, req.OrderID)
	return &pb.CancelResponse{}, nil
}

func (s *Server) CancelBatch(ctx context.Context, req *pb.CancelBatchRequest) (*pb.CancelBatchResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	errs, err := s.svc.CancelBatch(req.Caller, req.OrderIDs)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &pb.CancelBatchResponse{Errors: make([]string, len(errs))}
	for i, e := range errs {
		if e != nil {
			resp.Errors[i] = e.Error()
		}
	}
	return resp, nil
}

func (s *Server) Claim(ctx context.Context, req *pb.ClaimRequest) (*pb.ClaimResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	assetQty, payment, err := s.svc.Claim(ctx, req.Caller, req.OrderID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.ClaimResponse{AssetQty: assetQty, Payment: payment}, nil
}

// -------------------- Queries --------------------

func (s *Server) Depth(ctx context.Context, req *pb.DepthRequest) (*pb.DepthResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.svc.DepthSnapshot(int(req.Levels))
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &pb.DepthResponse{Asset: d.Asset, Seq: d.Seq}
	for _, l := range d.Bids {
		resp.Bids = append(resp.Bids, pb.DepthLevel{Price: l.Price, Qty: l.Qty, Orders: uint32(l.Orders)})
	}
	for _, l := range d.Asks {
		resp.Asks = append(resp.Asks, pb.DepthLevel{Price: l.Price, Qty: l.Qty, Orders: uint32(l.Orders)})
	}
	return resp, nil
}

// toStatus maps the engine error taxonomy onto gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, book.ErrBoundExceeded):
		return status.Error(codes.OutOfRange, err.Error())
	case errors.Is(err, book.ErrBelowMinimum):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, book.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, book.ErrUnauthorized):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, book.ErrReentrant):
		return status.Error(codes.Aborted, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
