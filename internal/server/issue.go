package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/routecards/internal/common"
	"github.com/joseph-ayodele/routecards/internal/entity"
	"github.com/joseph-ayodele/routecards/internal/repository"
	"github.com/joseph-ayodele/routecards/internal/services/issue"
)

// Issuer runs one operator request.
type Issuer interface {
	Issue(ctx context.Context, req issue.Request) (*issue.Result, error)
}

// IssueServiceServer is the route-card service. Messages are google.protobuf.Struct:
//
//	Issue  {mode, form_number, count} -> {mode, summary, exit_code, card?, batch?, output_dir?}
//	Lookup {form_number}              -> {form_number, output_path, created_at, ...}
type IssueServiceServer interface {
	Issue(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Lookup(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type IssueServer struct {
	svc    Issuer
	ledger repository.RouteCardRepository
	logger *slog.Logger

	// The ledger assumes one writer; concurrent RPCs are issued one at a time.
	mu sync.Mutex
}

func NewIssueServer(svc Issuer, ledger repository.RouteCardRepository, logger *slog.Logger) *IssueServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &IssueServer{svc: svc, ledger: ledger, logger: logger}
}

// Register adds the service to s.
func (s *IssueServer) Register(r grpc.ServiceRegistrar) {
	r.RegisterService(&IssueServiceDesc, s)
}

func (s *IssueServer) Issue(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()
	req := issue.Request{
		Mode:       issue.Mode(strings.TrimSpace(fields["mode"].GetStringValue())),
		FormNumber: strings.TrimSpace(fields["form_number"].GetStringValue()),
		Count:      int(fields["count"].GetNumberValue()),
	}

	s.mu.Lock()
	res, err := s.svc.Issue(ctx, req)
	s.mu.Unlock()

	if res == nil {
		if err != nil {
			s.logger.Warn("grpc.issue.failed", "mode", req.Mode, "form_number", req.FormNumber, "error", err)
			return nil, status.Error(statusCode(err), err.Error())
		}
		return nil, status.Error(codes.Internal, "no result")
	}

	out, encErr := resultStruct(res, err)
	if encErr != nil {
		return nil, status.Errorf(codes.Internal, "encode result: %v", encErr)
	}
	if err == nil {
		return out, nil
	}

	// A batch that stopped part way still carries its result, attached as a detail.
	s.logger.Error("grpc.issue.halted", "mode", req.Mode, "form_number", req.FormNumber, "error", err)
	st, detErr := status.New(statusCode(err), err.Error()).WithDetails(out)
	if detErr != nil {
		return nil, status.Error(statusCode(err), err.Error())
	}
	return nil, st.Err()
}

func (s *IssueServer) Lookup(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	n := strings.TrimSpace(in.GetFields()["form_number"].GetStringValue())
	if n == "" {
		return nil, status.Error(codes.InvalidArgument, "form_number is required")
	}
	card, err := s.ledger.Get(ctx, n)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.logger.Warn("grpc.lookup.failed", "form_number", n, "error", err)
		}
		return nil, status.Error(statusCode(err), err.Error())
	}
	out, err := structpb.NewStruct(cardFields(card))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode card: %v", err)
	}
	return out, nil
}

func statusCode(err error) codes.Code {
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, common.ErrLedgerInconsistent):
		return codes.DataLoss
	case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrInvalidBatchSize), errors.Is(err, common.ErrInvalidTemplate):
		return codes.InvalidArgument
	case errors.Is(err, common.ErrDuplicateFormNumber), errors.Is(err, common.ErrDuplicateKey):
		return codes.AlreadyExists
	case errors.Is(err, common.ErrNotFound):
		return codes.NotFound
	default:
		return codes.Internal
	}
}

func resultStruct(res *issue.Result, err error) (*structpb.Struct, error) {
	m := map[string]any{
		"mode":      string(res.Mode),
		"summary":   res.Summary(),
		"exit_code": issue.ExitCode(res, err),
	}
	if res.Card != nil {
		m["card"] = cardFields(res.Card)
	}
	if b := res.Batch; b != nil {
		succeeded := make([]any, len(b.Succeeded))
		for i, n := range b.Succeeded {
			succeeded[i] = n
		}
		failures := make([]any, len(b.Failures))
		for i, f := range b.Failures {
			failures[i] = map[string]any{"form_number": f.FormNumber, "message": f.Message}
		}
		m["batch"] = map[string]any{
			"batch_id":  b.BatchID.String(),
			"requested": b.Requested,
			"aborted":   b.Aborted,
			"succeeded": succeeded,
			"failures":  failures,
		}
		m["output_dir"] = res.OutputDir
	}
	return structpb.NewStruct(m)
}

func cardFields(c *entity.RouteCard) map[string]any {
	m := map[string]any{
		"form_number": c.FormNumber,
		"output_path": c.OutputPath,
		"created_at":  c.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if c.AccountNumber != nil {
		m["account_number"] = *c.AccountNumber
	}
	if c.ClusterNumber != nil {
		m["cluster_number"] = *c.ClusterNumber
	}
	if c.Status != nil {
		m["status"] = *c.Status
	}
	return m
}
