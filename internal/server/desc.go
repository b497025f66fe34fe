package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/routecards/internal/services/issue"
)

const (
	IssueServiceName = "routecards.v1.IssueService"
	IssueMethod      = "/" + IssueServiceName + "/Issue"
	LookupMethod     = "/" + IssueServiceName + "/Lookup"
)

// IssueServiceDesc describes IssueServiceServer to grpc. The messages are well-known types,
// so the default proto codec carries them without generated code.
var IssueServiceDesc = grpc.ServiceDesc{
	ServiceName: IssueServiceName,
	HandlerType: (*IssueServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Issue", Handler: issueHandler},
		{MethodName: "Lookup", Handler: lookupHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "routecards/v1/issue",
}

func issueHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IssueServiceServer).Issue(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: IssueMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IssueServiceServer).Issue(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func lookupHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IssueServiceServer).Lookup(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: LookupMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IssueServiceServer).Lookup(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// IssueClient calls IssueServiceServer over cc.
type IssueClient struct {
	cc grpc.ClientConnInterface
}

func NewIssueClient(cc grpc.ClientConnInterface) *IssueClient {
	return &IssueClient{cc: cc}
}

func (c *IssueClient) Issue(ctx context.Context, req issue.Request, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]any{
		"mode":        string(req.Mode),
		"form_number": req.FormNumber,
		"count":       req.Count,
	})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, IssueMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *IssueClient) Lookup(ctx context.Context, formNumber string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]any{"form_number": formNumber})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, LookupMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
