package grpc

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/domain"
)

const serviceName = "viralforge.invoicing.v1.InvoiceReconciliationInternalService"

// InvoicingInternalService is the read-only settlement lookup other mesh
// services call before acting on an invoice.
type InvoicingInternalService interface {
	GetInvoiceStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPaymentIntentStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type InvoicingInternalServer struct {
	service *application.Service
}

func NewInvoicingInternalServer(service *application.Service) *InvoicingInternalServer {
	return &InvoicingInternalServer{service: service}
}

func Register(server grpc.ServiceRegistrar, svc InvoicingInternalService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*InvoicingInternalService)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "GetInvoiceStatus",
				Handler:    unaryHandler("GetInvoiceStatus", svc.GetInvoiceStatus),
			},
			{
				MethodName: "GetPaymentIntentStatus",
				Handler:    unaryHandler("GetPaymentIntentStatus", svc.GetPaymentIntentStatus),
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "mesh/contracts/proto/invoicing/v1/invoicing_internal.proto",
	}, svc)
}

func (s *InvoicingInternalServer) GetInvoiceStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	invoiceID := stringField(req, "invoice_id")
	if invoiceID == "" {
		return nil, status.Error(codes.InvalidArgument, "missing invoice_id")
	}
	invoice, err := s.service.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, toStatus(err)
	}
	fields := map[string]any{
		"invoice_id": invoice.InvoiceID,
		"number":     invoice.Number,
		"client_id":  invoice.ClientID,
		"status":     string(invoice.Status),
		"total":      invoice.Total.StringFixed(2),
		"paid":       invoice.Status == domain.InvoiceStatusPaid,
	}
	if invoice.PaidAt != nil {
		fields["paid_at"] = invoice.PaidAt.Format(time.RFC3339)
	}
	return buildResponse(fields)
}

func (s *InvoicingInternalServer) GetPaymentIntentStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	paymentIntentID := stringField(req, "payment_intent_id")
	if paymentIntentID == "" {
		return nil, status.Error(codes.InvalidArgument, "missing payment_intent_id")
	}
	intent, err := s.service.GetPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return nil, toStatus(err)
	}
	return buildResponse(map[string]any{
		"payment_intent_id": intent.PaymentIntentID,
		"gateway_intent_id": intent.GatewayIntentID,
		"invoice_id":        intent.InvoiceID,
		"status":            string(intent.Status),
		"amount":            intent.Amount.String(),
		"currency":          intent.Currency,
		"payment_method":    intent.PaymentMethod,
		"failure_reason":    intent.FailureReason,
	})
}

func stringField(req *structpb.Struct, name string) string {
	v := req.GetFields()[name]
	if v == nil {
		return ""
	}
	return v.GetStringValue()
}

func buildResponse(fields map[string]any) (*structpb.Struct, error) {
	resp, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Errorf(codes.Internal, "lookup failed: %v", err)
	}
}

type unaryMethod func(context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + serviceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return call(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}
