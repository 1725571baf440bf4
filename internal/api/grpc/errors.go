package grpc

import (
	"context"
	"errors"

	"parkwise-booking-core/internal/domain"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var errorCodes = []struct {
	target error
	code   codes.Code
}{
	{domain.ErrValidation, codes.InvalidArgument},
	{domain.ErrNotFound, codes.NotFound},
	{domain.ErrForbidden, codes.PermissionDenied},
	{domain.ErrSlotConflict, codes.AlreadyExists},
	{domain.ErrPropertyInactive, codes.FailedPrecondition},
	{domain.ErrSlotInactive, codes.FailedPrecondition},
	{domain.ErrBookingClosed, codes.FailedPrecondition},
	{domain.ErrAmountDecreaseRejected, codes.FailedPrecondition},
	{domain.ErrInvalidTransition, codes.FailedPrecondition},
	{domain.ErrPaymentDeclined, codes.FailedPrecondition},
	{domain.ErrStorageConflict, codes.Aborted},
	{context.DeadlineExceeded, codes.DeadlineExceeded},
	{context.Canceled, codes.Canceled},
}

// toStatus converts a service error to a gRPC status. Unclassified errors become Internal
// without leaking their text.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	for _, m := range errorCodes {
		if errors.Is(err, m.target) {
			return status.Error(m.code, err.Error())
		}
	}
	return status.Error(codes.Internal, "internal error")
}
