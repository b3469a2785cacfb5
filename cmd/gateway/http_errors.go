package main

import (
	"errors"
	"net/http"

	checkoutapp "github.com/bloemendal/storefront/internal/checkout/app"
	orderapp "github.com/bloemendal/storefront/internal/order/app"
	promoapp "github.com/bloemendal/storefront/internal/promo/app"
	recoveryapp "github.com/bloemendal/storefront/internal/recovery/app"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// httpStatusFromGRPC maps a gRPC status error to an HTTP status, a stable
// error code and a user-facing message.
func httpStatusFromGRPC(err error) (int, string, string) {
	st, ok := status.FromError(err)
	if !ok {
		return http.StatusInternalServerError, "INTERNAL", "internal error"
	}

	switch st.Code() {
	case codes.InvalidArgument:
		return http.StatusBadRequest, "INVALID_ARGUMENT", st.Message()
	case codes.NotFound:
		return http.StatusNotFound, "NOT_FOUND", st.Message()
	case codes.FailedPrecondition:
		return http.StatusConflict, "FAILED_PRECONDITION", st.Message()
	case codes.Unavailable, codes.DeadlineExceeded:
		return http.StatusServiceUnavailable, "UNAVAILABLE", "service temporarily unavailable"
	case codes.OK:
		return http.StatusInternalServerError, "INTERNAL", "internal error"
	default:
		return http.StatusInternalServerError, "INTERNAL", "internal error"
	}
}

// toGRPCStatus lifts app-layer errors into the gRPC status taxonomy the
// gateway maps to HTTP. Transport failures from external services come
// through as Unavailable; business rejections keep their own codes.
func toGRPCStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}

	var verr *checkoutapp.ValidationError
	switch {
	case errors.As(err, &verr):
		return status.Error(codes.InvalidArgument, verr.Error())
	case errors.Is(err, orderapp.ErrNotFound):
		return status.Error(codes.NotFound, "order not found")
	case errors.Is(err, orderapp.ErrInvalidInput),
		errors.Is(err, promoapp.ErrEmptyCode),
		errors.Is(err, checkoutapp.ErrEmptyCart),
		errors.Is(err, checkoutapp.ErrLookupCountry):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, promoapp.ErrRejected),
		errors.Is(err, checkoutapp.ErrWrongStep),
		errors.Is(err, recoveryapp.ErrAlreadyPaid),
		errors.Is(err, recoveryapp.ErrCancelled):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
