package service

import (
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// statusFromViolations builds the INVALID_ARGUMENT status spec.md §6/§7's
// error surface table describes, attaching a BadRequest detail with one
// FieldViolation per entry — the Go analogue of
// original_source/src/api/validation.cc's ErrorVecToStatus.
func statusFromViolations(errs validationErrors) error {
	if len(errs) == 0 {
		return nil
	}
	br := &errdetails.BadRequest{}
	for _, e := range errs {
		br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
			Field:       e.field,
			Description: e.description,
		})
	}
	st := status.New(codes.InvalidArgument, "invalid request, see details")
	withDetails, err := st.WithDetails(br)
	if err != nil {
		return st.Err()
	}
	return withDetails.Err()
}

// decodeError reports an audio decode/resample failure. Non-streaming
// calls get FAILED_PRECONDITION, streaming calls get INVALID_ARGUMENT
// (spec.md §6: "audio failed to decode").
func decodeError(streaming bool, err error) error {
	if streaming {
		return status.Errorf(codes.InvalidArgument, "failed to decode audio: %v", err)
	}
	return status.Errorf(codes.FailedPrecondition, "failed to decode audio: %v", err)
}

// internalError wraps an unexpected internal failure (empty transcript,
// alignment failure) as INTERNAL with a generic message; full detail is
// left to the caller's logs, never the response (spec.md §7).
func internalError(summary string) error {
	return status.Error(codes.Internal, summary)
}

// orchestratorCancelledStatus reports a client disconnect or write
// failure mid-stream as CANCELLED (spec.md §6/§7).
func orchestratorCancelledStatus() error {
	return status.Error(codes.Cancelled, "stream cancelled")
}
