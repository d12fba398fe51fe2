package service

import (
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestStatusFromViolationsEmptyIsNil(t *testing.T) {
	if err := statusFromViolations(nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestStatusFromViolationsInvalidArgument(t *testing.T) {
	errs := validationErrors{{field: "config.encoding", description: "must be set"}}
	err := statusFromViolations(errs)
	st, ok := status.FromError(err)
	if !ok {
		t.Fatal("expected a status error")
	}
	if st.Code() != codes.InvalidArgument {
		t.Fatalf("code = %v, want InvalidArgument", st.Code())
	}
	if len(st.Details()) != 1 {
		t.Fatalf("details = %+v, want one BadRequest detail", st.Details())
	}
}

func TestDecodeErrorStreamingIsInvalidArgument(t *testing.T) {
	err := decodeError(true, errTest)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestDecodeErrorNonStreamingIsFailedPrecondition(t *testing.T) {
	err := decodeError(false, errTest)
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("code = %v, want FailedPrecondition", status.Code(err))
	}
}

func TestInternalErrorHidesDetail(t *testing.T) {
	err := internalError("recognition failed")
	if status.Code(err) != codes.Internal {
		t.Fatalf("code = %v, want Internal", status.Code(err))
	}
}

func TestOrchestratorCancelledStatus(t *testing.T) {
	if status.Code(orchestratorCancelledStatus()) != codes.Cancelled {
		t.Fatalf("expected Cancelled code")
	}
}

var errTest = fakeErr("boom")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }
