package messaging_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/domain"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/iec61850"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/messaging"
)

// fakeSender records sent response messages.
type fakeSender struct {
	sent []*domain.ResponseMessage
	err  error
}

func (f *fakeSender) Send(ctx context.Context, msg *domain.ResponseMessage) error {
	f.sent = append(f.sent, msg)
	return f.err
}

func testMetadata() domain.MessageMetadata {
	return domain.MessageMetadata{
		CorrelationUID: "corr-123",
		Domain:         "MICROGRIDS",
		DomainVersion:  "1.0",
		MessageType:    messaging.MessageTypeGetData,
		OrganisationID: "test-org",
		DeviceID:       "TEST-DEVICE-1",
		RetryCount:     1,
	}
}

func newBaseProcessor(sender *fakeSender, maxRedeliveries int) *messaging.BaseProcessor {
	return &messaging.BaseProcessor{
		Sender:          sender,
		Logger:          zerolog.Nop(),
		MaxRedeliveries: maxRedeliveries,
	}
}

// TestCheckForRedeliveryWithinBudget tests that an expected error on an
// early delivery requests redelivery without sending a response.
func TestCheckForRedeliveryWithinBudget(t *testing.T) {
	sender := &fakeSender{}
	p := newBaseProcessor(sender, 3)

	err := &iec61850.ServiceError{Code: iec61850.DeviceCommunicationFailureCode}
	d := p.CheckForRedelivery(context.Background(), testMetadata(), err, 1)

	if d != messaging.DispositionRedeliver {
		t.Errorf("expected DispositionRedeliver, got %v", d)
	}
	if len(sender.sent) != 0 {
		t.Errorf("expected no response, got %d", len(sender.sent))
	}
}

// TestCheckForRedeliveryBudgetExhausted tests the terminal NOT_OK response
// after the redelivery budget ran out.
func TestCheckForRedeliveryBudgetExhausted(t *testing.T) {
	sender := &fakeSender{}
	p := newBaseProcessor(sender, 3)

	err := &iec61850.ServiceError{Code: iec61850.DeviceCommunicationFailureCode}
	d := p.CheckForRedelivery(context.Background(), testMetadata(), err, 4)

	if d != messaging.DispositionAck {
		t.Errorf("expected DispositionAck, got %v", d)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 response, got %d", len(sender.sent))
	}

	resp := sender.sent[0]
	if resp.Result != domain.ResultNotOK {
		t.Errorf("expected NOT_OK, got %s", resp.Result)
	}
	if resp.CorrelationUID != "corr-123" {
		t.Errorf("expected echoed correlation uid, got %q", resp.CorrelationUID)
	}
	if resp.RetryCount != math.MaxInt32 {
		t.Errorf("expected terminal retry count, got %d", resp.RetryCount)
	}
	techErr, ok := resp.Error.(*domain.TechnicalError)
	if !ok {
		t.Fatalf("expected a technical error, got %T", resp.Error)
	}
	if techErr.Message != "Device communication failure" {
		t.Errorf("expected device communication failure message, got %q", techErr.Message)
	}
	if techErr.Component != domain.ComponentProtocolIEC61850 {
		t.Errorf("expected this adapter's component, got %s", techErr.Component)
	}
}

// TestHandleUnexpectedError tests the immediate NOT_OK response for errors
// outside the redelivery policy.
func TestHandleUnexpectedError(t *testing.T) {
	sender := &fakeSender{}
	p := newBaseProcessor(sender, 3)

	p.HandleUnexpectedError(context.Background(), testMetadata(), errors.New("model mismatch"))

	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 response, got %d", len(sender.sent))
	}
	resp := sender.sent[0]
	if resp.Result != domain.ResultNotOK {
		t.Errorf("expected NOT_OK, got %s", resp.Result)
	}
	if resp.RetryCount != 1 {
		t.Errorf("expected caller retry count 1, got %d", resp.RetryCount)
	}
}

// TestSendOKResponse tests that completed operations are answered with the
// request metadata echoed.
func TestSendOKResponse(t *testing.T) {
	sender := &fakeSender{}
	p := newBaseProcessor(sender, 3)

	payload := &domain.DataResponse{}
	p.SendOKResponse(context.Background(), testMetadata(), payload)

	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 response, got %d", len(sender.sent))
	}
	resp := sender.sent[0]
	if resp.Result != domain.ResultOK {
		t.Errorf("expected OK, got %s", resp.Result)
	}
	if resp.DeviceID != "TEST-DEVICE-1" || resp.OrganisationID != "test-org" {
		t.Errorf("expected echoed identities, got %s %s", resp.DeviceID, resp.OrganisationID)
	}
	if resp.Payload != payload {
		t.Error("expected payload to be attached")
	}
}

// TestNoCorrelationUIDSkipsResponse tests that responses without a
// correlation uid are never sent.
func TestNoCorrelationUIDSkipsResponse(t *testing.T) {
	sender := &fakeSender{}
	p := newBaseProcessor(sender, 3)

	meta := testMetadata()
	meta.CorrelationUID = ""

	p.SendOKResponse(context.Background(), meta, nil)
	p.HandleUnexpectedError(context.Background(), meta, errors.New("boom"))
	p.HandleExpectedError(context.Background(), meta, errors.New("boom"))

	if len(sender.sent) != 0 {
		t.Errorf("expected no responses, got %d", len(sender.sent))
	}
}

// TestIsExpected tests the expected/unexpected error classification.
func TestIsExpected(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"service error", &iec61850.ServiceError{Code: 22}, true},
		{"wrapped service error", fmt.Errorf("read: %w", &iec61850.ServiceError{Code: 5}), true},
		{"no connection", fmt.Errorf("%w: TEST-DEVICE-1", domain.ErrConnectionNotFound), true},
		{"not reachable", domain.ErrDeviceNotReachable, true},
		{"functional", &domain.FunctionalError{Component: domain.ComponentProtocolIEC61850, Message: "unknown device"}, false},
		{"generic", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := messaging.IsExpected(tt.err); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

// TestEnsureCanonicalError tests the canonical error classification.
func TestEnsureCanonicalError(t *testing.T) {
	techErr := domain.NewTechnicalError("already canonical", nil)
	funcErr := &domain.FunctionalError{Component: domain.ComponentProtocolIEC61850, Message: "bad request"}

	tests := []struct {
		name        string
		err         error
		wantMessage string
		wantSame    domain.CanonicalError
	}{
		{"technical passes through", techErr, "", techErr},
		{"functional passes through", funcErr, "", funcErr},
		{
			"communication failure code",
			&iec61850.ServiceError{Code: iec61850.DeviceCommunicationFailureCode},
			"Device communication failure", nil,
		},
		{
			"wrapped communication failure",
			fmt.Errorf("get node: %w", &iec61850.ServiceError{Code: iec61850.DeviceCommunicationFailureCode}),
			"Device communication failure", nil,
		},
		{
			"service error without message",
			&iec61850.ServiceError{Code: 5},
			"no specific service error code", nil,
		},
		{
			"service error with message",
			&iec61850.ServiceError{Code: 10, Message: "access denied"},
			"access denied", nil,
		},
		{
			"generic error",
			errors.New("boom"),
			"unexpected exception while handling message", nil,
		},
		{
			"adapter error is re-classified",
			domain.NewAdapterError("internal state", nil),
			"unexpected exception while handling message", nil,
		},
		{
			"nil error",
			nil,
			"no exception specified", nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := messaging.EnsureCanonicalError(tt.err)
			if tt.wantSame != nil {
				if got != tt.wantSame {
					t.Errorf("expected the error to pass through unchanged")
				}
				return
			}
			te, ok := got.(*domain.TechnicalError)
			if !ok {
				t.Fatalf("expected a technical error, got %T", got)
			}
			if te.Message != tt.wantMessage {
				t.Errorf("expected message %q, got %q", tt.wantMessage, te.Message)
			}
		})
	}
}
