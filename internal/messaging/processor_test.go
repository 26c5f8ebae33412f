package messaging_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/device"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/domain"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/iec61850"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/messaging"
)

func newDeviceService() *device.Service {
	store := device.NewStore(false, &domain.DeviceRecord{
		DeviceID:   "TEST-DEVICE-1",
		ServerName: "WAGO61850Server",
	})
	svc := device.NewService(iec61850.NewOfflineClient(), store, zerolog.Nop(), nil)
	svc.RegisterConnection(&iec61850.DeviceConnection{DeviceID: "TEST-DEVICE-1", ServerName: "WAGO61850Server"})
	return svc
}

// TestProcessorMap tests processor registration and lookup.
func TestProcessorMap(t *testing.T) {
	svc := newDeviceService()
	base := messaging.BaseProcessor{Sender: &fakeSender{}, Logger: zerolog.Nop(), MaxRedeliveries: 3}

	processors, err := messaging.NewProcessorMap(
		messaging.NewGetDataProcessor(svc, base),
		messaging.NewSetDataProcessor(svc, base),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := processors.Resolve(messaging.MessageTypeGetData); !ok {
		t.Error("expected GET_DATA to resolve")
	}
	if _, ok := processors.Resolve(messaging.MessageTypeSetData); !ok {
		t.Error("expected SET_DATA to resolve")
	}
	if _, ok := processors.Resolve("REBOOT"); ok {
		t.Error("expected unknown message type to not resolve")
	}
}

// TestProcessorMapRejectsDuplicates tests duplicate registration detection.
func TestProcessorMapRejectsDuplicates(t *testing.T) {
	svc := newDeviceService()
	base := messaging.BaseProcessor{Sender: &fakeSender{}, Logger: zerolog.Nop()}

	_, err := messaging.NewProcessorMap(
		messaging.NewGetDataProcessor(svc, base),
		messaging.NewGetDataProcessor(svc, base),
	)
	if err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

// TestGetDataMalformedPayload tests that an unparseable payload is answered
// NOT_OK without redelivery.
func TestGetDataMalformedPayload(t *testing.T) {
	sender := &fakeSender{}
	base := messaging.BaseProcessor{Sender: sender, Logger: zerolog.Nop(), MaxRedeliveries: 3}
	p := messaging.NewGetDataProcessor(newDeviceService(), base)

	msg := newFakeMessage(commandHeaders(), []byte("{not json"), 1)
	d := p.ProcessMessage(context.Background(), msg, testMetadata())

	if d != messaging.DispositionAck {
		t.Errorf("expected DispositionAck, got %v", d)
	}
	if len(sender.sent) != 1 || sender.sent[0].Result != domain.ResultNotOK {
		t.Fatalf("expected one NOT_OK response, got %+v", sender.sent)
	}
}

// TestGetDataAgainstUnreachableDevice tests the asynchronous path end to
// end: the first delivery of a request against an unreachable device is
// returned for redelivery.
func TestGetDataAgainstUnreachableDevice(t *testing.T) {
	sender := &fakeSender{}
	base := messaging.BaseProcessor{Sender: sender, Logger: zerolog.Nop(), MaxRedeliveries: 3}
	p := messaging.NewGetDataProcessor(newDeviceService(), base)

	msg := newFakeMessage(commandHeaders(), []byte(`{"systems":[{"id":1,"type":"RTU"}]}`), 1)
	d := p.ProcessMessage(context.Background(), msg, testMetadata())
	if d != messaging.DispositionAsync {
		t.Fatalf("expected DispositionAsync, got %v", d)
	}

	select {
	case <-msg.settled:
	case <-time.After(2 * time.Second):
		t.Fatal("delivery was not settled")
	}
	if msg.naked != 1 {
		t.Errorf("expected one nak, got ack=%d nak=%d term=%d", msg.acked, msg.naked, msg.termed)
	}
	if len(sender.sent) != 0 {
		t.Errorf("expected no response yet, got %d", len(sender.sent))
	}
}

// TestSetDataAgainstUnknownDevice tests that an unknown device is answered
// NOT_OK immediately, outside the redelivery policy.
func TestSetDataAgainstUnknownDevice(t *testing.T) {
	sender := &fakeSender{}
	base := messaging.BaseProcessor{Sender: sender, Logger: zerolog.Nop(), MaxRedeliveries: 3}
	p := messaging.NewSetDataProcessor(newDeviceService(), base)

	meta := testMetadata()
	meta.MessageType = messaging.MessageTypeSetData
	meta.DeviceID = "UNKNOWN-DEVICE"

	msg := newFakeMessage(commandHeaders(), []byte(`{"systems":[]}`), 1)
	d := p.ProcessMessage(context.Background(), msg, meta)
	if d != messaging.DispositionAsync {
		t.Fatalf("expected DispositionAsync, got %v", d)
	}

	select {
	case <-msg.settled:
	case <-time.After(2 * time.Second):
		t.Fatal("delivery was not settled")
	}
	if msg.acked != 1 {
		t.Errorf("expected one ack, got ack=%d nak=%d", msg.acked, msg.naked)
	}
	if len(sender.sent) != 1 || sender.sent[0].Result != domain.ResultNotOK {
		t.Fatalf("expected one NOT_OK response, got %+v", sender.sent)
	}
	if _, ok := sender.sent[0].Error.(*domain.FunctionalError); !ok {
		t.Errorf("expected a functional error, got %T", sender.sent[0].Error)
	}
}

// TestDispositionString tests the disposition labels.
func TestDispositionString(t *testing.T) {
	tests := []struct {
		d    messaging.Disposition
		want string
	}{
		{messaging.DispositionAck, "ack"},
		{messaging.DispositionRedeliver, "redeliver"},
		{messaging.DispositionTerminate, "terminate"},
		{messaging.DispositionAsync, "async"},
	}
	for _, tt := range tests {
		if got := tt.d.String(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}
