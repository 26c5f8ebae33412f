package device_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/device"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/domain"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/iec61850"
)

// fakeClient serves canned model nodes keyed by data object name and records
// every wire interaction.
type fakeClient struct {
	nodes map[string]*iec61850.Node

	getRefs   []iec61850.ObjectReference
	reads     int
	written   []*iec61850.FcModelNode
	reporting int
	err       error
}

func (f *fakeClient) GetNode(ctx context.Context, conn *iec61850.DeviceConnection, ref iec61850.ObjectReference, fc iec61850.Fc) (*iec61850.FcModelNode, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.getRefs = append(f.getRefs, ref)
	tree, ok := f.nodes[ref.Part(2)]
	if !ok {
		return nil, fmt.Errorf("no model node at %s", ref)
	}
	return iec61850.NewFcModelNode(ref, fc, tree), nil
}

func (f *fakeClient) ReadNodeDataValues(ctx context.Context, conn *iec61850.DeviceConnection, node *iec61850.FcModelNode) error {
	if f.err != nil {
		return f.err
	}
	f.reads++
	return nil
}

func (f *fakeClient) WriteNodeDataValues(ctx context.Context, conn *iec61850.DeviceConnection, node *iec61850.FcModelNode) error {
	if f.err != nil {
		return f.err
	}
	f.written = append(f.written, node)
	return nil
}

func (f *fakeClient) EnableReporting(ctx context.Context, conn *iec61850.DeviceConnection) error {
	if f.err != nil {
		return f.err
	}
	f.reporting++
	return nil
}

func measurandTree(value float32) *iec61850.Node {
	return iec61850.NewNode("",
		iec61850.NewNode("mag", iec61850.NewFloat32Node("f", value)),
		iec61850.NewQualityNode("q", iec61850.QualityValidityGood),
		iec61850.NewTimestampNode("t", time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)),
	)
}

func counterTree(value int64) *iec61850.Node {
	return iec61850.NewNode("",
		iec61850.NewInt64Node("actVal", value),
		iec61850.NewQualityNode("q", iec61850.QualityValidityGood),
		iec61850.NewTimestampNode("t", time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)),
	)
}

func statusTree(value bool) *iec61850.Node {
	return iec61850.NewNode("",
		iec61850.NewBoolNode("stVal", value),
		iec61850.NewQualityNode("q", iec61850.QualityValidityGood),
		iec61850.NewTimestampNode("t", time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)),
	)
}

func newTestService(client iec61850.Client, combined bool) *device.Service {
	store := device.NewStore(false, &domain.DeviceRecord{
		DeviceID:        "TEST-DEVICE-1",
		ServerName:      "WAGO61850Server",
		UseCombinedLoad: combined,
	})
	svc := device.NewService(client, store, zerolog.Nop(), nil)
	svc.RegisterConnection(&iec61850.DeviceConnection{DeviceID: "TEST-DEVICE-1", ServerName: "WAGO61850Server"})
	return svc
}

// TestGetDataReadsRequestedNodes tests the read path for an explicit node
// selection.
func TestGetDataReadsRequestedNodes(t *testing.T) {
	client := &fakeClient{nodes: map[string]*iec61850.Node{
		"TotW":  measurandTree(1250.5),
		"TotWh": counterTree(987654),
	}}
	svc := newTestService(client, false)

	resp, err := svc.GetData(context.Background(), "TEST-DEVICE-1", &domain.GetDataRequest{
		Systems: []domain.SystemFilter{{ID: 2, Type: "BATTERY", Nodes: []string{"TotW", "TotWh"}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantRefs := []iec61850.ObjectReference{
		"WAGO61850ServerBATTERY2/MMXU1.TotW",
		"WAGO61850ServerBATTERY2/MMTR1.TotWh",
	}
	if len(client.getRefs) != len(wantRefs) {
		t.Fatalf("expected %d reads, got %v", len(wantRefs), client.getRefs)
	}
	for i, want := range wantRefs {
		if client.getRefs[i] != want {
			t.Errorf("expected ref %s, got %s", want, client.getRefs[i])
		}
	}

	if len(resp.Systems) != 1 {
		t.Fatalf("expected 1 system, got %d", len(resp.Systems))
	}
	system := resp.Systems[0]
	if system.ID != 2 || system.Type != "BATTERY" {
		t.Errorf("expected BATTERY 2, got %s %d", system.Type, system.ID)
	}
	if len(system.Measurements) != 2 {
		t.Fatalf("expected 2 measurements, got %d", len(system.Measurements))
	}
	if system.Measurements[0].Value != 1250.5 || system.Measurements[1].Value != 987654 {
		t.Errorf("unexpected values: %+v", system.Measurements)
	}
}

// TestGetDataDefaultNodes tests that a filter without nodes reads the
// standard status set.
func TestGetDataDefaultNodes(t *testing.T) {
	client := &fakeClient{nodes: map[string]*iec61850.Node{
		"Beh":    statusTree(true),
		"Health": statusTree(true),
		"Mod":    statusTree(false),
	}}
	svc := newTestService(client, false)

	resp, err := svc.GetData(context.Background(), "TEST-DEVICE-1", &domain.GetDataRequest{
		Systems: []domain.SystemFilter{{ID: 1, Type: "RTU"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantRefs := []iec61850.ObjectReference{
		"WAGO61850ServerRTU1/LLN0.Beh",
		"WAGO61850ServerRTU1/LLN0.Health",
		"WAGO61850ServerRTU1/LLN0.Mod",
	}
	for i, want := range wantRefs {
		if client.getRefs[i] != want {
			t.Errorf("expected ref %s, got %s", want, client.getRefs[i])
		}
	}
	if len(resp.Systems[0].Measurements) != 3 {
		t.Errorf("expected 3 measurements, got %d", len(resp.Systems[0].Measurements))
	}
}

// TestGetDataCombinedLoad tests the combined load addressing: one LOAD
// logical device with indexed metering nodes.
func TestGetDataCombinedLoad(t *testing.T) {
	client := &fakeClient{nodes: map[string]*iec61850.Node{"TotWh": counterTree(42)}}
	svc := newTestService(client, true)

	resp, err := svc.GetData(context.Background(), "TEST-DEVICE-1", &domain.GetDataRequest{
		Systems: []domain.SystemFilter{{ID: 3, Type: "LOAD", Nodes: []string{"TotWh"}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := iec61850.ObjectReference("WAGO61850ServerLOAD1/MMTR3.TotWh"); client.getRefs[0] != want {
		t.Errorf("expected ref %s, got %s", want, client.getRefs[0])
	}
	if resp.Systems[0].Measurements[0].Index != 3 {
		t.Errorf("expected measurement index 3, got %d", resp.Systems[0].Measurements[0].Index)
	}
}

// TestGetDataSeparatedLoad tests the separated load addressing: the system
// id indexes the logical device.
func TestGetDataSeparatedLoad(t *testing.T) {
	client := &fakeClient{nodes: map[string]*iec61850.Node{"TotWh": counterTree(42)}}
	svc := newTestService(client, false)

	resp, err := svc.GetData(context.Background(), "TEST-DEVICE-1", &domain.GetDataRequest{
		Systems: []domain.SystemFilter{{ID: 3, Type: "LOAD", Nodes: []string{"TotWh"}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := iec61850.ObjectReference("WAGO61850ServerLOAD3/MMTR1.TotWh"); client.getRefs[0] != want {
		t.Errorf("expected ref %s, got %s", want, client.getRefs[0])
	}
	if resp.Systems[0].Measurements[0].Index != 1 {
		t.Errorf("expected measurement index 1, got %d", resp.Systems[0].Measurements[0].Index)
	}
}

// TestGetDataUnsupportedNodeSkipped tests that unknown node names are
// skipped instead of failing the request.
func TestGetDataUnsupportedNodeSkipped(t *testing.T) {
	client := &fakeClient{nodes: map[string]*iec61850.Node{"TotW": measurandTree(1.0)}}
	svc := newTestService(client, false)

	resp, err := svc.GetData(context.Background(), "TEST-DEVICE-1", &domain.GetDataRequest{
		Systems: []domain.SystemFilter{{ID: 1, Type: "PV", Nodes: []string{"Bogus", "TotW"}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Systems[0].Measurements) != 1 {
		t.Errorf("expected 1 measurement, got %d", len(resp.Systems[0].Measurements))
	}
}

// TestGetDataUnknownDevice tests that an unknown device yields a functional
// error.
func TestGetDataUnknownDevice(t *testing.T) {
	svc := newTestService(&fakeClient{}, false)

	_, err := svc.GetData(context.Background(), "UNKNOWN-DEVICE", &domain.GetDataRequest{})
	var funcErr *domain.FunctionalError
	if !errors.As(err, &funcErr) {
		t.Fatalf("expected a functional error, got %v", err)
	}
	if !errors.Is(err, domain.ErrDeviceNotFound) {
		t.Errorf("expected ErrDeviceNotFound, got %v", err)
	}
}

// TestGetDataWithoutConnection tests that a configured device without a live
// connection yields ErrConnectionNotFound.
func TestGetDataWithoutConnection(t *testing.T) {
	store := device.NewStore(false, &domain.DeviceRecord{DeviceID: "TEST-DEVICE-1", ServerName: "Srv"})
	svc := device.NewService(&fakeClient{}, store, zerolog.Nop(), nil)

	_, err := svc.GetData(context.Background(), "TEST-DEVICE-1", &domain.GetDataRequest{})
	if !errors.Is(err, domain.ErrConnectionNotFound) {
		t.Errorf("expected ErrConnectionNotFound, got %v", err)
	}
}

// TestGetDataPropagatesClientError tests that wire failures surface to the
// caller.
func TestGetDataPropagatesClientError(t *testing.T) {
	svcErr := &iec61850.ServiceError{Code: iec61850.DeviceCommunicationFailureCode}
	svc := newTestService(&fakeClient{err: svcErr}, false)

	_, err := svc.GetData(context.Background(), "TEST-DEVICE-1", &domain.GetDataRequest{
		Systems: []domain.SystemFilter{{ID: 1, Type: "RTU"}},
	})
	var got *iec61850.ServiceError
	if !errors.As(err, &got) {
		t.Errorf("expected the service error to propagate, got %v", err)
	}
}

// TestSetDataWritesSetPoints tests the write path and set-point addressing.
func TestSetDataWritesSetPoints(t *testing.T) {
	client := &fakeClient{}
	svc := newTestService(client, false)

	err := svc.SetData(context.Background(), "TEST-DEVICE-1", &domain.SetDataRequest{
		Systems: []domain.SetDataSystem{{
			ID:   2,
			Type: "ENGINE",
			SetPoints: []domain.SetPoint{
				{Node: "DRCC1.DmdW", Value: 500},
			},
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(client.written) != 1 {
		t.Fatalf("expected 1 write, got %d", len(client.written))
	}
	node := client.written[0]
	if want := iec61850.ObjectReference("WAGO61850ServerENGINE2/DRCC1.DmdW"); node.Reference() != want {
		t.Errorf("expected ref %s, got %s", want, node.Reference())
	}
	if node.Fc() != iec61850.FcSP {
		t.Errorf("expected set-point constraint, got %v", node.Fc())
	}
	f := node.At("setMag", "f")
	if f == nil {
		t.Fatal("expected setMag.f attribute")
	}
	if v, ok := f.Value().(float32); !ok || v != 500 {
		t.Errorf("expected value 500, got %v", f.Value())
	}
}

// TestSetDataCombinedLoadAddressing tests that combined load writes target
// the single LOAD logical device.
func TestSetDataCombinedLoadAddressing(t *testing.T) {
	client := &fakeClient{}
	svc := newTestService(client, true)

	err := svc.SetData(context.Background(), "TEST-DEVICE-1", &domain.SetDataRequest{
		Systems: []domain.SetDataSystem{{
			ID:        4,
			Type:      "LOAD",
			SetPoints: []domain.SetPoint{{Node: "DRCC1.DmdW", Value: 1}},
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := iec61850.ObjectReference("WAGO61850ServerLOAD1/DRCC1.DmdW"); client.written[0].Reference() != want {
		t.Errorf("expected ref %s, got %s", want, client.written[0].Reference())
	}
}

// TestSetDataRejectsBadAddress tests that a set point without a
// "<logical node>.<data object>" address fails functionally.
func TestSetDataRejectsBadAddress(t *testing.T) {
	svc := newTestService(&fakeClient{}, false)

	err := svc.SetData(context.Background(), "TEST-DEVICE-1", &domain.SetDataRequest{
		Systems: []domain.SetDataSystem{{
			ID:        1,
			Type:      "ENGINE",
			SetPoints: []domain.SetPoint{{Node: "DmdW", Value: 1}},
		}},
	})
	if !errors.Is(err, domain.ErrSetPointNotWritable) {
		t.Errorf("expected ErrSetPointNotWritable, got %v", err)
	}
}

// TestEnableReporting tests report activation through the service.
func TestEnableReporting(t *testing.T) {
	client := &fakeClient{}
	svc := newTestService(client, false)

	if err := svc.EnableReporting(context.Background(), "TEST-DEVICE-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.reporting != 1 {
		t.Errorf("expected reporting to be enabled once, got %d", client.reporting)
	}

	if err := svc.EnableReporting(context.Background(), "UNKNOWN-DEVICE"); !errors.Is(err, domain.ErrConnectionNotFound) {
		t.Errorf("expected ErrConnectionNotFound, got %v", err)
	}
}

// TestRemoveConnection tests that removed connections stop serving commands.
func TestRemoveConnection(t *testing.T) {
	svc := newTestService(&fakeClient{}, false)
	svc.RemoveConnection("TEST-DEVICE-1")

	_, err := svc.GetData(context.Background(), "TEST-DEVICE-1", &domain.GetDataRequest{})
	if !errors.Is(err, domain.ErrConnectionNotFound) {
		t.Errorf("expected ErrConnectionNotFound, got %v", err)
	}
}

// TestGetDataAsync tests that asynchronous execution reports through the
// handler.
func TestGetDataAsync(t *testing.T) {
	client := &fakeClient{nodes: map[string]*iec61850.Node{"Beh": statusTree(true), "Health": statusTree(true), "Mod": statusTree(false)}}
	svc := newTestService(client, false)

	done := make(chan any, 1)
	svc.GetDataAsync(context.Background(), "TEST-DEVICE-1", &domain.GetDataRequest{
		Systems: []domain.SystemFilter{{ID: 1, Type: "RTU"}},
	}, &chanHandler{done: done})

	select {
	case payload := <-done:
		resp, ok := payload.(*domain.DataResponse)
		if !ok {
			t.Fatalf("expected a data response, got %T", payload)
		}
		if len(resp.Systems) != 1 {
			t.Errorf("expected 1 system, got %d", len(resp.Systems))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("async operation did not complete")
	}
}

// chanHandler forwards completion to a channel.
type chanHandler struct {
	done chan any
}

func (h *chanHandler) HandleResponse(payload any) { h.done <- payload }
func (h *chanHandler) HandleError(err error)      { h.done <- err }
