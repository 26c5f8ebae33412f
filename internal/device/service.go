package device

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/domain"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/iec61850"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/metrics"
)

// ResponseHandler receives the completion of an asynchronously executed
// device operation. Implementations are invoked from the operation's
// goroutine, exactly once per operation.
type ResponseHandler interface {
	HandleResponse(payload any)
	HandleError(err error)
}

// Service executes GET_DATA and SET_DATA operations against field devices
// through the IEC 61850 client. Each device gets its own circuit breaker so
// one misbehaving device does not affect others.
type Service struct {
	client  iec61850.Client
	store   *Store
	logger  zerolog.Logger
	metrics *metrics.Registry

	mu          sync.RWMutex
	connections map[string]*iec61850.DeviceConnection
	breakers    map[string]*gobreaker.CircuitBreaker
}

// NewService creates the device service.
func NewService(client iec61850.Client, store *Store, logger zerolog.Logger, registry *metrics.Registry) *Service {
	return &Service{
		client:      client,
		store:       store,
		logger:      logger.With().Str("component", "device-service").Logger(),
		metrics:     registry,
		connections: make(map[string]*iec61850.DeviceConnection),
		breakers:    make(map[string]*gobreaker.CircuitBreaker),
	}
}

// RegisterConnection makes a live device connection available for command
// execution.
func (s *Service) RegisterConnection(conn *iec61850.DeviceConnection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections[conn.DeviceID] = conn
	s.logger.Info().Str("device_id", conn.DeviceID).Msg("Device connection registered")
}

// RemoveConnection drops a connection, e.g. after the association closed.
func (s *Service) RemoveConnection(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.connections, deviceID)
	s.logger.Info().Str("device_id", deviceID).Msg("Device connection removed")
}

func (s *Service) connection(deviceID string) (*iec61850.DeviceConnection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conn, ok := s.connections[deviceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrConnectionNotFound, deviceID)
	}
	return conn, nil
}

func (s *Service) breakerFor(deviceID string) *gobreaker.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cb, ok := s.breakers[deviceID]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        fmt.Sprintf("iec61850-%s", deviceID),
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			s.logger.Info().
				Str("device", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Device circuit breaker state changed")
			if s.metrics != nil {
				s.metrics.BreakerStateChange.WithLabelValues(name, to.String()).Inc()
			}
		},
	})
	s.breakers[deviceID] = cb
	return cb
}

// GetData reads the requested systems from the device and returns a
// canonical data response.
func (s *Service) GetData(ctx context.Context, deviceID string, req *domain.GetDataRequest) (*domain.DataResponse, error) {
	rec, conn, err := s.resolve(deviceID)
	if err != nil {
		s.recordOperation("GET_DATA", err)
		return nil, err
	}

	result, err := s.breakerFor(deviceID).Execute(func() (interface{}, error) {
		return s.readSystems(ctx, conn, rec, req)
	})
	s.recordOperation("GET_DATA", err)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return nil, fmt.Errorf("%w: circuit breaker open", domain.ErrDeviceNotReachable)
		}
		return nil, err
	}
	return result.(*domain.DataResponse), nil
}

// SetData writes the requested set points to the device.
func (s *Service) SetData(ctx context.Context, deviceID string, req *domain.SetDataRequest) error {
	rec, conn, err := s.resolve(deviceID)
	if err != nil {
		s.recordOperation("SET_DATA", err)
		return err
	}

	_, err = s.breakerFor(deviceID).Execute(func() (interface{}, error) {
		return nil, s.writeSystems(ctx, conn, rec, req)
	})
	s.recordOperation("SET_DATA", err)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return fmt.Errorf("%w: circuit breaker open", domain.ErrDeviceNotReachable)
		}
		return err
	}
	return nil
}

// GetDataAsync runs GetData on its own goroutine and reports completion
// through the handler.
func (s *Service) GetDataAsync(ctx context.Context, deviceID string, req *domain.GetDataRequest, handler ResponseHandler) {
	go func() {
		resp, err := s.GetData(ctx, deviceID, req)
		if err != nil {
			handler.HandleError(err)
			return
		}
		handler.HandleResponse(resp)
	}()
}

// SetDataAsync runs SetData on its own goroutine and reports completion
// through the handler.
func (s *Service) SetDataAsync(ctx context.Context, deviceID string, req *domain.SetDataRequest, handler ResponseHandler) {
	go func() {
		if err := s.SetData(ctx, deviceID, req); err != nil {
			handler.HandleError(err)
			return
		}
		handler.HandleResponse(nil)
	}()
}

// EnableReporting activates the report control blocks of a device so its
// listener starts receiving reports.
func (s *Service) EnableReporting(ctx context.Context, deviceID string) error {
	conn, err := s.connection(deviceID)
	if err != nil {
		return err
	}
	_, err = s.breakerFor(deviceID).Execute(func() (interface{}, error) {
		return nil, s.client.EnableReporting(ctx, conn)
	})
	s.recordOperation("ENABLE_REPORTING", err)
	return err
}

func (s *Service) resolve(deviceID string) (*domain.DeviceRecord, *iec61850.DeviceConnection, error) {
	rec, ok := s.store.FindByDeviceIdentification(deviceID)
	if !ok {
		return nil, nil, &domain.FunctionalError{
			Component: domain.ComponentProtocolIEC61850,
			Message:   fmt.Sprintf("device %s not found", deviceID),
			Cause:     domain.ErrDeviceNotFound,
		}
	}
	conn, err := s.connection(deviceID)
	if err != nil {
		return nil, nil, err
	}
	return rec, conn, nil
}

func (s *Service) readSystems(ctx context.Context, conn *iec61850.DeviceConnection, rec *domain.DeviceRecord, req *domain.GetDataRequest) (*domain.DataResponse, error) {
	systems := make([]domain.SystemResult, 0, len(req.Systems))
	for _, filter := range req.Systems {
		result, err := s.readSystem(ctx, conn, rec, filter)
		if err != nil {
			return nil, err
		}
		systems = append(systems, result)
	}
	return &domain.DataResponse{Systems: systems}, nil
}

func (s *Service) readSystem(ctx context.Context, conn *iec61850.DeviceConnection, rec *domain.DeviceRecord, filter domain.SystemFilter) (domain.SystemResult, error) {
	nodes := filter.Nodes
	if len(nodes) == 0 {
		nodes = defaultReadNodes
	}

	// Combined load devices expose one LOAD logical device with indexed
	// metering logical nodes; all other layouts index the logical device.
	logicalDevice, deviceIndex, nodeIndex := filter.Type, filter.ID, 1
	if filter.Type == "LOAD" && rec.UseCombinedLoad {
		deviceIndex, nodeIndex = 1, filter.ID
	}

	measurements := make([]domain.Measurement, 0, len(nodes))
	for _, name := range nodes {
		cmd, ok := readCommands[name]
		if !ok {
			s.logger.Warn().
				Str("device_id", conn.DeviceID).
				Str("node", name).
				Msg("Unsupported read node, skipping")
			continue
		}

		logicalNode := cmd.logicalNode
		if cmd.indexed {
			logicalNode += strconv.Itoa(nodeIndex)
		}
		ref := iec61850.ObjectReference(fmt.Sprintf("%s/%s.%s",
			conn.LogicalDeviceRef(logicalDevice, deviceIndex), logicalNode, name))

		node, err := s.client.GetNode(ctx, conn, ref, cmd.fc)
		if err != nil {
			return domain.SystemResult{}, fmt.Errorf("get node %s: %w", ref, err)
		}
		if err := s.client.ReadNodeDataValues(ctx, conn, node); err != nil {
			return domain.SystemResult{}, fmt.Errorf("read node %s: %w", ref, err)
		}

		m, err := cmd.translate(iec61850.NewNodeContainer(conn.DeviceID, node), nodeIndex, name)
		if err != nil {
			s.logger.Warn().Err(err).
				Str("device_id", conn.DeviceID).
				Str("node", name).
				Msg("Unable to translate read node, skipping")
			continue
		}
		measurements = append(measurements, m)
	}

	return domain.SystemResult{ID: filter.ID, Type: filter.Type, Measurements: measurements}, nil
}

func (s *Service) writeSystems(ctx context.Context, conn *iec61850.DeviceConnection, rec *domain.DeviceRecord, req *domain.SetDataRequest) error {
	for _, system := range req.Systems {
		logicalDevice, deviceIndex := system.Type, system.ID
		if system.Type == "LOAD" && rec.UseCombinedLoad {
			deviceIndex = 1
		}
		for _, sp := range system.SetPoints {
			node, err := buildSetPointNode(conn, logicalDevice, deviceIndex, sp)
			if err != nil {
				return err
			}
			if err := s.client.WriteNodeDataValues(ctx, conn, node); err != nil {
				return fmt.Errorf("write node %s: %w", node.Reference(), err)
			}
			s.logger.Debug().
				Str("device_id", conn.DeviceID).
				Str("node", sp.Node).
				Float64("value", sp.Value).
				Msg("Set point written")
		}
	}
	return nil
}

// buildSetPointNode constructs the writable set-point node. Set points are
// addressed as "<logical node>.<data object>", e.g. "DRCC1.DmdW", and carry
// the value in setMag.f.
func buildSetPointNode(conn *iec61850.DeviceConnection, logicalDevice string, deviceIndex int, sp domain.SetPoint) (*iec61850.FcModelNode, error) {
	logicalNode, dataObject, found := strings.Cut(sp.Node, ".")
	if !found || logicalNode == "" || dataObject == "" {
		return nil, &domain.FunctionalError{
			Component: domain.ComponentProtocolIEC61850,
			Message:   fmt.Sprintf("set point %q is not addressable", sp.Node),
			Cause:     domain.ErrSetPointNotWritable,
		}
	}
	ref := iec61850.ObjectReference(fmt.Sprintf("%s/%s.%s",
		conn.LogicalDeviceRef(logicalDevice, deviceIndex), logicalNode, dataObject))
	node := iec61850.NewNode(dataObject,
		iec61850.NewNode(iec61850.AttrSetMagnitude,
			iec61850.NewFloat32Node(iec61850.AttrFloat, float32(sp.Value))))
	return iec61850.NewFcModelNode(ref, iec61850.FcSP, node), nil
}

func (s *Service) recordOperation(operation string, err error) {
	if s.metrics != nil {
		s.metrics.RecordDeviceOperation(operation, err)
	}
}
