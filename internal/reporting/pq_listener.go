package reporting

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/domain"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/iec61850"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/metrics"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/upstream"
)

// PQEventListener handles power-quality reports from distribution automation
// RTUs. Unlike EventListener it does not dispatch per device type: it walks
// every measurand member of the data-set and groups samples by logical
// device and logical node.
type PQEventListener struct {
	deviceID string
	upstream upstream.Service
	logger   zerolog.Logger
	metrics  *metrics.Registry
}

// NewPQEventListener creates a power-quality listener for one device
// connection.
func NewPQEventListener(deviceID string, upstreamService upstream.Service, logger zerolog.Logger, registry *metrics.Registry) *PQEventListener {
	return &PQEventListener{
		deviceID: deviceID,
		upstream: upstreamService,
		logger: logger.With().
			Str("component", "pq-report-listener").
			Str("device_id", deviceID).
			Logger(),
		metrics: registry,
	}
}

// NewReport implements iec61850.ReportListener.
func (l *PQEventListener) NewReport(report *iec61850.Report) {
	if l.metrics != nil {
		l.metrics.ReportsReceived.WithLabelValues(l.deviceID).Inc()
	}

	l.logger.Info().Str("rpt_id", report.RptID).Msg("Report received")
	if err := l.processReport(report); err != nil {
		l.logger.Warn().Err(err).Msg("Unable to process report, discarding report")
		if l.metrics != nil {
			l.metrics.RecordReportDiscarded(l.deviceID, "processing_failure")
		}
	}
}

// AssociationClosed implements iec61850.ReportListener.
func (l *PQEventListener) AssociationClosed(err error) {
	evt := l.logger.Info()
	if err != nil {
		evt = evt.Err(err)
	}
	evt.Msg("Association closed")
}

func (l *PQEventListener) processReport(report *iec61850.Report) error {
	if report.DataSet == nil {
		l.logger.Warn().Str("rpt_id", report.RptID).Msg("No DataSet available")
		return nil
	}
	members := report.DataSet.Members
	if len(members) == 0 {
		l.logger.Warn().Str("rpt_id", report.RptID).Msg("No members in DataSet available")
		return nil
	}

	var devices []*domain.PQLogicalDevice
	sampleCount := 0
	for _, member := range members {
		if member == nil || member.Fc() != iec61850.FcMX {
			// Only measurands carry power-quality samples.
			continue
		}
		n, err := l.processMeasurementMember(&devices, member)
		if err != nil {
			l.logger.Error().
				Err(err).
				Str("member", string(member.Reference())).
				Msg("Error adding sample for member")
			continue
		}
		sampleCount += n
	}

	response := &domain.PQValuesResponse{LogicalDevices: make([]domain.PQLogicalDevice, 0, len(devices))}
	for _, d := range devices {
		response.LogicalDevices = append(response.LogicalDevices, *d)
	}

	if err := l.upstream.SendPqValues(l.deviceID, report.RptID, response); err != nil {
		return fmt.Errorf("send pq values: %w", err)
	}
	if l.metrics != nil {
		l.metrics.RecordReportDispatched(l.deviceID, sampleCount)
	}
	return nil
}

func (l *PQEventListener) processMeasurementMember(devices *[]*domain.PQLogicalDevice, member *iec61850.FcModelNode) (int, error) {
	deviceName := member.Reference().Part(0)
	nodeName := member.Reference().Part(1)
	logicalNode := logicalNodeFor(devices, deviceName, nodeName)

	if totalMeasurement(&member.Node) {
		sample, err := l.totalSample(member)
		if err != nil {
			return 0, err
		}
		logicalNode.Samples = append(logicalNode.Samples, sample)
		return 1, nil
	}

	count := 0
	for _, child := range member.Children() {
		if !singleMeasurement(child) {
			continue
		}
		sample, err := l.singleSample(member, child)
		if err != nil {
			return count, err
		}
		logicalNode.Samples = append(logicalNode.Samples, sample)
		count++
	}
	return count, nil
}

// totalSample extracts an aggregate sample (mag.f) from the member itself.
func (l *PQEventListener) totalSample(member *iec61850.FcModelNode) (domain.DataSample, error) {
	c := iec61850.NewNodeContainer(l.deviceID, member)
	value, err := c.Float32(iec61850.AttrMagnitude, iec61850.AttrFloat)
	if err != nil {
		return domain.DataSample{}, err
	}
	ts, err := c.Time(iec61850.AttrTime)
	if err != nil {
		return domain.DataSample{}, err
	}
	sampleType := fmt.Sprintf("%s.%s.%s", member.Name(), iec61850.AttrMagnitude, iec61850.AttrFloat)
	return domain.DataSample{
		Type:  sampleType,
		Time:  ts,
		Value: roundSignificant(float64(value), 3),
	}, nil
}

// singleSample extracts a sampled value (cVal.mag.f) from one child of the
// member, e.g. a phase measurement.
func (l *PQEventListener) singleSample(member *iec61850.FcModelNode, child *iec61850.Node) (domain.DataSample, error) {
	f := child.At(iec61850.AttrComplexVal, iec61850.AttrMagnitude, iec61850.AttrFloat)
	if f == nil {
		return domain.DataSample{}, fmt.Errorf("%w: %s", iec61850.ErrNodeNotFound, child.Name())
	}
	value, ok := f.Value().(float32)
	if !ok {
		return domain.DataSample{}, fmt.Errorf("%w: %s", iec61850.ErrUnexpectedNodeType, child.Name())
	}
	t := child.Child(iec61850.AttrTime)
	if t == nil {
		return domain.DataSample{}, fmt.Errorf("%w: %s.t", iec61850.ErrNodeNotFound, child.Name())
	}
	ts, ok := t.Value().(time.Time)
	if !ok {
		return domain.DataSample{}, fmt.Errorf("%w: %s.t", iec61850.ErrUnexpectedNodeType, child.Name())
	}
	sampleType := fmt.Sprintf("%s.%s.%s.%s.%s", member.Name(), child.Name(),
		iec61850.AttrComplexVal, iec61850.AttrMagnitude, iec61850.AttrFloat)
	return domain.DataSample{
		Type:  sampleType,
		Time:  ts.UTC(),
		Value: roundSignificant(float64(value), 3),
	}, nil
}

func totalMeasurement(n *iec61850.Node) bool {
	return n.At(iec61850.AttrMagnitude, iec61850.AttrFloat) != nil
}

func singleMeasurement(n *iec61850.Node) bool {
	return n != nil && n.At(iec61850.AttrComplexVal, iec61850.AttrMagnitude, iec61850.AttrFloat) != nil
}

func logicalNodeFor(devices *[]*domain.PQLogicalDevice, deviceName, nodeName string) *domain.PQLogicalNode {
	var device *domain.PQLogicalDevice
	for _, d := range *devices {
		if d.Name == deviceName {
			device = d
			break
		}
	}
	if device == nil {
		device = &domain.PQLogicalDevice{Name: deviceName}
		*devices = append(*devices, device)
	}
	for i := range device.Nodes {
		if device.Nodes[i].Name == nodeName {
			return &device.Nodes[i]
		}
	}
	device.Nodes = append(device.Nodes, domain.PQLogicalNode{Name: nodeName})
	return &device.Nodes[len(device.Nodes)-1]
}

// roundSignificant rounds to the given number of significant digits,
// matching the measurement precision of the source attributes.
func roundSignificant(v float64, digits int) float64 {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	scale := math.Pow(10, float64(digits)-math.Ceil(math.Log10(math.Abs(v))))
	return math.Round(v*scale) / scale
}
