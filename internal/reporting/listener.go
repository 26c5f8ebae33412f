package reporting

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/domain"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/iec61850"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/metrics"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/upstream"
)

// EventListener is the per-connection report callback target. The wire
// client invokes it from a single goroutine, so the sequencing state needs
// no locking. Every failure path degrades to "log and drop this report": a
// malformed report never tears down the connection.
type EventListener struct {
	deviceID               string
	store                  domain.DeviceStore
	defaultUseCombinedLoad bool
	upstream               upstream.Service
	logger                 zerolog.Logger
	metrics                *metrics.Registry

	// firstNewSqNum is the sequence number floor established after
	// (re)enabling reporting. Buffered entries replayed with a lower
	// sequence number are stale and discarded. Owned exclusively by the
	// connection's callback goroutine.
	firstNewSqNum *int
}

// NewEventListener creates a listener for one device connection.
func NewEventListener(
	deviceID string,
	store domain.DeviceStore,
	defaultUseCombinedLoad bool,
	upstreamService upstream.Service,
	logger zerolog.Logger,
	registry *metrics.Registry,
) *EventListener {
	return &EventListener{
		deviceID:               deviceID,
		store:                  store,
		defaultUseCombinedLoad: defaultUseCombinedLoad,
		upstream:               upstreamService,
		logger: logger.With().
			Str("component", "report-listener").
			Str("device_id", deviceID).
			Logger(),
		metrics: registry,
	}
}

// SetFirstNewSequenceNumber establishes the stale-report floor, called after
// reporting has been (re)enabled on the connection.
func (l *EventListener) SetFirstNewSequenceNumber(sqNum int) {
	l.firstNewSqNum = &sqNum
}

// NewReport implements iec61850.ReportListener.
func (l *EventListener) NewReport(report *iec61850.Report) {
	if l.metrics != nil {
		l.metrics.ReportsReceived.WithLabelValues(l.deviceID).Inc()
	}

	description := l.reportDescription(report)
	l.logger.Info().Str("report", description).Msg("Report received")

	if report.BufOvfl {
		// Overflow is checked before the stale-sequence discard; it warns
		// but never drops the report by itself.
		l.logger.Warn().
			Str("report", description).
			Msg("Buffer overflow reported - entries within the buffer may have been lost")
		if l.metrics != nil {
			l.metrics.ReportOverflows.Inc()
		}
	} else if l.staleSequenceNumber(report) {
		l.logger.Warn().
			Int("sq_num", *report.SqNum).
			Int("first_new_sq_num", *l.firstNewSqNum).
			Msg("Skipping report because sequence number is less than the first new value")
		if l.metrics != nil {
			l.metrics.RecordReportDiscarded(l.deviceID, "stale_sequence_number")
		}
		return
	}

	handler, ok := l.resolveHandler(report.DataSetRef)
	if !ok {
		l.logger.Warn().
			Str("data_set_ref", report.DataSetRef).
			Msg("Skipping report because dataset is not supported")
		if l.metrics != nil {
			l.metrics.RecordReportDiscarded(l.deviceID, "unsupported_dataset")
		}
		return
	}

	l.logReportDetails(report)
	if err := l.processReport(report, description, handler); err != nil {
		l.logger.Warn().Err(err).Msg("Unable to process report, discarding report")
		if l.metrics != nil {
			l.metrics.RecordReportDiscarded(l.deviceID, "processing_failure")
		}
	}
}

// AssociationClosed implements iec61850.ReportListener. Informational only;
// connection teardown is the wire client's responsibility.
func (l *EventListener) AssociationClosed(err error) {
	evt := l.logger.Info()
	if err != nil {
		evt = evt.Err(err)
	}
	evt.Msg("Association closed")
}

func (l *EventListener) staleSequenceNumber(report *iec61850.Report) bool {
	return l.firstNewSqNum != nil && report.SqNum != nil && *report.SqNum < *l.firstNewSqNum
}

// resolveHandler parses the data-set reference and looks up the matching
// handler. LOAD is rewritten to LOAD_COMBINED when the device is configured
// with the combined load layout.
func (l *EventListener) resolveHandler(dataSetRef string) (ReportHandler, bool) {
	parsed, ok := ParseDataSetReference(dataSetRef)
	if !ok {
		return nil, false
	}

	deviceType := parsed.DeviceType
	if deviceType == DeviceTypeLoad && l.useCombinedLoad() {
		deviceType = DeviceTypeLoadCombined
	}

	return ResolveHandler(deviceType, parsed.SystemID)
}

func (l *EventListener) useCombinedLoad() bool {
	if record, ok := l.store.FindByDeviceIdentification(l.deviceID); ok {
		return record.UseCombinedLoad
	}
	return l.defaultUseCombinedLoad
}

func (l *EventListener) processReport(report *iec61850.Report, description string, handler ReportHandler) error {
	if report.DataSet == nil {
		l.logger.Warn().Str("report", description).Msg("No DataSet available")
		return nil
	}
	members := report.DataSet.Members
	if len(members) == 0 {
		l.logger.Warn().Str("report", description).Msg("No members in DataSet available")
		return nil
	}

	measurements := l.processMeasurements(handler, description, members)

	systemResult := handler.CreateResult(measurements)

	timeOfEntry, _ := report.TimeOfEntry()
	response := &domain.DataResponse{
		Systems: []domain.SystemResult{systemResult},
		Report: &domain.ReportInfo{
			SequenceNumber: report.SqNum,
			TimeOfEntry:    timeOfEntry,
			ReportID:       report.RptID,
		},
	}

	if err := l.upstream.SendMeasurements(l.deviceID, response); err != nil {
		return fmt.Errorf("send measurements: %w", err)
	}
	if l.metrics != nil {
		l.metrics.RecordReportDispatched(l.deviceID, len(measurements))
	}
	return nil
}

func (l *EventListener) processMeasurements(handler ReportHandler, description string, members []*iec61850.FcModelNode) []domain.Measurement {
	var measurements []domain.Measurement
	for _, member := range members {
		if member == nil {
			l.logger.Warn().Str("report", description).Msg("Member == nil in DataSet")
			continue
		}

		l.logger.Debug().
			Str("member", string(member.Reference())).
			Str("report", description).
			Msg("Handling member")

		memberMeasurements := handler.HandleMember(iec61850.NewNodeContainer(l.deviceID, member))
		if len(memberMeasurements) == 0 {
			l.logger.Warn().
				Str("member", member.Name()).
				Msg("Unsupported member, skipping")
			if l.metrics != nil {
				l.metrics.MembersUnsupported.Inc()
			}
			continue
		}
		measurements = append(measurements, memberMeasurements...)
		if l.metrics != nil {
			l.metrics.MembersHandled.Inc()
		}
	}
	return measurements
}

func (l *EventListener) reportDescription(report *iec61850.Report) string {
	timeOfEntry := "-"
	if t, ok := report.TimeOfEntry(); ok {
		timeOfEntry = t.String()
	}
	sqNum := "-"
	if report.SqNum != nil {
		sqNum = fmt.Sprintf("%d", *report.SqNum)
	}
	description := fmt.Sprintf("device: %s, reportId: %s, timeOfEntry: %s, sqNum: %s",
		l.deviceID, report.RptID, timeOfEntry, sqNum)
	if report.SubSqNum != nil {
		description += fmt.Sprintf(" subSqNum: %d", *report.SubSqNum)
	}
	if report.MoreSegmentsFollow {
		description += " (more segments follow for this sqNum)"
	}
	return description
}

func (l *EventListener) logReportDetails(report *iec61850.Report) {
	evt := l.logger.Debug().
		Str("rpt_id", report.RptID).
		Str("data_set_ref", report.DataSetRef).
		Uint32("conf_rev", report.ConfRev).
		Bool("buf_ovfl", report.BufOvfl).
		Bool("more_segments_follow", report.MoreSegmentsFollow)
	if report.SqNum != nil {
		evt = evt.Int("sq_num", *report.SqNum)
	}
	if report.SubSqNum != nil {
		evt = evt.Int("sub_sq_num", *report.SubSqNum)
	}
	if t, ok := report.TimeOfEntry(); ok {
		evt = evt.Time("time_of_entry", t)
	}
	if report.DataSet != nil {
		refs := make([]string, 0, len(report.DataSet.Members))
		for _, member := range report.DataSet.Members {
			if member != nil {
				refs = append(refs, string(member.Reference()))
			}
		}
		evt = evt.Strs("members", refs)
	}
	evt.Msg("Report details")
}
