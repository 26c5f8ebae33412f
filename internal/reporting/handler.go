package reporting

import (
	"strconv"

	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/domain"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/iec61850"
)

// ReportHandler translates data-set members of one logical system into
// canonical measurements.
type ReportHandler interface {
	// HandleMember extracts the measurements a member carries. An empty
	// result means the member is unsupported; it must never panic and never
	// abort processing of other members.
	HandleMember(member *iec61850.NodeContainer) []domain.Measurement

	// CreateResult wraps the accumulated measurements into a system result.
	CreateResult(measurements []domain.Measurement) domain.SystemResult
}

// memberTranslator turns one supported member into a measurement.
type memberTranslator func(c *iec61850.NodeContainer, index int, description string) (domain.Measurement, error)

// systemReportHandler is the shared report handler implementation: a closed
// set of supported member names, each bound to a translator.
type systemReportHandler struct {
	systemID   int
	systemType DeviceType
	members    map[string]memberTranslator

	// indexFromNode derives the measurement index from the member's logical
	// node. Combined load devices index measurements by logical node suffix;
	// all other types use index 1.
	indexFromNode bool
}

func (h *systemReportHandler) HandleMember(member *iec61850.NodeContainer) []domain.Measurement {
	translator, ok := h.members[member.Name()]
	if !ok {
		return nil
	}
	index := 1
	if h.indexFromNode {
		index = logicalNodeIndex(member.Reference())
	}
	m, err := translator(member, index, member.Name())
	if err != nil {
		// Structurally unexpected member, treated the same as unsupported.
		return nil
	}
	return []domain.Measurement{m}
}

func (h *systemReportHandler) CreateResult(measurements []domain.Measurement) domain.SystemResult {
	return domain.SystemResult{
		ID:           h.systemID,
		Type:         string(h.systemType),
		Measurements: measurements,
	}
}

// logicalNodeIndex extracts the trailing digits of the member's logical node
// name, e.g. 2 for "MMTR2". It falls back to 1 when the node carries no
// index.
func logicalNodeIndex(ref iec61850.ObjectReference) int {
	node := ref.Part(1)
	i := len(node)
	for i > 0 && node[i-1] >= '0' && node[i-1] <= '9' {
		i--
	}
	if i == len(node) {
		return 1
	}
	n, err := strconv.Atoi(node[i:])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// measurandTranslator extracts a measurand member, accepting both the
// aggregate (mag.f) and the sampled (cVal.mag.f) layout.
func measurandTranslator(c *iec61850.NodeContainer, index int, description string) (domain.Measurement, error) {
	if _, err := c.Float32(iec61850.AttrMagnitude, iec61850.AttrFloat); err == nil {
		return iec61850.TranslateMagnitude(c, index, description)
	}
	return iec61850.TranslateSampledValue(c, index, description)
}
