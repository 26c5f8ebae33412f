package iec61850

// Quality is the IEC 61850 quality word of a data attribute, packed into 13
// bits: validity (2 bits) followed by the detail, source, test and
// operator-blocked flags.
type Quality uint16

const (
	QualityValidityGood         Quality = 0x0
	QualityValidityInvalid      Quality = 0x1
	QualityValidityReserved     Quality = 0x2
	QualityValidityQuestionable Quality = 0x3

	QualityOverflow        Quality = 1 << 2
	QualityOutOfRange      Quality = 1 << 3
	QualityBadReference    Quality = 1 << 4
	QualityOscillatory     Quality = 1 << 5
	QualityFailure         Quality = 1 << 6
	QualityOldData         Quality = 1 << 7
	QualityInconsistent    Quality = 1 << 8
	QualityInaccurate      Quality = 1 << 9
	QualitySourceSubstit   Quality = 1 << 10
	QualityTest            Quality = 1 << 11
	QualityOperatorBlocked Quality = 1 << 12
)

// Validity returns the two validity bits.
func (q Quality) Validity() Quality { return q & 0x3 }

// IsGood reports whether the validity is good and no detail bits are set.
func (q Quality) IsGood() bool { return q == QualityValidityGood }
