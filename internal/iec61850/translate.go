package iec61850

import (
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/domain"
)

// Translation helpers shared by the report handlers and the direct read
// commands. Each translates one functionally constrained node into a
// canonical measurement.

// TranslateMagnitude translates an aggregate measurand (mag.f with quality
// and timestamp), e.g. TotW.
func TranslateMagnitude(c *NodeContainer, index int, description string) (domain.Measurement, error) {
	value, err := c.Float32(AttrMagnitude, AttrFloat)
	if err != nil {
		return domain.Measurement{}, err
	}
	return translateWithValue(c, index, description, float64(value))
}

// TranslateSampledValue translates a single measurand carrying a complex
// value (cVal.mag.f), e.g. a phase measurement.
func TranslateSampledValue(c *NodeContainer, index int, description string) (domain.Measurement, error) {
	value, err := c.Float32(AttrComplexVal, AttrMagnitude, AttrFloat)
	if err != nil {
		return domain.Measurement{}, err
	}
	return translateWithValue(c, index, description, float64(value))
}

// TranslateActualValue translates a counter status (actVal), e.g. TotWh.
// Devices implement the attribute as either Int32 or Int64; Int64 reads
// accept both.
func TranslateActualValue(c *NodeContainer, index int, description string) (domain.Measurement, error) {
	value, err := c.Int64(AttrActualValue)
	if err != nil {
		return domain.Measurement{}, err
	}
	return translateWithValue(c, index, description, float64(value))
}

// TranslateStatusValue translates a status attribute (stVal), mapping
// booleans to 0/1 and integers to their value.
func TranslateStatusValue(c *NodeContainer, index int, description string) (domain.Measurement, error) {
	if v, err := c.Bool(AttrStatusValue); err == nil {
		value := 0.0
		if v {
			value = 1.0
		}
		return translateWithValue(c, index, description, value)
	}
	value, err := c.Int64(AttrStatusValue)
	if err != nil {
		return domain.Measurement{}, err
	}
	return translateWithValue(c, index, description, float64(value))
}

func translateWithValue(c *NodeContainer, index int, description string, value float64) (domain.Measurement, error) {
	quality, err := c.Quality(AttrQuality)
	if err != nil {
		return domain.Measurement{}, err
	}
	ts, err := c.Time(AttrTime)
	if err != nil {
		return domain.Measurement{}, err
	}
	return domain.Measurement{
		Index:   index,
		Node:    description,
		Quality: uint16(quality),
		Time:    ts,
		Value:   value,
	}, nil
}
