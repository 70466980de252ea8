package models

import (
	"fmt"
	"time"
)

// SeverityLevel represents the severity of an anomaly
type SeverityLevel string

const (
	SeverityInfo    SeverityLevel = "info"
	SeverityWarning SeverityLevel = "warning"
	SeverityError   SeverityLevel = "error"
)

// AnomalyType represents the kind of data quality issue found on a row
type AnomalyType string

const (
	AnomalyTypeMissingValue AnomalyType = "missing_value"
	AnomalyTypeLogicError   AnomalyType = "logic_error"
	AnomalyTypeNegative     AnomalyType = "negative_value"
	AnomalyTypeDuplicate    AnomalyType = "duplicate_timestamp"
)

// Anomaly is a data quality warning attached to one row of a series. Anomalies
// are reported and counted; they never remove the row.
type Anomaly struct {
	Type        AnomalyType   `json:"type"`
	Field       string        `json:"field"`
	Time        time.Time     `json:"time"`
	Description string        `json:"description"`
	Severity    SeverityLevel `json:"severity"`
}

// NewAnomaly creates an Anomaly with the severity implied by its type.
func NewAnomaly(anomalyType AnomalyType, field string, at time.Time, description string) Anomaly {
	severity := SeverityWarning
	switch anomalyType {
	case AnomalyTypeMissingValue:
		severity = SeverityInfo
	case AnomalyTypeLogicError, AnomalyTypeDuplicate:
		severity = SeverityError
	}
	return Anomaly{
		Type:        anomalyType,
		Field:       field,
		Time:        at,
		Description: description,
		Severity:    severity,
	}
}

func (a Anomaly) String() string {
	return fmt.Sprintf("%s[%s] %s at %s: %s", a.Type, a.Severity, a.Field, a.Time.Format(time.RFC3339), a.Description)
}

// ValidateOHLCVLogic checks the relationships between the prices of a single
// candle. Missing values are reported separately and skip the checks that
// depend on them.
func ValidateOHLCVLogic(at time.Time, open, high, low, closePrice, volume Value) []Anomaly {
	var anomalies []Anomaly

	fields := []struct {
		name  string
		value Value
	}{
		{"open", open}, {"high", high}, {"low", low}, {"close", closePrice}, {"volume", volume},
	}
	for _, f := range fields {
		v, ok := f.value.Get()
		if !ok {
			anomalies = append(anomalies, NewAnomaly(AnomalyTypeMissingValue, f.name, at, "value missing or unparseable"))
			continue
		}
		if v < 0 {
			anomalies = append(anomalies, NewAnomaly(AnomalyTypeNegative, f.name, at, fmt.Sprintf("%s is negative (%v)", f.name, v)))
		}
	}

	if lt, ok := high.LessThan(low); ok && lt {
		anomalies = append(anomalies, NewAnomaly(AnomalyTypeLogicError, "high", at,
			fmt.Sprintf("high (%s) below low (%s)", high, low)))
	}
	for _, p := range []struct {
		name  string
		value Value
	}{{"open", open}, {"close", closePrice}} {
		if gt, ok := p.value.GreaterThan(high); ok && gt {
			anomalies = append(anomalies, NewAnomaly(AnomalyTypeLogicError, p.name, at,
				fmt.Sprintf("%s (%s) above high (%s)", p.name, p.value, high)))
		}
		if lt, ok := p.value.LessThan(low); ok && lt {
			anomalies = append(anomalies, NewAnomaly(AnomalyTypeLogicError, p.name, at,
				fmt.Sprintf("%s (%s) below low (%s)", p.name, p.value, low)))
		}
	}

	return anomalies
}
