package providers

import (
	"time"
)

// HistogramProvider provides histogram telemetry capabilities.
type HistogramProvider interface {
	CreateUpdateObservableHistogram(name, description string)
	RecordHistogramTime(name string, t time.Duration) bool
	RecordHistogramValue(name string, f float64) bool
}

// GaugeProvider provides gauge telemetry capabilities.
type GaugeProvider interface {
	CreateUpdateObservableGauge(name, description string)
	AddToGauge(name string, f float64) bool
	RemoveFromGauge(name string, f float64) bool
	IncrementGauge(name string) bool
	DecrementGauge(name string) bool
	SetGauge(name string, f float64) bool
	SetToCurrentTimeGauge(name string) bool
}

// TelemetryProvider provides histogram and gauge telemetry capabilities.
type TelemetryProvider interface {
	HistogramProvider
	GaugeProvider
}

// NoTelemetry satisfies TelemetryProvider and records nothing.
type NoTelemetry struct{}

func (NoTelemetry) CreateUpdateObservableHistogram(string, string) {}
func (NoTelemetry) RecordHistogramTime(string, time.Duration) bool { return false }
func (NoTelemetry) RecordHistogramValue(string, float64) bool      { return false }
func (NoTelemetry) CreateUpdateObservableGauge(string, string)     {}
func (NoTelemetry) AddToGauge(string, float64) bool                { return false }
func (NoTelemetry) RemoveFromGauge(string, float64) bool           { return false }
func (NoTelemetry) IncrementGauge(string) bool                     { return false }
func (NoTelemetry) DecrementGauge(string) bool                     { return false }
func (NoTelemetry) SetGauge(string, float64) bool                  { return false }
func (NoTelemetry) SetToCurrentTimeGauge(string) bool              { return false }
