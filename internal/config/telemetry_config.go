package config

type TelemetryConfig interface {
	GetOTelEndpoint() string
	GetOTelEnabled() bool
}

// Telemetry configures trace export. Tracing stays off until an endpoint is set.
type Telemetry struct {
	OTelEndpoint string `env:"OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
}

var _ TelemetryConfig = Telemetry{}

func (t Telemetry) GetOTelEndpoint() string {
	return t.OTelEndpoint
}

func (t Telemetry) GetOTelEnabled() bool {
	return t.OTelEnabled && t.OTelEndpoint != ""
}
