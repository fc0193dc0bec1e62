package observability

import (
	"fmt"
	"net"
	"strconv"

	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/fulmenhq/gofulmen/telemetry/exporters"
)

var (
	// TelemetrySystem receives every counter, gauge and histogram. Nil when
	// metrics are disabled; recorders must check before emitting.
	TelemetrySystem *telemetry.System

	// PrometheusExporter serves the scrape endpoint on its own listener.
	PrometheusExporter *exporters.PrometheusExporter

	metricsPort int
)

// InitMetrics starts a Prometheus exporter on port (0 binds any free port) and
// installs a telemetry system that emits through it. namespace defaults to
// serviceName.
func InitMetrics(serviceName string, port int, namespace ...string) error {
	ns := serviceName
	if len(namespace) > 0 && namespace[0] != "" {
		ns = namespace[0]
	}
	port = max(port, 0)

	exporter := exporters.NewPrometheusExporter(ns, fmt.Sprintf(":%d", port))
	if err := exporter.Start(); err != nil {
		return fmt.Errorf("start prometheus exporter: %w", err)
	}
	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: exporter})
	if err != nil {
		return fmt.Errorf("create telemetry system: %w", err)
	}

	PrometheusExporter = exporter
	TelemetrySystem = sys
	metricsPort = boundPort(exporter.GetAddr(), port)
	return nil
}

// MetricsPort reports the port the exporter bound to, or 0 before InitMetrics.
func MetricsPort() int {
	return metricsPort
}

func boundPort(addr string, requested int) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return requested
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port == 0 {
		return requested
	}
	return port
}
