package influxdb_test

import (
	"errors"
	"testing"

	"github.com/knobgrid/knobgrid-core/internal/infrastructure/config"
	"github.com/knobgrid/knobgrid-core/internal/infrastructure/influxdb"
)

// testConfig returns a configuration for a local dev InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "knobgrid-dev-token",
		Org:           "knobgrid",
		Bucket:        "telemetry",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg)
	if err == nil {
		t.Fatal("Connect() should return error when disabled")
	}
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestClose_Nil(t *testing.T) {
	client := &influxdb.Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	client := &influxdb.Client{}
	if client.IsConnected() {
		t.Error("IsConnected() = true on zero client, want false")
	}
}
