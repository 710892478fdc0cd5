package mqtt

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/knobgrid/knobgrid-core/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "knobgrid-test",
			TLS:      false,
		},
		Auth: config.MQTTAuthConfig{
			Username: "",
			Password: "",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// disconnectedClient returns a client that was never connected.
// Validation paths short-circuit before touching the paho client.
func disconnectedClient() *Client {
	return &Client{
		cfg:           testConfig(),
		deviceID:      "wdrc-bench-01",
		subscriptions: make(map[string]subscription),
	}
}

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name     string
		builder  func() string
		expected string
	}{
		{
			name: "Command",
			builder: func() string {
				return Topics{}.Command("wdrc-bench-01")
			},
			expected: "knobgrid/wdrc-bench-01/cmd",
		},
		{
			name: "Response",
			builder: func() string {
				return Topics{}.Response("wdrc-bench-01")
			},
			expected: "knobgrid/wdrc-bench-01/rsp",
		},
		{
			name: "Status",
			builder: func() string {
				return Topics{}.Status("wdrc-bench-01")
			},
			expected: "knobgrid/wdrc-bench-01/status",
		},
		{
			name: "AllCommands",
			builder: func() string {
				return Topics{}.AllCommands()
			},
			expected: "knobgrid/+/cmd",
		},
		{
			name: "AllStatuses",
			builder: func() string {
				return Topics{}.AllStatuses()
			},
			expected: "knobgrid/+/status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.builder(); got != tt.expected {
				t.Errorf("topic = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	t.Run("plain broker URL", func(t *testing.T) {
		opts := buildClientOptions(testConfig())

		if len(opts.Servers) != 1 {
			t.Fatalf("servers = %d, want 1", len(opts.Servers))
		}
		if got := opts.Servers[0].String(); got != "tcp://127.0.0.1:1883" {
			t.Errorf("broker URL = %q, want %q", got, "tcp://127.0.0.1:1883")
		}
		if opts.ClientID != "knobgrid-test" {
			t.Errorf("ClientID = %q, want %q", opts.ClientID, "knobgrid-test")
		}
	})

	t.Run("tls uses ssl scheme", func(t *testing.T) {
		cfg := testConfig()
		cfg.Broker.TLS = true
		opts := buildClientOptions(cfg)

		if got := opts.Servers[0].Scheme; got != "ssl" {
			t.Errorf("scheme = %q, want %q", got, "ssl")
		}
		if opts.TLSConfig == nil {
			t.Fatal("TLSConfig is nil, want configured")
		}
	})

	t.Run("credentials applied", func(t *testing.T) {
		cfg := testConfig()
		cfg.Auth.Username = "bench"
		cfg.Auth.Password = "secret"
		opts := buildClientOptions(cfg)

		if opts.Username != "bench" {
			t.Errorf("Username = %q, want %q", opts.Username, "bench")
		}
		if opts.Password != "secret" {
			t.Errorf("Password = %q, want %q", opts.Password, "secret")
		}
	})

	t.Run("reconnect backoff", func(t *testing.T) {
		opts := buildClientOptions(testConfig())

		if !opts.AutoReconnect {
			t.Error("AutoReconnect = false, want true")
		}
		if opts.MaxReconnectInterval != 5*time.Second {
			t.Errorf("MaxReconnectInterval = %v, want 5s", opts.MaxReconnectInterval)
		}
	})
}

func TestStatusPayloads(t *testing.T) {
	online := buildOnlinePayload("wdrc-bench-01")
	if !strings.Contains(online, `"status":"online"`) {
		t.Errorf("online payload missing status: %s", online)
	}
	if !strings.Contains(online, `"device_id":"wdrc-bench-01"`) {
		t.Errorf("online payload missing device_id: %s", online)
	}

	offline := buildOfflinePayload("wdrc-bench-01")
	if !strings.Contains(offline, `"reason":"graceful_shutdown"`) {
		t.Errorf("offline payload missing reason: %s", offline)
	}
}

func TestPublishValidation(t *testing.T) {
	c := disconnectedClient()

	if err := c.Publish("", []byte("x"), 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("knobgrid/d/rsp", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("bad qos error = %v, want ErrInvalidQoS", err)
	}

	oversized := make([]byte, maxPayloadSize+1)
	if err := c.Publish("knobgrid/d/rsp", oversized, 1, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("oversized payload error = %v, want ErrPublishFailed", err)
	}

	if err := c.Publish("knobgrid/d/rsp", []byte("x"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected error = %v, want ErrNotConnected", err)
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := disconnectedClient()
	handler := func(_ string, _ []byte) error { return nil }

	if err := c.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("knobgrid/d/cmd", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("bad qos error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Subscribe("knobgrid/d/cmd", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler error = %v, want ErrSubscribeFailed", err)
	}
	if err := c.Subscribe("knobgrid/d/cmd", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected error = %v, want ErrNotConnected", err)
	}
}

func TestUnsubscribeValidation(t *testing.T) {
	c := disconnectedClient()

	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Unsubscribe("knobgrid/d/cmd"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected error = %v, want ErrNotConnected", err)
	}
}

func TestSubscriptionTracking(t *testing.T) {
	c := disconnectedClient()

	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", c.SubscriptionCount())
	}
	if c.HasSubscription("knobgrid/d/cmd") {
		t.Error("HasSubscription() = true, want false")
	}
}

func TestCloseNil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}
