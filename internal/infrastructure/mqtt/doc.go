// Package mqtt provides MQTT client connectivity for KnobGrid Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// KnobGrid exposes the device's command protocol over MQTT as one of its
// byte transports. A remote controller publishes command lines to the
// device's command topic and receives protocol responses on the response
// topic. The status topic carries retained online/offline presence.
//
//	Controller → knobgrid/<device>/cmd → KnobGrid Core → device knobs
//	Controller ← knobgrid/<device>/rsp ← KnobGrid Core
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.Transports.MQTT, "wdrc-bench-01")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Receive command lines
//	err = client.Subscribe(mqtt.Topics{}.Command("wdrc-bench-01"), 1,
//	    func(topic string, payload []byte) error {
//	        session.Write(payload)
//	        return nil
//	    })
//
//	// Publish a response
//	client.Publish(mqtt.Topics{}.Response("wdrc-bench-01"), response, 1, false)
package mqtt
