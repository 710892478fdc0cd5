package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/knobgrid/knobgrid-core/internal/protocol"
)

// WriteKnobValue records the current value of one knob.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	client.WriteKnobValue("wdrc-bench-01", "attack", 0, 30)
func (c *Client) WriteKnobValue(deviceID string, knob string, channel int, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"knob_values",
		map[string]string{
			"device_id": deviceID,
			"knob":      knob,
			"channel":   strconv.Itoa(channel),
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteMutation records one committed knob mutation.
//
// Both the old and new value land in the same point so a dashboard can
// show the size of each adjustment, not just the resulting level.
func (c *Client) WriteMutation(deviceID string, event protocol.MutationEvent) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"knob_mutations",
		map[string]string{
			"device_id": deviceID,
			"knob":      event.Knob,
			"channel":   strconv.Itoa(event.Channel),
			"directive": event.Directive,
			"source":    event.Source,
		},
		map[string]interface{}{
			"old_value": event.Old,
			"new_value": event.New,
			"delta":     event.New - event.Old,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
