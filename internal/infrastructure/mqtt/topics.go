package mqtt

import "fmt"

// TopicPrefix is the base for all KnobGrid topics.
// Scheme: knobgrid/{device_id}/{channel}
const TopicPrefix = "knobgrid"

// Topics provides builders for KnobGrid MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	cmdTopic := topics.Command("wdrc-bench-01")
//	// Returns: "knobgrid/wdrc-bench-01/cmd"
type Topics struct{}

// Command returns the topic a controller publishes command lines to.
//
// Example: knobgrid/wdrc-bench-01/cmd
func (Topics) Command(deviceID string) string {
	return fmt.Sprintf("%s/%s/cmd", TopicPrefix, deviceID)
}

// Response returns the topic protocol responses are published to.
//
// Example: knobgrid/wdrc-bench-01/rsp
func (Topics) Response(deviceID string) string {
	return fmt.Sprintf("%s/%s/rsp", TopicPrefix, deviceID)
}

// Status returns the retained presence topic for a device.
// Carries online/offline payloads, including the LWT crash message.
//
// Example: knobgrid/wdrc-bench-01/status
func (Topics) Status(deviceID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefix, deviceID)
}

// AllCommands returns a pattern matching command topics for every device.
//
// Pattern: knobgrid/+/cmd
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/+/cmd", TopicPrefix)
}

// AllStatuses returns a pattern matching presence topics for every device.
//
// Pattern: knobgrid/+/status
func (Topics) AllStatuses() string {
	return fmt.Sprintf("%s/+/status", TopicPrefix)
}
