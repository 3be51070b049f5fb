package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteCoopState records one polled device state as a time-series point.
//
// This is the primary telemetry write, driven by the poll loop's
// observer. The write is non-blocking; points are batched and sent
// asynchronously, and calls on a disconnected client are dropped.
//
// Parameters:
//   - serial: Device serial for tagging (empty serial tags as "unknown")
//   - doorState: Normalised door state ("open", "closed", "opening", ...)
//   - lightState: Normalised light state, or "unknown" when the feature is off
//   - batteryLevel: Battery percentage; negative values (not reported) are omitted
func (c *Client) WriteCoopState(serial, doorState, lightState string, batteryLevel int) {
	if !c.IsConnected() {
		return
	}

	if serial == "" {
		serial = "unknown"
	}

	fields := map[string]interface{}{
		"door_state":  doorState,
		"light_state": lightState,
		"door_open":   doorState == "open",
	}
	if batteryLevel >= 0 {
		fields["battery_percent"] = batteryLevel
	}

	point := write.NewPoint(
		"coop_state",
		map[string]string{
			"serial": serial,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit WriteCoopState.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
