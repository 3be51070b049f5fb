// Package influxdb provides optional telemetry for the coop daemon.
//
// Every successful poll can be recorded as a time-series point: door
// state, light state and battery level, tagged by device serial. This
// gives long-term visibility into door cycles and battery drain without
// the daemon itself keeping any history.
//
// Writes are non-blocking and batched by the underlying InfluxDB v2
// client; a slow or unreachable server never stalls the poll loop.
// Async write failures surface through the SetOnError callback.
//
// The integration is disabled by default. Connect returns ErrDisabled
// when the config has it switched off, and callers simply skip the
// wiring.
package influxdb
