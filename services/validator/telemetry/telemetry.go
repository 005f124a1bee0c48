// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry ships pass-level measurements to InfluxDB.
//
// The sink is optional: a nil Recorder swallows every call, so callers
// never guard their recording sites. Writes go through the
// non-blocking API and are buffered and flushed by the client; losing
// a point under backpressure is acceptable, slowing a validation pass
// is not.
package telemetry

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// Environment configuration, same variable set the rest of the
// deployment uses.
const (
	EnvURL    = "INFLUXDB_URL"
	EnvToken  = "INFLUXDB_TOKEN"
	EnvOrg    = "INFLUXDB_ORG"
	EnvBucket = "INFLUXDB_BUCKET"
)

// Defaults applied when only the token is set.
const (
	defaultOrg    = "veloxar"
	defaultBucket = "arxval"
)

// Recorder writes validation telemetry points.
//
// Thread Safety: Safe for concurrent use. The write API serializes
// internally.
type Recorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	org      string
	bucket   string
	done     chan struct{}
}

// PassPoint is one validation pass measurement.
type PassPoint struct {
	PassID       string
	ScriptName   string
	Valid        bool
	ErrorCount   int
	WarningCount int
	FixedCount   int
	Duration     time.Duration
	Timestamp    time.Time
}

// NewRecorder connects a recorder to the given InfluxDB instance.
func NewRecorder(url, token, org, bucket string) (*Recorder, error) {
	if url == "" {
		return nil, fmt.Errorf("influx URL must not be empty")
	}
	if token == "" {
		return nil, fmt.Errorf("influx token must not be empty")
	}
	if org == "" {
		org = defaultOrg
	}
	if bucket == "" {
		bucket = defaultBucket
	}

	client := influxdb2.NewClient(url, token)
	r := &Recorder{
		client:   client,
		writeAPI: client.WriteAPI(org, bucket),
		org:      org,
		bucket:   bucket,
		done:     make(chan struct{}),
	}
	go r.drainErrors()

	slog.Info("Telemetry recorder connected",
		"influx_url", url,
		"influx_org", org,
		"influx_bucket", bucket)
	return r, nil
}

// NewRecorderFromEnv builds a recorder from the INFLUXDB_* variables.
// Returns (nil, nil) when no URL or token is configured: telemetry is
// opt-in and a missing sink is not an error.
func NewRecorderFromEnv() (*Recorder, error) {
	url := os.Getenv(EnvURL)
	token := os.Getenv(EnvToken)
	if url == "" || token == "" {
		slog.Debug("Telemetry disabled, InfluxDB not configured")
		return nil, nil
	}
	return NewRecorder(url, token, os.Getenv(EnvOrg), os.Getenv(EnvBucket))
}

// Enabled reports whether points will actually be written.
func (r *Recorder) Enabled() bool {
	return r != nil && r.writeAPI != nil
}

// RecordPass queues one pass measurement. Never blocks.
func (r *Recorder) RecordPass(p PassPoint) {
	if !r.Enabled() {
		return
	}
	ts := p.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	point := influxdb2.NewPointWithMeasurement("validation_passes").
		AddTag("script", p.ScriptName).
		AddTag("valid", fmt.Sprintf("%t", p.Valid)).
		AddField("pass_id", p.PassID).
		AddField("error_count", p.ErrorCount).
		AddField("warning_count", p.WarningCount).
		AddField("fixed_count", p.FixedCount).
		AddField("duration_ms", p.Duration.Milliseconds()).
		SetTime(ts)

	r.writeAPI.WritePoint(point)
}

// RecordReflexion queues one reflexion loop measurement. Never blocks.
func (r *Recorder) RecordReflexion(passID string, attempts int, repaired bool, duration time.Duration) {
	if !r.Enabled() {
		return
	}

	point := influxdb2.NewPointWithMeasurement("reflexion_loops").
		AddTag("repaired", fmt.Sprintf("%t", repaired)).
		AddField("pass_id", passID).
		AddField("attempts", attempts).
		AddField("duration_ms", duration.Milliseconds()).
		SetTime(time.Now())

	r.writeAPI.WritePoint(point)
}

// Flush forces buffered points out. Mainly for shutdown and tests.
func (r *Recorder) Flush() {
	if !r.Enabled() {
		return
	}
	r.writeAPI.Flush()
}

// Close flushes and releases the client. No-op on a nil recorder.
func (r *Recorder) Close() {
	if !r.Enabled() {
		return
	}
	r.writeAPI.Flush()
	close(r.done)
	r.client.Close()
}

// drainErrors logs write failures. The async API reports them on a
// channel that must be consumed or the buffer stalls.
func (r *Recorder) drainErrors() {
	errCh := r.writeAPI.Errors()
	for {
		select {
		case err, ok := <-errCh:
			if !ok {
				return
			}
			slog.Warn("Telemetry write failed", "error", err)
		case <-r.done:
			return
		}
	}
}
