// Copyright The calltrace Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes the engine's own health counters through OTel
// instruments. Without a configured meter provider these are no-ops, so
// the engine carries no observability cost by default.
package metrics // import "github.com/calltrace/calltrace/metrics"

import (
	"context"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("github.com/calltrace/calltrace")

	samplesRecorded     metric.Int64Counter
	samplesDropped      metric.Int64Counter
	orphansPurged       metric.Int64Counter
	substitutionsActive metric.Int64UpDownCounter
	foreignRebinds      metric.Int64Counter
)

func init() {
	var err error
	if samplesRecorded, err = meter.Int64Counter("calltrace.samples.recorded",
		metric.WithDescription("Completed call measurements recorded"),
		metric.WithUnit("1")); err != nil {
		log.Errorf("Creating samples.recorded counter: %v", err)
	}
	if samplesDropped, err = meter.Int64Counter("calltrace.samples.dropped",
		metric.WithDescription("Measurements dropped due to bookkeeping errors"),
		metric.WithUnit("1")); err != nil {
		log.Errorf("Creating samples.dropped counter: %v", err)
	}
	if orphansPurged, err = meter.Int64Counter("calltrace.activations.purged",
		metric.WithDescription("Open activations discarded on disable"),
		metric.WithUnit("1")); err != nil {
		log.Errorf("Creating activations.purged counter: %v", err)
	}
	if substitutionsActive, err = meter.Int64UpDownCounter("calltrace.substitutions.active",
		metric.WithDescription("Binding substitutions currently installed"),
		metric.WithUnit("1")); err != nil {
		log.Errorf("Creating substitutions.active counter: %v", err)
	}
	if foreignRebinds, err = meter.Int64Counter("calltrace.substitutions.foreign_rebinds",
		metric.WithDescription("Bindings found rebound by a third party on restore"),
		metric.WithUnit("1")); err != nil {
		log.Errorf("Creating substitutions.foreign_rebinds counter: %v", err)
	}
}

// AddSampleRecorded counts one completed measurement.
func AddSampleRecorded() {
	if samplesRecorded != nil {
		samplesRecorded.Add(context.Background(), 1)
	}
}

// AddSampleDropped counts one measurement lost to an internal error.
func AddSampleDropped() {
	if samplesDropped != nil {
		samplesDropped.Add(context.Background(), 1)
	}
}

// AddOrphansPurged counts activations dropped on disable.
func AddOrphansPurged(n int) {
	if orphansPurged != nil && n > 0 {
		orphansPurged.Add(context.Background(), int64(n))
	}
}

// AddSubstitutions tracks substitutions being installed (positive) and
// restored (negative).
func AddSubstitutions(n int) {
	if substitutionsActive != nil && n != 0 {
		substitutionsActive.Add(context.Background(), int64(n))
	}
}

// AddForeignRebind counts one binding that could not be restored because a
// third party rebound it.
func AddForeignRebind() {
	if foreignRebinds != nil {
		foreignRebinds.Add(context.Background(), 1)
	}
}
