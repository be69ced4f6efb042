// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PairingsInitiated tracks pairing flows started.
	PairingsInitiated = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pairing",
			Name:      "initiated_total",
			Help:      "Total number of pairing flows initiated",
		},
		[]string{"mode"}, // initial, delegated
	)

	// PairingsCompleted tracks finished pairing flows.
	PairingsCompleted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pairing",
			Name:      "completed_total",
			Help:      "Total number of pairing flows completed",
		},
		[]string{"mode", "status"}, // success, failure
	)

	// PairingsFailed tracks pairing failures by cause.
	PairingsFailed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pairing",
			Name:      "failed_total",
			Help:      "Total number of failed pairing flows by error kind",
		},
		[]string{"error_kind"}, // stale_challenge, attestation_failure, bad_signature
	)

	// PairingDuration tracks pairing stage durations.
	PairingDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pairing",
			Name:      "duration_seconds",
			Help:      "Pairing stage duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to 2.048s
		},
		[]string{"stage"}, // challenge, attestation_verify, finish
	)
)
