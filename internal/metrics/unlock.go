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
	// UnlocksProcessed tracks unlock attempts by outcome.
	UnlocksProcessed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "unlock",
			Name:      "processed_total",
			Help:      "Total number of unlock requests processed",
		},
		[]string{"status"}, // success, failure
	)

	// ChallengeReuseDetected tracks attempts to redeem an already-consumed challenge.
	ChallengeReuseDetected = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "unlock",
			Name:      "challenge_reuse_detected_total",
			Help:      "Total number of unlock attempts rejected for reusing a consumed challenge",
		},
	)

	// ChallengeValidations tracks challenge freshness checks.
	ChallengeValidations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "unlock",
			Name:      "challenge_validations_total",
			Help:      "Total number of challenge validations",
		},
		[]string{"status"}, // valid, stale, unknown
	)

	// UnlockProcessingDuration tracks unlock request processing duration.
	UnlockProcessingDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "unlock",
			Name:      "processing_duration_seconds",
			Help:      "Unlock request processing duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms to 204.8ms
		},
	)

	// EnvelopeSize tracks the size of sealed envelopes received.
	EnvelopeSize = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "unlock",
			Name:      "envelope_size_bytes",
			Help:      "Size of sealed envelope payloads in bytes",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 10), // 64B to 16MB
		},
	)
)
