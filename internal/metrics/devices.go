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
	// DevicesRegistered tracks devices added to a store.
	DevicesRegistered = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "devices",
			Name:      "registered_total",
			Help:      "Total number of devices registered",
		},
		[]string{"store"}, // lock, audit
	)

	// DevicesActive tracks devices currently held in a store, expired ones
	// included, as of the last add.
	DevicesActive = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "devices",
			Name:      "active",
			Help:      "Number of devices currently in a store, expired ones included",
		},
		[]string{"store"},
	)

	// DevicesExpired tracks devices observed past their expiry at lookup time.
	DevicesExpired = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "devices",
			Name:      "expired_total",
			Help:      "Total number of device lookups that found an expired device",
		},
		[]string{"store"},
	)

	// DeviceOperationDuration tracks store operation durations.
	DeviceOperationDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "devices",
			Name:      "operation_duration_seconds",
			Help:      "Device store operation duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15), // 0.1ms to 1.6s
		},
		[]string{"store", "operation"}, // get, add, persist
	)
)
