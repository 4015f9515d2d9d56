/*
 Copyright 2023 NanaFS Authors.

 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/basenana/vfsrepo/pkg/types"
)

var (
	sessionOperationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repository_operation_latency_seconds",
			Help:    "The latency of repository session operation.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		},
		[]string{"repository", "operation"},
	)
	sessionOperationErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repository_operation_errors",
			Help: "This count of repository session operation encountering errors",
		},
		[]string{"repository", "operation"},
	)
	loginCacheHitCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "repository_login_cache_hits",
			Help: "This count of logins served from the login cache",
		},
	)
	loginCacheMissCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "repository_login_cache_misses",
			Help: "This count of logins checked against the user directory",
		},
	)
)

func init() {
	prometheus.MustRegister(
		sessionOperationLatency,
		sessionOperationErrorCounter,
		loginCacheHitCounter,
		loginCacheMissCounter,
	)
}

func logOperationLatency(repo, operation string, startAt time.Time) {
	sessionOperationLatency.WithLabelValues(repo, operation).Observe(time.Since(startAt).Seconds())
}

func logOperationError(repo, operation string, err error) error {
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, types.ErrNotFound) {
		sessionOperationErrorCounter.WithLabelValues(repo, operation).Inc()
	}
	return err
}
