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

package apitool

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	metrics "github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
	ginmiddleware "github.com/slok/go-http-metrics/middleware/gin"
	"github.com/slok/go-http-metrics/middleware/std"
)

const metricPrefix = "vfsrepo"

var (
	mdlw     middleware.Middleware
	mdlwOnce sync.Once
)

func init() {
	prometheus.MustRegister(collectors.NewBuildInfoCollector())
}

// the recorder registers its collectors, so it is built once per process
func metricMiddleware() middleware.Middleware {
	mdlwOnce.Do(func() {
		mdlw = middleware.New(middleware.Config{
			Recorder: metrics.NewRecorder(metrics.Config{
				Prefix:   metricPrefix,
				Registry: prometheus.DefaultRegisterer,
			}),
			GroupedStatus: true,
		})
	})
	return mdlw
}

// MetricMiddleware measures a plain handler, handlerID is usually the
// mount point of a repository.
func MetricMiddleware(handlerID string, handler http.Handler) http.Handler {
	return std.Handler(handlerID, metricMiddleware(), handler)
}

func GinMetricMiddleware(handlerID string) gin.HandlerFunc {
	return ginmiddleware.Handler(handlerID, metricMiddleware())
}
