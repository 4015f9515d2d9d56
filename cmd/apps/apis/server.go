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

package apis

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/basenana/vfsrepo/cmd/apps/apis/apitool"
	"github.com/basenana/vfsrepo/cmd/apps/apis/rest/v1"
	"github.com/basenana/vfsrepo/cmd/apps/apis/webdav"
	"github.com/basenana/vfsrepo/config"
	"github.com/basenana/vfsrepo/pkg/repository"
	"github.com/basenana/vfsrepo/utils"
	"github.com/basenana/vfsrepo/utils/logger"
)

const (
	defaultHttpTimeout = time.Minute * 30
)

type Server struct {
	engine    *gin.Engine
	apiConfig config.Api
	logger    *zap.SugaredLogger
}

func (s *Server) Run(stopCh chan struct{}) {
	addr := fmt.Sprintf("%s:%d", s.apiConfig.Host, s.apiConfig.Port)
	s.logger.Infof("http server on %s", addr)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  defaultHttpTimeout,
		WriteTimeout: defaultHttpTimeout,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil {
			if err != http.ErrServerClosed {
				s.logger.Panicw("api server down", "err", err.Error())
			}
			s.logger.Infof("api server stopped")
		}
	}()

	<-stopCh
	shutdownCtx, canF := context.WithTimeout(context.TODO(), time.Second)
	defer canF()
	_ = httpServer.Shutdown(shutdownCtx)
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Ping(gCtx *gin.Context) {
	gCtx.JSON(200, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) logMiddleware() gin.HandlerFunc {
	return func(gCtx *gin.Context) {
		start := time.Now()
		gCtx.Next()
		s.logger.Debugw("api request",
			"method", gCtx.Request.Method,
			"path", gCtx.Request.URL.Path,
			"status", gCtx.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}

func (s *Server) recovery(gCtx *gin.Context, recovered any) {
	err := utils.Recover(recovered)
	s.logger.Errorw("api handler panic", "path", gCtx.Request.URL.Path, "err", err)
	apitool.ApiErrorResponse(gCtx, http.StatusInternalServerError, apitool.ApiInternalError, err)
}

// NewApiServer serves the REST api and, when enabled, the webdav mounts of
// every repository of mgr on one listener.
func NewApiServer(mgr *repository.Manager, cfg config.Config) (*Server, error) {
	apiConfig := cfg.Api
	if apiConfig.Enable && apiConfig.Port == 0 {
		return nil, fmt.Errorf("http port not set")
	}
	if apiConfig.Enable && apiConfig.Host == "" {
		apiConfig.Host = "127.0.0.1"
	}

	s := &Server{
		engine:    gin.New(),
		apiConfig: apiConfig,
		logger:    logger.NewLogger("api"),
	}
	s.engine.Use(gin.CustomRecovery(s.recovery))
	s.engine.Use(s.logMiddleware())

	s.engine.GET("/_ping", s.Ping)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if apiConfig.Pprof {
		pprof.Register(s.engine)
	}

	v1.RegisterRoutes(s.engine, v1.NewServicesV1(mgr))

	if cfg.Webdav != nil && cfg.Webdav.Enable {
		dav, err := webdav.NewWebdav(mgr, *cfg.Webdav)
		if err != nil {
			return nil, err
		}
		dav.Register(s.engine)
	}
	return s, nil
}
