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

package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/basenana/vfsrepo/cmd/apps/apis/apitool"
	"github.com/basenana/vfsrepo/pkg/repository"
	"github.com/basenana/vfsrepo/pkg/types"
	"github.com/basenana/vfsrepo/utils/logger"
)

type ServicesV1 struct {
	mgr    *repository.Manager
	logger *zap.SugaredLogger
}

func NewServicesV1(mgr *repository.Manager) *ServicesV1 {
	return &ServicesV1{mgr: mgr, logger: logger.NewLogger("rest")}
}

func (s *ServicesV1) lookupRepository(gCtx *gin.Context) (apitool.SessionOpener, error) {
	name := gCtx.Param("repo")
	repo, ok := s.mgr.GetRepository(name)
	if !ok {
		return nil, errors.Wrapf(types.ErrNotFound, "repository %s", name)
	}
	return repo, nil
}

// session is set by the auth middleware of the repository routes.
func (s *ServicesV1) session(gCtx *gin.Context) repository.Session {
	return apitool.GetSession(gCtx.Request.Context())
}
