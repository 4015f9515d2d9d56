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
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/basenana/vfsrepo/cmd/apps/apis/apitool"
	"github.com/basenana/vfsrepo/pkg/repository"
	"github.com/basenana/vfsrepo/pkg/types"
)

func (s *ServicesV1) ListRepositories(gCtx *gin.Context) {
	repos := s.mgr.Repositories()
	result := make([]*RepositoryInfo, 0, len(repos))
	for _, repo := range repos {
		result = append(result, toRepositoryInfo(repo))
	}
	apitool.JsonResponse(gCtx, http.StatusOK, result)
}

// GetItem returns the item at path, folders come with their children.
func (s *ServicesV1) GetItem(gCtx *gin.Context) {
	ctx := gCtx.Request.Context()
	session := s.session(gCtx)
	item, err := session.GetItem(ctx, gCtx.Param("path"))
	if err != nil {
		apitool.ErrorResponse(gCtx, err)
		return
	}
	info := toItemInfo(ctx, item)
	if item.IsCollection() {
		children, err := session.List(ctx, gCtx.Param("path"))
		if err != nil {
			apitool.ErrorResponse(gCtx, err)
			return
		}
		info.Children = make([]*ItemInfo, 0, len(children))
		for _, child := range children {
			info.Children = append(info.Children, toItemInfo(ctx, child))
		}
	}
	apitool.JsonResponse(gCtx, http.StatusOK, info)
}

func (s *ServicesV1) DeleteItem(gCtx *gin.Context) {
	if err := s.session(gCtx).Delete(gCtx.Request.Context(), gCtx.Param("path")); err != nil {
		apitool.ErrorResponse(gCtx, err)
		return
	}
	gCtx.Status(http.StatusNoContent)
}

func (s *ServicesV1) ReadContent(gCtx *gin.Context) {
	ctx := gCtx.Request.Context()
	item, err := s.session(gCtx).GetItem(ctx, gCtx.Param("path"))
	if err != nil {
		apitool.ErrorResponse(gCtx, err)
		return
	}
	if item.IsCollection() {
		apitool.ErrorResponse(gCtx, types.ErrIsGroup)
		return
	}
	content, err := item.Content(ctx)
	if err != nil {
		apitool.ErrorResponse(gCtx, err)
		return
	}
	gCtx.Data(http.StatusOK, item.MimeType(ctx), content)
}

// WriteContent stores the request body. An existing file is only replaced
// with overwrite=true.
func (s *ServicesV1) WriteContent(gCtx *gin.Context) {
	overwrite, err := strconv.ParseBool(gCtx.DefaultQuery("overwrite", "false"))
	if err != nil {
		apitool.ApiErrorResponse(gCtx, http.StatusBadRequest, apitool.ApiArgsError, err)
		return
	}
	content, err := io.ReadAll(gCtx.Request.Body)
	if err != nil {
		apitool.ApiErrorResponse(gCtx, http.StatusBadRequest, apitool.ApiArgsError, err)
		return
	}
	if err = s.session(gCtx).Save(gCtx.Request.Context(), gCtx.Param("path"), content, overwrite); err != nil {
		apitool.ErrorResponse(gCtx, err)
		return
	}
	apitool.JsonResponse(gCtx, http.StatusCreated, nil)
}

func (s *ServicesV1) CreateFolder(gCtx *gin.Context) {
	if err := s.session(gCtx).Create(gCtx.Request.Context(), gCtx.Param("path")); err != nil {
		apitool.ErrorResponse(gCtx, err)
		return
	}
	apitool.JsonResponse(gCtx, http.StatusCreated, nil)
}

func (s *ServicesV1) CopyItem(gCtx *gin.Context) {
	s.transfer(gCtx, repository.Session.Copy)
}

func (s *ServicesV1) MoveItem(gCtx *gin.Context) {
	s.transfer(gCtx, repository.Session.Move)
}

func (s *ServicesV1) transfer(gCtx *gin.Context, op func(repository.Session, context.Context, string, string, bool) error) {
	var req TransferRequest
	if err := gCtx.ShouldBindJSON(&req); err != nil {
		apitool.ApiErrorResponse(gCtx, http.StatusBadRequest, apitool.ApiArgsError, errors.WithMessage(err, "invalid transfer request"))
		return
	}
	if err := op(s.session(gCtx), gCtx.Request.Context(), req.Source, req.Destination, req.Overwrite); err != nil {
		apitool.ErrorResponse(gCtx, err)
		return
	}
	apitool.JsonResponse(gCtx, http.StatusOK, nil)
}

func (s *ServicesV1) GetLock(gCtx *gin.Context) {
	info, err := s.session(gCtx).GetLock(gCtx.Request.Context(), gCtx.Param("path"))
	if err != nil {
		apitool.ErrorResponse(gCtx, err)
		return
	}
	apitool.JsonResponse(gCtx, http.StatusOK, &LockResponse{Locked: info != nil, Lock: info})
}

func (s *ServicesV1) LockItem(gCtx *gin.Context) {
	var req LockRequest
	if gCtx.Request.ContentLength > 0 {
		if err := gCtx.ShouldBindJSON(&req); err != nil {
			apitool.ApiErrorResponse(gCtx, http.StatusBadRequest, apitool.ApiArgsError, errors.WithMessage(err, "invalid lock request"))
			return
		}
	}
	if req.Timeout != 0 {
		apitool.ApiErrorResponse(gCtx, http.StatusBadRequest, apitool.ApiArgsError, errors.New("repository locks do not expire, timeout must be 0"))
		return
	}
	ctx := gCtx.Request.Context()
	session := s.session(gCtx)
	path := gCtx.Param("path")

	info := &repository.LockInfo{
		Scope:     repository.LockScopeExclusive,
		Type:      repository.LockTypeWrite,
		Owner:     req.Owner,
		Username:  session.Accessor().RequestContext().UserName(),
		Path:      path,
		Depth:     repository.DepthInfinity,
		CreatedAt: time.Now(),
	}
	ok, err := session.Lock(ctx, path, info)
	if err != nil {
		apitool.ErrorResponse(gCtx, err)
		return
	}
	if !ok {
		apitool.ErrorResponse(gCtx, types.ErrLocked)
		return
	}
	s.GetLock(gCtx)
}

// UnlockItem is best effort like Session.Unlock.
func (s *ServicesV1) UnlockItem(gCtx *gin.Context) {
	s.session(gCtx).Unlock(gCtx.Request.Context(), gCtx.Param("path"))
	gCtx.Status(http.StatusNoContent)
}
