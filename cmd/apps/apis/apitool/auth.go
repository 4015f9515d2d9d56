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
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/basenana/vfsrepo/pkg/repository"
	"github.com/basenana/vfsrepo/pkg/types"
)

type contextKey string

const (
	sessionContextKey = contextKey("ctx.session")
	authRealm         = `Basic realm="Restricted"`
)

// SessionOpener is satisfied by every repository.Repository.
type SessionOpener interface {
	Login(ctx context.Context, user, password string) (repository.Session, error)
}

func WithSession(ctx context.Context, session repository.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

func GetSession(ctx context.Context) repository.Session {
	raw := ctx.Value(sessionContextKey)
	if raw == nil {
		return nil
	}
	return raw.(repository.Session)
}

// Login opens a session with the basic auth credentials of the request.
func Login(r *http.Request, opener SessionOpener) (repository.Session, error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return nil, types.ErrLoginFailed
	}
	return opener.Login(r.Context(), username, password)
}

func isAuthError(err error) bool {
	return errors.Is(err, types.ErrLoginFailed) || errors.Is(err, types.ErrNoPerm)
}

func BasicAuthHandler(h http.Handler, opener SessionOpener) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := Login(r, opener)
		if err != nil {
			if !isAuthError(err) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(fmt.Sprintf("%s\n", err)))
				return
			}
			w.Header().Set("WWW-Authenticate", authRealm)
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(fmt.Sprintf("%s\n", err)))
			return
		}
		h.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
	})
}

// BasicAuthMiddleware resolves the repository of the request with lookup and
// stores the opened session in the request context.
func BasicAuthMiddleware(lookup func(gCtx *gin.Context) (SessionOpener, error)) gin.HandlerFunc {
	return func(gCtx *gin.Context) {
		opener, err := lookup(gCtx)
		if err != nil {
			ErrorResponse(gCtx, err)
			return
		}
		session, err := Login(gCtx.Request, opener)
		if err != nil {
			if isAuthError(err) {
				gCtx.Header("WWW-Authenticate", authRealm)
				ApiErrorResponse(gCtx, http.StatusUnauthorized, ApiLoginFailed, err)
				return
			}
			ErrorResponse(gCtx, err)
			return
		}
		gCtx.Request = gCtx.Request.WithContext(WithSession(gCtx.Request.Context(), session))
		gCtx.Next()
	}
}
