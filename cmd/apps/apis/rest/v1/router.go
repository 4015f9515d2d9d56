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

	"github.com/basenana/vfsrepo/cmd/apps/apis/apitool"
)

func RegisterRoutes(engine *gin.Engine, s *ServicesV1) {
	v1 := engine.Group("/api/v1")
	v1.Use(apitool.GinMetricMiddleware("rest_v1"))
	{
		v1.GET("/repositories", s.ListRepositories)

		repo := v1.Group("/repositories/:repo")
		repo.Use(apitool.BasicAuthMiddleware(s.lookupRepository))
		{
			repo.GET("/items/*path", s.GetItem)
			repo.DELETE("/items/*path", s.DeleteItem)
			repo.GET("/content/*path", s.ReadContent)
			repo.PUT("/content/*path", s.WriteContent)
			repo.POST("/folders/*path", s.CreateFolder)
			repo.POST("/copy", s.CopyItem)
			repo.POST("/move", s.MoveItem)
			repo.GET("/lock/*path", s.GetLock)
			repo.POST("/lock/*path", s.LockItem)
			repo.DELETE("/lock/*path", s.UnlockItem)
		}
	}
}
