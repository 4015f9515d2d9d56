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
	"time"

	"github.com/basenana/vfsrepo/pkg/repository"
)

type RepositoryInfo struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	FilterType string   `json:"filter_type,omitempty"`
	Filters    []string `json:"filters,omitempty"`
}

type ItemInfo struct {
	Name         string      `json:"name"`
	Path         string      `json:"path"`
	Type         string      `json:"type"`
	IsCollection bool        `json:"is_collection"`
	Size         int64       `json:"size"`
	MimeType     string      `json:"mime_type,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	ModifiedAt   time.Time   `json:"modified_at"`
	Children     []*ItemInfo `json:"children,omitempty"`
}

type LockResponse struct {
	Locked bool                 `json:"locked"`
	Lock   *repository.LockInfo `json:"lock,omitempty"`
}

func toRepositoryInfo(repo repository.Repository) *RepositoryInfo {
	cfg := repo.Configuration()
	info := &RepositoryInfo{Name: repo.Name(), Type: cfg.Type}
	if f := repo.Filter(); f != nil {
		info.FilterType = f.Type()
		info.Filters = f.Rules()
	}
	return info
}

func toItemInfo(ctx context.Context, item *repository.Item) *ItemInfo {
	info := &ItemInfo{
		Name:         item.Name(),
		Path:         item.Path(),
		Type:         item.Resource().Type,
		IsCollection: item.IsCollection(),
		Size:         item.ContentLength(),
		CreatedAt:    item.CreatedAt(),
		ModifiedAt:   item.ModifiedAt(),
	}
	if !item.IsCollection() {
		info.MimeType = item.MimeType(ctx)
	}
	return info
}
