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
	"mime"
	"path"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/basenana/vfsrepo/pkg/types"
	"github.com/basenana/vfsrepo/pkg/vfs"
)

const defaultMimeType = "application/octet-stream"

// Item is a read only view on one resource. Content and MIME type are
// loaded on first use and kept for the lifetime of the item.
type Item struct {
	acc  vfs.Accessor
	res  *types.Resource
	path string

	mux      sync.Mutex
	content  []byte
	loaded   bool
	mimeType string
}

func newItem(acc vfs.Accessor, res *types.Resource) *Item {
	return &Item{acc: acc, res: res, path: acc.SitePath(res.RootPath)}
}

func (i *Item) Name() string {
	return i.res.Name
}

// Path is the site path of the item, folders end with a separator.
func (i *Item) Path() string {
	return i.path
}

func (i *Item) IsCollection() bool {
	return i.res.IsFolder
}

func (i *Item) ContentLength() int64 {
	return i.res.Length
}

func (i *Item) CreatedAt() time.Time {
	return i.res.CreatedAt
}

func (i *Item) ModifiedAt() time.Time {
	return i.res.ModifiedAt
}

func (i *Item) Resource() *types.Resource {
	return i.res.Clone()
}

func (i *Item) Content(ctx context.Context) ([]byte, error) {
	i.mux.Lock()
	defer i.mux.Unlock()
	return i.loadContent(ctx)
}

func (i *Item) loadContent(ctx context.Context) ([]byte, error) {
	if i.loaded {
		return i.content, nil
	}
	if i.res.IsFolder {
		i.content, i.loaded = []byte{}, true
		return i.content, nil
	}
	file, err := i.acc.ReadFile(ctx, i.path)
	if err != nil {
		return nil, err
	}
	i.content, i.loaded = file.Content, true
	return i.content, nil
}

// MimeType resolves the content-type property first, then the file
// extension and finally the content itself.
func (i *Item) MimeType(ctx context.Context) string {
	i.mux.Lock()
	defer i.mux.Unlock()
	if i.mimeType != "" || i.res.IsFolder {
		return i.mimeType
	}

	if val, err := i.acc.ReadProperty(ctx, i.path, types.PropertyContentType, true); err == nil && val != "" {
		i.mimeType = val
		return i.mimeType
	}
	if t := mime.TypeByExtension(path.Ext(i.res.Name)); t != "" {
		i.mimeType = t
		return i.mimeType
	}
	if content, err := i.loadContent(ctx); err == nil && len(content) > 0 {
		i.mimeType = mimetype.Detect(content).String()
		return i.mimeType
	}
	i.mimeType = defaultMimeType
	return i.mimeType
}
