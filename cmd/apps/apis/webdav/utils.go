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

package webdav

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"time"

	"github.com/basenana/vfsrepo/pkg/repository"
	"github.com/basenana/vfsrepo/pkg/types"
)

const (
	fileMode   = 0644
	folderMode = 0755
)

type Info struct {
	name  string
	size  int64
	mode  fs.FileMode
	mTime time.Time
	isDir bool
	item  *repository.Item
}

var _ os.FileInfo = &Info{}

func (i *Info) Name() string {
	return i.name
}

func (i *Info) Size() int64 {
	return i.size
}

func (i *Info) Mode() fs.FileMode {
	return i.mode
}

func (i *Info) ModTime() time.Time {
	return i.mTime
}

func (i *Info) IsDir() bool {
	return i.isDir
}

func (i *Info) Sys() any {
	return nil
}

// ContentType is picked up by the webdav handler for getcontenttype.
func (i *Info) ContentType(ctx context.Context) (string, error) {
	if i.item == nil || i.isDir {
		return "", nil
	}
	return i.item.MimeType(ctx), nil
}

func Stat(item *repository.Item) *Info {
	info := &Info{
		name:  item.Name(),
		size:  item.ContentLength(),
		mode:  fileMode,
		mTime: item.ModifiedAt(),
		isDir: item.IsCollection(),
		item:  item,
	}
	if info.isDir {
		info.mode = fs.ModeDir | folderMode
		info.size = 0
	}
	return info
}

func error2FsError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, types.ErrNotFound), errors.Is(err, types.ErrFiltered):
		return fs.ErrNotExist
	case errors.Is(err, types.ErrIsExist):
		return fs.ErrExist
	case errors.Is(err, types.ErrNoAccess), errors.Is(err, types.ErrNoPerm),
		errors.Is(err, types.ErrLocked), errors.Is(err, types.ErrNotLocked):
		return fs.ErrPermission
	case errors.Is(err, types.ErrNameTooLong), errors.Is(err, types.ErrNotEmpty):
		return fs.ErrInvalid
	default:
		return err
	}
}

// slashClean is path.Clean with a leading separator.
func slashClean(name string) string {
	if name == "" || name[0] != '/' {
		name = "/" + name
	}
	return path.Clean(name)
}
