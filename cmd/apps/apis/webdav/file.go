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
	"io"
	"io/fs"
	"path"
	"time"

	"golang.org/x/net/webdav"

	"github.com/basenana/vfsrepo/pkg/repository"
	"github.com/basenana/vfsrepo/pkg/types"
)

// File buffers the content of one resource. Writes are kept in memory and
// saved to the repository on Close.
type File struct {
	ctx     context.Context
	session repository.Session
	path    string
	item    *repository.Item

	content []byte
	loaded  bool
	dirty   bool
	off     int64
}

func (f *File) Read(p []byte) (n int, err error) {
	if err = f.load(); err != nil {
		return 0, err
	}
	if f.off >= int64(len(f.content)) {
		return 0, io.EOF
	}
	n = copy(p, f.content[f.off:])
	f.off += int64(n)
	return n, nil
}

func (f *File) Write(p []byte) (n int, err error) {
	if err = f.load(); err != nil {
		return 0, err
	}
	end := f.off + int64(len(p))
	if end > int64(len(f.content)) {
		grown := make([]byte, end)
		copy(grown, f.content)
		f.content = grown
	}
	n = copy(f.content[f.off:], p)
	f.off += int64(n)
	f.dirty = true
	return n, nil
}

func (f *File) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = f.off
	case io.SeekEnd:
		if err := f.load(); err != nil {
			return 0, err
		}
		base = int64(len(f.content))
	default:
		return 0, fs.ErrInvalid
	}
	if base+offset < 0 {
		return 0, fs.ErrInvalid
	}
	f.off = base + offset
	return f.off, nil
}

func (f *File) Stat() (fs.FileInfo, error) {
	if f.item != nil && !f.dirty {
		return Stat(f.item), nil
	}
	return &Info{
		name:  path.Base(f.path),
		size:  int64(len(f.content)),
		mode:  fileMode,
		mTime: time.Now(),
		item:  f.item,
	}, nil
}

func (f *File) Close() error {
	if !f.dirty {
		return nil
	}
	log.Debugw("save file", "path", f.path, "size", len(f.content))
	if err := f.session.Save(f.ctx, f.path, f.content, true); err != nil {
		log.Errorw("save file failed", "path", f.path, "err", err)
		return error2FsError(err)
	}
	f.dirty = false
	return nil
}

func (f *File) Readdir(count int) ([]fs.FileInfo, error) {
	return nil, types.ErrNoGroup
}

func (f *File) load() error {
	if f.loaded {
		return nil
	}
	if f.item != nil {
		content, err := f.item.Content(f.ctx)
		if err != nil {
			return error2FsError(err)
		}
		f.content = append([]byte{}, content...)
	}
	f.loaded = true
	return nil
}

type Dir struct {
	ctx     context.Context
	session repository.Session
	path    string
	item    *repository.Item

	// children is listed once, off is the read position in it.
	children []fs.FileInfo
	listed   bool
	off      int
}

// Readdir follows os.File: count <= 0 returns everything left, otherwise at
// most count entries and io.EOF once the folder is exhausted.
func (d *Dir) Readdir(count int) ([]fs.FileInfo, error) {
	if !d.listed {
		children, err := d.session.List(d.ctx, d.path)
		if err != nil {
			return nil, error2FsError(err)
		}
		d.children = make([]fs.FileInfo, len(children))
		for i := range children {
			d.children[i] = Stat(children[i])
		}
		d.listed = true
	}

	rest := d.children[d.off:]
	if count <= 0 {
		d.off = len(d.children)
		return rest, nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	if count > len(rest) {
		count = len(rest)
	}
	d.off += count
	return rest[:count], nil
}

func (d *Dir) Stat() (fs.FileInfo, error) {
	return Stat(d.item), nil
}

func (d *Dir) Write(p []byte) (int, error) {
	return 0, types.ErrIsGroup
}

func (d *Dir) Read(p []byte) (int, error) {
	return 0, types.ErrIsGroup
}

// Seek only rewinds, the next Readdir lists the folder again.
func (d *Dir) Seek(offset int64, whence int) (int64, error) {
	if offset != 0 || whence != io.SeekStart {
		return 0, types.ErrIsGroup
	}
	d.children, d.listed, d.off = nil, false, 0
	return 0, nil
}

func (d *Dir) Close() error {
	return nil
}

func openFile(ctx context.Context, session repository.Session, name string, item *repository.Item, truncate bool) webdav.File {
	if item != nil && item.IsCollection() {
		return &Dir{ctx: ctx, session: session, path: name, item: item}
	}
	f := &File{ctx: ctx, session: session, path: name, item: item}
	if item == nil || truncate {
		f.content, f.loaded, f.dirty = []byte{}, true, true
	}
	return f
}
