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
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/basenana/vfsrepo/pkg/types"
	"github.com/basenana/vfsrepo/pkg/vfs"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ResourceWrapper changes how resources look through a repository. Methods
// answer nil or the unchanged path for resources they do not handle.
type ResourceWrapper interface {
	Configure(cfg string) error
	IsWrappedResource(ctx context.Context, acc vfs.Accessor, res *types.Resource) bool
	ReadResource(ctx context.Context, acc vfs.Accessor, path string) (*types.Resource, error)
	ReadFile(ctx context.Context, acc vfs.Accessor, path string) (*types.File, error)
	AddResourcesToFolder(ctx context.Context, acc vfs.Accessor, path string) ([]*types.Resource, error)
	RestoreResource(ctx context.Context, acc vfs.Accessor, path string) string
	WrapResource(res *types.Resource) *types.Resource
}

type WrapperFactory func() ResourceWrapper

var (
	wrapperFactories = map[string]WrapperFactory{}
	wrapperMux       sync.RWMutex
)

func RegisterWrapper(name string, factory WrapperFactory) {
	wrapperMux.Lock()
	wrapperFactories[name] = factory
	wrapperMux.Unlock()
}

// NewWrapper builds a wrapper from "name[:config]".
func NewWrapper(spec string) (ResourceWrapper, error) {
	name, cfg, hasCfg := strings.Cut(spec, ":")
	wrapperMux.RLock()
	factory, ok := wrapperFactories[strings.TrimSpace(name)]
	wrapperMux.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown resource wrapper %q", types.ErrConfig, name)
	}
	w := factory()
	if hasCfg {
		if err := w.Configure(cfg); err != nil {
			return nil, fmt.Errorf("%w: configure resource wrapper %q: %s", types.ErrConfig, name, err)
		}
	}
	return w, nil
}

// ObjectWrapper is an accessor that routes every call through a chain of
// resource wrappers. It also handles the UTF-8 byte order mark of text files.
type ObjectWrapper struct {
	vfs.Accessor
	wrappers []ResourceWrapper
	addBOM   bool
}

var _ vfs.Accessor = &ObjectWrapper{}

func NewObjectWrapper(acc vfs.Accessor, wrappers []ResourceWrapper, addBOM bool) *ObjectWrapper {
	return &ObjectWrapper{Accessor: acc, wrappers: wrappers, addBOM: addBOM}
}

func (o *ObjectWrapper) Clone() vfs.Accessor {
	return &ObjectWrapper{Accessor: o.Accessor.Clone(), wrappers: o.wrappers, addBOM: o.addBOM}
}

// RestoreResource maps a virtual path to the path of the backing resource.
func (o *ObjectWrapper) RestoreResource(ctx context.Context, path string) string {
	for _, w := range o.wrappers {
		if restored := w.RestoreResource(ctx, o.Accessor, path); restored != path {
			return restored
		}
	}
	return path
}

func (o *ObjectWrapper) wrap(ctx context.Context, res *types.Resource) *types.Resource {
	for _, w := range o.wrappers {
		if w.IsWrappedResource(ctx, o.Accessor, res) {
			res = w.WrapResource(res)
		}
	}
	return res
}

func (o *ObjectWrapper) ReadResource(ctx context.Context, path string) (*types.Resource, error) {
	for _, w := range o.wrappers {
		res, err := w.ReadResource(ctx, o.Accessor, path)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return o.withBOMLength(ctx, res), nil
		}
	}
	res, err := o.Accessor.ReadResource(ctx, path)
	if err != nil {
		return nil, err
	}
	return o.withBOMLength(ctx, res), nil
}

func (o *ObjectWrapper) Exists(ctx context.Context, path string) bool {
	_, err := o.ReadResource(ctx, path)
	return err == nil
}

func (o *ObjectWrapper) ReadFile(ctx context.Context, path string) (*types.File, error) {
	var (
		file *types.File
		err  error
	)
	for _, w := range o.wrappers {
		if file, err = w.ReadFile(ctx, o.Accessor, path); err != nil {
			return nil, err
		}
		if file != nil {
			break
		}
	}
	if file == nil {
		if file, err = o.Accessor.ReadFile(ctx, path); err != nil {
			return nil, err
		}
	}
	if o.needsBOM(ctx, &file.Resource) && !bytes.HasPrefix(file.Content, utf8BOM) {
		file.Content = append(append([]byte{}, utf8BOM...), file.Content...)
		file.Length = int64(len(file.Content))
	}
	return file, nil
}

func (o *ObjectWrapper) ReadChildren(ctx context.Context, path string) ([]*types.Resource, error) {
	children, err := o.Accessor.ReadChildren(ctx, o.RestoreResource(ctx, path))
	if err != nil {
		return nil, err
	}
	result := make([]*types.Resource, 0, len(children))
	for _, child := range children {
		result = append(result, o.withBOMLength(ctx, o.wrap(ctx, child)))
	}
	for _, w := range o.wrappers {
		added, err := w.AddResourcesToFolder(ctx, o.Accessor, path)
		if err != nil {
			return nil, err
		}
		result = append(result, added...)
	}
	return result, nil
}

func (o *ObjectWrapper) CreateResource(ctx context.Context, path, resType string, content []byte) (*types.Resource, error) {
	path = o.RestoreResource(ctx, path)
	if o.addBOM {
		content = bytes.TrimPrefix(content, utf8BOM)
	}
	res, err := o.Accessor.CreateResource(ctx, path, resType, content)
	if err != nil {
		return nil, err
	}
	return o.wrap(ctx, res), nil
}

func (o *ObjectWrapper) WriteFile(ctx context.Context, file *types.File) error {
	file = file.Clone()
	if o.addBOM {
		file.Content = bytes.TrimPrefix(file.Content, utf8BOM)
	}
	sitePath := o.Accessor.SitePath(file.RootPath)
	if restored := o.RestoreResource(ctx, sitePath); restored != sitePath {
		res, err := o.Accessor.ReadResource(ctx, restored)
		if err != nil {
			return err
		}
		file.RootPath = res.RootPath
	}
	return o.Accessor.WriteFile(ctx, file)
}

func (o *ObjectWrapper) DeleteResource(ctx context.Context, path string, mode types.DeleteMode) error {
	return o.Accessor.DeleteResource(ctx, o.RestoreResource(ctx, path), mode)
}

func (o *ObjectWrapper) CopyResource(ctx context.Context, src, dst string, mode types.CopyMode) error {
	return o.Accessor.CopyResource(ctx, o.RestoreResource(ctx, src), o.RestoreResource(ctx, dst), mode)
}

func (o *ObjectWrapper) MoveResource(ctx context.Context, src, dst string) error {
	return o.Accessor.MoveResource(ctx, o.RestoreResource(ctx, src), o.RestoreResource(ctx, dst))
}

func (o *ObjectWrapper) LockResource(ctx context.Context, path string) error {
	return o.Accessor.LockResource(ctx, o.RestoreResource(ctx, path))
}

func (o *ObjectWrapper) ChangeLock(ctx context.Context, path string) error {
	return o.Accessor.ChangeLock(ctx, o.RestoreResource(ctx, path))
}

func (o *ObjectWrapper) UnlockResource(ctx context.Context, path string) error {
	return o.Accessor.UnlockResource(ctx, o.RestoreResource(ctx, path))
}

func (o *ObjectWrapper) GetLock(ctx context.Context, path string) (*types.Lock, error) {
	return o.Accessor.GetLock(ctx, o.RestoreResource(ctx, path))
}

func (o *ObjectWrapper) ReadProperty(ctx context.Context, path, name string, search bool) (string, error) {
	return o.Accessor.ReadProperty(ctx, o.RestoreResource(ctx, path), name, search)
}

func (o *ObjectWrapper) WriteProperty(ctx context.Context, path, name, value string) error {
	return o.Accessor.WriteProperty(ctx, o.RestoreResource(ctx, path), name, value)
}

// needsBOM is true for text files stored as UTF-8 while the mark is enabled.
func (o *ObjectWrapper) needsBOM(ctx context.Context, res *types.Resource) bool {
	if !o.addBOM || res.IsFolder || !types.IsTextType(res.Type) {
		return false
	}
	encoding, err := o.ReadProperty(ctx, o.Accessor.SitePath(res.RootPath), types.PropertyContentEncoding, true)
	if err != nil {
		return false
	}
	return encoding == "" || strings.EqualFold(encoding, types.DefaultContentEncoding)
}

func (o *ObjectWrapper) withBOMLength(ctx context.Context, res *types.Resource) *types.Resource {
	if o.needsBOM(ctx, res) {
		res = res.Clone()
		res.Length += int64(len(utf8BOM))
	}
	return res
}
