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
	"fmt"
	"strings"

	"github.com/basenana/vfsrepo/pkg/types"
	"github.com/basenana/vfsrepo/pkg/vfs"
)

const WrapperExtension = "extension"

func init() {
	RegisterWrapper(WrapperExtension, func() ResourceWrapper { return &extensionWrapper{extensions: map[string]string{}} })
}

// extensionWrapper shows resources of a type with an additional file
// extension, e.g. "jsp=.jsp" makes /index appear as /index.jsp.
// Configured as a comma separated list of type=.ext pairs.
type extensionWrapper struct {
	extensions map[string]string
}

func (w *extensionWrapper) Configure(cfg string) error {
	for _, pair := range strings.Split(cfg, ",") {
		resType, ext, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || resType == "" || len(ext) < 2 || !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("invalid extension mapping %q", pair)
		}
		w.extensions[resType] = ext
	}
	return nil
}

func (w *extensionWrapper) extensionOf(res *types.Resource) (string, bool) {
	if res == nil || res.IsFolder {
		return "", false
	}
	ext, ok := w.extensions[res.Type]
	if !ok || strings.HasSuffix(res.Name, ext) {
		return "", false
	}
	return ext, true
}

func (w *extensionWrapper) IsWrappedResource(_ context.Context, _ vfs.Accessor, res *types.Resource) bool {
	_, ok := w.extensionOf(res)
	return ok
}

func (w *extensionWrapper) ReadResource(ctx context.Context, acc vfs.Accessor, path string) (*types.Resource, error) {
	orig := w.RestoreResource(ctx, acc, path)
	if orig == path {
		return nil, nil
	}
	res, err := acc.ReadResource(ctx, orig)
	if err != nil {
		return nil, err
	}
	return w.WrapResource(res), nil
}

func (w *extensionWrapper) ReadFile(ctx context.Context, acc vfs.Accessor, path string) (*types.File, error) {
	orig := w.RestoreResource(ctx, acc, path)
	if orig == path {
		return nil, nil
	}
	file, err := acc.ReadFile(ctx, orig)
	if err != nil {
		return nil, err
	}
	file.Resource = *w.WrapResource(&file.Resource)
	return file, nil
}

func (w *extensionWrapper) AddResourcesToFolder(context.Context, vfs.Accessor, string) ([]*types.Resource, error) {
	return nil, nil
}

// RestoreResource strips the extra extension when the path names a virtual
// resource. Existing resources always win.
func (w *extensionWrapper) RestoreResource(ctx context.Context, acc vfs.Accessor, path string) string {
	for _, ext := range w.extensions {
		if !strings.HasSuffix(path, ext) || len(path) == len(ext) {
			continue
		}
		if acc.Exists(ctx, path) {
			return path
		}
		orig := strings.TrimSuffix(path, ext)
		res, err := acc.ReadResource(ctx, orig)
		if err != nil {
			continue
		}
		if wrappedExt, ok := w.extensionOf(res); ok && wrappedExt == ext {
			return orig
		}
	}
	return path
}

func (w *extensionWrapper) WrapResource(res *types.Resource) *types.Resource {
	ext, ok := w.extensionOf(res)
	if !ok {
		return res
	}
	res = res.Clone()
	res.RootPath += ext
	res.Name += ext
	return res
}
