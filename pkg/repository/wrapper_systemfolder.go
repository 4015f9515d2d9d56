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

	"github.com/basenana/vfsrepo/pkg/types"
	"github.com/basenana/vfsrepo/pkg/vfs"
	"github.com/basenana/vfsrepo/utils"
)

const (
	WrapperSystemFolder = "systemfolder"
	systemFolder        = "/system"
	systemFolderPath    = "/system/"
)

func init() {
	RegisterWrapper(WrapperSystemFolder, func() ResourceWrapper { return &systemFolderWrapper{} })
}

// systemFolderWrapper lists the shared /system/ folder in the root folder of
// every site.
type systemFolderWrapper struct{}

func (w *systemFolderWrapper) Configure(string) error {
	return nil
}

func (w *systemFolderWrapper) IsWrappedResource(context.Context, vfs.Accessor, *types.Resource) bool {
	return false
}

func (w *systemFolderWrapper) ReadResource(context.Context, vfs.Accessor, string) (*types.Resource, error) {
	return nil, nil
}

func (w *systemFolderWrapper) ReadFile(context.Context, vfs.Accessor, string) (*types.File, error) {
	return nil, nil
}

func (w *systemFolderWrapper) AddResourcesToFolder(ctx context.Context, acc vfs.Accessor, path string) ([]*types.Resource, error) {
	if utils.CleanPath(path) != utils.PathSeparator || acc.RequestContext().SiteRoot == "" {
		return nil, nil
	}
	res, err := acc.ReadResource(ctx, systemFolderPath)
	if err != nil {
		return nil, err
	}
	return []*types.Resource{res}, nil
}

func (w *systemFolderWrapper) RestoreResource(_ context.Context, _ vfs.Accessor, path string) string {
	return path
}

func (w *systemFolderWrapper) WrapResource(res *types.Resource) *types.Resource {
	return res
}
