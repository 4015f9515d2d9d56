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

package types

import (
	"time"
)

const (
	PropertyContentType     = "content-type"
	PropertyContentEncoding = "content-encoding"
	PropertyTitle           = "Title"

	DefaultContentEncoding = "UTF-8"
)

// Resource is a folder or file of the virtual file system. Folder root paths
// always end with a separator.
type Resource struct {
	StructureID  int64     `json:"structure_id"`
	ResourceID   int64     `json:"resource_id"`
	RootPath     string    `json:"root_path"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	IsFolder     bool      `json:"is_folder"`
	Length       int64     `json:"length"`
	SiblingCount int       `json:"sibling_count"`
	CreatedBy    string    `json:"created_by"`
	ModifiedBy   string    `json:"modified_by"`
	CreatedAt    time.Time `json:"created_at"`
	ModifiedAt   time.Time `json:"modified_at"`
}

func (r *Resource) Clone() *Resource {
	if r == nil {
		return nil
	}
	n := *r
	return &n
}

// File is a resource together with its content.
type File struct {
	Resource
	Content []byte
}

func (f *File) Clone() *File {
	if f == nil {
		return nil
	}
	n := &File{Resource: f.Resource}
	if f.Content != nil {
		n.Content = make([]byte, len(f.Content))
		copy(n.Content, f.Content)
	}
	return n
}

type DeleteMode int

const (
	DeletePreserveSiblings DeleteMode = iota
	DeleteRemoveSiblings
)

type CopyMode int

const (
	// CopyAsNew gives every copied file its own content.
	CopyAsNew CopyMode = iota
	// CopyAsSibling shares content with the source.
	CopyAsSibling
	// CopyPreserveSiblings copies as new, but siblings inside a copied tree
	// stay siblings among the copies.
	CopyPreserveSiblings
)

type SystemInfo struct {
	SystemID      string `json:"system_id"`
	ResourceCount int64  `json:"resource_count"`
	ContentTotal  int64  `json:"content_total"`
}
