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
	"path"
	"strings"
)

const (
	FolderType     = "folder"
	PlainType      = "plain"
	BinaryType     = "binary"
	ImageType      = "image"
	XmlContentType = "xmlcontent"
	JspType        = "jsp"
)

var extensionTypes = map[string]string{
	".txt":        PlainType,
	".css":        PlainType,
	".js":         PlainType,
	".json":       PlainType,
	".html":       PlainType,
	".htm":        PlainType,
	".md":         PlainType,
	".csv":        PlainType,
	".properties": PlainType,
	".xml":        XmlContentType,
	".jsp":        JspType,
	".png":        ImageType,
	".jpg":        ImageType,
	".jpeg":       ImageType,
	".gif":        ImageType,
	".svg":        ImageType,
	".webp":       ImageType,
}

// DefaultTypeForName maps a resource name to its default file type.
func DefaultTypeForName(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	return BinaryType
}

// IsTextType reports whether content of the type is character data.
func IsTextType(resourceType string) bool {
	switch resourceType {
	case PlainType, XmlContentType, JspType:
		return true
	default:
		return false
	}
}

func IsKnownType(resourceType string) bool {
	switch resourceType {
	case FolderType, PlainType, BinaryType, ImageType, XmlContentType, JspType:
		return true
	default:
		return false
	}
}
