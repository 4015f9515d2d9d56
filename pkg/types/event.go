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

type Event struct {
	Id              string    `json:"id"`
	Type            string    `json:"type"`
	Source          string    `json:"source"`
	SpecVersion     string    `json:"specversion"`
	Time            time.Time `json:"time"`
	RefID           int64     `json:"vfsrefid"`
	RefType         string    `json:"vfsreftype"`
	DataContentType string    `json:"datacontenttype"`
	Data            EventData `json:"data"`
}

type EventData struct {
	StructureID int64  `json:"structure_id"`
	ResourceID  int64  `json:"resource_id"`
	RootPath    string `json:"root_path"`
	Type        string `json:"type"`
	IsFolder    bool   `json:"is_folder"`
	UserName    string `json:"user_name,omitempty"`
	Project     string `json:"project,omitempty"`
}

func NewEventData(res *Resource) EventData {
	return EventData{
		StructureID: res.StructureID,
		ResourceID:  res.ResourceID,
		RootPath:    res.RootPath,
		Type:        res.Type,
		IsFolder:    res.IsFolder,
	}
}
