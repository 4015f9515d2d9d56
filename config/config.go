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

package config

type Config struct {
	Api    Api     `json:"api"`
	Webdav *Webdav `json:"webdav,omitempty"`

	Meta     Meta      `json:"meta" validate:"required"`
	Storages []Storage `json:"storages" validate:"required,min=1,dive"`

	Repositories []Repository `json:"repositories" validate:"dive"`
	Admin        *Admin       `json:"admin,omitempty"`

	Debug bool `json:"debug,omitempty"`
}

type Api struct {
	Enable bool   `json:"enable"`
	Host   string `json:"host"`
	Port   int    `json:"port" validate:"gte=0,lte=65535"`
	Pprof  bool   `json:"pprof"`
}

// Webdav controls the webdav mounts. Every repository is served under
// <Prefix>/<repository name>/ on the api listener.
type Webdav struct {
	Enable bool   `json:"enable"`
	Prefix string `json:"prefix,omitempty"`
}

// Admin is the bootstrap administrator created by the engine on first start.
type Admin struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}

// Repository is one configured repository. Params is the repeatable
// key/value bag consumed at repository setup.
type Repository struct {
	Name        string              `json:"name" validate:"required"`
	Type        string              `json:"type,omitempty"`
	Params      map[string][]string `json:"params,omitempty"`
	Filter      *Filter             `json:"filter,omitempty"`
	Translation *Translation        `json:"translation,omitempty"`
}

type Filter struct {
	Type  string   `json:"type"`
	Rules []string `json:"rules"`
}

type Translation struct {
	Enable bool     `json:"enable"`
	Rules  []string `json:"rules"`
}
