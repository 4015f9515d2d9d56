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

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/basenana/vfsrepo/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "generate local configuration",
	Run: func(cmd *cobra.Command, args []string) {
		if err := initDefaultConfig(WorkSpace); err != nil {
			fmt.Printf("init workspace failed: %s\n", err.Error())
			return
		}
		fmt.Println("Generate local configuration succeed")
	},
}

func initDefaultConfig(workspace string) error {
	fmt.Printf("Workspace: %s\n", workspace)
	if err := mkdir(workspace); err != nil {
		return err
	}

	configPath := localConfigFilePath(workspace)
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config %s already exists", configPath)
	}

	cfg, err := config.DefaultConfig(workspace)
	if err != nil {
		return err
	}
	if err = config.Verify(&cfg); err != nil {
		return err
	}
	fmt.Printf("Workspace Config: %s\n", configPath)
	return config.WriteConfig(configPath, cfg)
}

func mkdir(path string) error {
	d, err := os.Stat(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	if err != nil && os.IsNotExist(err) {
		return os.MkdirAll(path, 0755)
	}

	if d.IsDir() {
		return nil
	}

	return fmt.Errorf("%s not dir", path)
}
