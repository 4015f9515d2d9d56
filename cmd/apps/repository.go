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

package apps

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	RepositoryCmd.AddCommand(repositoryListCmd)
}

var RepositoryCmd = &cobra.Command{
	Use:   "repository",
	Short: "repository management",
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// repositoryListCmd runs the repository initialization without serving and
// shows which configured repositories would be active.
var repositoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "list configured repositories",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := context.Background()
		engine, err := newEngine(ctx, cfg)
		if err != nil {
			return err
		}
		mgr, err := newManager(ctx, engine, cfg)
		if err != nil {
			return err
		}
		defer mgr.Shutdown()

		for _, repoCfg := range cfg.Repositories {
			state := "dropped"
			if _, ok := mgr.GetRepository(repoCfg.Name); ok {
				state = "active"
			}
			fmt.Printf("%-20s type=%-6s %s\n", repoCfg.Name, repoCfg.Type, state)
		}
		return nil
	},
}
