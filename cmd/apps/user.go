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
	"strings"

	"github.com/spf13/cobra"

	"github.com/basenana/vfsrepo/pkg/types"
)

var (
	userPassword string
	userRoles    []string
)

func init() {
	UserCmd.AddCommand(userAddCmd, userPasswdCmd, userListCmd)
	for _, cmd := range []*cobra.Command{userAddCmd, userPasswdCmd} {
		cmd.Flags().StringVar(&userPassword, "password", "", "user password")
		_ = cmd.MarkFlagRequired("password")
	}
	userAddCmd.Flags().StringSliceVar(&userRoles, "role", []string{types.RoleWorkplaceUser}, "user roles")
}

var UserCmd = &cobra.Command{
	Use:   "user",
	Short: "user management",
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var userAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "add a user",
	Args:  cobra.ExactArgs(1),
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
		user, err := engine.AddUser(ctx, args[0], userPassword, userRoles)
		if err != nil {
			return err
		}
		fmt.Printf("user %s added, roles: %s\n", user.Name, strings.Join(user.Roles, ","))
		return nil
	},
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd <name>",
	Short: "change the password of a user",
	Args:  cobra.ExactArgs(1),
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
		if err = engine.SetPassword(ctx, args[0], userPassword); err != nil {
			return err
		}
		fmt.Printf("password of %s changed\n", args[0])
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "list users",
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
		users, err := engine.ListUsers(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			fmt.Printf("%-20s enabled=%-5t project=%-10s roles=%s\n", u.Name, u.Enabled, u.StartProject, strings.Join(u.Roles, ","))
		}
		return nil
	},
}
