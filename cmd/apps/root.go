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
	"path"
	"time"

	"github.com/spf13/cobra"

	"github.com/basenana/vfsrepo/cmd/apps/apis"
	configapp "github.com/basenana/vfsrepo/cmd/apps/config"
	"github.com/basenana/vfsrepo/config"
	"github.com/basenana/vfsrepo/pkg/repository"
	"github.com/basenana/vfsrepo/utils"
	"github.com/basenana/vfsrepo/utils/logger"
	"github.com/basenana/vfsrepo/utils/metrics"
)

func init() {
	RootCmd.AddCommand(daemonCmd)
	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(UserCmd)
	RootCmd.AddCommand(RepositoryCmd)
	RootCmd.AddCommand(configapp.RunCmd)
}

var RootCmd = &cobra.Command{
	Use:   "vfsrepo",
	Short: "vfsrepo repository server",
	Long:  `Repository bridge serving a CMS virtual file system over webdav and REST.`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	defaultConfig := path.Join(config.LocalUserPath(), config.DefaultConfigBase)
	for _, cmd := range []*cobra.Command{daemonCmd, UserCmd, RepositoryCmd} {
		cmd.PersistentFlags().StringVar(&config.FilePath, "config", defaultConfig, "vfsrepo config file")
	}
}

var daemonCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start server service",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			panic(err)
		}
		if metrics.InitSentry(config.VersionInfo().Version()) {
			logger.NewLogger("vfsrepo").Info("sentry enabled")
		}

		ctx := context.Background()
		engine, err := newEngine(ctx, cfg)
		if err != nil {
			panic(err)
		}
		mgr, err := newManager(ctx, engine, cfg)
		if err != nil {
			panic(err)
		}

		stop := utils.HandleTerminalSignal()
		run(mgr, cfg, stop)
	},
}

func run(mgr *repository.Manager, cfg config.Config, stopCh chan struct{}) {
	log := logger.NewLogger("vfsrepo")
	log.Infow("starting", "version", config.VersionInfo().Version())

	shutdown := make(chan struct{})
	go func() {
		<-stopCh
		log.Info("shutdown after 1s")
		time.Sleep(time.Second)
		mgr.Shutdown()
		close(shutdown)
	}()

	if cfg.Api.Enable {
		s, err := apis.NewApiServer(mgr, cfg)
		if err != nil {
			log.Panicw("init http server failed", "err", err.Error())
		}
		go s.Run(stopCh)
	}

	log.Infow("started", "repositories", len(mgr.Repositories()))
	<-shutdown
	log.Info("stopped")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "View version information",
	Run: func(cmd *cobra.Command, args []string) {
		vInfo := config.VersionInfo()
		fmt.Printf("Version: %s\n", vInfo.Version())
		fmt.Printf("GitCommit: %s\n", vInfo.Git)
	},
}
