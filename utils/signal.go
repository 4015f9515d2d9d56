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

package utils

import (
	"os"
	"os/signal"
	"runtime"
	"syscall"
)

var (
	terminalCh = make(chan os.Signal, 1)
	dumpCh     = make(chan os.Signal, 1)
)

func init() {
	signal.Notify(terminalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	signal.Notify(dumpCh, syscall.SIGUSR1)

	go dumpGoroutinesOnSignal()
}

// HandleTerminalSignal returns a channel closed on the first terminal
// signal. A second signal exits the process without waiting for shutdown.
func HandleTerminalSignal() chan struct{} {
	stopCh := make(chan struct{})
	go func() {
		<-terminalCh
		close(stopCh)
		<-terminalCh
		os.Exit(2)
	}()
	return stopCh
}

// dumpGoroutinesOnSignal writes all goroutine stacks to stderr on every SIGUSR1.
func dumpGoroutinesOnSignal() {
	for range dumpCh {
		buf := make([]byte, 1<<20)
		for {
			n := runtime.Stack(buf, true)
			if n < len(buf) {
				_, _ = os.Stderr.Write(buf[:n])
				break
			}
			buf = make([]byte, len(buf)*2)
		}
	}
}
