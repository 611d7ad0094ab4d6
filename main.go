// Copyright 2025 Ewout Prangsma
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Author Ewout Prangsma
//

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	terminate "github.com/pulcy/go-terminate"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/adom-inc/ads123x/pkg/config"
	"github.com/adom-inc/ads123x/pkg/environment"
	"github.com/adom-inc/ads123x/pkg/logging"
	"github.com/adom-inc/ads123x/pkg/server"
	"github.com/adom-inc/ads123x/pkg/service"
	"github.com/adom-inc/ads123x/pkg/ui"
)

const (
	projectName = "ADS123x sampler"
)

var (
	projectVersion = "dev"
	projectBuild   = "dev"
	maskAny        = errors.WithStack
)

func main() {
	var levelFlag string
	var configPath string
	var bridgeType string
	var mqttBroker string
	var printConfig bool
	defaults := config.Default()
	var serverConf config.Server

	pflag.StringVarP(&levelFlag, "level", "l", "info", "Set log level")
	pflag.StringVarP(&configPath, "config", "c", "", "Path of the board configuration file (YAML or JSON)")
	pflag.StringVarP(&bridgeType, "bridge", "b", "", "Type of bridge to use (rpi|opz|virtual), detected when empty")
	pflag.StringVar(&serverConf.Host, "host", defaults.Server.Host, "Host address the HTTP and SSH servers will listen on")
	pflag.IntVar(&serverConf.HTTPPort, "http-port", defaults.Server.HTTPPort, "Port the HTTP server will listen on")
	pflag.IntVar(&serverConf.SSHPort, "ssh-port", defaults.Server.SSHPort, "Port the SSH server will listen on (0 disables)")
	pflag.StringVar(&mqttBroker, "mqtt-broker", "", "Address of the MQTT broker (host:port)")
	pflag.BoolVar(&printConfig, "print-config", false, "Print the effective configuration and exit")
	pflag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	mqttLogWriter := logging.NewMQTTWriter(ctx)
	logOutput := logging.NewMultiWriter(zerolog.ConsoleWriter{Out: os.Stderr}, mqttLogWriter)
	logger := zerolog.New(logOutput).With().Timestamp().Logger()
	level, err := zerolog.ParseLevel(levelFlag)
	if err != nil {
		Exitf("Invalid log level '%s': %v\n", levelFlag, err)
	}
	logger = logger.Level(level)

	board := defaults
	if configPath != "" {
		board, err = config.Load(configPath)
		if err != nil {
			Exitf("Failed to load configuration: %v\n", err)
		}
	}
	// Command line overrides
	if pflag.CommandLine.Changed("host") {
		board.Server.Host = serverConf.Host
	}
	if pflag.CommandLine.Changed("http-port") {
		board.Server.HTTPPort = serverConf.HTTPPort
	}
	if pflag.CommandLine.Changed("ssh-port") {
		board.Server.SSHPort = serverConf.SSHPort
	}
	if mqttBroker != "" {
		board.MQTT.Broker = mqttBroker
	}
	if bridgeType != "" {
		board.Bridge = bridgeType
	}
	if err := board.Validate(); err != nil {
		Exitf("Invalid configuration: %v\n", err)
	}
	if printConfig {
		data, err := board.Marshal()
		if err != nil {
			Exitf("Failed to marshal configuration: %v\n", err)
		}
		fmt.Print(string(data))
		return
	}
	if board.Bridge == "" {
		board.Bridge = environment.AutoDetectBridgeType(logger)
	}

	br, _, err := service.NewBridge(board.Bridge, board)
	if err != nil {
		Exitf("Failed to initialize %s bridge: %v\n", board.Bridge, err)
	}

	svc, err := service.NewService(service.Config{
		ProgramVersion: projectVersion,
		BridgeType:     board.Bridge,
		Board:          board,
	}, service.Dependencies{
		Logger:        logger,
		Bridge:        br,
		MQTTLogWriter: mqttLogWriter,
	})
	if err != nil {
		br.Close()
		Exitf("Failed to initialize Service: %v\n", err)
	}
	defer svc.Close()

	srv, err := server.New(server.Config{
		Host:        board.Server.Host,
		HTTPPort:    board.Server.HTTPPort,
		SSHPort:     board.Server.SSHPort,
		HostKeyPath: board.Server.HostKeyPath,
	}, logger.With().Str("component", "server").Logger(), ui.New(svc.Sampler()), svc.Sampler())
	if err != nil {
		Exitf("Failed to initialize Server: %v\n", err)
	}

	// Prepare to shutdown in a controlled manor
	t := terminate.NewTerminator(func(template string, args ...interface{}) {
		logger.Info().Msgf(template, args...)
	}, cancel)
	go t.ListenSignals()

	fmt.Printf("Starting %s (version %s build %s) on %s bridge\n", projectName, projectVersion, projectBuild, board.Bridge)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(ctx) })
	g.Go(func() error { return srv.Run(ctx) })
	if err := g.Wait(); err != nil {
		svc.Close()
		Exitf("Service run failed: %v\n", maskAny(err))
	}
}

// Print the given error message and exit with code 1
func Exitf(message string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, message, args...)
	os.Exit(1)
}
