/*
 * meshnet LoRa store-and-forward mesh engine.
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

// Command meshsim is an interactive console that runs one or more simulated
// LoRa mesh nodes over an in-memory shared medium, for exercising and
// demonstrating the mesh package without real radio hardware.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lx7m/meshnet/mesh"
	"github.com/lx7m/meshnet/mesh/simradio"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "meshsim",
		Short: "Run an interactive simulated LoRa mesh node",
		Long: "meshsim wires a Node (identity, dispatcher, mesh core) onto an in-memory\n" +
			"shared radio medium shared with its peers and drives it from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(v)
		},
	}

	flags := cmd.Flags()
	flags.String("name", "node1", "this node's display name")
	flags.StringSlice("peers", nil, "names of additional simulated peer nodes sharing this medium")
	flags.Float64("loss", 0.0, "probability (0..1) a transmitted frame is lost in transit")
	flags.Float32("af", 2.0, "airtime duty-cycle budget factor")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.Int64("seed", 1, "PRNG seed for the simulated medium's loss/SNR jitter")
	flags.String("metrics-addr", "", "if set, serve Prometheus metrics for the primary node on this address (e.g. :9090)")

	_ = v.BindPFlags(flags)
	v.SetEnvPrefix("MESHSIM")
	v.AutomaticEnv()

	return cmd
}

func runConsole(v *viper.Viper) error {
	logger, err := mesh.NewLogger(v.GetString("log-level"))
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	medium := simradio.NewMedium(v.GetInt64("seed"))
	medium.LossProbability = v.GetFloat64("loss")

	self, err := NewNode(v.GetString("name"), medium, float32(v.GetFloat64("af")), logger)
	if err != nil {
		return err
	}
	go self.Run()
	defer self.Stop()

	if addr := v.GetString("metrics-addr"); addr != "" {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go serveMetrics(ctx, addr, self, logger)
	}

	for _, peerName := range v.GetStringSlice("peers") {
		peer, err := NewNode(peerName, medium, float32(v.GetFloat64("af")), logger)
		if err != nil {
			return err
		}
		go peer.Run()
		defer peer.Stop()
	}

	console := NewConsole(self, os.Stdout)
	console.RunREPL(os.Stdin)
	return nil
}
