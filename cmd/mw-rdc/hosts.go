package main

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Homlet/middleware-android-sub001/internal/cli"
	"github.com/Homlet/middleware-android-sub001/internal/rdc/store"
	"github.com/Homlet/middleware-android-sub001/internal/transport"
	"github.com/Homlet/middleware-android-sub001/pkg/logging"
)

func newHostsCmd(v *viper.Viper) *cobra.Command {
	var rdcAddr string

	cmd := &cobra.Command{
		Use:   "hosts",
		Short: "List the locations an RDC currently indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunCommand(cli.CommandConfig{
				Name:    "hosts",
				Viper:   v,
				Timeout: 10 * time.Second,
				Run: func(ctx context.Context, env *cli.Env, out *cli.Output) error {
					client, addr, err := env.RDC(rdcAddr)
					if err != nil {
						return err
					}
					resp, err := client.Hosts(ctx, &transport.HostsRequest{})
					if err != nil {
						return fmt.Errorf("hosts: %w", err)
					}
					out.WithSource(addr.String())
					tbl := out.Table("hosts", "Location", "Endpoints", "Names", "Updated")
					for _, h := range resp.Hosts {
						names := make([]string, len(h.Endpoints))
						for i, d := range h.Endpoints {
							names[i] = d.Name
						}
						tbl.AddRow(
							logging.FormatLocation(h.Location),
							strconv.Itoa(len(h.Endpoints)),
							strings.Join(names, ","),
							h.Updated.Local().Format(time.DateTime),
						)
					}
					return tbl.Render()
				},
			})
		},
	}
	cmd.Flags().StringVar(&rdcAddr, "rdc", "", "RDC address (default $MW_RDC or localhost:7500)")
	return cmd
}

func newBackendsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the announcement store backends and their defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cli.NewOutputFromViper(v)
			tbl := out.Table("backends", "Backend", "Defaults")
			for _, name := range store.ListBackends() {
				var pairs []string
				for k, val := range store.GetDefaults(name) {
					pairs = append(pairs, k+"="+val)
				}
				slices.Sort(pairs)
				tbl.AddRow(name, strings.Join(pairs, " "))
			}
			return tbl.Render()
		},
	}
}
