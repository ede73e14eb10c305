package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Homlet/middleware-android-sub001/internal/cli"
	"github.com/Homlet/middleware-android-sub001/internal/transport"
	"github.com/Homlet/middleware-android-sub001/pkg/endpoint"
)

func newDiscoverCmd(v *viper.Viper) *cobra.Command {
	var rdcAddr, polarity string

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Ask an RDC which instances expose matching endpoints",
		Long: `Ask an RDC which instances expose matching endpoints.

Examples:
  mw discover --include-tag temperature
  mw discover --rdc 10.0.0.1:7500 --polarity sink --where 'size(tags) > 1'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := queryFromFlags(cmd)
			if err != nil {
				return err
			}
			if polarity != "" {
				p, err := endpoint.ParsePolarity(polarity)
				if err != nil {
					return err
				}
				q = q.WithPolarity(p)
			}
			return cli.RunCommand(cli.CommandConfig{
				Name:    "discover",
				Viper:   v,
				Timeout: 10 * time.Second,
				Run: func(ctx context.Context, env *cli.Env, out *cli.Output) error {
					client, addr, err := env.RDC(rdcAddr)
					if err != nil {
						return err
					}
					resp, err := client.Discover(ctx, &transport.DiscoverRequest{Query: q.Spec()})
					if err != nil {
						return fmt.Errorf("discover: %w", err)
					}
					out.WithSource(addr.String())
					tbl := out.Table("locations", "Instance", "Name", "Addresses")
					for _, loc := range resp.Locations {
						addrs := make([]string, len(loc.Addresses))
						for i, a := range loc.Addresses {
							addrs[i] = a.String()
						}
						tbl.AddRow(loc.ID, loc.Petname(), strings.Join(addrs, ","))
					}
					return tbl.Render()
				},
			})
		},
	}
	cmd.Flags().StringVar(&rdcAddr, "rdc", "", "RDC address (default $MW_RDC or localhost:7500)")
	cmd.Flags().StringVar(&polarity, "polarity", "", "restrict to SOURCE or SINK endpoints")
	bindQueryFlags(cmd)
	return cmd
}
