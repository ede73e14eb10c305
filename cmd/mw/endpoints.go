package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Homlet/middleware-android-sub001/internal/cli"
	"github.com/Homlet/middleware-android-sub001/internal/transport"
	"github.com/Homlet/middleware-android-sub001/pkg/logging"
	"github.com/Homlet/middleware-android-sub001/pkg/tags"
)

func newEndpointsCmd(v *viper.Viper) *cobra.Command {
	var host string
	var exposedOnly bool

	cmd := &cobra.Command{
		Use:   "endpoints",
		Short: "List the endpoints of an instance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunCommand(cli.CommandConfig{
				Name:    "endpoints",
				Viper:   v,
				Timeout: 10 * time.Second,
				Run: func(ctx context.Context, env *cli.Env, out *cli.Output) error {
					client, _, err := env.Peer(host)
					if err != nil {
						return err
					}
					resp, err := client.Endpoints(ctx, &transport.EndpointsRequest{ExposedOnly: exposedOnly})
					if err != nil {
						return fmt.Errorf("list endpoints: %w", err)
					}
					out.WithSource(logging.FormatLocation(resp.Location))
					tbl := out.Table("endpoints", "Name", "Polarity", "Tags", "Exposed", "Forceable", "Links")
					for _, ep := range resp.Endpoints {
						tbl.AddRow(
							ep.Details.Name,
							ep.Details.Polarity.String(),
							strings.Join(ep.Details.Tags, ","),
							strconv.FormatBool(ep.Exposed),
							strconv.FormatBool(ep.Forceable),
							strconv.Itoa(ep.Links),
						)
					}
					return tbl.Render()
				},
			})
		},
	}
	cmd.Flags().StringVar(&host, "host", "localhost:7400", "instance address (host:port)")
	cmd.Flags().BoolVar(&exposedOnly, "exposed", false, "only list exposed endpoints")
	return cmd
}

func newTagsCmd(v *viper.Viper) *cobra.Command {
	var exposedOnly bool

	cmd := &cobra.Command{
		Use:   "tags <host>",
		Short: "List the distinct tags carried by an instance's endpoints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunCommand(cli.CommandConfig{
				Name:    "tags",
				Viper:   v,
				Timeout: 10 * time.Second,
				Run: func(ctx context.Context, env *cli.Env, out *cli.Output) error {
					client, _, err := env.Peer(args[0])
					if err != nil {
						return err
					}
					resp, err := client.Endpoints(ctx, &transport.EndpointsRequest{ExposedOnly: exposedOnly})
					if err != nil {
						return fmt.Errorf("list endpoints: %w", err)
					}
					var all []string
					for _, ep := range resp.Endpoints {
						all = append(all, ep.Details.Tags...)
					}
					out.WithSource(logging.FormatLocation(resp.Location))
					return out.StringList("tags").Add(tags.Normalize(all)...).Render()
				},
			})
		},
	}
	cmd.Flags().BoolVar(&exposedOnly, "exposed", false, "only consider exposed endpoints")
	return cmd
}

func newPingCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "ping <host>",
		Short: "Check that an instance answers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunCommand(cli.CommandConfig{
				Name:    "ping",
				Viper:   v,
				Timeout: 10 * time.Second,
				Run: func(ctx context.Context, env *cli.Env, out *cli.Output) error {
					client, _, err := env.Peer(args[0])
					if err != nil {
						return err
					}
					start := time.Now()
					resp, err := client.Ping(ctx, &transport.PingRequest{})
					if err != nil {
						return fmt.Errorf("ping: %w", err)
					}
					return out.KV("ping").
						Set("Instance", resp.Location.ID).
						Set("Name", resp.Location.Petname()).
						Set("Addresses", len(resp.Location.Addresses)).
						Set("RTT", time.Since(start).Round(time.Microsecond).String()).
						Render()
				},
			})
		},
	}
}
