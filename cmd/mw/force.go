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
	"github.com/Homlet/middleware-android-sub001/pkg/command"
	"github.com/Homlet/middleware-android-sub001/pkg/location"
	"github.com/Homlet/middleware-android-sub001/pkg/persistence"
)

func newForceCmd(v *viper.Viper) *cobra.Command {
	var target, mapHost, rdcAddr, policy string

	cmd := &cobra.Command{
		Use:   "force <host> <map|map-to|unmap-all|close-all|set-rdc-address>",
		Short: "Send a remote command to a forceable instance",
		Long: `Send a remote command to a forceable instance.

Endpoint commands need both the instance and the endpoint to be forceable.

Examples:
  mw force 10.0.0.7:7400 map --endpoint temps --include-tag display
  mw force 10.0.0.7:7400 map-to --endpoint temps --to 10.0.0.8:7400
  mw force 10.0.0.7:7400 close-all --endpoint temps
  mw force 10.0.0.7:7400 set-rdc-address --address 10.0.0.1:7500`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pol, err := persistence.Parse(policy)
			if err != nil {
				return err
			}
			c, err := buildCommand(cmd, args[1], target, mapHost, rdcAddr, pol)
			if err != nil {
				return err
			}
			env, err := command.Encode(c)
			if err != nil {
				return err
			}
			return cli.RunCommand(cli.CommandConfig{
				Name:    "force",
				Viper:   v,
				Timeout: 30 * time.Second,
				Run: func(ctx context.Context, e *cli.Env, out *cli.Output) error {
					client, host, err := e.Peer(args[0])
					if err != nil {
						return err
					}
					resp, err := client.Force(ctx, &transport.ForceRequest{
						Command: env,
						From:    location.Location{ID: e.ID},
					})
					if err != nil {
						return fmt.Errorf("force %s: %w", c.Kind(), err)
					}
					res := out.WithSource(host.String()).Result("force", fmt.Sprintf("%s executed", c.Kind()))
					if c.Endpoint() != "" {
						res.With("endpoint", c.Endpoint())
					}
					switch c.(type) {
					case command.Map, command.MapTo:
						res.With("mapped", endpointNames(resp))
					case command.UnmapAll:
						res.With("unmapped", endpointNames(resp))
					case command.CloseAll:
						res.With("closed", resp.Closed)
					}
					return res.Render()
				},
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&target, "endpoint", "", "endpoint on the remote instance")
	f.StringVar(&mapHost, "to", "", "map-to: host the remote endpoint maps to")
	f.StringVar(&rdcAddr, "address", "", "set-rdc-address: new RDC address")
	f.StringVar(&policy, "persistence", "none", "map and map-to: persistence policy")
	bindQueryFlags(cmd)
	return cmd
}

func buildCommand(cmd *cobra.Command, kind, target, mapHost, rdcAddr string, pol persistence.Policy) (command.Command, error) {
	needEndpoint := func() error {
		if target == "" {
			return fmt.Errorf("%s needs --endpoint", kind)
		}
		return nil
	}
	kind = strings.ToLower(strings.ReplaceAll(kind, "_", "-"))
	switch kind {
	case "map", "map-to":
		if err := needEndpoint(); err != nil {
			return nil, err
		}
		q, err := queryFromFlags(cmd)
		if err != nil {
			return nil, err
		}
		if kind == "map" {
			return command.Map{Target: target, Query: q.Spec(), Persistence: pol}, nil
		}
		if mapHost == "" {
			return nil, fmt.Errorf("map-to needs --to")
		}
		return command.MapTo{Target: target, Host: mapHost, Query: q.Spec(), Persistence: pol}, nil
	case "unmap-all":
		if err := needEndpoint(); err != nil {
			return nil, err
		}
		return command.UnmapAll{Target: target}, nil
	case "close-all":
		if err := needEndpoint(); err != nil {
			return nil, err
		}
		return command.CloseAll{Target: target}, nil
	case "set-rdc-address":
		if rdcAddr == "" {
			return nil, fmt.Errorf("set-rdc-address needs --address")
		}
		return command.SetRDCAddress{Address: rdcAddr}, nil
	default:
		return nil, fmt.Errorf("unknown command %q", kind)
	}
}

func endpointNames(resp *transport.ForceResponse) string {
	names := make([]string, len(resp.Endpoints))
	for i, d := range resp.Endpoints {
		names[i] = d.Name
	}
	return strings.Join(names, ",")
}
