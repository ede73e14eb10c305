package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:          "mw",
		Short:        "Endpoint middleware instance",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("output", "o", "text", "output format (text, json, yaml, markdown)")
	_ = v.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))

	rootCmd.AddCommand(newStartCmd(v))
	rootCmd.AddCommand(newEndpointsCmd(v))
	rootCmd.AddCommand(newTagsCmd(v))
	rootCmd.AddCommand(newPingCmd(v))
	rootCmd.AddCommand(newDiscoverCmd(v))
	rootCmd.AddCommand(newForceCmd(v))
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
