package main

import (
	"github.com/spf13/cobra"

	"github.com/Homlet/middleware-android-sub001/internal/config"
	"github.com/Homlet/middleware-android-sub001/pkg/query"
)

func bindQueryFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("name", "", "endpoint name regular expression")
	f.String("description", "", "endpoint description regular expression")
	f.StringSlice("include-tag", nil, "tags a match must carry")
	f.StringSlice("exclude-tag", nil, "tags a match must not carry")
	f.Int("matches", query.Unlimited, "maximum number of matches (-1 for unlimited)")
	f.String("where", "", "CEL predicate over name, description, polarity, schema and tags")
}

func queryFromFlags(cmd *cobra.Command) (*query.Query, error) {
	f := cmd.Flags()
	var qc config.QueryConfig
	qc.Name, _ = f.GetString("name")
	qc.Description, _ = f.GetString("description")
	qc.IncludeTags, _ = f.GetStringSlice("include-tag")
	qc.ExcludeTags, _ = f.GetStringSlice("exclude-tag")
	qc.Where, _ = f.GetString("where")
	if f.Changed("matches") {
		n, _ := f.GetInt("matches")
		qc.Matches = &n
	}
	return qc.Build()
}
