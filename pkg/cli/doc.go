// Package cli holds the pieces shared by the voicelive command line:
// provider contexts kept in ~/.voicelive/<app>/config.yaml, the on-disk
// layout under that directory, result output (YAML, JSON or a jq query),
// request files and the terminal frame used by the live view.
//
//	cfg, err := cli.LoadConfig("voicelive")
//	ctx, err := cfg.ResolveContext(flagContext)
//	err = cli.Output(records, cli.OutputOptions{Format: cli.FormatJSON, Query: ".[0].turns"})
package cli
