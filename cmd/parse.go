package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adsight/adstxt-crawler/pkg/adstxt"
)

// newParseCmd creates the 'parse' subcommand: it turns one stored ads.txt
// file into structured JSON for downstream tooling.
func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file>",
		Short: "Parses a stored ads.txt file into structured records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0]) // #nosec G304 -- operator-supplied path
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			parsed := adstxt.Parse(string(data))
			out, err := json.MarshalIndent(parsed, "", "  ")
			if err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
