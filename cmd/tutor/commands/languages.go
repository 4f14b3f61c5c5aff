package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"ai-voice-tutor/internal/language"
)

var languagesJSON bool

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List the supported languages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if languagesJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(language.Supported)
		}
		for _, l := range language.Supported {
			fmt.Fprintf(out, "%-7s %s\n", l.Code, l.Name)
		}
		return nil
	},
}

func init() {
	languagesCmd.Flags().BoolVar(&languagesJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(languagesCmd)
}
