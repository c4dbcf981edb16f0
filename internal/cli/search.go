package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/doxnav/internal/searchindex"
)

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		category string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "search <dir> <query>",
		Short: "Look up symbols by prefix",
		Long: `Look up search entries whose key starts with the query. The query is
encoded the way the generator encodes symbol names, so "operator<" and
"Gamma" match as the in-browser search would. Exact matches come first.`,
		Args:          exactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			site, err := loadSite(args[0], rootOpts.logger(cmd))
			if err != nil {
				return err
			}
			if limit < 0 {
				return NewExitError(ExitCommandError, "--limit must not be negative")
			}
			matches := site.Search.Lookup(searchindex.Query{Text: args[1], Category: category, Limit: limit})

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				if matches == nil {
					matches = []searchindex.Match{}
				}
				return writeJSON(out, "ok", matches, "")
			}
			if len(matches) == 0 {
				fmt.Fprintf(out, "no matches for %q\n", args[1])
				return nil
			}
			for _, m := range matches {
				fmt.Fprintf(out, "%s %s\n", keyText(m.DisplayName), faintText("["+m.Category+"]"))
				for _, o := range m.Occurrences {
					target := o.Page
					if o.Anchor != "" {
						target += "#" + o.Anchor
					}
					fmt.Fprintf(out, "  %s  %s\n", o.Qualified(), faintText(target))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "restrict to one category (e.g. functions)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum matches, 0 for all")

	return cmd
}
