package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/doxnav/internal/navtree"
)

// NewTreeCommand creates the tree command.
func NewTreeCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		depth int
		link  string
	)

	cmd := &cobra.Command{
		Use:   "tree <dir>",
		Short: "Print the navigation tree",
		Long: `Print the navigation tree of a bundle. With --path, print the breadcrumb
of labels leading to the first node that links to the given page and the
navtreeindex chunk that holds it.`,
		Args:          exactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			site, err := loadSite(args[0], rootOpts.logger(cmd))
			if err != nil {
				return err
			}
			if site.Nav == nil {
				return NewExitError(ExitCommandError, "bundle has no navigation tree")
			}
			if link != "" {
				return runTreePath(rootOpts, cmd, site.Nav, link)
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				return writeJSON(out, "ok", site.Nav, "")
			}
			site.Nav.Walk(func(n *navtree.Node, d int) bool {
				if depth > 0 && d >= depth {
					return false
				}
				line := strings.Repeat("  ", d) + n.Label
				if n.Link != "" {
					line += "  " + faintText(n.Link)
				}
				if n.ChildrenRef != "" && len(n.Children) == 0 {
					line += "  " + warnText("("+n.ChildrenRef+".js missing)")
				}
				fmt.Fprintln(out, line)
				return true
			})
			return nil
		},
	}

	cmd.Flags().IntVarP(&depth, "depth", "d", 0, "maximum depth to print, 0 for all")
	cmd.Flags().StringVar(&link, "path", "", "print the breadcrumb for a page link")

	return cmd
}

func runTreePath(opts *RootOptions, cmd *cobra.Command, tree *navtree.Tree, link string) error {
	labels := tree.Path(link)
	if labels == nil {
		return NewExitError(ExitFailure, fmt.Sprintf("%s is not in the navigation tree", link))
	}
	chunk := tree.ChunkFor(link)

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return writeJSON(out, "ok", map[string]any{"link": link, "path": labels, "chunk": chunk}, "")
	}
	fmt.Fprintln(out, strings.Join(labels, " › "))
	if chunk >= 0 {
		fmt.Fprintf(out, "%s\n", faintText(fmt.Sprintf("navtreeindex%d.js", chunk)))
	}
	return nil
}
