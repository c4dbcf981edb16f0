package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dgallion1/doxnav/internal/validate"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var skipLinks bool

	cmd := &cobra.Command{
		Use:   "validate <dir>",
		Short: "Check a bundle's navigation tree and search index",
		Long: `Check the navigation tree and search shards of a generated bundle for
structural problems. When the bundle includes HTML pages, every link and
anchor referenced by the tables is checked against them.

Exits with status 1 when errors are found.`,
		Args:          exactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd, args[0], skipLinks)
		},
	}

	cmd.Flags().BoolVar(&skipLinks, "skip-links", false, "do not check links against HTML pages")

	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command, dir string, skipLinks bool) error {
	site, err := loadSite(dir, opts.logger(cmd))
	if err != nil {
		return err
	}
	res := validate.Site(site, validate.Options{SkipLinks: skipLinks})

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		status, msg := "ok", ""
		if !res.OK() {
			status, msg = "error", fmt.Sprintf("%d validation error(s)", res.Errors)
		}
		if err := writeJSON(out, status, res, msg); err != nil {
			return err
		}
	} else {
		printProblems(out, res)
	}

	if !res.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", res.Errors))
	}
	return nil
}

func printProblems(w io.Writer, res *validate.Result) {
	for _, p := range res.Problems {
		sev := warnText(string(p.Severity))
		if p.Severity == validate.SeverityError {
			sev = errText(string(p.Severity))
		}
		fmt.Fprintf(w, "%s %s %s: %s\n", sev, keyText(p.Code), p.Path, p.Message)
	}
	c := res.Checked
	summary := fmt.Sprintf("%d nav nodes, %d entries, %d occurrences", c.NavNodes, c.Entries, c.Occurrences)
	if c.Pages > 0 {
		summary += fmt.Sprintf(", %d pages", c.Pages)
	}
	if res.OK() {
		fmt.Fprintf(w, "%s valid (%s; %d warning(s))\n", okMark("✓"), summary, res.Warnings)
		return
	}
	fmt.Fprintf(w, "%s %d error(s), %d warning(s) (%s)\n", failMark("✗"), res.Errors, res.Warnings, summary)
}
