package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/doxnav/internal/report"
	"github.com/dgallion1/doxnav/internal/validate"
)

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		html      bool
		out       string
		skipLinks bool
	)

	cmd := &cobra.Command{
		Use:   "report <dir>",
		Short: "Write a validation report as Markdown or HTML",
		Long: `Validate a bundle and write a report with navigation statistics,
per-category entry counts and the problems found. --html renders the
report to sanitized HTML.`,
		Args:          exactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			site, err := loadSite(args[0], rootOpts.logger(cmd))
			if err != nil {
				return err
			}
			res := validate.Site(site, validate.Options{SkipLinks: skipLinks})

			var body []byte
			if html {
				body, err = report.HTML(site, res)
				if err != nil {
					return WrapExitError(ExitCommandError, "render failed", err)
				}
			} else {
				body = []byte(report.Markdown(site, res))
			}

			if out == "" {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}
			if err := os.WriteFile(out, body, 0o644); err != nil {
				return WrapExitError(ExitCommandError, "write failed", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s report written to %s\n", okMark("✓"), out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&html, "html", false, "render HTML instead of Markdown")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&skipLinks, "skip-links", false, "do not check links against HTML pages")

	return cmd
}
