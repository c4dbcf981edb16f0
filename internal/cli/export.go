package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/doxnav/internal/export"
)

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		to  string
		out string
	)

	cmd := &cobra.Command{
		Use:   "export <dir>",
		Short: "Re-serialize a bundle as JSON, YAML or generator scripts",
		Long: `Write the loaded navigation tree and search index in another encoding.

  --to json|yaml   one document, to --out or stdout
  --to script      navtreedata.js, child-tree scripts and search shards,
                   written below the --out directory`,
		Args:          exactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := export.ParseFormat(to)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --to", err)
			}
			log := rootOpts.logger(cmd)
			site, err := loadSite(args[0], log)
			if err != nil {
				return err
			}

			if format == export.FormatScript {
				if out == "" {
					return NewExitError(ExitCommandError, "--to script requires --out <dir>")
				}
				files, err := export.Script(site)
				if err != nil {
					return WrapExitError(ExitCommandError, "export failed", err)
				}
				if err := export.WriteDir(out, files); err != nil {
					return WrapExitError(ExitCommandError, "write failed", err)
				}
				log.Info("exported scripts", "dir", out, "files", len(files))
				fmt.Fprintf(cmd.OutOrStdout(), "%s wrote %d file(s) to %s\n", okMark("✓"), len(files), out)
				return nil
			}

			if out == "" {
				return export.Write(cmd.OutOrStdout(), site, format)
			}
			var buf bytes.Buffer
			if err := export.Write(&buf, site, format); err != nil {
				return WrapExitError(ExitCommandError, "export failed", err)
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return WrapExitError(ExitCommandError, "write failed", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "json", "output encoding (json|yaml|script)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, or directory for --to script")

	return cmd
}
