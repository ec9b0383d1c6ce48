package main

import (
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/modsync/pkg/modsync/export"
)

var exportCmd = &cobra.Command{
	Use:   "export [mods-dir]",
	Short: "Build a manifest from a mods directory",
	Long: `Hash every package file in a mods directory and write a manifest that
describes it. Source URLs are formed by appending each filename to
--base-url, so the directory can be published as-is.

Examples:
  modsync export ~/mods --name "Farm pack" --base-url https://cdn.example.com/farm
  modsync export --name "Farm pack" --base-url https://cdn.example.com/farm --out farm.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

var (
	exportName        string
	exportGame        string
	exportBaseURL     string
	exportOut         string
	exportDescription string
	exportAuthor      string
	exportWorkers     int
	exportSave        bool
)

func init() {
	exportCmd.Flags().StringVar(&exportName, "name", "", "manifest name (required)")
	exportCmd.Flags().StringVar(&exportGame, "game", "", "game tag: fs19, fs22 or fs25 (default from config)")
	exportCmd.Flags().StringVar(&exportBaseURL, "base-url", "", "URL the files will be served from (required)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "file to write (default: stdout)")
	exportCmd.Flags().StringVar(&exportDescription, "description", "", "manifest description")
	exportCmd.Flags().StringVar(&exportAuthor, "author", "", "manifest author")
	exportCmd.Flags().IntVarP(&exportWorkers, "workers", "w", 0, "parallel hashing workers (default: number of CPUs)")
	exportCmd.Flags().BoolVar(&exportSave, "save", false, "also save the manifest to the library")
	_ = exportCmd.MarkFlagRequired("name")
	_ = exportCmd.MarkFlagRequired("base-url")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	dir, err := targetDir(args, 0)
	if err != nil {
		return err
	}
	game, err := gameOrDefault(exportGame)
	if err != nil {
		return err
	}

	v, closeVerifier := openVerifier()
	defer closeVerifier()

	opts := export.Options{
		Name:        exportName,
		Game:        game,
		BaseURL:     exportBaseURL,
		Description: exportDescription,
		Author:      exportAuthor,
		Verifier:    v,
		Concurrency: exportWorkers,
	}
	if !quiet && isTerminal(os.Stderr) {
		var bar *progressbar.ProgressBar
		opts.Progress = func(done, total int, name string) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionSetDescription("Hashing"),
					progressbar.OptionShowCount(),
					progressbar.OptionSetWidth(30),
					progressbar.OptionClearOnFinish(),
				)
			}
			bar.Describe("Hashing " + name)
			_ = bar.Set(done)
			if done == total {
				_ = bar.Finish()
			}
		}
	}

	m, err := export.Export(ctx, dir, opts)
	if err != nil {
		return err
	}
	printInfo("Exported %d file(s), %s", len(m.Entries), humanBytes(m.TotalBytes()))

	if err := writeManifest(m, exportOut); err != nil {
		return err
	}
	if exportSave {
		return saveToLibrary(m)
	}
	return nil
}
