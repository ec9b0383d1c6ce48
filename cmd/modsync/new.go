package main

import (
	"github.com/spf13/cobra"

	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
)

var newCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create an empty manifest",
	Long: `Create a new manifest with no entries at revision 1.

The manifest is written to --out, or to stdout when no file is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runNew,
}

var (
	newGame        string
	newOut         string
	newDescription string
	newAuthor      string
	newSave        bool
)

func init() {
	newCmd.Flags().StringVar(&newGame, "game", "", "game tag: fs19, fs22 or fs25 (default from config)")
	newCmd.Flags().StringVar(&newOut, "out", "", "file to write (default: stdout)")
	newCmd.Flags().StringVar(&newDescription, "description", "", "manifest description")
	newCmd.Flags().StringVar(&newAuthor, "author", "", "manifest author")
	newCmd.Flags().BoolVar(&newSave, "save", false, "also save the manifest to the library")
	rootCmd.AddCommand(newCmd)
}

func runNew(cmd *cobra.Command, args []string) error {
	game, err := gameOrDefault(newGame)
	if err != nil {
		return err
	}
	m := manifest.CreateNew(args[0], game)
	m.Description = newDescription
	m.Author = newAuthor

	if err := writeManifest(m, newOut); err != nil {
		return err
	}
	if newSave {
		return saveToLibrary(m)
	}
	return nil
}

func saveToLibrary(m *manifest.Manifest) error {
	lib, err := openLibrary()
	if err != nil {
		return err
	}
	saved, err := lib.Put(m)
	if err != nil {
		return err
	}
	printInfo("Saved %s (revision %d) to library as %s", saved.Name, saved.Revision, saved.ID)
	return nil
}
