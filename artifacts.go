package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/kartoza/solvency/internal/config"
	"github.com/kartoza/solvency/internal/errors"
	"github.com/kartoza/solvency/internal/store"
)

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "Manage model artifacts",
	Long: `Manage the scaler and classifier artifacts.

Examples:
  solvency artifacts inspect                     # Load and describe the configured artifacts
  solvency artifacts import ./artifacts out.db   # Copy a directory into a sqlite registry
  solvency artifacts unpack pack.zip             # Install an artifact pack into artifacts.dir`,
}

var artifactsInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Load the configured artifacts and describe them",
	Args:  cobra.NoArgs,
	RunE:  runArtifactsInspect,
}

var artifactsImportCmd = &cobra.Command{
	Use:   "import <dir> <registry.db>",
	Short: "Copy artifact files from a directory into a sqlite registry",
	Args:  cobra.ExactArgs(2),
	RunE:  runArtifactsImport,
}

var artifactsUnpackCmd = &cobra.Command{
	Use:   "unpack <pack.zip>",
	Short: "Validate an artifact pack and install it into the artifacts directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runArtifactsUnpack,
}

func init() {
	artifactsCmd.AddCommand(artifactsInspectCmd)
	artifactsCmd.AddCommand(artifactsImportCmd)
	artifactsCmd.AddCommand(artifactsUnpackCmd)
}

func runArtifactsInspect(cmd *cobra.Command, args []string) error {
	src, err := store.OpenSource(appConfig.Artifacts)
	if err != nil {
		return errors.ArtifactLoad(err, "source")
	}
	defer src.Close()

	st, err := store.Load(cmd.Context(), src)
	if err != nil {
		return err
	}

	pterm.DefaultSection.Println("Models")
	pterm.Info.Printf("Source: %s\n", st.Source())

	rows := [][]string{{"Selector", "Name", "Kind", "Legacy", "Features"}}
	for _, m := range st.Models() {
		features := strings.Join(m.FeatureNames, ", ")
		if features == "" {
			features = strings.Join(st.Scaler().FeatureNames(), ", ") + " (by position)"
		}
		rows = append(rows, []string{string(m.Selector), m.DisplayName, m.Kind, strconv.FormatBool(m.Legacy), features})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
		return err
	}

	if reg, ok := src.(*store.SQLiteSource); ok {
		records, err := reg.List(cmd.Context())
		if err != nil {
			return err
		}
		pterm.DefaultSection.Println("Registry")
		rows := [][]string{{"Name", "Kind", "Version", "Size", "Imported"}}
		for _, r := range records {
			rows = append(rows, []string{r.Name, r.Kind, strconv.Itoa(r.FormatVersion), strconv.Itoa(r.Size), r.ImportedAt.Format("2006-01-02 15:04:05")})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	}
	return nil
}

func runArtifactsImport(cmd *cobra.Command, args []string) error {
	dir, dbPath := args[0], args[1]

	layout, err := store.RelativePaths(appConfig.Artifacts)
	if err != nil {
		return err
	}
	paths := make(map[string]string, len(layout))
	for name, rel := range layout {
		paths[name] = filepath.Join(dir, rel)
	}

	reg, err := store.CreateRegistry(dbPath)
	if err != nil {
		return err
	}
	defer reg.Close()

	imported := 0
	for _, name := range store.ArtifactNames() {
		if _, ok := paths[name]; !ok {
			continue
		}
		data, err := os.ReadFile(paths[name])
		if os.IsNotExist(err) && name == store.ArtifactKNNLegacy {
			pterm.Info.Printf("No legacy KNN at %s, skipping\n", paths[name])
			continue
		}
		if err != nil {
			return errors.WithHintf(errors.Wrapf(err, "read %s", paths[name]), "artifact %s is missing from %s", name, dir)
		}

		rec, err := reg.Put(cmd.Context(), name, data, store.ExpectedKind(name))
		if err != nil {
			return err
		}
		pterm.Success.Printf("Imported %s (%s v%d, %d bytes)\n", rec.Name, rec.Kind, rec.FormatVersion, rec.Size)
		imported++
	}

	pterm.Info.Printf("%d artifacts written to %s\n", imported, dbPath)
	if appConfig.Artifacts.Source != config.SourceSQLite {
		pterm.Info.Printf("Set artifacts.source=%s and artifacts.registry=%s to serve from the registry\n", config.SourceSQLite, dbPath)
	}
	return nil
}

func runArtifactsUnpack(cmd *cobra.Command, args []string) error {
	manifest, err := store.InstallPack(cmd.Context(), args[0], appConfig.Artifacts, version)
	if err != nil {
		return err
	}

	msg := fmt.Sprintf("Artifact pack installed into %s", appConfig.Artifacts.Dir)
	if manifest.Version != "" {
		msg += fmt.Sprintf(" (version %s)", manifest.Version)
	}
	pterm.Success.Println(msg)
	return nil
}
