package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lumenhq/lumen/internal/domain"
)

func init() {
	rootCmd.AddCommand(pullCmd)
}

var pullCmd = &cobra.Command{
	Use:   "pull HANDLE",
	Short: "Download a model without loading it",
	Long:  `Pull resolves HANDLE (a curated name, owner/repo, or owner/repo:branch) and downloads its files, resuming a prior partial download where possible.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runPull,
}

func runPull(cmd *cobra.Command, args []string) error {
	d, err := newDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	d.Orchestrator.ResumePolicy = resumePolicyForTTY()
	d.Orchestrator.OnProgress = newPullProgress()
	d.Downloader.Prompt = askYesNo

	handle := domain.ParseHandle(args[0])
	entry, err := d.Orchestrator.Pull(cmd.Context(), handle)
	if err != nil {
		return err
	}
	fmt.Printf("pulled %s (%s)\n", entry.ModelID, humanize.Bytes(dirSize(filepath.Dir(entry.PathToDescriptor))))
	return nil
}

// dirSize totals the regular-file bytes under dir, best-effort.
func dirSize(dir string) uint64 {
	var total uint64
	_ = filepath.Walk(dir, func(p string, fi os.FileInfo, err error) error {
		if err == nil && fi != nil && fi.Mode().IsRegular() {
			total += uint64(fi.Size())
		}
		return nil
	})
	return total
}
