package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lumenhq/lumen/internal/engine"
)

func init() {
	rootCmd.AddCommand(enginesCmd)
	enginesCmd.AddCommand(enginesInstallCmd, enginesListCmd, enginesUninstallCmd)
}

var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "Install, list, and remove inference engines",
}

var enginesInstallCmd = &cobra.Command{
	Use:   "install NAME",
	Short: "Download and install an engine for the current host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		if err := d.Engines.InstallEngine(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("installed %s\n", args[0])
		return nil
	},
}

var enginesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known engines and their install status for this host",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tVARIANT\tVERSION\tSTATUS")
		for _, e := range engine.Manifest {
			info, err := d.Engines.GetEngineInfo(e.Name)
			if err != nil {
				return err
			}
			if info == nil {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.Name, info.Variant, info.Version, info.Status)
		}
		return w.Flush()
	},
}

var enginesUninstallCmd = &cobra.Command{
	Use:   "uninstall NAME",
	Short: "Remove an installed engine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		if err := d.Engines.UninstallEngine(args[0]); err != nil {
			return err
		}
		fmt.Printf("uninstalled %s\n", args[0])
		return nil
	},
}
