package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lumenhq/lumen/internal/descriptor"
)

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsListCmd, modelsGetCmd, modelsDeleteCmd, modelsAliasCmd, modelsImportCmd)
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect and manage the local model catalog",
}

var modelsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List catalog entries",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		entries, err := d.Catalog.LoadAll()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No models pulled. Run 'lumen pull <handle>' to get started.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "MODEL_ID\tALIAS\tSTATUS\tBRANCH")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ModelID, e.Alias, e.Status, e.Branch)
		}
		return w.Flush()
	},
}

var modelsGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Print one catalog entry's descriptor as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		entry, err := d.Catalog.GetByID(args[0])
		if err != nil {
			entry, err = d.Catalog.GetByAlias(args[0])
			if err != nil {
				return err
			}
		}
		desc, err := d.Descriptors.Read(entry.PathToDescriptor)
		if err != nil {
			return err
		}
		wire, err := descriptor.ToWire(desc)
		if err != nil {
			return err
		}
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, wire, "", "  "); err != nil {
			return err
		}
		fmt.Println(pretty.String())
		return nil
	},
}

var modelsDeleteCmd = &cobra.Command{
	Use:     "delete ID",
	Aliases: []string{"rm"},
	Short:   "Remove a catalog entry and its descriptor",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		if err := d.Catalog.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", args[0])
		return nil
	},
}

var modelsAliasCmd = &cobra.Command{
	Use:   "alias ID ALIAS",
	Short: "Rename a catalog entry's alias",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		if err := d.Catalog.UpdateAlias(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("%s is now aliased %s\n", args[0], args[1])
		return nil
	},
}

var modelsImportCmd = &cobra.Command{
	Use:   "import ID PATH",
	Short: "Register a local GGUF file as a catalog entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		entry, err := d.Orchestrator.Import(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("imported %s\n", entry.ModelID)
		return nil
	},
}
