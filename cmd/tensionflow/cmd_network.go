package main

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/nvandessel/tensionflow/internal/backup"
	"github.com/nvandessel/tensionflow/internal/config"
	"github.com/nvandessel/tensionflow/internal/network"
	"github.com/spf13/cobra"
)

func newNetworkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "network",
		Short: "Manage stored networks",
		Long: `Save, inspect, list and delete named relation networks.

Networks live in networks.db under the configured data directory
(~/.tensionflow by default) and can be used anywhere a scenario is
accepted with --network <name>.

Examples:
  tensionflow network save --builtin sentence
  tensionflow network save problems --scenario problems.yaml
  tensionflow network list
  tensionflow network show sentence
  tensionflow network delete sentence
  tensionflow network export --name sentence
  tensionflow network import networks.tfa --replace
  tensionflow network verify networks.tfa`,
	}

	cmd.AddCommand(
		newNetworkSaveCmd(),
		newNetworkShowCmd(),
		newNetworkListCmd(),
		newNetworkDeleteCmd(),
		newNetworkExportCmd(),
		newNetworkImportCmd(),
		newNetworkVerifyCmd(),
	)

	return cmd
}

// withStore opens the SQLite network store for the duration of fn.
func withStore(cmd *cobra.Command, fn func(cfg *config.Config, store network.NetworkStore) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := network.NewSQLiteStore(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("open network store: %w", err)
	}
	defer store.Close()

	return fn(cfg, store)
}

func newNetworkSaveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save [name]",
		Short: "Store a scenario's relations and values as a named network",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			return withStore(cmd, func(cfg *config.Config, store network.NetworkStore) error {
				sc, err := resolveScenario(cmd.Context(), cmd, cfg)
				if err != nil {
					return err
				}
				if len(args) == 1 {
					sc.Name = args[0]
				}

				n, err := sc.Network()
				if err != nil {
					return err
				}
				if len(sc.Connections) > 0 {
					newLogger(cmd, cfg).Warn("directed connections are not stored in networks",
						"network", n.Name, "sources", len(sc.Connections))
				}

				if err := store.SaveNetwork(cmd.Context(), n); err != nil {
					return fmt.Errorf("save network: %w", err)
				}

				out := cmd.OutOrStdout()
				if jsonOut {
					return writeJSON(out, map[string]interface{}{
						"name":      n.Name,
						"nodes":     len(n.Nodes()),
						"relations": len(n.Relations()),
					})
				}
				fmt.Fprintf(out, "Saved network %q (%d nodes, %d relations)\n", n.Name, len(n.Nodes()), len(n.Relations()))
				return nil
			})
		},
	}

	addSourceFlags(cmd)
	return cmd
}

func newNetworkShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a stored network's nodes and relations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			return withStore(cmd, func(cfg *config.Config, store network.NetworkStore) error {
				n, err := store.LoadNetwork(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if jsonOut {
					return writeJSON(out, map[string]interface{}{
						"name":      n.Name,
						"nodes":     n.Nodes(),
						"values":    n.Values(),
						"relations": n.Relations(),
					})
				}

				values := n.Values()
				fmt.Fprintf(out, "Network %s\n\nNodes:\n", n.Name)
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				for _, id := range n.Nodes() {
					if v, ok := values[id]; ok {
						fmt.Fprintf(w, "  %s\t%.4f\n", id, v)
					} else {
						fmt.Fprintf(w, "  %s\t-\n", id)
					}
				}
				w.Flush()

				fmt.Fprintln(out, "\nRelations:")
				w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				for _, r := range n.Relations() {
					fmt.Fprintf(w, "  %s - %s\t%g\n", r.A, r.B, r.Weight)
				}
				return w.Flush()
			})
		},
	}
}

func newNetworkListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored networks",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			return withStore(cmd, func(cfg *config.Config, store network.NetworkStore) error {
				summaries, err := store.ListNetworks(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if jsonOut {
					return writeJSON(out, map[string]interface{}{
						"networks": summaries,
						"count":    len(summaries),
					})
				}

				if len(summaries) == 0 {
					fmt.Fprintln(out, "No stored networks.")
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tNODES\tRELATIONS\tUPDATED")
				for _, s := range summaries {
					fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", s.Name, s.NodeCount, s.RelationCount, s.UpdatedAt.Local().Format(time.DateTime))
				}
				return w.Flush()
			})
		},
	}
}

func newNetworkDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored network",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			return withStore(cmd, func(cfg *config.Config, store network.NetworkStore) error {
				if err := store.DeleteNetwork(cmd.Context(), args[0]); err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if jsonOut {
					return writeJSON(out, map[string]string{"deleted": args[0]})
				}
				fmt.Fprintf(out, "Deleted network %q\n", args[0])
				return nil
			})
		},
	}
}

func newNetworkExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Export stored networks to an archive file",
		Long: `Write stored networks to a gzip-compressed, checksummed archive.

Without a file argument the archive is written to a timestamped file in
<data dir>/backups. --keep then limits how many archives are retained there.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			names, _ := cmd.Flags().GetStringSlice("name")
			keep, _ := cmd.Flags().GetInt("keep")

			return withStore(cmd, func(cfg *config.Config, store network.NetworkStore) error {
				backupDir := filepath.Join(cfg.Storage.DataDir, "backups")
				path := backup.GeneratePath(backupDir)
				if len(args) == 1 {
					path = args[0]
				}

				header, err := backup.Export(cmd.Context(), store, path, names...)
				if err != nil {
					return err
				}

				var rotated []string
				if len(args) == 0 && keep > 0 {
					rotated, err = backup.Rotate(backupDir, keep)
					if err != nil {
						newLogger(cmd, cfg).Warn("archive rotation failed", "dir", backupDir, "error", err)
					}
				}

				out := cmd.OutOrStdout()
				if jsonOut {
					return writeJSON(out, map[string]interface{}{
						"path":    path,
						"header":  header,
						"rotated": rotated,
					})
				}
				fmt.Fprintf(out, "Exported %d networks (%d relations) to %s\n", header.NetworkCount, header.RelationCount, path)
				for _, p := range rotated {
					fmt.Fprintf(out, "Removed old archive %s\n", p)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringSlice("name", nil, "Network to export (repeatable, default all)")
	cmd.Flags().Int("keep", 0, "Archives to keep in the backups directory (0 keeps all)")
	return cmd
}

func newNetworkImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import networks from an archive file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			replace, _ := cmd.Flags().GetBool("replace")

			mode := backup.ImportMerge
			if replace {
				mode = backup.ImportReplace
			}

			return withStore(cmd, func(cfg *config.Config, store network.NetworkStore) error {
				result, err := backup.Import(cmd.Context(), store, args[0], mode)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if jsonOut {
					return writeJSON(out, result)
				}
				fmt.Fprintf(out, "Imported %d networks, skipped %d existing\n", len(result.Imported), len(result.Skipped))
				return nil
			})
		},
	}

	cmd.Flags().Bool("replace", false, "Overwrite networks that already exist")
	return cmd
}

func newNetworkVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Check an archive file's checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			header, err := backup.Verify(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, header)
			}
			fmt.Fprintf(out, "Archive OK: %d networks, %d relations, created %s\n",
				header.NetworkCount, header.RelationCount, header.CreatedAt.Local().Format(time.DateTime))
			return nil
		},
	}
}
