package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github/itish2003/admissions/services"
)

var (
	leadsJSON bool
	leadsYes  bool
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Manage captured leads",
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List captured leads, oldest first",
	Args:  cobra.NoArgs,
	RunE:  runLeadsList,
}

var leadsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every captured lead",
	Args:  cobra.NoArgs,
	RunE:  runLeadsClear,
}

func init() {
	leadsListCmd.Flags().BoolVar(&leadsJSON, "json", false, "output leads as JSON")
	leadsClearCmd.Flags().BoolVarP(&leadsYes, "yes", "y", false, "confirm deleting")
	leadsCmd.AddCommand(leadsListCmd)
	leadsCmd.AddCommand(leadsClearCmd)
	rootCmd.AddCommand(leadsCmd)
}

// Leads live in the catalog database alone, so these commands skip the
// vector store and the embedder.
func openLeads() (*services.SQLiteCatalog, error) {
	return services.OpenSQLiteCatalog(cfg.CatalogPath)
}

func runLeadsList(cmd *cobra.Command, _ []string) error {
	catalog, err := openLeads()
	if err != nil {
		return err
	}
	defer catalog.Close()

	leads, err := catalog.ListLeads(cmd.Context())
	if err != nil {
		return err
	}
	if leadsJSON {
		data, err := json.MarshalIndent(leads, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal leads: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	if len(leads) == 0 {
		cmd.Println("No leads captured yet.")
		return nil
	}
	for _, l := range leads {
		cmd.Printf("  %s  %-24s %-32s %s\n", l.CreatedAt.Format("2006-01-02 15:04"), l.Name, l.Email, l.Topic)
	}
	return nil
}

func runLeadsClear(cmd *cobra.Command, _ []string) error {
	if !leadsYes {
		return errors.New("refusing to delete leads without --yes")
	}
	catalog, err := openLeads()
	if err != nil {
		return err
	}
	defer catalog.Close()

	if err := catalog.ClearLeads(cmd.Context()); err != nil {
		return err
	}
	cmd.Println("All leads cleared.")
	return nil
}
