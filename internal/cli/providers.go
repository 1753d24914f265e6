package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Manage balance providers",
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all supported providers",
	RunE:  runProvidersList,
}

func init() {
	rootCmd.AddCommand(providersCmd)
	providersCmd.AddCommand(providersListCmd)
}

func runProvidersList(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	registry, err := initRegistry(cfg)
	if err != nil {
		return err
	}

	for _, name := range registry.List() {
		fmt.Println(name)
	}
	return nil
}
