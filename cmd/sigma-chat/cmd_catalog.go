package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"sigma-chat/internal/catalog"
)

var (
	searchLimit  int
	listLimit    int
	catalogReset bool
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the product catalog",
}

var catalogImportCmd = &cobra.Command{
	Use:   "import [file.yaml]",
	Short: "Import products from a YAML file",
	Long: `Imports products into the catalog. The file has the same layout as the
built-in seed:

  products:
    - id: p1
      name: iPhone 15 Pro Max
      price: 29.990.000đ
      keywords: [iphone, apple]`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := openCatalogForCLI(catalogReset)
		if err != nil {
			return err
		}
		defer cat.Close()

		n, err := cat.ImportFile(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d products\n", n)
		return nil
	},
}

var catalogSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search products the way the chat does",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := openCatalogForCLI(false)
		if err != nil {
			return err
		}
		defer cat.Close()

		products, err := cat.Search(cmd.Context(), strings.Join(args, " "), searchLimit)
		if err != nil {
			return err
		}
		if len(products) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no products found")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), productTable(products))
		return nil
	},
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List products in catalog order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cat, err := openCatalogForCLI(false)
		if err != nil {
			return err
		}
		defer cat.Close()

		products, err := cat.List(cmd.Context(), listLimit)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), productTable(products))
		return nil
	},
}

func init() {
	catalogImportCmd.Flags().BoolVar(&catalogReset, "reset", false, "Drop existing products before importing")
	catalogSearchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "Maximum results")
	catalogListCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "Maximum results")

	catalogCmd.AddCommand(catalogImportCmd)
	catalogCmd.AddCommand(catalogSearchCmd)
	catalogCmd.AddCommand(catalogListCmd)
}

func openCatalogForCLI(reset bool) (*catalog.Catalog, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return catalog.Open(cfg.DBPath, reset)
}

func productTable(products []catalog.Product) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers("ID", "Name", "Price", "Category")
	for _, p := range products {
		t = t.Row(p.ID, p.Name, p.Price, p.Category)
	}
	return t.String()
}
