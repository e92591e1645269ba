package cli

import (
	"github.com/spf13/cobra"

	"github.com/ledgerline/ledgerline/internal/customers"
	"github.com/ledgerline/ledgerline/internal/shared"
)

var customerCmd = &cobra.Command{
	Use:   "customer",
	Short: "Manage customers",
}

var customerCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a customer",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		country, _ := cmd.Flags().GetString("country")
		termsDays, _ := cmd.Flags().GetInt("terms-days")

		req := customers.CreateCustomerRequest{
			Name:             name,
			Country:          country,
			PaymentTermsDays: termsDays,
			Email:            optionalFlag(cmd, "email"),
			Phone:            optionalFlag(cmd, "phone"),
			TaxID:            optionalFlag(cmd, "tax-id"),
		}

		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		cust, err := e.customers.Create(cmd.Context(), req, 0)
		if err != nil {
			return err
		}
		return printJSON(cust)
	},
}

var customerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List customers with invoice counts and open balances",
	RunE: func(cmd *cobra.Command, args []string) error {
		includeDeleted, _ := cmd.Flags().GetBool("include-deleted")
		limit, _ := cmd.Flags().GetInt("limit")
		page, _ := cmd.Flags().GetInt("page")
		if page <= 0 {
			page = 1
		}

		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		list, total, err := e.customers.List(cmd.Context(), customers.ListCustomersRequest{
			ActiveOnly: !includeDeleted,
			Search:     optionalFlag(cmd, "search"),
			Limit:      limit,
			Offset:     (page - 1) * limit,
		})
		if err != nil {
			return err
		}
		return printJSON(struct {
			Customers  []customers.CustomerWithStats `json:"customers"`
			Pagination shared.Pagination             `json:"pagination"`
		}{list, shared.NewPagination(page, limit, total)})
	},
}

var customerDeleteCmd = &cobra.Command{
	Use:   "delete <customer-id>",
	Short: "Soft delete a customer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := idArg(args[0])
		if err != nil {
			return err
		}

		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		return e.customers.Delete(cmd.Context(), id)
	},
}

func optionalFlag(cmd *cobra.Command, name string) *string {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return nil
	}
	return &raw
}

func init() {
	customerCreateCmd.Flags().String("name", "", "Customer name")
	customerCreateCmd.Flags().String("country", "", "ISO 3166-1 alpha-2 country code")
	customerCreateCmd.Flags().Int("terms-days", 30, "Default payment terms in days")
	customerCreateCmd.Flags().String("email", "", "Billing email")
	customerCreateCmd.Flags().String("phone", "", "Phone number")
	customerCreateCmd.Flags().String("tax-id", "", "Tax identifier")
	_ = customerCreateCmd.MarkFlagRequired("name")
	_ = customerCreateCmd.MarkFlagRequired("country")

	customerListCmd.Flags().Bool("include-deleted", false, "Include soft deleted customers")
	customerListCmd.Flags().String("search", "", "Filter by name or email")
	customerListCmd.Flags().Int("limit", 50, "Rows per page")
	customerListCmd.Flags().Int("page", 1, "Page number")

	customerCmd.AddCommand(customerCreateCmd, customerListCmd, customerDeleteCmd)
	rootCmd.AddCommand(customerCmd)
}
