package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ledgerline/ledgerline/internal/invoicing"
	"github.com/ledgerline/ledgerline/internal/platform/cache"
)

var invoiceCmd = &cobra.Command{
	Use:   "invoice",
	Short: "Manage invoices",
}

var invoiceCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a draft invoice for a customer",
	RunE: func(cmd *cobra.Command, args []string) error {
		customerID, _ := cmd.Flags().GetInt64("customer")
		issueDate, err := dateFlag(cmd, "issue-date")
		if err != nil {
			return err
		}
		dueDate, err := dateFlag(cmd, "due-date")
		if err != nil {
			return err
		}
		terms, _ := cmd.Flags().GetString("terms")
		notes, _ := cmd.Flags().GetString("notes")

		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		inv, err := e.invoices.CreateInvoice(cmd.Context(), invoicing.CreateInvoiceInput{
			CustomerID:   customerID,
			IssueDate:    issueDate,
			DueDate:      dueDate,
			PaymentTerms: terms,
			Notes:        notes,
		})
		if err != nil {
			return err
		}
		return printJSON(invoiceView(inv))
	},
}

var invoiceAddLineCmd = &cobra.Command{
	Use:   "add-line <invoice-id>",
	Short: "Add a line item to a draft invoice",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		invoiceID, err := idArg(args[0])
		if err != nil {
			return err
		}
		description, _ := cmd.Flags().GetString("description")
		quantity, _ := cmd.Flags().GetInt64("quantity")
		unitPrice, err := decimalFlag(cmd, "unit-price")
		if err != nil {
			return err
		}
		discount, err := decimalFlag(cmd, "discount")
		if err != nil {
			return err
		}
		taxRate, err := decimalFlag(cmd, "tax-rate")
		if err != nil {
			return err
		}

		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		inv, err := e.invoices.AddLineItem(cmd.Context(), invoiceID, invoicing.AddLineItemInput{
			Description: description,
			Quantity:    quantity,
			UnitPrice:   unitPrice,
			DiscountPct: discount,
			TaxRate:     taxRate,
		})
		if err != nil {
			return err
		}
		return printJSON(invoiceView(inv))
	},
}

var invoiceIssueCmd = &cobra.Command{
	Use:   "issue <invoice-id>",
	Short: "Mark a draft invoice as sent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		invoiceID, err := idArg(args[0])
		if err != nil {
			return err
		}

		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		inv, err := e.invoices.IssueInvoice(cmd.Context(), invoiceID)
		if err != nil {
			return err
		}
		return printJSON(invoiceView(inv))
	},
}

var invoicePayCmd = &cobra.Command{
	Use:   "pay <invoice-id>",
	Short: "Record a payment against a sent invoice",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		invoiceID, err := idArg(args[0])
		if err != nil {
			return err
		}
		amount, err := decimalFlag(cmd, "amount")
		if err != nil {
			return err
		}
		method, _ := cmd.Flags().GetString("method")
		paymentDate, err := dateFlag(cmd, "date")
		if err != nil {
			return err
		}
		if paymentDate.IsZero() {
			paymentDate = time.Now().UTC()
		}
		reference, _ := cmd.Flags().GetString("reference")
		key, _ := cmd.Flags().GetString("idempotency-key")

		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		inv, payment, err := e.invoices.RecordPayment(cmd.Context(), invoiceID, invoicing.RecordPaymentInput{
			PaymentDate:    paymentDate,
			Amount:         amount,
			Method:         invoicing.PaymentMethod(method),
			Reference:      reference,
			IdempotencyKey: key,
		})
		if err != nil {
			return err
		}
		return printJSON(struct {
			Invoice paymentInvoiceView `json:"invoice"`
			Payment paymentView        `json:"payment"`
		}{
			Invoice: paymentInvoiceView{
				Number:     inv.Number,
				Status:     string(inv.Status),
				AmountPaid: inv.AmountPaid,
				Balance:    inv.Balance,
			},
			Payment: paymentView{
				ID:          payment.ID,
				PaymentDate: payment.PaymentDate.Format("2006-01-02"),
				Amount:      payment.Amount,
				Method:      string(payment.Method),
				Reference:   payment.Reference,
			},
		})
	},
}

var invoiceShowCmd = &cobra.Command{
	Use:   "show <invoice-id>",
	Short: "Show an invoice with its lines and payment history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		invoiceID, err := idArg(args[0])
		if err != nil {
			return err
		}

		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		details, err := e.invoices.GetInvoiceWithDetails(cmd.Context(), invoiceID)
		if err != nil {
			return err
		}
		view := detailView{
			InvoiceView:  invoiceView(&details.Invoice),
			CustomerName: details.CustomerName,
		}
		for _, p := range details.Payments {
			view.Payments = append(view.Payments, paymentView{
				ID:          p.ID,
				PaymentDate: p.PaymentDate.Format("2006-01-02"),
				Amount:      p.Amount,
				Method:      string(p.Method),
				Reference:   p.Reference,
			})
		}
		return printJSON(view)
	},
}

var agingCmd = &cobra.Command{
	Use:   "aging",
	Short: "Report outstanding balances bucketed by days past due",
	RunE: func(cmd *cobra.Command, args []string) error {
		asOf, err := dateFlag(cmd, "as-of")
		if err != nil {
			return err
		}

		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := cmd.Context()
		if asOf.IsZero() {
			asOf = time.Now().UTC()
		}

		// Redis is best effort here; without it the cache degrades to a
		// direct computation.
		var redisClient *redis.Client
		if client, err := cache.New(ctx, e.cfg.RedisAddr); err == nil {
			redisClient = client
			defer func() { _ = client.Close() }()
		}
		summaries := invoicing.NewSummaryCache(redisClient, e.cfg.SummaryCacheTTL)

		key, err := summaries.BuildKey(ctx, invoicing.AgingKey(asOf)...)
		if err != nil {
			return err
		}
		var report invoicing.AgingBucket
		err = summaries.FetchJSON(ctx, key, &report, func(ctx context.Context) (interface{}, error) {
			return e.invoices.CalculateAging(ctx, asOf)
		})
		if err != nil {
			return err
		}
		return printJSON(struct {
			Current   decimal.Decimal `json:"current"`
			Days30    decimal.Decimal `json:"1_30"`
			Days60    decimal.Decimal `json:"31_60"`
			Days90    decimal.Decimal `json:"61_90"`
			Days90Pls decimal.Decimal `json:"over_90"`
		}{report.Current, report.Bucket30, report.Bucket60, report.Bucket90, report.Bucket120})
	},
}

// InvoiceView is the JSON shape printed for invoice commands.
type InvoiceView struct {
	ID            int64           `json:"id"`
	Number        string          `json:"number"`
	CustomerID    int64           `json:"customer_id"`
	Status        string          `json:"status"`
	IssueDate     string          `json:"issue_date"`
	DueDate       string          `json:"due_date"`
	PaymentTerms  string          `json:"payment_terms,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	Lines         []lineView      `json:"lines,omitempty"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	TotalTax      decimal.Decimal `json:"total_tax"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	Balance       decimal.Decimal `json:"balance"`
}

type lineView struct {
	ID          int64           `json:"id"`
	Description string          `json:"description"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Total       decimal.Decimal `json:"total"`
}

type paymentView struct {
	ID          int64           `json:"id"`
	PaymentDate string          `json:"payment_date"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method"`
	Reference   string          `json:"reference,omitempty"`
}

type paymentInvoiceView struct {
	Number     string          `json:"number"`
	Status     string          `json:"status"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
	Balance    decimal.Decimal `json:"balance"`
}

type detailView struct {
	InvoiceView
	CustomerName string        `json:"customer_name"`
	Payments     []paymentView `json:"payments,omitempty"`
}

func invoiceView(inv *invoicing.Invoice) InvoiceView {
	view := InvoiceView{
		ID:            inv.ID,
		Number:        inv.Number,
		CustomerID:    inv.CustomerID,
		Status:        string(inv.Status),
		IssueDate:     inv.IssueDate.Format("2006-01-02"),
		DueDate:       inv.DueDate.Format("2006-01-02"),
		PaymentTerms:  inv.PaymentTerms,
		Notes:         inv.Notes,
		Subtotal:      inv.Subtotal,
		TotalDiscount: inv.TotalDiscount,
		TotalTax:      inv.TotalTax,
		TotalAmount:   inv.TotalAmount,
		AmountPaid:    inv.AmountPaid,
		Balance:       inv.Balance,
	}
	for _, line := range inv.Lines {
		view.Lines = append(view.Lines, lineView{
			ID:          line.ID,
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			DiscountPct: line.DiscountPct,
			TaxRate:     line.TaxRate,
			Total:       line.Total,
		})
	}
	return view
}

func idArg(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func dateFlag(cmd *cobra.Command, name string) (time.Time, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q, want YYYY-MM-DD", name, raw)
	}
	return t, nil
}

func decimalFlag(cmd *cobra.Command, name string) (decimal.Decimal, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --%s %q", name, raw)
	}
	return d, nil
}

func init() {
	invoiceCreateCmd.Flags().Int64("customer", 0, "Customer ID")
	invoiceCreateCmd.Flags().String("issue-date", "", "Issue date (YYYY-MM-DD)")
	invoiceCreateCmd.Flags().String("due-date", "", "Due date (YYYY-MM-DD)")
	invoiceCreateCmd.Flags().String("terms", "", "Payment terms text")
	invoiceCreateCmd.Flags().String("notes", "", "Invoice notes")
	_ = invoiceCreateCmd.MarkFlagRequired("customer")
	_ = invoiceCreateCmd.MarkFlagRequired("issue-date")
	_ = invoiceCreateCmd.MarkFlagRequired("due-date")

	invoiceAddLineCmd.Flags().String("description", "", "Line description")
	invoiceAddLineCmd.Flags().Int64("quantity", 0, "Quantity")
	invoiceAddLineCmd.Flags().String("unit-price", "", "Unit price")
	invoiceAddLineCmd.Flags().String("discount", "0", "Discount percentage 0-100")
	invoiceAddLineCmd.Flags().String("tax-rate", "0", "Tax rate percentage")
	_ = invoiceAddLineCmd.MarkFlagRequired("description")
	_ = invoiceAddLineCmd.MarkFlagRequired("quantity")
	_ = invoiceAddLineCmd.MarkFlagRequired("unit-price")

	invoicePayCmd.Flags().String("amount", "", "Payment amount")
	invoicePayCmd.Flags().String("method", "", "CREDIT_CARD, BANK_TRANSFER, CHECK or CASH")
	invoicePayCmd.Flags().String("date", "", "Payment date (YYYY-MM-DD), defaults to today")
	invoicePayCmd.Flags().String("reference", "", "External payment reference")
	invoicePayCmd.Flags().String("idempotency-key", "", "Client-supplied duplicate guard")
	_ = invoicePayCmd.MarkFlagRequired("amount")
	_ = invoicePayCmd.MarkFlagRequired("method")

	agingCmd.Flags().String("as-of", "", "Reference date (YYYY-MM-DD), defaults to today")

	invoiceCmd.AddCommand(invoiceCreateCmd, invoiceAddLineCmd, invoiceIssueCmd, invoicePayCmd, invoiceShowCmd)
	rootCmd.AddCommand(invoiceCmd, agingCmd)
}
