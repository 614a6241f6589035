// Package render produces the fixed-width console report of a normalized
// invoice, used by the one-shot CLI.
package render

import (
	"fmt"
	"strings"

	"github.com/expenselens/invoice-extract-service/internal/models"
)

var currencySymbols = map[string]string{
	"USD": "$",
	"CAD": "$",
	"AUD": "$",
	"MXN": "$",
	"DOP": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"INR": "₹",
}

const reportRule = "---------------------------------------------------------------"

// InvoiceReport renders the invoice as a fixed-width table with money cells
// formatted in the detected currency.
func InvoiceReport(inv models.NormalizedInvoice) string {
	currency := "USD"
	if inv.Currency != nil {
		currency = *inv.Currency
	}

	var b strings.Builder
	b.WriteString("\n================ INVOICE =================\n")
	fmt.Fprintf(&b, "Invoice Number : %s\n", orDash(inv.InvoiceNumber))
	fmt.Fprintf(&b, "Invoice Date   : %s\n", orDash(inv.InvoiceDate))
	fmt.Fprintf(&b, "Payment Terms  : %s\n", orDash(inv.Terms))
	b.WriteString(reportRule + "\n")
	fmt.Fprintf(&b, "%-40s %8s %14s %14s\n", "Description", "Qty", "Unit Price", "Amount")
	b.WriteString(reportRule + "\n")

	subtotal := 0.0
	summed := false
	for _, item := range inv.LineItems {
		desc := item.Description
		if desc == "" {
			desc = "-"
		}
		if r := []rune(desc); len(r) > 40 {
			desc = string(r[:40])
		}
		fmt.Fprintf(&b, "%-40s %8s %14s %14s\n",
			desc,
			quantityCell(item.Quantity),
			moneyCell(item.UnitPrice, currency),
			moneyCell(item.Amount, currency),
		)
		if item.Amount != nil {
			subtotal += *item.Amount
			summed = true
		}
	}

	b.WriteString(reportRule + "\n")
	if summed {
		fmt.Fprintf(&b, "%54s %14s\n", "Line Item Subtotal:", PrettyMoney(subtotal, currency))
	}
	fmt.Fprintf(&b, "%54s %14s\n", "Invoice Total:", totalCell(inv.Total, currency))
	b.WriteString("===============================================================\n")
	return b.String()
}

// PrettyMoney formats a value with the currency's symbol, falling back to
// "CODE value" for currencies without one.
func PrettyMoney(v float64, currency string) string {
	if sym, ok := currencySymbols[strings.ToUpper(currency)]; ok {
		return fmt.Sprintf("%s%.2f", sym, v)
	}
	return fmt.Sprintf("%s %.2f", strings.ToUpper(currency), v)
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func quantityCell(q *float64) string {
	if q == nil {
		return "-"
	}
	if *q == float64(int64(*q)) {
		return fmt.Sprintf("%d", int64(*q))
	}
	return fmt.Sprintf("%g", *q)
}

func moneyCell(v *float64, currency string) string {
	if v == nil {
		return "-"
	}
	return PrettyMoney(*v, currency)
}

func totalCell(total *string, currency string) string {
	if total == nil {
		return "-"
	}
	var v float64
	if _, err := fmt.Sscanf(*total, "%f", &v); err != nil {
		return *total
	}
	return PrettyMoney(v, currency)
}
