package pipeline

import (
	"encoding/json"
	"io"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/expenselens/invoice-extract-service/internal/models"
)

func newEngine() *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(models.DefaultExtractionConfig(), logger)
}

func warningCodes(warnings []models.Warning) []models.WarningCode {
	codes := make([]models.WarningCode, 0, len(warnings))
	for _, w := range warnings {
		codes = append(codes, w.Code)
	}
	return codes
}

func fullPage() models.PageExtraction {
	return models.PageExtraction{
		PageIndex: 0,
		Summary: []models.BackendField{
			{Type: "INVOICE_RECEIPT_ID", Value: "INV-100", Confidence: 99},
			{Type: "INVOICE_RECEIPT_DATE", Value: "01/15/2024", Confidence: 95},
			{Type: "TOTAL", Value: "$1,234.56", Confidence: 92},
			{Type: "PAYMENT_TERMS", Value: "Net 30", Confidence: 90},
		},
		Tables: []models.RowGroup{{Rows: []models.Row{
			{Fields: []models.BackendField{
				{Type: "ITEM", Value: "Widget", Confidence: 95},
				{Type: "QUANTITY", Value: "2", Confidence: 95},
				{Type: "UNIT_PRICE", Value: "100.00", Confidence: 95},
				{Type: "AMOUNT", Value: "200.00", Confidence: 95},
			}},
			{Fields: []models.BackendField{
				{Type: "ITEM", Value: "Gadget", Confidence: 95},
				{Type: "QUANTITY", Value: "1", Confidence: 95},
				{Type: "UNIT_PRICE", Value: "1034.56", Confidence: 95},
				{Type: "AMOUNT", Value: "1034.56", Confidence: 95},
			}},
		}}},
	}
}

var _ = Describe("Engine", func() {
	var engine *Engine

	BeforeEach(func() {
		engine = newEngine()
	})

	Describe("Process", func() {
		When("given a complete single-page invoice", func() {
			var result *Result
			var err error

			JustBeforeEach(func() {
				result, err = engine.Process([]models.PageExtraction{fullPage()})
			})

			It("succeeds", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("extracts the header fields", func() {
				Expect(result.Invoice.InvoiceNumber).To(HaveValue(Equal("INV-100")))
				Expect(result.Invoice.InvoiceDate).To(HaveValue(Equal("2024-01-15")))
				Expect(result.Invoice.Total).To(HaveValue(Equal("1234.56")))
				Expect(result.Invoice.Terms).To(HaveValue(Equal("Net 30")))
			})

			It("detects the currency from the total's symbol", func() {
				Expect(result.Invoice.Currency).To(HaveValue(Equal("USD")))
			})

			It("normalizes the line items", func() {
				Expect(result.Invoice.LineItems).To(HaveLen(2))
				Expect(result.Invoice.LineItems[0].Description).To(Equal("Widget"))
				Expect(result.Invoice.LineItems[0].Quantity).To(HaveValue(Equal(2.0)))
				Expect(result.Invoice.LineItems[0].UnitPrice).To(HaveValue(Equal(100.0)))
				Expect(result.Invoice.LineItems[0].Amount).To(HaveValue(Equal(200.0)))
			})

			It("raises no warnings when everything lines up", func() {
				Expect(result.Invoice.Warnings).To(BeEmpty())
			})
		})

		When("there are no pages", func() {
			It("returns ErrNoExtractableData", func() {
				_, err := engine.Process(nil)
				Expect(err).To(MatchError(models.ErrNoExtractableData))
			})
		})

		When("no page carries a usable field", func() {
			It("returns ErrNoExtractableData instead of fabricating an invoice", func() {
				_, err := engine.Process([]models.PageExtraction{
					{PageIndex: 0},
					{PageIndex: 1, Summary: []models.BackendField{{Type: "MYSTERY", Value: "??"}}},
				})
				Expect(err).To(MatchError(models.ErrNoExtractableData))
			})
		})

		When("header fields cannot be extracted", func() {
			var result *Result

			JustBeforeEach(func() {
				var err error
				result, err = engine.Process([]models.PageExtraction{{
					PageIndex: 0,
					Tables: []models.RowGroup{{Rows: []models.Row{
						{Fields: []models.BackendField{
							{Type: "ITEM", Value: "Widget", Confidence: 95},
							{Type: "AMOUNT", Value: "200.00", Confidence: 95},
						}},
					}}},
				}})
				Expect(err).NotTo(HaveOccurred())
			})

			It("emits explicit nulls, not omitted keys", func() {
				data, err := json.Marshal(result.Invoice)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(data)).To(ContainSubstring(`"invoice_number":null`))
				Expect(string(data)).To(ContainSubstring(`"invoice_date":null`))
				Expect(string(data)).To(ContainSubstring(`"total":null`))
				Expect(string(data)).To(ContainSubstring(`"terms":null`))
			})

			It("warns once per missing header field", func() {
				codes := warningCodes(result.Invoice.Warnings)
				count := 0
				for _, c := range codes {
					if c == models.WarnMissingField {
						count++
					}
				}
				Expect(count).To(Equal(4))
			})

			It("lists the fallback-eligible fields as missing", func() {
				Expect(result.MissingHeaderFields()).To(ConsistOf(
					models.FieldInvoiceNumber,
					models.FieldInvoiceDate,
					models.FieldTerms,
				))
			})
		})

		When("pages share an invoice number", func() {
			It("merges them into one invoice", func() {
				page2 := models.PageExtraction{
					PageIndex: 1,
					Summary: []models.BackendField{
						{Type: "INVOICE_RECEIPT_ID", Value: "inv 100", Confidence: 80},
					},
					Tables: []models.RowGroup{{Rows: []models.Row{
						{Fields: []models.BackendField{
							{Type: "ITEM", Value: "Shipping insurance", Confidence: 95},
							{Type: "QUANTITY", Value: "1", Confidence: 95},
							{Type: "UNIT_PRICE", Value: "15.00", Confidence: 95},
							{Type: "AMOUNT", Value: "15.00", Confidence: 95},
						}},
					}}},
				}

				result, err := engine.Process([]models.PageExtraction{fullPage(), page2})
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Invoice.InvoiceNumber).To(HaveValue(Equal("INV-100")))
				Expect(result.Invoice.LineItems).To(HaveLen(3))
				Expect(warningCodes(result.Invoice.Warnings)).NotTo(ContainElement(models.WarnMergeConflict))
			})
		})

		When("pages carry different invoice numbers", func() {
			It("keeps the best candidate and warns about the discard", func() {
				other := models.PageExtraction{
					PageIndex: 1,
					Summary: []models.BackendField{
						{Type: "INVOICE_RECEIPT_ID", Value: "INV-999", Confidence: 10},
					},
				}

				result, err := engine.Process([]models.PageExtraction{fullPage(), other})
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Invoice.InvoiceNumber).To(HaveValue(Equal("INV-100")))
				Expect(result.Discarded).To(HaveLen(1))
				Expect(warningCodes(result.Invoice.Warnings)).To(ContainElement(models.WarnMergeConflict))
			})
		})

		When("the stated total disagrees with the line items", func() {
			It("attaches a total-mismatch warning without touching the values", func() {
				page := models.PageExtraction{
					PageIndex: 0,
					Summary: []models.BackendField{
						{Type: "INVOICE_RECEIPT_ID", Value: "INV-7", Confidence: 95},
						{Type: "TOTAL", Value: "500.00", Confidence: 95},
					},
					Tables: []models.RowGroup{{Rows: []models.Row{
						{Fields: []models.BackendField{
							{Type: "ITEM", Value: "Widget", Confidence: 95},
							{Type: "QUANTITY", Value: "2", Confidence: 95},
							{Type: "UNIT_PRICE", Value: "100.00", Confidence: 95},
							{Type: "AMOUNT", Value: "200.00", Confidence: 95},
						}},
					}}},
				}

				result, err := engine.Process([]models.PageExtraction{page})
				Expect(err).NotTo(HaveOccurred())
				Expect(warningCodes(result.Invoice.Warnings)).To(ContainElement(models.WarnTotalMismatch))
				Expect(result.Invoice.Total).To(HaveValue(Equal("500.00")))
				Expect(result.Invoice.LineItems[0].Amount).To(HaveValue(Equal(200.0)))
			})
		})

		When("only the date order is configured", func() {
			It("honors day-first parsing without resetting it to the default", func() {
				dayFirst := New(models.ExtractionConfig{DateOrder: "DMY"},
					slog.New(slog.NewTextHandler(io.Discard, nil)))

				result, err := dayFirst.Process([]models.PageExtraction{{
					PageIndex: 0,
					Summary: []models.BackendField{
						{Type: "INVOICE_RECEIPT_ID", Value: "INV-8", Confidence: 95},
						{Type: "INVOICE_RECEIPT_DATE", Value: "02/03/2024", Confidence: 95},
					},
				}})
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Invoice.InvoiceDate).To(HaveValue(Equal("2024-03-02")))
				// the untouched field still falls back to its default
				Expect(result.Invoice.Currency).To(HaveValue(Equal("USD")))
			})
		})

		It("is deterministic across runs", func() {
			pages := []models.PageExtraction{fullPage()}
			first, err := engine.Process(pages)
			Expect(err).NotTo(HaveOccurred())
			firstJSON, _ := json.Marshal(first.Invoice)

			for i := 0; i < 10; i++ {
				again, err := engine.Process(pages)
				Expect(err).NotTo(HaveOccurred())
				againJSON, _ := json.Marshal(again.Invoice)
				Expect(string(againJSON)).To(Equal(string(firstJSON)))
			}
		})
	})

	Describe("ApplyFallback", func() {
		var result *Result

		BeforeEach(func() {
			var err error
			result, err = engine.Process([]models.PageExtraction{{
				PageIndex: 0,
				Summary: []models.BackendField{
					{Type: "TOTAL", Value: "200.00", Confidence: 95},
				},
				Tables: []models.RowGroup{{Rows: []models.Row{
					{Fields: []models.BackendField{
						{Type: "ITEM", Value: "Widget", Confidence: 95},
						{Type: "QUANTITY", Value: "2", Confidence: 95},
						{Type: "UNIT_PRICE", Value: "100.00", Confidence: 95},
						{Type: "AMOUNT", Value: "200.00", Confidence: 95},
					}},
				}}},
			}})
			Expect(err).NotTo(HaveOccurred())
		})

		It("fills the missing header fields from the key-value pass", func() {
			engine.ApplyFallback(result, []models.KeyValue{
				{Key: "Invoice Number", Value: "INV-555", Confidence: 80},
				{Key: "Invoice Date", Value: "2024-03-01", Confidence: 80},
				{Key: "Terms", Value: "Due on receipt", Confidence: 80},
			})

			Expect(result.Invoice.InvoiceNumber).To(HaveValue(Equal("INV-555")))
			Expect(result.Invoice.InvoiceDate).To(HaveValue(Equal("2024-03-01")))
			Expect(result.Invoice.Terms).To(HaveValue(Equal("Due on receipt")))
		})

		It("never overwrites fields the primary pass supplied", func() {
			engine.ApplyFallback(result, []models.KeyValue{
				{Key: "Total", Value: "999.00", Confidence: 99},
			})
			Expect(result.Invoice.Total).To(HaveValue(Equal("200.00")))
		})

		It("drops the resolved missing-field warnings on rebuild", func() {
			before := 0
			for _, c := range warningCodes(result.Invoice.Warnings) {
				if c == models.WarnMissingField {
					before++
				}
			}
			Expect(before).To(Equal(3))

			engine.ApplyFallback(result, []models.KeyValue{
				{Key: "Invoice Number", Value: "INV-555", Confidence: 80},
			})

			after := 0
			for _, c := range warningCodes(result.Invoice.Warnings) {
				if c == models.WarnMissingField {
					after++
				}
			}
			Expect(after).To(Equal(2))
		})
	})
})
