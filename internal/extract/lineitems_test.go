package extract

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/expenselens/invoice-extract-service/internal/models"
)

var _ = Describe("ExtractLineItems", func() {
	It("assigns cells by backend type", func() {
		rows := ExtractLineItems([]models.RowGroup{{Rows: []models.Row{{Fields: []models.BackendField{
			{Type: "ITEM", Value: "Widget", Confidence: 99},
			{Type: "QUANTITY", Value: "2", Confidence: 98},
			{Type: "UNIT_PRICE", Value: "100.00", Confidence: 97},
			{Type: "AMOUNT", Value: "200.00", Confidence: 96},
		}}}}}, 0)

		Expect(rows).To(HaveLen(1))
		Expect(rows[0].Cell(models.FieldDescription).Value).To(Equal("Widget"))
		Expect(rows[0].Cell(models.FieldQuantity).Value).To(Equal("2"))
		Expect(rows[0].Cell(models.FieldUnitPrice).Value).To(Equal("100.00"))
		Expect(rows[0].Cell(models.FieldAmount).Value).To(Equal("200.00"))
	})

	It("assigns cells by column label when the type is generic", func() {
		rows := ExtractLineItems([]models.RowGroup{{Rows: []models.Row{{Fields: []models.BackendField{
			{Label: "Description", Value: "Consulting"},
			{Label: "Hours", Value: "12"},
			{Label: "Rate", Value: "150.00"},
			{Label: "Line Total", Value: "1800.00"},
		}}}}}, 0)

		Expect(rows).To(HaveLen(1))
		Expect(rows[0].Cell(models.FieldQuantity).Value).To(Equal("12"))
		Expect(rows[0].Cell(models.FieldUnitPrice).Value).To(Equal("150.00"))
		Expect(rows[0].Cell(models.FieldAmount).Value).To(Equal("1800.00"))
	})

	When("no labels or types are usable", func() {
		It("places cells positionally: longest text is the description, shortest numeric the quantity", func() {
			rows := ExtractLineItems([]models.RowGroup{{Rows: []models.Row{{Fields: []models.BackendField{
				{Value: "Premium support retainer"},
				{Value: "3"},
				{Value: "250.00"},
				{Value: "750.00"},
			}}}}}, 0)

			Expect(rows).To(HaveLen(1))
			Expect(rows[0].Cell(models.FieldDescription).Value).To(Equal("Premium support retainer"))
			Expect(rows[0].Cell(models.FieldQuantity).Value).To(Equal("3"))
			Expect(rows[0].Cell(models.FieldUnitPrice).Value).To(Equal("250.00"))
			Expect(rows[0].Cell(models.FieldAmount).Value).To(Equal("750.00"))
		})

		It("picks the longest text as the description regardless of confidence", func() {
			rows := ExtractLineItems([]models.RowGroup{{Rows: []models.Row{{Fields: []models.BackendField{
				{Value: "Gadget", Confidence: 99},
				{Value: "Extended warranty coverage", Confidence: 40},
				{Value: "120.00", Confidence: 90},
			}}}}}, 0)

			Expect(rows).To(HaveLen(1))
			Expect(rows[0].Cell(models.FieldDescription).Value).To(Equal("Extended warranty coverage"))
		})

		It("does not displace a label-resolved description", func() {
			rows := ExtractLineItems([]models.RowGroup{{Rows: []models.Row{{Fields: []models.BackendField{
				{Type: "ITEM", Value: "Widget", Confidence: 95},
				{Value: "Thank you for your business", Confidence: 80},
				{Type: "AMOUNT", Value: "10.00", Confidence: 90},
			}}}}}, 0)

			Expect(rows).To(HaveLen(1))
			Expect(rows[0].Cell(models.FieldDescription).Value).To(Equal("Widget"))
		})
	})

	It("drops rows without a single numeric cell", func() {
		rows := ExtractLineItems([]models.RowGroup{{Rows: []models.Row{{Fields: []models.BackendField{
			{Type: "ITEM", Value: "Thank you for your business"},
		}}}}}, 0)
		Expect(rows).To(BeEmpty())
	})

	It("keeps the higher-confidence candidate for a contested cell", func() {
		rows := ExtractLineItems([]models.RowGroup{{Rows: []models.Row{{Fields: []models.BackendField{
			{Type: "AMOUNT", Value: "200.00", Confidence: 60},
			{Type: "LINE_TOTAL", Value: "210.00", Confidence: 95},
		}}}}}, 0)

		Expect(rows).To(HaveLen(1))
		Expect(rows[0].Cell(models.FieldAmount).Value).To(Equal("210.00"))
	})

	It("records the page on every cell", func() {
		rows := ExtractLineItems([]models.RowGroup{{Rows: []models.Row{{Fields: []models.BackendField{
			{Type: "AMOUNT", Value: "10.00"},
		}}}}}, 7)
		Expect(rows[0].Page).To(Equal(7))
		Expect(rows[0].Cell(models.FieldAmount).Page).To(Equal(7))
	})
})
