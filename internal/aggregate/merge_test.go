package aggregate

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/expenselens/invoice-extract-service/internal/models"
)

func page(index int, header map[models.FieldType]models.RawField, amounts ...string) models.AssembledPage {
	p := models.AssembledPage{
		Doc: models.ExpenseDocument{PageIndex: index, Header: header},
	}
	for _, a := range amounts {
		d := decimal.RequireFromString(a)
		p.Items = append(p.Items, models.NormalizedLineItem{Amount: &d})
		p.Doc.LineItems = append(p.Doc.LineItems, models.LineItemRow{Page: index})
	}
	return p
}

func headerWith(number string, numberConf float64, extra ...models.RawField) map[models.FieldType]models.RawField {
	h := make(map[models.FieldType]models.RawField)
	if number != "" {
		h[models.FieldInvoiceNumber] = models.RawField{
			Type: models.FieldInvoiceNumber, Value: number, Confidence: numberConf,
		}
	}
	for _, f := range extra {
		h[f.Type] = f
	}
	return h
}

var _ = Describe("Merge", func() {
	It("groups pages by normalized invoice number", func() {
		merged := Merge([]models.AssembledPage{
			page(0, headerWith("INV-100", 95), "10.00"),
			page(1, headerWith("inv 100", 90), "20.00"),
			page(2, headerWith("INV-200", 92), "30.00"),
		})

		Expect(merged).To(HaveLen(2))
		Expect(merged[0].LineItems).To(HaveLen(2))
		Expect(merged[0].SourcePages).To(Equal([]int{0, 1}))
		Expect(merged[1].SourcePages).To(Equal([]int{2}))
	})

	It("keeps the highest-confidence header field per type", func() {
		merged := Merge([]models.AssembledPage{
			page(0, headerWith("INV-100", 70)),
			page(1, headerWith("INV100", 96)),
		})

		Expect(merged).To(HaveLen(1))
		Expect(merged[0].Header[models.FieldInvoiceNumber].Value).To(Equal("INV100"))
	})

	It("takes the lowest page on confidence ties", func() {
		merged := Merge([]models.AssembledPage{
			page(1, headerWith("INV-100", 90)),
			page(0, headerWith("inv-100", 90)),
		})

		Expect(merged).To(HaveLen(1))
		Expect(merged[0].Header[models.FieldInvoiceNumber].Value).To(Equal("inv-100"))
	})

	It("puts pages without an invoice number in singleton groups", func() {
		merged := Merge([]models.AssembledPage{
			page(0, nil, "10.00"),
			page(1, nil, "20.00"),
		})
		Expect(merged).To(HaveLen(2))
	})

	It("concatenates line items in page order", func() {
		merged := Merge([]models.AssembledPage{
			page(1, headerWith("INV-100", 90), "20.00"),
			page(0, headerWith("INV-100", 90), "10.00"),
		})

		Expect(merged).To(HaveLen(1))
		Expect(merged[0].LineItems[0].Amount.String()).To(Equal("10"))
		Expect(merged[0].LineItems[1].Amount.String()).To(Equal("20"))
	})

	It("is independent of input ordering", func() {
		pages := []models.AssembledPage{
			page(0, headerWith("INV-100", 95), "10.00"),
			page(1, headerWith("INV-100", 90), "20.00"),
			page(2, headerWith("INV-200", 92), "30.00"),
		}
		reversed := []models.AssembledPage{pages[2], pages[1], pages[0]}

		a := Merge(pages)
		b := Merge(reversed)

		Expect(b).To(HaveLen(len(a)))
		for i := range a {
			Expect(b[i].SourcePages).To(Equal(a[i].SourcePages))
			Expect(b[i].Header).To(Equal(a[i].Header))
			Expect(b[i].LineItems).To(HaveLen(len(a[i].LineItems)))
		}
	})
})

var _ = Describe("SelectPrimary", func() {
	It("returns the single candidate untouched", func() {
		merged := Merge([]models.AssembledPage{page(0, headerWith("INV-100", 95), "10.00")})
		primary, discarded, warnings := SelectPrimary(merged)

		Expect(primary.Header[models.FieldInvoiceNumber].Value).To(Equal("INV-100"))
		Expect(discarded).To(BeEmpty())
		Expect(warnings).To(BeEmpty())
	})

	It("picks the candidate with the highest mean header confidence", func() {
		merged := Merge([]models.AssembledPage{
			page(0, headerWith("INV-1", 60)),
			page(1, headerWith("INV-2", 97)),
		})
		primary, discarded, warnings := SelectPrimary(merged)

		Expect(primary.Header[models.FieldInvoiceNumber].Value).To(Equal("INV-2"))
		Expect(discarded).To(HaveLen(1))
		Expect(warnings).To(HaveLen(1))
		Expect(warnings[0].Code).To(Equal(models.WarnMergeConflict))
	})

	It("breaks confidence ties by header completeness", func() {
		richer := headerWith("INV-2", 90, models.RawField{
			Type: models.FieldTotal, Value: "50.00", Confidence: 90,
		})
		merged := Merge([]models.AssembledPage{
			page(0, headerWith("INV-1", 90)),
			page(1, richer),
		})
		primary, _, _ := SelectPrimary(merged)

		Expect(primary.Header[models.FieldInvoiceNumber].Value).To(Equal("INV-2"))
	})
})
