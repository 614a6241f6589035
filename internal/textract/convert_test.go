package textract

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func expenseField(typeText, label, value string, confidence float32) types.ExpenseField {
	f := types.ExpenseField{
		ValueDetection: &types.ExpenseDetection{
			Text:       aws.String(value),
			Confidence: aws.Float32(confidence),
		},
	}
	if typeText != "" {
		f.Type = &types.ExpenseType{Text: aws.String(typeText)}
	}
	if label != "" {
		f.LabelDetection = &types.ExpenseDetection{Text: aws.String(label)}
	}
	return f
}

var _ = Describe("convertExpenseDocuments", func() {
	It("maps summary fields and line item groups onto pages", func() {
		docs := []types.ExpenseDocument{{
			ExpenseIndex: aws.Int32(1),
			SummaryFields: []types.ExpenseField{
				expenseField("INVOICE_RECEIPT_ID", "", "INV-100", 99),
			},
			LineItemGroups: []types.LineItemGroup{{
				LineItems: []types.LineItemFields{{
					LineItemExpenseFields: []types.ExpenseField{
						expenseField("ITEM", "Description", "Widget", 95),
						expenseField("AMOUNT", "Amount", "200.00", 92),
					},
				}},
			}},
		}}

		pages := convertExpenseDocuments(docs)
		Expect(pages).To(HaveLen(1))
		Expect(pages[0].PageIndex).To(Equal(0))
		Expect(pages[0].Summary).To(HaveLen(1))
		Expect(pages[0].Summary[0].Type).To(Equal("INVOICE_RECEIPT_ID"))
		Expect(pages[0].Summary[0].Value).To(Equal("INV-100"))
		Expect(pages[0].Summary[0].Confidence).To(BeNumerically("~", 99, 0.001))
		Expect(pages[0].Tables).To(HaveLen(1))
		Expect(pages[0].Tables[0].Rows).To(HaveLen(1))
		Expect(pages[0].Tables[0].Rows[0].Fields).To(HaveLen(2))
		Expect(pages[0].Tables[0].Rows[0].Fields[1].Label).To(Equal("Amount"))
	})

	It("numbers documents without an expense index by arrival order", func() {
		pages := convertExpenseDocuments([]types.ExpenseDocument{{}, {}})
		Expect(pages).To(HaveLen(2))
		Expect(pages[0].PageIndex).To(Equal(0))
		Expect(pages[1].PageIndex).To(Equal(1))
	})
})

var _ = Describe("keyValuesFromBlocks", func() {
	word := func(id, text string) types.Block {
		return types.Block{
			BlockType: types.BlockTypeWord,
			Id:        aws.String(id),
			Text:      aws.String(text),
		}
	}
	rel := func(t types.RelationshipType, ids ...string) types.Relationship {
		return types.Relationship{Type: t, Ids: ids}
	}

	It("joins child words into key and value text", func() {
		blocks := []types.Block{
			{
				BlockType:     types.BlockTypeKeyValueSet,
				Id:            aws.String("k1"),
				EntityTypes:   []types.EntityType{types.EntityTypeKey},
				Confidence:    aws.Float32(88),
				Relationships: []types.Relationship{rel(types.RelationshipTypeChild, "w1", "w2"), rel(types.RelationshipTypeValue, "v1")},
			},
			{
				BlockType:     types.BlockTypeKeyValueSet,
				Id:            aws.String("v1"),
				EntityTypes:   []types.EntityType{types.EntityTypeValue},
				Relationships: []types.Relationship{rel(types.RelationshipTypeChild, "w3")},
			},
			word("w1", "Invoice"),
			word("w2", "Number"),
			word("w3", "INV-42"),
		}

		kvs := keyValuesFromBlocks(blocks)
		Expect(kvs).To(HaveLen(1))
		Expect(kvs[0].Key).To(Equal("Invoice Number"))
		Expect(kvs[0].Value).To(Equal("INV-42"))
		Expect(kvs[0].Confidence).To(BeNumerically("~", 88, 0.001))
	})

	It("renders selected checkboxes as X", func() {
		blocks := []types.Block{
			{
				BlockType:     types.BlockTypeKeyValueSet,
				Id:            aws.String("k1"),
				EntityTypes:   []types.EntityType{types.EntityTypeKey},
				Relationships: []types.Relationship{rel(types.RelationshipTypeChild, "w1"), rel(types.RelationshipTypeValue, "v1")},
			},
			{
				BlockType:     types.BlockTypeKeyValueSet,
				Id:            aws.String("v1"),
				EntityTypes:   []types.EntityType{types.EntityTypeValue},
				Relationships: []types.Relationship{rel(types.RelationshipTypeChild, "s1")},
			},
			word("w1", "Paid"),
			{
				BlockType:       types.BlockTypeSelectionElement,
				Id:              aws.String("s1"),
				SelectionStatus: types.SelectionStatusSelected,
			},
		}

		kvs := keyValuesFromBlocks(blocks)
		Expect(kvs).To(HaveLen(1))
		Expect(kvs[0].Value).To(Equal("X"))
	})

	It("lets a later duplicate key fill an earlier empty value only", func() {
		makeKV := func(keyID, wordID, keyText, valueID, valueWordID, valueText string) []types.Block {
			blocks := []types.Block{
				{
					BlockType:     types.BlockTypeKeyValueSet,
					Id:            aws.String(keyID),
					EntityTypes:   []types.EntityType{types.EntityTypeKey},
					Relationships: []types.Relationship{rel(types.RelationshipTypeChild, wordID), rel(types.RelationshipTypeValue, valueID)},
				},
				word(wordID, keyText),
			}
			value := types.Block{
				BlockType:   types.BlockTypeKeyValueSet,
				Id:          aws.String(valueID),
				EntityTypes: []types.EntityType{types.EntityTypeValue},
			}
			if valueText != "" {
				value.Relationships = []types.Relationship{rel(types.RelationshipTypeChild, valueWordID)}
				blocks = append(blocks, word(valueWordID, valueText))
			}
			blocks = append(blocks, value)
			return blocks
		}

		var blocks []types.Block
		blocks = append(blocks, makeKV("k1", "w1", "Terms", "v1", "", "")...)
		blocks = append(blocks, makeKV("k2", "w2", "terms", "v2", "w3", "Net 30")...)
		blocks = append(blocks, makeKV("k3", "w4", "TERMS", "v3", "w5", "Net 60")...)

		kvs := keyValuesFromBlocks(blocks)
		Expect(kvs).To(HaveLen(1))
		Expect(kvs[0].Value).To(Equal("Net 30"))
	})
})
