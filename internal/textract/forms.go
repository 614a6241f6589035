package textract

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/expenselens/invoice-extract-service/internal/models"
)

// keyValuesFromBlocks walks the FORMS block graph and materializes the
// KEY_VALUE_SET pairs. The first non-empty value seen for a key wins; later
// pages may only fill keys whose earlier value was blank.
func keyValuesFromBlocks(blocks []types.Block) []models.KeyValue {
	byID := make(map[string]types.Block, len(blocks))
	for _, b := range blocks {
		byID[aws.ToString(b.Id)] = b
	}

	var kvs []models.KeyValue
	index := make(map[string]int)

	for _, b := range blocks {
		if b.BlockType != types.BlockTypeKeyValueSet || !isKeyBlock(b) {
			continue
		}

		key := blockText(b, byID)
		if key == "" {
			continue
		}

		value := ""
		for _, rel := range b.Relationships {
			if rel.Type != types.RelationshipTypeValue {
				continue
			}
			for _, id := range rel.Ids {
				vb, ok := byID[id]
				if !ok {
					continue
				}
				if t := blockText(vb, byID); t != "" {
					value = t
				}
			}
		}

		kv := models.KeyValue{
			Key:        key,
			Value:      value,
			Confidence: float64(aws.ToFloat32(b.Confidence)),
		}

		norm := strings.ToLower(key)
		if at, seen := index[norm]; seen {
			if kvs[at].Value == "" {
				kvs[at] = kv
			}
			continue
		}
		index[norm] = len(kvs)
		kvs = append(kvs, kv)
	}
	return kvs
}

func isKeyBlock(b types.Block) bool {
	for _, et := range b.EntityTypes {
		if et == types.EntityTypeKey {
			return true
		}
	}
	return false
}

// blockText joins the CHILD words of a block; selected selection elements
// (checkboxes) render as "X".
func blockText(b types.Block, byID map[string]types.Block) string {
	var parts []string
	for _, rel := range b.Relationships {
		if rel.Type != types.RelationshipTypeChild {
			continue
		}
		for _, id := range rel.Ids {
			child, ok := byID[id]
			if !ok {
				continue
			}
			switch child.BlockType {
			case types.BlockTypeWord:
				if t := aws.ToString(child.Text); t != "" {
					parts = append(parts, t)
				}
			case types.BlockTypeSelectionElement:
				if child.SelectionStatus == types.SelectionStatusSelected {
					parts = append(parts, "X")
				}
			}
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
