// Package extract reads label attributes (ingredients, net weight, nutrition
// facts) from product images and folds them into raw source records.
package extract

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rotisserie/eris"
)

// Result is a best-effort extraction. Any field may be empty.
type Result struct {
	Ingredients    string `json:"ingredients,omitempty"`
	NetWeight      string `json:"net_weight,omitempty"`
	NutritionFacts any    `json:"nutrition_facts,omitempty"`
}

// Empty reports whether nothing was extracted.
func (r Result) Empty() bool {
	return r.Ingredients == "" && r.NetWeight == "" && isBlank(r.NutritionFacts)
}

// Extractor pulls attributes from one image. Implementations return an empty
// Result rather than an error when the image cannot be read.
type Extractor interface {
	Extract(ctx context.Context, imageURL string) Result
}

// ParseResult decodes model output into a Result. Code fences are stripped
// and malformed JSON is repaired before decoding.
func ParseResult(text string) (Result, error) {
	text = stripFences(text)
	if text == "" {
		return Result{}, eris.New("extract: empty response")
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(text)
		if rerr != nil {
			return Result{}, eris.Wrap(rerr, "extract: repair json")
		}
		if err := json.Unmarshal([]byte(repaired), &raw); err != nil {
			return Result{}, eris.Wrap(err, "extract: decode repaired json")
		}
	}

	return Result{
		Ingredients:    stringField(raw, "ingredients", "ingredients_list", "Ingredients"),
		NetWeight:      stringField(raw, "net_weight", "netWeight", "Net Weight", "weight"),
		NutritionFacts: firstPresent(raw, "nutrition_facts", "nutritionFacts", "Nutrition Facts", "nutrition"),
	}, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && !isBlank(v) {
			return v
		}
	}
	return nil
}

func stringField(m map[string]any, keys ...string) string {
	switch v := firstPresent(m, keys...).(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, strings.TrimSpace(s))
			}
		}
		return strings.Join(parts, ", ")
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}
