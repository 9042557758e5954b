package extract

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/MechanicalMaster/Universal-Classifier/internal/domain"
)

// rawEnvelope is the extractor's top-level payload shape.
type rawEnvelope struct {
	Documents []rawDocument `json:"documents"`
}

type rawDocument struct {
	FileName          string                     `json:"file_name"`
	DocumentClass     *string                    `json:"document_class"`
	Entities          map[string]json.RawMessage `json:"entities"`
	Tables            []rawTable                 `json:"tables"`
	TextContent       string                     `json:"text_content"`
	OverallConfidence float64                    `json:"overall_confidence"`
}

type rawTable struct {
	Title          string              `json:"title"`
	Headers        []string            `json:"headers"`
	Rows           [][]json.RawMessage `json:"rows"`
	RowConfidences []float64           `json:"row_confidences"`
}

// Parse validates the raw response content for one image unit and produces
// its normalized extraction result. The content covers exactly one image, so
// exactly one document entry is expected; extras are ignored with a defect
// note. Any structural problem yields a malformed_response error carrying
// the offending payload.
func Parse(content string) (*domain.ExtractionResult, *domain.Error) {
	cleaned := stripCodeFences(content)
	if strings.TrimSpace(cleaned) == "" {
		return nil, domain.MalformedError("empty response content", content, nil)
	}

	var env rawEnvelope
	if err := json.Unmarshal([]byte(cleaned), &env); err != nil {
		return nil, domain.MalformedError("response is not valid JSON", content, err)
	}
	if len(env.Documents) == 0 {
		return nil, domain.MalformedError("response has no documents array", content, nil)
	}

	doc := env.Documents[0]
	if doc.DocumentClass == nil {
		return nil, domain.MalformedError("document entry missing document_class", content, nil)
	}

	res := &domain.ExtractionResult{
		Entities:          map[string]domain.Field{},
		TextContent:       doc.TextContent,
		OverallConfidence: clampConfidence(doc.OverallConfidence),
	}
	if len(env.Documents) > 1 {
		res.Defects = append(res.Defects, fmt.Sprintf("response carried %d documents for one image; extras dropped", len(env.Documents)))
	}

	class := strings.ToUpper(strings.TrimSpace(*doc.DocumentClass))
	if domain.KnownDocumentClasses[class] {
		res.DocumentClass = class
	} else {
		res.DocumentClass = domain.ClassOther
		res.Defects = append(res.Defects, fmt.Sprintf("unknown document class %q coerced to OTHER", *doc.DocumentClass))
	}

	flattenEntities(res, "", doc.Entities)
	normalizeEntities(res)
	convertTables(res, doc.Tables)

	return res, nil
}

// flattenEntities walks the nested entity structure and records every leaf
// field under a dotted, indexed key: banking.ifsc_code, promoters[0].pan_number.
func flattenEntities(res *domain.ExtractionResult, prefix string, entities map[string]json.RawMessage) {
	keys := make([]string, 0, len(entities))
	for k := range entities {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		flattenValue(res, joinKey(prefix, k), entities[k])
	}
}

func flattenValue(res *domain.ExtractionResult, key string, raw json.RawMessage) {
	trimmed := strings.TrimSpace(string(raw))
	switch {
	case trimmed == "" || trimmed == "null":
		return
	case strings.HasPrefix(trimmed, "["):
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			res.Defects = append(res.Defects, fmt.Sprintf("%s: unreadable array dropped", key))
			return
		}
		for i, item := range items {
			flattenValue(res, fmt.Sprintf("%s[%d]", key, i), item)
		}
	case strings.HasPrefix(trimmed, "{"):
		if f, ok := asField(raw); ok {
			res.Entities[key] = f
			return
		}
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(raw, &nested); err != nil {
			res.Defects = append(res.Defects, fmt.Sprintf("%s: unreadable object dropped", key))
			return
		}
		flattenEntities(res, key, nested)
	default:
		// Bare scalar, e.g. the "year" inside a financials entry.
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			var n json.Number
			if err := json.Unmarshal(raw, &n); err != nil {
				res.Defects = append(res.Defects, fmt.Sprintf("%s: unreadable value dropped", key))
				return
			}
			s = n.String()
		}
		res.Entities[key] = domain.Field{Value: s, Confidence: 1}
	}
}

// asField reports whether the object is a leaf field: it has a "value" key
// and no deeper structure we recognize.
func asField(raw json.RawMessage) (domain.Field, bool) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return domain.Field{}, false
	}
	if _, ok := probe["value"]; !ok {
		return domain.Field{}, false
	}

	var f struct {
		Value           json.RawMessage `json:"value"`
		NormalizedValue json.RawMessage `json:"normalized_value"`
		Confidence      float64         `json:"confidence"`
		Source          domain.Source   `json:"source"`
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return domain.Field{}, false
	}
	return domain.Field{
		Value:           scalarString(f.Value),
		NormalizedValue: scalarString(f.NormalizedValue),
		Confidence:      clampConfidence(f.Confidence),
		Source:          f.Source,
	}, true
}

// scalarString renders a JSON scalar as its plain text. The extractor mixes
// strings and numbers freely in value positions.
func scalarString(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return trimmed
}

func normalizeEntities(res *domain.ExtractionResult) {
	keys := make([]string, 0, len(res.Entities))
	for k := range res.Entities {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		f := res.Entities[k]
		if defect := normalizeField(k, &f); defect != "" {
			res.Defects = append(res.Defects, defect)
		}
		res.Entities[k] = f
	}
}

// convertTables copies well-formed tables onto the result. Rows whose width
// disagrees with the header are dropped and recorded as defects; missing row
// confidences default to zero.
func convertTables(res *domain.ExtractionResult, tables []rawTable) {
	for ti, rt := range tables {
		if len(rt.Headers) == 0 {
			res.Defects = append(res.Defects, fmt.Sprintf("table %d has no headers; dropped", ti))
			continue
		}
		t := domain.Table{Title: rt.Title, Headers: rt.Headers}
		for ri, row := range rt.Rows {
			if len(row) != len(rt.Headers) {
				res.Defects = append(res.Defects, fmt.Sprintf("table %d row %d has %d cells, want %d; dropped", ti, ri, len(row), len(rt.Headers)))
				continue
			}
			cells := make([]string, len(row))
			for ci, cell := range row {
				cells[ci] = scalarString(cell)
			}
			t.Rows = append(t.Rows, cells)
			if ri < len(rt.RowConfidences) {
				t.RowConfidences = append(t.RowConfidences, clampConfidence(rt.RowConfidences[ri]))
			} else {
				t.RowConfidences = append(t.RowConfidences, 0)
			}
		}
		res.Tables = append(res.Tables, t)
	}
}

// stripCodeFences removes a surrounding markdown code block, which some
// models wrap JSON in despite instructions.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
