package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/peykaro/whatsapp-dispatch/models"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*(\d+)\s*\}\}`)

// Virtual fields the renderer computes instead of reading from the
// document.
var (
	balanceAliases = map[string]bool{
		"ledger_balance":     true,
		"party_balance":      true,
		"outstanding_amount": true,
	}
	itemsAliases = map[string]bool{
		"items_summary": true,
		"item_details":  true,
		"items":         true,
	}
)

// BalanceProvider resolves party ledger balances for the balance
// virtual fields. The second return is false when the lookup cannot
// be served.
type BalanceProvider interface {
	PartyBalance(ctx context.Context, partyType, party string) (float64, bool)
}

// TemplateRenderer fills positional {{1}} placeholders and sources
// their values from body parameters, per-recipient data or the
// reference document.
type TemplateRenderer struct {
	balances BalanceProvider
}

func NewTemplateRenderer(balances BalanceProvider) *TemplateRenderer {
	return &TemplateRenderer{balances: balances}
}

// Render substitutes 1-indexed placeholders. Indices beyond the
// parameter list render as empty strings.
func (r *TemplateRenderer) Render(body string, params []string) string {
	return placeholderPattern.ReplaceAllStringFunc(body, func(match string) string {
		idxStr := placeholderPattern.FindStringSubmatch(match)[1]
		idx, err := strconv.Atoi(idxStr)
		if err != nil || idx < 1 || idx > len(params) {
			return ""
		}
		return params[idx-1]
	})
}

// PlaceholderCount returns the highest placeholder index in the body
func (r *TemplateRenderer) PlaceholderCount(body string) int {
	max := 0
	for _, m := range placeholderPattern.FindAllStringSubmatch(body, -1) {
		if idx, err := strconv.Atoi(m[1]); err == nil && idx > max {
			max = idx
		}
	}
	return max
}

// ResolveParams produces the positional parameter list for one send.
// Priority: explicit body-param JSON, then per-recipient data keyed by
// the template's field names, then document lookups, then a
// name-based fallback for templates with placeholders but no declared
// fields.
func (r *TemplateRenderer) ResolveParams(ctx context.Context, tpl *models.WhatsAppTemplate, bodyParam string, aux models.AuxData, doc *DocumentSnapshot) []string {
	if bodyParam != "" {
		if params := parseBodyParam(bodyParam); len(params) > 0 {
			return params
		}
	}

	if tpl == nil {
		return nil
	}

	if len(tpl.FieldNames) > 0 {
		params := make([]string, 0, len(tpl.FieldNames))
		for _, field := range tpl.FieldNames {
			if aux != nil {
				if v, ok := aux[field]; ok && v != "" {
					params = append(params, v)
					continue
				}
			}
			params = append(params, r.lookupField(ctx, doc, field))
		}
		return params
	}

	if r.PlaceholderCount(tpl.Body) > 0 && doc != nil {
		first := doc.Get("customer_name")
		if first == "" {
			first = doc.Get("contact_display")
		}
		return []string{first, doc.Name}
	}

	return nil
}

// lookupField reads one document field, computing the balance and
// items virtual fields when the aliases match and the data is there.
func (r *TemplateRenderer) lookupField(ctx context.Context, doc *DocumentSnapshot, field string) string {
	if doc == nil {
		return ""
	}

	if balanceAliases[field] && r.balances != nil {
		partyType, party := docParty(doc)
		if party != "" {
			if balance, ok := r.balances.PartyBalance(ctx, partyType, party); ok {
				return fmt.Sprintf("%.2f", balance)
			}
		}
	}

	if itemsAliases[field] {
		if summary := itemsSummary(doc.Get("items")); summary != "" {
			return summary
		}
	}

	return doc.Get(field)
}

// docParty extracts the accounting party the document belongs to
func docParty(doc *DocumentSnapshot) (string, string) {
	if pt, p := doc.Get("party_type"), doc.Get("party"); pt != "" && p != "" {
		return pt, p
	}
	if c := doc.Get("customer"); c != "" {
		return "Customer", c
	}
	if s := doc.Get("supplier"); s != "" {
		return "Supplier", s
	}
	return "", ""
}

// lineItem is the shape expected inside a document's items JSON
type lineItem struct {
	ItemName string  `json:"item_name"`
	Qty      float64 `json:"qty"`
	Rate     float64 `json:"rate"`
	Amount   float64 `json:"amount"`
}

// itemsSummary renders a document's line items as one line per item
func itemsSummary(itemsJSON string) string {
	if itemsJSON == "" {
		return ""
	}
	var items []lineItem
	if err := json.Unmarshal([]byte(itemsJSON), &items); err != nil || len(items) == 0 {
		return ""
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, fmt.Sprintf("%s x %s = %.2f", it.ItemName, formatQty(it.Qty), it.Amount))
	}
	return strings.Join(lines, "\n")
}

func formatQty(q float64) string {
	if q == float64(int64(q)) {
		return strconv.FormatInt(int64(q), 10)
	}
	return strconv.FormatFloat(q, 'f', -1, 64)
}

// parseBodyParam accepts either a JSON array or a JSON object keyed by
// numeric strings. Object keys sort numerically, so "10" follows "9".
func parseBodyParam(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var asList []any
	if err := json.Unmarshal([]byte(raw), &asList); err == nil {
		params := make([]string, 0, len(asList))
		for _, v := range asList {
			params = append(params, anyToString(v))
		}
		return params
	}

	var asMap map[string]any
	if err := json.Unmarshal([]byte(raw), &asMap); err == nil {
		keys := make([]string, 0, len(asMap))
		for k := range asMap {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			ni, erri := strconv.Atoi(keys[i])
			nj, errj := strconv.Atoi(keys[j])
			if erri == nil && errj == nil {
				return ni < nj
			}
			return keys[i] < keys[j]
		})
		params := make([]string, 0, len(keys))
		for _, k := range keys {
			params = append(params, anyToString(asMap[k]))
		}
		return params
	}

	return nil
}

func anyToString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
