package ordering

import (
	"fmt"
	"strings"

	"maitred/internal/menu"
	"maitred/internal/models"
)

// Reporter turns unresolved lines into customer-facing messages
type Reporter struct{}

// Messages returns one message per distinct original request and reason, in
// the order they were first reported. Alternatives reported for the same
// request and reason are merged without duplicates.
func (Reporter) Messages(items []models.RejectedItem) []string {
	type entry struct {
		item models.RejectedItem
		seen map[string]bool
	}

	type key struct {
		request string
		reason  models.RejectionReason
	}

	order := make([]key, 0, len(items))
	byKey := make(map[key]*entry, len(items))
	for _, it := range items {
		k := key{request: menu.Normalize(it.OriginalRequest), reason: it.Reason}
		e, ok := byKey[k]
		if !ok {
			e = &entry{
				item: models.RejectedItem{OriginalRequest: it.OriginalRequest, Reason: it.Reason},
				seen: make(map[string]bool),
			}
			byKey[k] = e
			order = append(order, k)
		}
		for _, alt := range it.Alternatives {
			if !e.seen[alt] {
				e.seen[alt] = true
				e.item.Alternatives = append(e.item.Alternatives, alt)
			}
		}
	}

	out := make([]string, 0, len(order))
	for _, k := range order {
		out = append(out, formatItem(byKey[k].item))
	}
	return out
}

// Report formats every unresolved line of a reconciliation result
func (r Reporter) Report(res *Result) []string {
	if res == nil {
		return []string{}
	}
	return r.Messages(res.Unresolved)
}

func formatItem(it models.RejectedItem) string {
	if it.Reason == models.ReasonAmbiguous {
		return FormatClarification(models.Clarification{
			OriginalRequest: it.OriginalRequest,
			Options:         it.Alternatives,
		})
	}
	if len(it.Alternatives) == 0 {
		return fmt.Sprintf("Sorry, we couldn't find %q and nothing close to it.", it.OriginalRequest)
	}
	return fmt.Sprintf("Sorry, we couldn't find %q. You could try: %s.",
		it.OriginalRequest, strings.Join(it.Alternatives, ", "))
}

// FormatClarification lists the options for an ambiguous request as a numbered list
func FormatClarification(c models.Clarification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "We have the following options related to %s -", c.OriginalRequest)
	for i, opt := range c.Options {
		fmt.Fprintf(&b, "\n%d. %s", i+1, opt)
	}
	return b.String()
}

// Summary renders the cart as shown to the customer before confirmation
func Summary(lines []models.CartLine) string {
	if len(lines) == 0 {
		return "Your cart is empty."
	}
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.String()
	}
	return "Your order:\n" + strings.Join(parts, "\n")
}
