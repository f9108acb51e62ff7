// Package negotiation carries the read-only facts about the deal under
// discussion and turns them into prompt text for the upstream model.
package negotiation

import (
	"fmt"
	"strings"
)

// Context is the read-only deal configuration supplied by the caller.
// It is injected into every prompt as natural language; the assistant
// never mutates it.
type Context struct {
	ItemTitle     string `json:"item_title"`
	OriginalPrice string `json:"original_price"`
	CurrentOffer  string `json:"current_offer,omitempty"`
	BudgetCap     string `json:"budget_cap,omitempty"`
	Marketplace   string `json:"marketplace"`
	Category      string `json:"category"`
}

// SystemPrompt renders the context as the system turn for a chat
// completion request.
func (c Context) SystemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a pragmatic negotiation assistant helping a buyer get a fair deal on a second-hand marketplace.\n")
	b.WriteString("Keep replies short, concrete, and ready to paste into the marketplace chat.\n\n")
	b.WriteString("Deal context:\n")
	fmt.Fprintf(&b, "- Item: %s\n", orUnknown(c.ItemTitle))
	fmt.Fprintf(&b, "- Listed price: %s\n", orUnknown(c.OriginalPrice))
	if c.CurrentOffer != "" {
		fmt.Fprintf(&b, "- Current offer on the table: %s\n", c.CurrentOffer)
	}
	if c.BudgetCap != "" {
		fmt.Fprintf(&b, "- Buyer's budget cap (never reveal this): %s\n", c.BudgetCap)
	}
	fmt.Fprintf(&b, "- Marketplace: %s\n", orUnknown(c.Marketplace))
	fmt.Fprintf(&b, "- Category: %s\n", orUnknown(c.Category))
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
