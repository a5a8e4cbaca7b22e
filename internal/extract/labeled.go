package extract

import (
	"context"
	"regexp"
	"strings"
)

// Labeled matches explicit field labels followed by a colon and a value, the
// way pre-printed contract forms lay fields out. Because the input text has
// its whitespace collapsed, a value runs until the next known label (or end
// of text) rather than until a newline.
type Labeled struct{}

func (Labeled) Name() string { return "labeled" }

// stopLabels terminates a captured value at the start of the next labeled
// field. Without it every value would swallow the rest of the document once
// newlines are collapsed.
const stopLabels = `(?:Buyer|Purchaser|Seller|Vendor|Property to be Sold|Address|Offer Price|Key Dates?|Contract Date)`

var (
	reLabelBuyer    = labelPattern(`Buyer|Purchaser`)
	reLabelSeller   = labelPattern(`Seller|Vendor`)
	reLabelProperty = labelPattern(`Property to be Sold|Address`)
	reLabelDates    = labelPattern(`Key Dates?|Contract Date`)
	reLabelPrice    = regexp.MustCompile(`(?i)(?:Buy|Offer Price)\s*\$?\s*([\d,]+)`)
)

func labelPattern(names string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(?:` + names + `)[^:]*?:\s*(.+?)\s*(?:\b` + stopLabels + `\b[^:]*?:|$)`)
}

func (Labeled) Extract(_ context.Context, text string) Record {
	rec := NewRecord()
	if m := reLabelBuyer.FindStringSubmatch(text); m != nil {
		rec.BuyerName = strings.TrimSpace(m[1])
	}
	if m := reLabelSeller.FindStringSubmatch(text); m != nil {
		rec.SellerName = strings.TrimSpace(m[1])
	}
	if m := reLabelProperty.FindStringSubmatch(text); m != nil {
		rec.PropertyAddress = strings.TrimSpace(m[1])
	}
	if m := reLabelPrice.FindStringSubmatch(text); m != nil {
		rec.OfferPrice = "$" + m[1]
	}
	if m := reLabelDates.FindStringSubmatch(text); m != nil {
		rec.KeyDates = strings.TrimSpace(m[1])
	}
	return rec
}
