package extract

import (
	"context"
	"regexp"
	"strings"
)

// Narrative handles contracts that phrase fields as prose instead of labeled
// form fields: "John to seller: ...", "the property ... is known as ...".
// The seller pattern tolerates the "ia/are" misread that OCR makes of
// "is/are" on scanned forms.
type Narrative struct{}

func (Narrative) Name() string { return "narrative" }

var (
	reNarrBuyer    = regexp.MustCompile(`(?i)(\w+)\s+to seller:`)
	reNarrSeller   = regexp.MustCompile(`(?i)Seller\(s\)\s*i[sa]/are_(\w+)`)
	reNarrProperty = regexp.MustCompile(`(?i)is known as\s*([^,]+,\s*[^,]+,\s*[^,]+,\s*\d+)`)
	reNarrPrice    = regexp.MustCompile(`\$\s*([\d,]+)`)
	reNarrDate     = regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{2,4})`)
)

func (Narrative) Extract(_ context.Context, text string) Record {
	rec := NewRecord()
	if m := reNarrBuyer.FindStringSubmatch(text); m != nil {
		rec.BuyerName = strings.TrimSpace(m[1])
	}
	if m := reNarrSeller.FindStringSubmatch(text); m != nil {
		rec.SellerName = strings.TrimSpace(m[1])
	}
	if m := reNarrProperty.FindStringSubmatch(text); m != nil {
		rec.PropertyAddress = strings.TrimSpace(m[1])
	}
	if m := reNarrPrice.FindStringSubmatch(text); m != nil {
		rec.OfferPrice = "$" + strings.TrimSpace(m[1])
	}
	if m := reNarrDate.FindStringSubmatch(text); m != nil {
		rec.KeyDates = strings.TrimSpace(m[1])
	}
	return rec
}
