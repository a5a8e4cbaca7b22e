// Package extract turns aggregated OCR text into a structured contract field
// record. Extraction runs as an ordered chain of independent strategies whose
// candidates are merged per field by first-non-"Not Found"-wins precedence.
package extract

import (
	"regexp"
	"strings"

	"github.com/dealdocs/contractocr/constants"
)

// Record holds the five contract fields. Every field is either a non-empty
// trimmed string, the "Not Found" sentinel, or the "Error" sentinel from a
// failed entity-recognition attempt. Never empty, never untrimmed.
type Record struct {
	BuyerName       string `json:"buyerName"`
	SellerName      string `json:"sellerName"`
	PropertyAddress string `json:"propertyAddress"`
	OfferPrice      string `json:"offerPrice"`
	KeyDates        string `json:"keyDates"`
}

// NewRecord returns a record with every field set to the Not Found sentinel.
func NewRecord() Record {
	return Record{
		BuyerName:       constants.NotFound,
		SellerName:      constants.NotFound,
		PropertyAddress: constants.NotFound,
		OfferPrice:      constants.NotFound,
		KeyDates:        constants.NotFound,
	}
}

// Complete reports whether every field has been resolved, i.e. no field still
// carries the Not Found sentinel. The chain stops consulting further
// strategies once a record is complete.
func (r Record) Complete() bool {
	for _, v := range r.fields() {
		if *v == constants.NotFound {
			return false
		}
	}
	return true
}

// Merge folds a later strategy's candidate into the record. A field already
// resolved by an earlier strategy is never overridden; only fields still at
// Not Found take the candidate's value.
func (r *Record) Merge(cand Record) {
	dst := r.fields()
	src := cand.fields()
	for i := range dst {
		if *dst[i] != constants.NotFound {
			continue
		}
		if v := strings.TrimSpace(*src[i]); v != "" && v != constants.NotFound {
			*dst[i] = v
		}
	}
}

// Get returns the value of a field by its canonical name.
func (r Record) Get(field string) string {
	switch field {
	case constants.FieldBuyerName:
		return r.BuyerName
	case constants.FieldSellerName:
		return r.SellerName
	case constants.FieldPropertyAddress:
		return r.PropertyAddress
	case constants.FieldOfferPrice:
		return r.OfferPrice
	case constants.FieldKeyDates:
		return r.KeyDates
	}
	return ""
}

func (r *Record) fields() [5]*string {
	return [5]*string{&r.BuyerName, &r.SellerName, &r.PropertyAddress, &r.OfferPrice, &r.KeyDates}
}

func errorRecord() Record {
	return Record{
		BuyerName:       constants.Error,
		SellerName:      constants.Error,
		PropertyAddress: constants.Error,
		OfferPrice:      constants.Error,
		KeyDates:        constants.Error,
	}
}

var reWhitespace = regexp.MustCompile(`\s+`)

// NormalizeWhitespace collapses every run of whitespace, newlines included,
// into a single space. OCR line-wrapping is unpredictable: a label and its
// value may be split across what was visually two lines, so all patterns run
// against the collapsed form.
func NormalizeWhitespace(s string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}
