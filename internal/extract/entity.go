package extract

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dealdocs/contractocr/constants"
)

// Entity is one span classified by the NER capability.
type Entity struct {
	Category string
	Value    string
}

// EntityRecognizer is the external named-entity-recognition capability.
type EntityRecognizer interface {
	RecognizeEntities(ctx context.Context, text string) ([]Entity, error)
}

// EntityTier backfills fields the regex tiers left unresolved by consulting
// the NER capability. It is the only tier that can fail: on capability error
// it yields the Error sentinel for every field, which the merge rule applies
// only to fields still unset — "we tried and it broke" stays distinguishable
// from "we tried and found nothing".
type EntityTier struct {
	rec    EntityRecognizer
	logger *slog.Logger
}

func NewEntityTier(rec EntityRecognizer, logger *slog.Logger) *EntityTier {
	if logger == nil {
		logger = slog.Default()
	}
	return &EntityTier{rec: rec, logger: logger}
}

func (t *EntityTier) Name() string { return "entity" }

func (t *EntityTier) Extract(ctx context.Context, text string) Record {
	ents, err := t.rec.RecognizeEntities(ctx, text)
	if err != nil {
		t.logger.Error("entity recognition failed", "error", err)
		return errorRecord()
	}

	rec := NewRecord()
	for _, e := range ents {
		field, ok := fieldForCategory(e.Category)
		if !ok {
			continue
		}
		v := strings.TrimSpace(e.Value)
		if v == "" || rec.Get(field) != constants.NotFound {
			continue // first entity of a category wins
		}
		switch field {
		case constants.FieldBuyerName:
			rec.BuyerName = v
		case constants.FieldSellerName:
			rec.SellerName = v
		case constants.FieldPropertyAddress:
			rec.PropertyAddress = v
		case constants.FieldOfferPrice:
			rec.OfferPrice = v
		case constants.FieldKeyDates:
			rec.KeyDates = v
		}
	}
	return rec
}

// fieldForCategory maps a reported entity label to a field. Labels arrive in
// several spellings (PER, B-PER, PERSON), so match on the prefix after
// stripping any BIO tag.
func fieldForCategory(label string) (string, bool) {
	l := strings.ToUpper(strings.TrimSpace(label))
	l = strings.TrimPrefix(l, "B-")
	l = strings.TrimPrefix(l, "I-")
	for cat, field := range constants.EntityFieldTable {
		if strings.HasPrefix(l, string(cat)) {
			return field, true
		}
	}
	return "", false
}
