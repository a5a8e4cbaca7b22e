package constants

// Sentinel values for extracted fields. A field is never the empty string:
// absence is always NotFound, and a failed entity-recognition attempt is
// Error so callers can tell "nothing matched" from "the capability broke".
const (
	NotFound = "Not Found"
	Error    = "Error"
)

// Field names as they appear in extraction output, exports and the run store.
const (
	FieldBuyerName       = "buyerName"
	FieldSellerName      = "sellerName"
	FieldPropertyAddress = "propertyAddress"
	FieldOfferPrice      = "offerPrice"
	FieldKeyDates        = "keyDates"
)

// FieldNames lists the fields in canonical column order.
var FieldNames = []string{
	FieldBuyerName,
	FieldSellerName,
	FieldPropertyAddress,
	FieldOfferPrice,
	FieldKeyDates,
}

// EntityCategory is a named-entity category as reported by the NER capability.
// Matching is by prefix: HuggingFace token-classification models group
// entities as PER/ORG/LOC/MISC while others spell out PERSON/ORGANIZATION.
type EntityCategory string

const (
	EntityPerson       EntityCategory = "PER"
	EntityOrganization EntityCategory = "ORG"
	EntityLocation     EntityCategory = "LOC"
	EntityMoney        EntityCategory = "MONEY"
	EntityDate         EntityCategory = "DATE"
)

// EntityFieldTable maps entity categories to the field each one backfills.
var EntityFieldTable = map[EntityCategory]string{
	EntityPerson:       FieldBuyerName,
	EntityOrganization: FieldSellerName,
	EntityLocation:     FieldPropertyAddress,
	EntityMoney:        FieldOfferPrice,
	EntityDate:         FieldKeyDates,
}
