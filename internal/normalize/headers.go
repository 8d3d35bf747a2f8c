package normalize

import (
	"fmt"
	"maps"

	"github.com/gyeh/feeschedule/internal/model"
)

// HeaderToken identifies the code column header. The first row containing it
// is the table's header row.
const HeaderToken = "CPT/HCPC"

// DefaultHeaderVariants maps known header texts, after HeaderKey collapsing,
// to canonical fields.
var DefaultHeaderVariants = map[string]model.Field{
	"CPT/HCPC Code":              model.FieldCode,
	"CPT/HCPCS Code":             model.FieldCode,
	"CPT/HCPC":                   model.FieldCode,
	"Modifier":                   model.FieldModifier,
	"Medicare Location":          model.FieldLocation,
	"Global Surgery Indicator":   model.FieldGlobalSurgeryIndicator,
	"Multiple Surgery Indicator": model.FieldMultipleSurgeryIndicator,
	"Prevailing Charge Amount":   model.FieldPrevailingChargeAmount,
	"Fee Schedule Amount":        model.FieldFeeScheduleAmount,
	"Site of Service Amount":     model.FieldSiteOfServiceAmount,
	"Site Of Service Amount":     model.FieldSiteOfServiceAmount,
}

// HeaderMap resolves raw header cells to canonical fields. Headers without a
// mapping are ignored columns, not errors.
type HeaderMap struct {
	variants map[string]model.Field
}

// NewHeaderMap returns a HeaderMap seeded with DefaultHeaderVariants and
// extended by extra (header text -> canonical field name).
func NewHeaderMap(extra map[string]string) (*HeaderMap, error) {
	variants := maps.Clone(DefaultHeaderVariants)
	for header, name := range extra {
		f, ok := model.FieldByName(name)
		if !ok {
			return nil, fmt.Errorf("header variant %q: unknown field %q", header, name)
		}
		variants[HeaderKey(header)] = f
	}
	return &HeaderMap{variants: variants}, nil
}

// DefaultHeaders returns a HeaderMap with only the built-in variants.
func DefaultHeaders() *HeaderMap {
	return &HeaderMap{variants: maps.Clone(DefaultHeaderVariants)}
}

// Lookup returns the canonical field for a raw header cell.
func (h *HeaderMap) Lookup(raw string) (model.Field, bool) {
	f, ok := h.variants[HeaderKey(raw)]
	return f, ok
}

// Len returns the number of known variants.
func (h *HeaderMap) Len() int {
	return len(h.variants)
}
