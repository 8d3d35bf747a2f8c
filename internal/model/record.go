package model

import "strings"

// Field is the canonical name of a fee-schedule column. The names double as
// the store's column names.
type Field string

const (
	FieldCode                     Field = "code"
	FieldModifier                 Field = "modifier"
	FieldLocation                 Field = "location"
	FieldGlobalSurgeryIndicator   Field = "global_surgery_indicator"
	FieldMultipleSurgeryIndicator Field = "multiple_surgery_indicator"
	FieldPrevailingChargeAmount   Field = "prevailing_charge_amount"
	FieldFeeScheduleAmount        Field = "fee_schedule_amount"
	FieldSiteOfServiceAmount      Field = "site_of_service_amount"
)

// AllFields lists the canonical fields in table column order.
var AllFields = []Field{
	FieldCode,
	FieldModifier,
	FieldLocation,
	FieldGlobalSurgeryIndicator,
	FieldMultipleSurgeryIndicator,
	FieldPrevailingChargeAmount,
	FieldFeeScheduleAmount,
	FieldSiteOfServiceAmount,
}

// FieldByName returns the canonical field with the given name, or ok=false.
func FieldByName(name string) (Field, bool) {
	for _, f := range AllFields {
		if string(f) == name {
			return f, true
		}
	}
	return "", false
}

// RawRow is one extracted table row: header text as printed in the document
// mapped to the raw cell text. Only columns whose header is recognized are
// present.
type RawRow map[string]string

// FeeScheduleRecord is a single normalized fee-schedule line. Nil pointers
// mean the source marked the value as not applicable.
type FeeScheduleRecord struct {
	Code     string
	Modifier *string
	Location string

	GlobalSurgeryIndicator   *string
	MultipleSurgeryIndicator *string
	PrevailingChargeAmount   *string
	FeeScheduleAmount        *string
	SiteOfServiceAmount      *string
}

// Key returns the record's natural key.
func (r *FeeScheduleRecord) Key() Key {
	return NewKey(r.Code, r.Modifier, r.Location)
}

// Values returns the record's non-key fields.
func (r *FeeScheduleRecord) Values() Values {
	return Values{
		GlobalSurgeryIndicator:   r.GlobalSurgeryIndicator,
		MultipleSurgeryIndicator: r.MultipleSurgeryIndicator,
		PrevailingChargeAmount:   r.PrevailingChargeAmount,
		FeeScheduleAmount:        r.FeeScheduleAmount,
		SiteOfServiceAmount:      r.SiteOfServiceAmount,
	}
}

// Valid reports whether the key fields required for persistence are present.
func (r *FeeScheduleRecord) Valid() bool {
	return strings.TrimSpace(r.Code) != "" && strings.TrimSpace(r.Location) != ""
}

// Key is the natural key (code, modifier, location). An absent modifier is a
// distinct value: it never equals a present modifier, not even "".
type Key struct {
	Code        string
	Modifier    string
	HasModifier bool
	Location    string
}

// NewKey builds a Key from a nullable modifier.
func NewKey(code string, modifier *string, location string) Key {
	k := Key{Code: code, Location: location}
	if modifier != nil {
		k.Modifier = *modifier
		k.HasModifier = true
	}
	return k
}

// ModifierPtr returns the modifier as a nullable string.
func (k Key) ModifierPtr() *string {
	if !k.HasModifier {
		return nil
	}
	m := k.Modifier
	return &m
}

func (k Key) String() string {
	mod := "<none>"
	if k.HasModifier {
		mod = k.Modifier
	}
	return k.Code + "/" + mod + "/" + k.Location
}

// Values holds the five non-key fields of a record.
type Values struct {
	GlobalSurgeryIndicator   *string
	MultipleSurgeryIndicator *string
	PrevailingChargeAmount   *string
	FeeScheduleAmount        *string
	SiteOfServiceAmount      *string
}

// Equivalent compares two value sets treating an absent value as equal to the
// empty string. Storage keeps the distinction; only comparison folds it.
func (v Values) Equivalent(o Values) bool {
	return deref(v.GlobalSurgeryIndicator) == deref(o.GlobalSurgeryIndicator) &&
		deref(v.MultipleSurgeryIndicator) == deref(o.MultipleSurgeryIndicator) &&
		deref(v.PrevailingChargeAmount) == deref(o.PrevailingChargeAmount) &&
		deref(v.FeeScheduleAmount) == deref(o.FeeScheduleAmount) &&
		deref(v.SiteOfServiceAmount) == deref(o.SiteOfServiceAmount)
}

// Columns returns the ordered column names for COPY into the records table.
func Columns() []string {
	cols := make([]string, len(AllFields))
	for i, f := range AllFields {
		cols[i] = string(f)
	}
	return cols
}

// CopyValues returns the record values in the same order as Columns(),
// suitable for a pgx CopyFromSource.
func (r *FeeScheduleRecord) CopyValues() []any {
	return []any{
		r.Code,
		r.Modifier,
		r.Location,
		r.GlobalSurgeryIndicator,
		r.MultipleSurgeryIndicator,
		r.PrevailingChargeAmount,
		r.FeeScheduleAmount,
		r.SiteOfServiceAmount,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
