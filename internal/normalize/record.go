package normalize

import (
	"errors"
	"maps"
	"slices"
	"strings"

	"github.com/gyeh/feeschedule/internal/model"
)

var (
	ErrMissingCode     = errors.New("missing code")
	ErrMissingLocation = errors.New("missing location")
)

// Record maps a raw row onto a FeeScheduleRecord. Header names are resolved
// through headers and every cell goes through Value. It returns ok=false
// when no recognized column carries a value.
func Record(row model.RawRow, headers *HeaderMap) (*model.FeeScheduleRecord, bool) {
	rec := &model.FeeScheduleRecord{}
	usable := false

	for _, header := range slices.Sorted(maps.Keys(row)) {
		field, ok := headers.Lookup(header)
		if !ok {
			continue
		}
		v := Value(row[header])
		if v == nil {
			continue
		}
		usable = true

		switch field {
		case model.FieldCode:
			rec.Code = *v
		case model.FieldModifier:
			rec.Modifier = v
		case model.FieldLocation:
			rec.Location = *v
		case model.FieldGlobalSurgeryIndicator:
			rec.GlobalSurgeryIndicator = v
		case model.FieldMultipleSurgeryIndicator:
			rec.MultipleSurgeryIndicator = v
		case model.FieldPrevailingChargeAmount:
			rec.PrevailingChargeAmount = v
		case model.FieldFeeScheduleAmount:
			rec.FeeScheduleAmount = v
		case model.FieldSiteOfServiceAmount:
			rec.SiteOfServiceAmount = v
		}
	}

	if !usable {
		return nil, false
	}
	return rec, true
}

// Validate returns why a record cannot be persisted, or nil.
func Validate(rec *model.FeeScheduleRecord) error {
	var errs []error
	if strings.TrimSpace(rec.Code) == "" {
		errs = append(errs, ErrMissingCode)
	}
	if strings.TrimSpace(rec.Location) == "" {
		errs = append(errs, ErrMissingLocation)
	}
	return errors.Join(errs...)
}
