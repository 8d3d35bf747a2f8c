package model

// ArchiveRow mirrors the Parquet schema of a document archive and the CSV
// layout of a plan export. One row per normalized record; the source columns
// repeat per row so a single file is self-describing.
type ArchiveRow struct {
	SourceURL    string `parquet:"source_url" csv:"source_url"`
	SourceSHA256 string `parquet:"source_sha256" csv:"source_sha256"`
	RowNumber    int64  `parquet:"row_number" csv:"row_number"`

	Code     string  `parquet:"code" csv:"code"`
	Modifier *string `parquet:"modifier,optional" csv:"modifier"`
	Location string  `parquet:"location" csv:"location"`

	GlobalSurgeryIndicator   *string `parquet:"global_surgery_indicator,optional" csv:"global_surgery_indicator"`
	MultipleSurgeryIndicator *string `parquet:"multiple_surgery_indicator,optional" csv:"multiple_surgery_indicator"`
	PrevailingChargeAmount   *string `parquet:"prevailing_charge_amount,optional" csv:"prevailing_charge_amount"`
	FeeScheduleAmount        *string `parquet:"fee_schedule_amount,optional" csv:"fee_schedule_amount"`
	SiteOfServiceAmount      *string `parquet:"site_of_service_amount,optional" csv:"site_of_service_amount"`
}

// NewArchiveRow builds the archive representation of a record.
func NewArchiveRow(url, sha string, rowNum int64, r *FeeScheduleRecord) ArchiveRow {
	return ArchiveRow{
		SourceURL:                url,
		SourceSHA256:             sha,
		RowNumber:                rowNum,
		Code:                     r.Code,
		Modifier:                 r.Modifier,
		Location:                 r.Location,
		GlobalSurgeryIndicator:   r.GlobalSurgeryIndicator,
		MultipleSurgeryIndicator: r.MultipleSurgeryIndicator,
		PrevailingChargeAmount:   r.PrevailingChargeAmount,
		FeeScheduleAmount:        r.FeeScheduleAmount,
		SiteOfServiceAmount:      r.SiteOfServiceAmount,
	}
}

// Record converts an archive row back into a record.
func (a *ArchiveRow) Record() FeeScheduleRecord {
	return FeeScheduleRecord{
		Code:                     a.Code,
		Modifier:                 a.Modifier,
		Location:                 a.Location,
		GlobalSurgeryIndicator:   a.GlobalSurgeryIndicator,
		MultipleSurgeryIndicator: a.MultipleSurgeryIndicator,
		PrevailingChargeAmount:   a.PrevailingChargeAmount,
		FeeScheduleAmount:        a.FeeScheduleAmount,
		SiteOfServiceAmount:      a.SiteOfServiceAmount,
	}
}
