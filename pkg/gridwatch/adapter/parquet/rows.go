package parquet

import (
	"time"

	model "github.com/tigerroll/gridwatch/pkg/gridwatch/core/domain/model"
)

// Raw row structs mirroring the column layout of the published parquet files.
// Column names are the market operator's upper-case spellings; everything is
// normalized to the canonical lower snake_case schema the moment rows become
// TimeSeriesRecords, so the rest of the codebase never sees source casing.

// generationRow is one row of a unit-level generation (SCADA) file.
type generationRow struct {
	SettlementDate int64   `parquet:"name=SETTLEMENTDATE, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	DUID           string  `parquet:"name=DUID, type=BYTE_ARRAY, convertedtype=UTF8"`
	ScadaValue     float64 `parquet:"name=SCADAVALUE, type=DOUBLE"`
}

// priceRow is one row of a regional reference price file.
type priceRow struct {
	SettlementDate int64   `parquet:"name=SETTLEMENTDATE, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	RegionID       string  `parquet:"name=REGIONID, type=BYTE_ARRAY, convertedtype=UTF8"`
	RRP            float64 `parquet:"name=RRP, type=DOUBLE"`
}

// rooftopRow is one row of a region-level rooftop solar estimate file.
type rooftopRow struct {
	IntervalDatetime int64   `parquet:"name=INTERVAL_DATETIME, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	RegionID         string  `parquet:"name=REGIONID, type=BYTE_ARRAY, convertedtype=UTF8"`
	Power            float64 `parquet:"name=POWER, type=DOUBLE"`
}

// naiveTime converts a TIMESTAMP_MILLIS value to the timezone-naive market
// time convention: the wall-clock fields are kept as stored, represented in
// UTC so arithmetic never crosses a DST boundary.
func naiveTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// generationRecords converts raw generation rows to canonical records.
func generationRecords(rows []generationRow, res model.Resolution) []model.TimeSeriesRecord {
	out := make([]model.TimeSeriesRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.TimeSeriesRecord{
			SettlementDate: naiveTime(r.SettlementDate),
			DUID:           model.NormalizeDUID(r.DUID),
			Value:          r.ScadaValue,
			Resolution:     res,
		})
	}
	return out
}

// priceRecords converts raw price rows to canonical records.
func priceRecords(rows []priceRow, res model.Resolution) []model.TimeSeriesRecord {
	out := make([]model.TimeSeriesRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.TimeSeriesRecord{
			SettlementDate: naiveTime(r.SettlementDate),
			RegionID:       model.NormalizeRegionID(r.RegionID),
			Value:          r.RRP,
			Resolution:     res,
		})
	}
	return out
}

// rooftopRecords converts raw rooftop rows to canonical records.
func rooftopRecords(rows []rooftopRow, res model.Resolution) []model.TimeSeriesRecord {
	out := make([]model.TimeSeriesRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.TimeSeriesRecord{
			SettlementDate: naiveTime(r.IntervalDatetime),
			RegionID:       model.NormalizeRegionID(r.RegionID),
			Value:          r.Power,
			Resolution:     res,
		})
	}
	return out
}
