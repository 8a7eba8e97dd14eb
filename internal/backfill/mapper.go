package backfill

import (
	"apthere/internal/core"
	"apthere/internal/upstream"
)

// MapRecords converts upstream rows of one source into records. Rent rows are
// split into JEONSE and WOLSE by their monthly rent. Bad fields degrade to
// blank or nil; no row is dropped.
func MapRecords(source core.SourceKind, rows []upstream.RawFields) []core.TransactionRecord {
	out := make([]core.TransactionRecord, 0, len(rows))
	for _, row := range rows {
		rec := core.TransactionRecord{
			AptName:   row.Trimmed("aptNm"),
			Dong:      row.Trimmed("umdNm"),
			Jibun:     row.Trimmed("jibun"),
			Floor:     row.Trimmed("floor"),
			Area:      row.Trimmed("excluUseAr"),
			BuildYear: row.Trimmed("buildYear"),
			DealDate:  dealDate(row),
		}
		switch source {
		case core.SourceTrade:
			rec.Kind = core.Trade
			rec.AptDong = row.Trimmed("aptDong")
			rec.DealAmount = row.Int64Ptr("dealAmount")
			rec.DealingType = row.Trimmed("dealingGbn")
			rec.BrokerRegion = row.Trimmed("estateAgentSggNm")
			rec.RegisteredDate = row.Trimmed("rgstDate")
			rec.SellerType = row.Trimmed("slerGbn")
			rec.BuyerType = row.Trimmed("buyerGbn")
			rec.LandLeasehold = row.Trimmed("landLeaseholdGbn")
			rec.CancelType = row.Trimmed("cdealType")
			rec.CancelDate = row.Trimmed("cdealDay")
		case core.SourceRent:
			rec.Deposit = row.Int64Ptr("deposit")
			rec.ContractType = row.Trimmed("contractType")
			rec.RenewalRightUsed = row.Trimmed("useRRRight")
			if rent, ok := row.Int64("monthlyRent"); ok && rent > 0 {
				rec.Kind = core.Wolse
				rec.MonthlyRent = &rent
			} else {
				rec.Kind = core.Jeonse
			}
		}
		out = append(out, rec)
	}
	return out
}

// dealDate composes YYYY-MM-DD; a missing month or day becomes "01".
func dealDate(row upstream.RawFields) string {
	year := row.Trimmed("dealYear")
	month := pad2(row.Trimmed("dealMonth"))
	day := pad2(row.Trimmed("dealDay"))
	return year + "-" + month + "-" + day
}

func pad2(s string) string {
	switch len(s) {
	case 0:
		return "01"
	case 1:
		return "0" + s
	default:
		return s
	}
}
