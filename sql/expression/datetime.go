package expression

import (
	"fmt"

	"github.com/docsql/engine/sql/coreerr"
)

// Locale supplies the day/month names DAYNAME/MONTHNAME render (§9:
// locale dependence must be passed in, never captured from process-global
// state). Index 0 of Days is Sunday, matching $dayOfWeek's 1-7 numbering
// offset by one; index 0 of Months is January, matching $month's 1-12
// numbering offset by one.
type Locale struct {
	Days   [7]string
	Months [12]string
}

// EnglishLocale returns a fresh Locale value; never a shared package-level
// var, so callers that mutate their own copy can't affect another query.
func EnglishLocale() Locale {
	return Locale{
		Days: [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
		Months: [12]string{
			"January", "February", "March", "April", "May", "June",
			"July", "August", "September", "October", "November", "December",
		},
	}
}

var unitToMillis = map[string]int64{
	"SECOND": 1000,
	"MINUTE": 60 * 1000,
	"HOUR":   60 * 60 * 1000,
	"DAY":    24 * 60 * 60 * 1000,
	"WEEK":   7 * 24 * 60 * 60 * 1000,
}

// timestampAdd implements §4.4: units reducible to milliseconds
// (SECOND/MINUTE/HOUR/DAY/WEEK) are emitted as a millisecond $add;
// YEAR/MONTH/QUARTER are rejected at translation time.
func (t *Translator) timestampAdd(e Expr) (AggExpr, error) {
	ms, ok := unitToMillis[e.Unit]
	if !ok {
		return nil, coreerr.UnsupportedConversion(fmt.Sprintf("TIMESTAMPADD(%s, ...)", e.Unit))
	}
	amount, err := t.agg(e.Args[0])
	if err != nil {
		return nil, err
	}
	date, err := t.agg(e.Args[1])
	if err != nil {
		return nil, err
	}
	deltaMs := map[string]interface{}{"$multiply": []AggExpr{amount, ms}}
	return map[string]interface{}{"$add": []AggExpr{date, deltaMs}}, nil
}

// timestampDiff implements §4.4: YEAR/MONTH/QUARTER use extracted
// year/month arithmetic; the millisecond-reducible units subtract and
// divide directly.
func (t *Translator) timestampDiff(e Expr) (AggExpr, error) {
	start, err := t.agg(e.Args[0])
	if err != nil {
		return nil, err
	}
	end, err := t.agg(e.Args[1])
	if err != nil {
		return nil, err
	}

	switch e.Unit {
	case "YEAR":
		return map[string]interface{}{"$subtract": []AggExpr{
			map[string]interface{}{"$year": end}, map[string]interface{}{"$year": start},
		}}, nil
	case "MONTH":
		yearsDiff := map[string]interface{}{"$subtract": []AggExpr{
			map[string]interface{}{"$year": end}, map[string]interface{}{"$year": start},
		}}
		monthsDiff := map[string]interface{}{"$subtract": []AggExpr{
			map[string]interface{}{"$month": end}, map[string]interface{}{"$month": start},
		}}
		return map[string]interface{}{"$add": []AggExpr{
			map[string]interface{}{"$multiply": []AggExpr{yearsDiff, 12}}, monthsDiff,
		}}, nil
	case "QUARTER":
		monthDiffExpr, err := t.timestampDiffMonths(start, end)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"$divide": []AggExpr{monthDiffExpr, 3}}, nil
	default:
		ms, ok := unitToMillis[e.Unit]
		if !ok {
			return nil, coreerr.UnsupportedConversion(fmt.Sprintf("TIMESTAMPDIFF(%s, ...)", e.Unit))
		}
		diffMs := map[string]interface{}{"$subtract": []AggExpr{end, start}}
		return map[string]interface{}{"$divide": []AggExpr{diffMs, ms}}, nil
	}
}

func (t *Translator) timestampDiffMonths(start, end AggExpr) (AggExpr, error) {
	yearsDiff := map[string]interface{}{"$subtract": []AggExpr{
		map[string]interface{}{"$year": end}, map[string]interface{}{"$year": start},
	}}
	monthsDiff := map[string]interface{}{"$subtract": []AggExpr{
		map[string]interface{}{"$month": end}, map[string]interface{}{"$month": start},
	}}
	return map[string]interface{}{"$add": []AggExpr{
		map[string]interface{}{"$multiply": []AggExpr{yearsDiff, 12}}, monthsDiff,
	}}, nil
}

// epochWeekAnchorMillis is 1970-01-05T00:00:00Z, the first Monday after
// epoch, the WEEK floor's anchor (§4.4).
const epochWeekAnchorMillis = 4 * 24 * 60 * 60 * 1000

// floorToUnit implements §4.4's FLOOR-to-time-unit rule: YEAR/MONTH/
// QUARTER reassemble via $dateFromParts; WEEK/DAY/HOUR/MINUTE/SECOND
// subtract-epoch-base/divide/multiply/add-back.
func (t *Translator) floorToUnit(e Expr) (AggExpr, error) {
	date, err := t.agg(e.Args[0])
	if err != nil {
		return nil, err
	}
	switch e.Unit {
	case "YEAR":
		return dateFromParts(map[string]interface{}{"$year": date}, literalExpr(int64(1)), literalExpr(int64(1))), nil
	case "MONTH":
		return dateFromParts(map[string]interface{}{"$year": date}, map[string]interface{}{"$month": date}, literalExpr(int64(1))), nil
	case "QUARTER":
		quarterStartMonth := map[string]interface{}{"$add": []AggExpr{
			map[string]interface{}{"$multiply": []AggExpr{
				map[string]interface{}{"$subtract": []AggExpr{extractQuarterExpr(date), 1}}, 3,
			}}, 1,
		}}
		return dateFromParts(map[string]interface{}{"$year": date}, quarterStartMonth, literalExpr(int64(1))), nil
	case "WEEK":
		return floorByAnchor(date, int64(7*24*60*60*1000), epochWeekAnchorMillis), nil
	case "DAY":
		return floorByAnchor(date, int64(24*60*60*1000), 0), nil
	case "HOUR":
		return floorByAnchor(date, int64(60*60*1000), 0), nil
	case "MINUTE":
		return floorByAnchor(date, int64(60*1000), 0), nil
	case "SECOND":
		return floorByAnchor(date, int64(1000), 0), nil
	default:
		// Numeric FLOOR is Unsupported (§9); any unit not named above
		// reaches here only if the compiler let through something that
		// was not actually a date/time floor.
		return nil, coreerr.UnsupportedConversion(fmt.Sprintf("FLOOR(... TO %s)", e.Unit))
	}
}

// floorByAnchor implements subtract-epoch-base/divide/multiply/add-back:
// ((date - anchor) div unitMs) * unitMs + anchor.
func floorByAnchor(date AggExpr, unitMs int64, anchorMs int64) AggExpr {
	millisSinceAnchor := map[string]interface{}{"$subtract": []AggExpr{dateToMillis(date), anchorMs}}
	flooredUnits := map[string]interface{}{"$trunc": map[string]interface{}{"$divide": []AggExpr{millisSinceAnchor, unitMs}}}
	flooredMs := map[string]interface{}{"$add": []AggExpr{
		map[string]interface{}{"$multiply": []AggExpr{flooredUnits, unitMs}}, anchorMs,
	}}
	return map[string]interface{}{"$toDate": flooredMs}
}

func dateToMillis(date AggExpr) AggExpr {
	return map[string]interface{}{"$toLong": date}
}

func dateFromParts(year, month, day AggExpr) AggExpr {
	return map[string]interface{}{"$dateFromParts": map[string]interface{}{"year": year, "month": month, "day": day}}
}

// extractQuarter implements §4.4's 4-way CASE on $month.
func (t *Translator) extractQuarter(e Expr) (AggExpr, error) {
	date, err := t.agg(e.Args[0])
	if err != nil {
		return nil, err
	}
	return extractQuarterExpr(date), nil
}

func extractQuarterExpr(date AggExpr) AggExpr {
	month := map[string]interface{}{"$month": date}
	return map[string]interface{}{"$switch": map[string]interface{}{
		"branches": []interface{}{
			map[string]interface{}{"case": map[string]interface{}{"$lte": []AggExpr{month, 3}}, "then": 1},
			map[string]interface{}{"case": map[string]interface{}{"$lte": []AggExpr{month, 6}}, "then": 2},
			map[string]interface{}{"case": map[string]interface{}{"$lte": []AggExpr{month, 9}}, "then": 3},
		},
		"default": 4,
	}}
}

// dayName implements §4.4: a 7-way CASE keyed on $dayOfWeek, using the
// translator's Locale; null input yields null output.
func (t *Translator) dayName(e Expr) (AggExpr, error) {
	date, err := t.agg(e.Args[0])
	if err != nil {
		return nil, err
	}
	dow := map[string]interface{}{"$dayOfWeek": date}
	branches := make([]interface{}, 0, 7)
	for i, name := range t.Locale.Days {
		branches = append(branches, map[string]interface{}{
			"case": map[string]interface{}{"$eq": []AggExpr{dow, i + 1}}, "then": name,
		})
	}
	sw := map[string]interface{}{"$switch": map[string]interface{}{"branches": branches, "default": nil}}
	return wrapNullable([]AggExpr{date}, sw), nil
}

// monthName implements §4.4's 12-way CASE keyed on $month.
func (t *Translator) monthName(e Expr) (AggExpr, error) {
	date, err := t.agg(e.Args[0])
	if err != nil {
		return nil, err
	}
	month := map[string]interface{}{"$month": date}
	branches := make([]interface{}, 0, 12)
	for i, name := range t.Locale.Months {
		branches = append(branches, map[string]interface{}{
			"case": map[string]interface{}{"$eq": []AggExpr{month, i + 1}}, "then": name,
		})
	}
	sw := map[string]interface{}{"$switch": map[string]interface{}{"branches": branches, "default": nil}}
	return wrapNullable([]AggExpr{date}, sw), nil
}
