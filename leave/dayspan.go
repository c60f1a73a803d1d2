package leave

// =============================================================================
// DAY-SPAN CALCULATOR
// =============================================================================

// DaySpan converts a request's dates and half-day flag into the integer
// hundredths-of-a-day quantity it consumes.
//
//   - Half-day requests cost a fixed 50, regardless of any end date.
//   - Otherwise the span is the inclusive whole-day count × 100: a
//     Monday–Wednesday request is 3 days, 300 hundredths. A missing end
//     date means a single day.
//
// PRECONDITION: end >= start when end is present. Date ordering is
// validated upstream by the type validators; an out-of-order pair
// reaching this function yields 0 rather than a negative quantity.
func DaySpan(start Date, end *Date, halfDay bool) Hundredths {
	if halfDay {
		return HalfDay
	}

	effectiveEnd := start
	if end != nil {
		effectiveEnd = *end
	}

	days := DaysBetween(start, effectiveEnd) + 1 // inclusive of both endpoints
	if days < 0 {
		return 0
	}
	return Hundredths(days) * FullDay
}
