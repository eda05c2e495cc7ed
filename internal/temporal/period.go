package temporal

// Period is the half-open interval [Begin, End).
type Period struct {
	Begin Instant
	End   Instant
	Scale Scale
}

// Empty reports whether the period contains no instant.
func (p Period) Empty() bool {
	return p.Begin >= p.End
}

// Open reports whether the period extends to Forever.
func (p Period) Open() bool {
	return p.End >= Forever
}

// Overlaps reports whether the periods share at least one instant.
func (p Period) Overlaps(q Period) bool {
	return p.Begin < q.End && q.Begin < p.End
}

// Intersect returns the common part of p and q; the result may be Empty.
func (p Period) Intersect(q Period) Period {
	r := Period{Begin: p.Begin, End: p.End, Scale: p.Scale}
	if q.Begin > r.Begin {
		r.Begin = q.Begin
	}
	if q.End < r.End {
		r.End = q.End
	}
	return r
}

// String renders the period the way query results show it: "<begin> - <end>",
// with NOW as the end of an open period and NULL for an empty one.
func (p Period) String() string {
	return FormatPeriod(p.Begin, p.End)
}

// FormatPeriod renders [begin, end) for result sets.
func FormatPeriod(begin, end Instant) string {
	if begin >= end {
		return "NULL"
	}
	if end >= Forever {
		return begin.String() + " - NOW"
	}
	return begin.String() + " - " + end.String()
}
