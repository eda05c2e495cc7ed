package translate

import (
	"fmt"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tsql2/internal/temporal"
	"github.com/roach88/tsql2/internal/testutil"
)

func epoch(t *testing.T, s string) temporal.Instant {
	t.Helper()
	n, err := strconv.ParseInt(s, 10, 64)
	require.NoError(t, err, s)
	return temporal.Instant(n)
}

// splitVersions covers every row of the overlap table against the window
// [2002-01-01 - 2004-01-01]:
//
//	1 straddles the start  b < S < e <= E
//	2 straddles the end    S <= b < E < e
//	3 lies inside          S <= b < e <= E
//	4 straddles both       b < S, E < e
//	5 is disjoint          e <= S or E <= b
var splitVersions = []struct {
	id         int
	begin, end string
}{
	{1, "2000-01-01", "2003-01-01"},
	{2, "2003-01-01", "2006-01-01"},
	{3, "2002-01-01", "2004-01-01"},
	{4, "2000-01-01", "2010-01-01"},
	{5, "2004-01-01", "2008-01-01"},
}

const splitWindow = "VALID PERIOD [2002-01-01 - 2004-01-01]"

var splitRegimes = []struct {
	name    string
	as      string
	current string
}{
	{"state", "AS VALID STATE", "1 = 1"},
	{"bitemporal", "AS VALID STATE AND TRANSACTION", "_TTE = " + strconv.FormatInt(int64(temporal.Forever), 10)},
}

func seedSplit(t *testing.T, as string) *fixture {
	t.Helper()
	f := newFixture(t)
	f.exec(t, "CREATE TABLE v (id INT, amount INT) "+as)
	for _, v := range splitVersions {
		f.exec(t, fmt.Sprintf("INSERT INTO v VALUES (%d, 10) VALID PERIOD [%s - %s]", v.id, v.begin, v.end))
	}
	testutil.Advance(f.mock, time.Hour)
	return f
}

// splitRows returns id, amount and the valid period of the current versions.
func splitRows(t *testing.T, f *fixture, current string) [][]string {
	t.Helper()
	rows := testutil.QueryStrings(t, f.db,
		"SELECT id, amount, _VTS, _VTE FROM v WHERE "+current+" ORDER BY id, _VTS")
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = []string{row[0], row[1], temporal.FormatPeriod(epoch(t, row[2]), epoch(t, row[3]))}
	}
	return out
}

// coverage maps each id to the amount valid on January 1st of 2000..2009,
// "-" where no version is valid. It fails on overlapping versions.
func coverage(t *testing.T, f *fixture, current string) map[string]string {
	t.Helper()
	rows := testutil.QueryStrings(t, f.db, "SELECT id, amount, _VTS, _VTE FROM v WHERE "+current)
	years := map[string][]string{}
	for _, row := range rows {
		if years[row[0]] == nil {
			years[row[0]] = []string{"-", "-", "-", "-", "-", "-", "-", "-", "-", "-"}
		}
		begin, end := epoch(t, row[2]), epoch(t, row[3])
		for y := 0; y < 10; y++ {
			at := temporal.FromTime(time.Date(2000+y, 1, 1, 0, 0, 0, 0, time.UTC))
			if begin <= at && at < end {
				require.Equal(t, "-", years[row[0]][y], "id %s overlaps in %d", row[0], 2000+y)
				years[row[0]][y] = row[1]
			}
		}
	}
	out := map[string]string{}
	ids := make([]string, 0, len(years))
	for id := range years {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		out[id] = fmt.Sprint(years[id])
	}
	return out
}

func TestSequencedDelete_EveryOverlapCase(t *testing.T) {
	for _, regime := range splitRegimes {
		t.Run(regime.name, func(t *testing.T) {
			f := seedSplit(t, regime.as)
			f.exec(t, "DELETE FROM v "+splitWindow)

			assert.Equal(t, [][]string{
				{"1", "10", "2000-01-01 00:00:00 - 2002-01-01 00:00:00"},
				{"2", "10", "2004-01-01 00:00:00 - 2006-01-01 00:00:00"},
				{"4", "10", "2000-01-01 00:00:00 - 2002-01-01 00:00:00"},
				{"4", "10", "2004-01-01 00:00:00 - 2010-01-01 00:00:00"},
				{"5", "10", "2004-01-01 00:00:00 - 2008-01-01 00:00:00"},
			}, splitRows(t, f, regime.current))

			assert.Equal(t, map[string]string{
				"1": "[10 10 - - - - - - - -]",
				"2": "[- - - - 10 10 - - - -]",
				"4": "[10 10 - - 10 10 10 10 10 10]",
				"5": "[- - - - 10 10 10 10 - -]",
			}, coverage(t, f, regime.current))
		})
	}
}

func TestSequencedUpdate_EveryOverlapCase(t *testing.T) {
	for _, regime := range splitRegimes {
		t.Run(regime.name, func(t *testing.T) {
			f := seedSplit(t, regime.as)
			f.exec(t, "UPDATE v SET amount = 20 "+splitWindow)

			assert.Equal(t, [][]string{
				{"1", "10", "2000-01-01 00:00:00 - 2002-01-01 00:00:00"},
				{"1", "20", "2002-01-01 00:00:00 - 2003-01-01 00:00:00"},
				{"2", "20", "2003-01-01 00:00:00 - 2004-01-01 00:00:00"},
				{"2", "10", "2004-01-01 00:00:00 - 2006-01-01 00:00:00"},
				{"3", "20", "2002-01-01 00:00:00 - 2004-01-01 00:00:00"},
				{"4", "10", "2000-01-01 00:00:00 - 2002-01-01 00:00:00"},
				{"4", "20", "2002-01-01 00:00:00 - 2004-01-01 00:00:00"},
				{"4", "10", "2004-01-01 00:00:00 - 2010-01-01 00:00:00"},
				{"5", "10", "2004-01-01 00:00:00 - 2008-01-01 00:00:00"},
			}, splitRows(t, f, regime.current))

			// Updating never changes when a row is valid, only what it says.
			assert.Equal(t, map[string]string{
				"1": "[10 10 20 - - - - - - -]",
				"2": "[- - - 20 10 10 - - - -]",
				"3": "[- - 20 20 - - - - - -]",
				"4": "[10 10 20 20 10 10 10 10 10 10]",
				"5": "[- - - - 10 10 10 10 - -]",
			}, coverage(t, f, regime.current))
		})
	}
}

func TestSequencedDelete_BitemporalKeepsHistory(t *testing.T) {
	f := seedSplit(t, splitRegimes[1].as)
	f.exec(t, "DELETE FROM v "+splitWindow)

	// Every version the delete touched survives, closed in transaction time.
	closed := testutil.QueryStrings(t, f.db,
		"SELECT id FROM v WHERE _TTE < "+strconv.FormatInt(int64(temporal.Forever), 10)+" ORDER BY id")
	assert.Equal(t, [][]string{{"1"}, {"2"}, {"3"}, {"4"}}, closed)
}
