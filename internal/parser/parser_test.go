package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jkh-code/nhl-win-factors-analysis/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

var sampleCells = []string{
	"1", "Boston Bruins", "2019/10/03 BOS@DAL", "1", "1", "0", "--", "0", "2", "1.000",
	"1", "1", "0", "1", "0", "1.00", "0.00", "0.0", "100.0", "--", "100.0", "33.00", "21.00", "55.6",
}

func rowGroup(cells []string) string {
	var b strings.Builder
	b.WriteString(`<div class="rt-tr-group" role="rowgroup"><div class="rt-tr -odd" role="row">`)
	for _, c := range cells {
		fmt.Fprintf(&b, `<div class="rt-td" role="gridcell">%s</div>`, c)
	}
	b.WriteString(`</div></div>`)
	return b.String()
}

func fillerGroup() string {
	cells := make([]string, len(sampleCells))
	for i := range cells {
		cells[i] = "&nbsp;"
	}
	return rowGroup(cells)
}

func tablePage(groups ...string) string {
	return `<html><body><div class="rt-table" role="grid"><div class="rt-tbody">` +
		strings.Join(groups, "") + `</div></div></body></html>`
}

func withCell(i int, v string) []string {
	cells := append([]string(nil), sampleCells...)
	cells[i] = v
	return cells
}

// --- Sentinel Codec Tests ---

func TestParseIntSentinel(t *testing.T) {
	v, err := ParseInt(Sentinel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != nil {
		t.Errorf("sentinel should decode to absent, got %d", *v)
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"0", 0, false},
		{"42", 42, false},
		{"-3", -3, false},
		{"+7", 7, false},
		{"1,024", 0, true},
		{"1.5", 0, true},
		{"", 0, true},
		{"-", 0, true},
		{"---", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseInt(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseInt(%q) expected error, got %v", tt.in, *got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseInt(%q): %v", tt.in, err)
			}
			if got == nil || *got != tt.want {
				t.Errorf("ParseInt(%q) = %v, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseFloat(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"0", 0, false},
		{"52.4", 52.4, false},
		{".500", 0.5, false},
		{"100.", 100, false},
		{"-1.25", -1.25, false},
		{"1.2.3", 0, true},
		{"1e3", 0, true},
		{"NaN", 0, true},
		{"Inf", 0, true},
		{"1,000.0", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFloat(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseFloat(%q) expected error, got %v", tt.in, *got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFloat(%q): %v", tt.in, err)
			}
			if got == nil || *got != tt.want {
				t.Errorf("ParseFloat(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	v, err := ParseFloat(Sentinel)
	if err != nil || v != nil {
		t.Errorf("sentinel should decode to absent without error, got %v, %v", v, err)
	}
}

func TestZeroIsNotAbsent(t *testing.T) {
	v, err := ParseInt("0")
	if err != nil || v == nil || *v != 0 {
		t.Errorf("0 must decode to a present zero, got %v, %v", v, err)
	}
}

// --- Table Extractor Tests ---

func TestExtractStopsAtFiller(t *testing.T) {
	groups := make([]string, 0, 12)
	for i := 0; i < 10; i++ {
		groups = append(groups, rowGroup(sampleCells))
	}
	groups = append(groups, fillerGroup(), rowGroup(sampleCells))

	te := NewTableExtractor(TeamGameSchema, testLogger)
	rows, err := te.Extract(tablePage(groups...), 2019, 3)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(rows) != 10 {
		t.Fatalf("expected 10 rows before the filler, got %d", len(rows))
	}
	for _, r := range rows {
		if r.Season != 2019 || r.Page != 3 {
			t.Fatalf("row missing provenance: %d/%d", r.Season, r.Page)
		}
	}
}

func TestExtractEmptyFirstCell(t *testing.T) {
	te := NewTableExtractor(TeamGameSchema, testLogger)
	rows, err := te.Extract(tablePage(rowGroup(sampleCells), rowGroup(withCell(0, "  "))), 2019, 0)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("expected 1 row, got %d", len(rows))
	}
}

func TestExtractRowValues(t *testing.T) {
	te := NewTableExtractor(TeamGameSchema, testLogger)
	rows, err := te.Extract(tablePage(rowGroup(sampleCells), fillerGroup()), 2019, 0)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	want := []*types.Row{{
		Season: 2019, Page: 0,
		Team: "Boston Bruins", Game: "2019/10/03 BOS@DAL",
		GamesPlayed: types.Int(1), Wins: types.Int(1), Losses: types.Int(0),
		OTLosses: types.Int(0), Points: types.Int(2), PointPercent: types.Float(1),
		RegWins: types.Int(1), RegOTWins: types.Int(1), SOWins: types.Int(0),
		GoalsFor: types.Int(1), GoalsAgainst: types.Int(0),
		GoalsForPerGame: types.Float(1), GoalsAgainstPerGame: types.Float(0),
		PowerPlayPercent: types.Float(0), PenaltyKillPercent: types.Float(100),
		PenaltyKillNetPct: types.Float(100),
		ShotsForPerGame:   types.Float(33), ShotsAgainstPerGame: types.Float(21),
		FaceoffWinPercent: types.Float(55.6),
	}}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractDeterministic(t *testing.T) {
	page := tablePage(rowGroup(sampleCells), rowGroup(withCell(1, "Dallas Stars")), fillerGroup())
	te := NewTableExtractor(TeamGameSchema, testLogger)

	first, err := te.Extract(page, 2019, 1)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	second, err := te.Extract(page, 2019, 1)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("extraction not deterministic (-first +second):\n%s", diff)
	}
	if first[1].Team != "Dallas Stars" {
		t.Errorf("rows out of table order: %q", first[1].Team)
	}
}

func TestExtractShortRow(t *testing.T) {
	te := NewTableExtractor(TeamGameSchema, testLogger)
	rows, err := te.Extract(tablePage(rowGroup(sampleCells), rowGroup(sampleCells[:12])), 2019, 2)
	if !errors.Is(err, types.ErrShortRow) {
		t.Fatalf("expected ErrShortRow, got %v", err)
	}
	if rows != nil {
		t.Errorf("a failed page must yield no rows, got %d", len(rows))
	}

	var pe *types.ParseError
	if !errors.As(err, &pe) || pe.Row != 1 || pe.Page != 2 {
		t.Errorf("unexpected parse error: %v", err)
	}
}

func TestExtractGroupWithoutCells(t *testing.T) {
	te := NewTableExtractor(TeamGameSchema, testLogger)
	empty := `<div class="rt-tr-group" role="rowgroup"><div class="rt-tr -padRow" role="row"></div></div>`

	_, err := te.Extract(tablePage(rowGroup(sampleCells), empty, fillerGroup()), 2019, 4)
	if !errors.Is(err, types.ErrShortRow) {
		t.Fatalf("expected ErrShortRow, got %v", err)
	}
	var pe *types.ParseError
	if !errors.As(err, &pe) || pe.Row != 1 {
		t.Errorf("unexpected parse error: %v", err)
	}
}

func TestExtractFillerOnly(t *testing.T) {
	te := NewTableExtractor(TeamGameSchema, testLogger)
	rows, err := te.Extract(tablePage(fillerGroup(), fillerGroup()), 2019, 1)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows from a padding-only table, got %d", len(rows))
	}
}

func TestExtractBadCell(t *testing.T) {
	te := NewTableExtractor(TeamGameSchema, testLogger)
	_, err := te.Extract(tablePage(rowGroup(withCell(13, "1,2")), fillerGroup()), 2019, 0)

	var pe *types.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *types.ParseError, got %v", err)
	}
	if pe.Column != "gf" || pe.Row != 0 {
		t.Errorf("expected row 0 column gf, got row %d column %q", pe.Row, pe.Column)
	}
}

func TestExtractCustomSelectors(t *testing.T) {
	var b strings.Builder
	b.WriteString("<table>")
	for _, cells := range [][]string{sampleCells, withCell(0, "")} {
		b.WriteString("<tr>")
		for _, c := range cells {
			fmt.Fprintf(&b, "<td>%s</td>", c)
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</table>")

	te := NewTableExtractor(TeamGameSchema, testLogger, WithSelectors("tr", "td"))
	rows, err := te.Extract(b.String(), 2007, 0)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(rows) != 1 || rows[0].Team != "Boston Bruins" {
		t.Errorf("unexpected rows: %+v", rows)
	}
}

func TestExtractEmptyPage(t *testing.T) {
	te := NewTableExtractor(TeamGameSchema, testLogger)
	rows, err := te.Extract("<html><body></body></html>", 2019, 0)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

// --- Schema Tests ---

func TestSchemaLayout(t *testing.T) {
	if got := TeamGameSchema.CellCount(); got != len(sampleCells) {
		t.Errorf("CellCount() = %d, want %d", got, len(sampleCells))
	}

	cols := TeamGameSchema.StoredColumns()
	if cols[0] != "team" || cols[len(cols)-2] != "season" || cols[len(cols)-1] != "page" {
		t.Errorf("unexpected column order: %v", cols)
	}

	seen := make(map[int]string)
	for _, c := range TeamGameSchema.Columns {
		if prev, ok := seen[c.Cell]; ok {
			t.Errorf("cell %d mapped twice (%s, %s)", c.Cell, prev, c.Name)
		}
		seen[c.Cell] = c.Name
	}
}

func TestSchemaValues(t *testing.T) {
	r := &types.Row{Season: 2019, Page: 4, Team: "Team", Game: "G", Wins: types.Int(3), FaceoffWinPercent: types.Float(50.5)}
	vals := TeamGameSchema.Values(r)
	cols := TeamGameSchema.StoredColumns()
	if len(vals) != len(cols) {
		t.Fatalf("expected %d values, got %d", len(cols), len(vals))
	}

	byName := make(map[string]any, len(cols))
	for i, c := range cols {
		byName[c] = vals[i]
	}
	if byName["wins"] != 3 || byName["fo_win_percent"] != 50.5 {
		t.Errorf("unexpected values: wins=%v fo=%v", byName["wins"], byName["fo_win_percent"])
	}
	if byName["ties"] != nil {
		t.Errorf("absent values must stay nil, got %v", byName["ties"])
	}
	if byName["season"] != 2019 || byName["page"] != 4 {
		t.Errorf("provenance not flattened: %v/%v", byName["season"], byName["page"])
	}
}

func TestCreateTableSQL(t *testing.T) {
	sql := TeamGameSchema.CreateTableSQL("games")
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS games (",
		"team TEXT,",
		"gp INTEGER,",
		"fo_win_percent DOUBLE PRECISION,",
		"page INTEGER NOT NULL",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("CREATE TABLE missing %q:\n%s", want, sql)
		}
	}
}

// --- Benchmarks ---

func BenchmarkExtractPage(b *testing.B) {
	groups := make([]string, 0, 101)
	for i := 0; i < 100; i++ {
		groups = append(groups, rowGroup(sampleCells))
	}
	page := tablePage(append(groups, fillerGroup())...)
	te := NewTableExtractor(TeamGameSchema, testLogger)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		te.Extract(page, 2019, 0)
	}
}
