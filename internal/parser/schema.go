package parser

import (
	"fmt"
	"strings"

	"github.com/jkh-code/nhl-win-factors-analysis/internal/types"
)

// Kind is the value type of a schema column.
type Kind int

const (
	KindText Kind = iota
	KindInt
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return "unknown"
	}
}

// SQLType returns the Postgres column type for the kind.
func (k Kind) SQLType() string {
	switch k {
	case KindInt:
		return "INTEGER"
	case KindFloat:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

// Column binds a stored field name to its cell position in a table row.
type Column struct {
	Name string
	Cell int
	Kind Kind

	// field points at the Row field the column fills. It returns *string,
	// **int or **float64 according to Kind.
	field func(r *types.Row) any
}

// Schema is the ordered set of columns read from each table row.
type Schema struct {
	Columns []Column
}

// TeamGameSchema is the team game-by-game report layout. Cell 0 holds the
// row ordinal and is not stored.
var TeamGameSchema = Schema{Columns: []Column{
	{"team", 1, KindText, func(r *types.Row) any { return &r.Team }},
	{"game", 2, KindText, func(r *types.Row) any { return &r.Game }},
	{"gp", 3, KindInt, func(r *types.Row) any { return &r.GamesPlayed }},
	{"wins", 4, KindInt, func(r *types.Row) any { return &r.Wins }},
	{"losses", 5, KindInt, func(r *types.Row) any { return &r.Losses }},
	{"ties", 6, KindInt, func(r *types.Row) any { return &r.Ties }},
	{"ot_losses", 7, KindInt, func(r *types.Row) any { return &r.OTLosses }},
	{"points", 8, KindInt, func(r *types.Row) any { return &r.Points }},
	{"point_percent", 9, KindFloat, func(r *types.Row) any { return &r.PointPercent }},
	{"reg_wins", 10, KindInt, func(r *types.Row) any { return &r.RegWins }},
	{"reg_ot_wins", 11, KindInt, func(r *types.Row) any { return &r.RegOTWins }},
	{"so_wins", 12, KindInt, func(r *types.Row) any { return &r.SOWins }},
	{"gf", 13, KindInt, func(r *types.Row) any { return &r.GoalsFor }},
	{"ga", 14, KindInt, func(r *types.Row) any { return &r.GoalsAgainst }},
	{"gf_per_gp", 15, KindFloat, func(r *types.Row) any { return &r.GoalsForPerGame }},
	{"ga_per_gp", 16, KindFloat, func(r *types.Row) any { return &r.GoalsAgainstPerGame }},
	{"pp_percent", 17, KindFloat, func(r *types.Row) any { return &r.PowerPlayPercent }},
	{"pk_percent", 18, KindFloat, func(r *types.Row) any { return &r.PenaltyKillPercent }},
	{"pp_net_percent", 19, KindFloat, func(r *types.Row) any { return &r.PowerPlayNetPercent }},
	{"pk_net_percent", 20, KindFloat, func(r *types.Row) any { return &r.PenaltyKillNetPct }},
	{"sf_per_gp", 21, KindFloat, func(r *types.Row) any { return &r.ShotsForPerGame }},
	{"sa_per_gp", 22, KindFloat, func(r *types.Row) any { return &r.ShotsAgainstPerGame }},
	{"fo_win_percent", 23, KindFloat, func(r *types.Row) any { return &r.FaceoffWinPercent }},
}}

// CellCount is the minimum number of cells a row must have.
func (s Schema) CellCount() int {
	n := 0
	for _, c := range s.Columns {
		if c.Cell+1 > n {
			n = c.Cell + 1
		}
	}
	return n
}

// StoredColumns returns the structured-store column names: the schema
// columns followed by season and page.
func (s Schema) StoredColumns() []string {
	names := make([]string, 0, len(s.Columns)+2)
	for _, c := range s.Columns {
		names = append(names, c.Name)
	}
	return append(names, "season", "page")
}

// Values flattens a row in StoredColumns order. Absent numbers stay nil.
func (s Schema) Values(r *types.Row) []any {
	vals := make([]any, 0, len(s.Columns)+2)
	for _, c := range s.Columns {
		switch p := c.field(r).(type) {
		case *string:
			vals = append(vals, *p)
		case **int:
			if *p == nil {
				vals = append(vals, nil)
			} else {
				vals = append(vals, **p)
			}
		case **float64:
			if *p == nil {
				vals = append(vals, nil)
			} else {
				vals = append(vals, **p)
			}
		}
	}
	return append(vals, r.Season, r.Page)
}

// CreateTableSQL renders a CREATE TABLE statement matching the schema.
func (s Schema) CreateTableSQL(table string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", table)
	for _, c := range s.Columns {
		fmt.Fprintf(&b, "    %s %s,\n", c.Name, c.Kind.SQLType())
	}
	b.WriteString("    season INTEGER NOT NULL,\n")
	b.WriteString("    page INTEGER NOT NULL\n")
	b.WriteString(");\n")
	return b.String()
}

// set decodes a cell into the row field backing c.
func (c Column) set(r *types.Row, cell string) error {
	switch p := c.field(r).(type) {
	case *string:
		*p = cell
	case **int:
		v, err := ParseInt(cell)
		if err != nil {
			return err
		}
		*p = v
	case **float64:
		v, err := ParseFloat(cell)
		if err != nil {
			return err
		}
		*p = v
	default:
		return fmt.Errorf("column %q: unsupported field type %T", c.Name, p)
	}
	return nil
}
