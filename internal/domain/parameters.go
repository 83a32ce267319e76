package domain

import "sort"

// ParameterRow is one day's entry of a parameter file after carry-forward.
// CloudCover is nil unless the row's own day specified it.
type ParameterRow struct {
	Day        int      `json:"day"`
	Albedo     float64  `json:"albedo"`
	Alpha      float64  `json:"alpha"`
	Beta       float64  `json:"beta"`
	CloudCover *float64 `json:"cloud_cover,omitempty"`
}

// Parameters is a parsed parameter file, rows ordered by day.
type Parameters struct {
	Rows []ParameterRow `json:"rows"`
}

// Resolve returns the row applying to day: the nearest row at or before it,
// or the first row for days before the file starts. Cloud cover is kept only
// when the row is for exactly that day.
func (p Parameters) Resolve(day int) (ParameterRow, bool) {
	if len(p.Rows) == 0 {
		return ParameterRow{}, false
	}
	i := sort.Search(len(p.Rows), func(i int) bool { return p.Rows[i].Day > day }) - 1
	if i < 0 {
		i = 0
	}
	row := p.Rows[i]
	if row.Day != day {
		row.CloudCover = nil
	}
	row.Day = day
	return row, true
}
