// Package catalog indexes the instrument files found under a directory tree.
package catalog

import (
	"io/fs"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"github.com/couchcryptid/uv-irradiance-etl/internal/format"
	"github.com/couchcryptid/uv-irradiance-etl/internal/input"
)

// Instrument holds the files of one brewer.
type Instrument struct {
	BrewerID     string
	UV           map[time.Time]string
	Ozone        map[time.Time]string
	Calibrations []string // sorted by name; the first is used
	ARFs         []string // sorted by name; the first is used
	Parameters   map[int]string
}

// Catalog maps brewer ids to their files.
type Catalog struct {
	Root        string
	instruments map[string]*Instrument
}

// Scan walks root recursively and classifies every file by name. Files that
// do not follow the instrument naming scheme are ignored.
func Scan(root string) (*Catalog, error) {
	c := &Catalog{Root: root, instruments: make(map[string]*Instrument)}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name, ok := format.ParseFileName(path)
		if !ok {
			return nil
		}
		c.add(name, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, inst := range c.instruments {
		sort.Strings(inst.Calibrations)
		sort.Strings(inst.ARFs)
	}
	return c, nil
}

func (c *Catalog) add(name format.FileName, path string) {
	inst, ok := c.instruments[name.BrewerID]
	if !ok {
		inst = &Instrument{
			BrewerID:   name.BrewerID,
			UV:         make(map[time.Time]string),
			Ozone:      make(map[time.Time]string),
			Parameters: make(map[int]string),
		}
		c.instruments[name.BrewerID] = inst
	}
	switch name.Kind {
	case format.KindUV:
		inst.UV[name.Date] = path
	case format.KindOzone:
		inst.Ozone[name.Date] = path
	case format.KindCalibration:
		inst.Calibrations = append(inst.Calibrations, path)
	case format.KindARF:
		inst.ARFs = append(inst.ARFs, path)
	case format.KindParameters:
		inst.Parameters[name.Year] = path
	}
}

// BrewerIDs returns the brewers found, sorted.
func (c *Catalog) BrewerIDs() []string {
	ids := make([]string, 0, len(c.instruments))
	for id := range c.instruments {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Instrument returns the files of a brewer.
func (c *Catalog) Instrument(brewerID string) (*Instrument, bool) {
	inst, ok := c.instruments[brewerID]
	return inst, ok
}

// Days returns the days of brewerID that have both a UV and a B file,
// sorted.
func (c *Catalog) Days(brewerID string) []time.Time {
	inst, ok := c.instruments[brewerID]
	if !ok {
		return nil
	}
	var days []time.Time
	for day := range inst.UV {
		if _, ok := inst.Ozone[day]; ok {
			days = append(days, day)
		}
	}
	slices.SortFunc(days, func(a, b time.Time) int { return a.Compare(b) })
	return days
}

// Files returns the local files for brewerID on date. Paths the catalog does
// not know are left empty.
func (c *Catalog) Files(brewerID string, date time.Time) input.Files {
	inst, ok := c.instruments[brewerID]
	if !ok {
		return input.Files{}
	}
	f := input.Files{
		UV:         inst.UV[date],
		Ozone:      inst.Ozone[date],
		Parameters: inst.Parameters[date.Year()],
	}
	if len(inst.Calibrations) > 0 {
		f.Calibration = inst.Calibrations[0]
	}
	if len(inst.ARFs) > 0 {
		f.AngularResponse = inst.ARFs[0]
	}
	return f
}
