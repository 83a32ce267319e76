package eubrewnet

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/couchcryptid/uv-irradiance-etl/internal/domain"
)

// A getUV payload is a flat array of five-element groups, one group per scan:
// header, times, wavelengths (Å), steps, counts.
const scanGroupSize = 5

// Header list indexes of a scan group.
const (
	hdrIntegrationTime = 2 + iota
	hdrDeadTime
	hdrCycles
	hdrDate
	hdrPlace
	hdrLatitude
	hdrLongitude
	hdrTemperature
	hdrPressure
	hdrDark
)

type scanGroup struct {
	header      []any
	times       []float64
	wavelengths []float64
	steps       []float64
	counts      []float64
}

func parseScans(scanType string, data []json.RawMessage) ([]domain.Section, error) {
	if len(data)%scanGroupSize != 0 {
		return nil, fmt.Errorf("scan payload has %d elements, not a multiple of %d", len(data), scanGroupSize)
	}
	var sections []domain.Section
	for i := 0; i < len(data); i += scanGroupSize {
		var g scanGroup
		targets := []any{&g.header, &g.times, &g.wavelengths, &g.steps, &g.counts}
		for j, target := range targets {
			if err := json.Unmarshal(data[i+j], target); err != nil {
				return nil, fmt.Errorf("scan %d element %d: %w", i/scanGroupSize, j, err)
			}
		}
		section, err := g.section(scanType)
		if err != nil {
			return nil, fmt.Errorf("scan %d: %w", i/scanGroupSize, err)
		}
		sections = append(sections, section)
	}
	return sections, nil
}

func (g scanGroup) section(scanType string) (domain.Section, error) {
	header, err := g.parseHeader(scanType)
	if err != nil {
		return domain.Section{}, err
	}
	n := len(g.times)
	if len(g.wavelengths) != n || len(g.steps) != n || len(g.counts) != n {
		return domain.Section{}, fmt.Errorf("sample arrays differ in length")
	}
	values := make([]domain.RawValue, n)
	for i := range n {
		values[i] = domain.NewRawValue(g.times[i], g.wavelengths[i]/10, int(g.steps[i]), g.counts[i])
	}
	return domain.Section{Header: header, Values: meanOfDuplicates(values)}, nil
}

func (g scanGroup) parseHeader(scanType string) (domain.SectionHeader, error) {
	if len(g.header) <= hdrDark {
		return domain.SectionHeader{}, fmt.Errorf("header has %d fields, want %d", len(g.header), hdrDark+1)
	}
	nums := make(map[int]float64, 8)
	for _, idx := range []int{hdrIntegrationTime, hdrDeadTime, hdrCycles, hdrLatitude, hdrLongitude, hdrTemperature, hdrPressure, hdrDark} {
		v, err := toFloat(g.header[idx])
		if err != nil {
			return domain.SectionHeader{}, fmt.Errorf("header field %d: %w", idx, err)
		}
		nums[idx] = v
	}
	dateStr, _ := g.header[hdrDate].(string)
	date, err := time.Parse(time.DateOnly, dateStr)
	if err != nil {
		return domain.SectionHeader{}, fmt.Errorf("header date: %w", err)
	}
	place, _ := g.header[hdrPlace].(string)
	return domain.SectionHeader{
		Type:            scanType,
		IntegrationTime: nums[hdrIntegrationTime],
		DeadTime:        nums[hdrDeadTime],
		Cycles:          int(nums[hdrCycles]),
		Date:            date,
		Place:           place,
		Position:        domain.Position{Latitude: nums[hdrLatitude], Longitude: nums[hdrLongitude]},
		Temperature:     nums[hdrTemperature],
		Pressure:        nums[hdrPressure],
		Dark:            nums[hdrDark],
	}, nil
}

// meanOfDuplicates sorts samples by wavelength and merges samples sharing a
// wavelength into their mean.
func meanOfDuplicates(values []domain.RawValue) []domain.RawValue {
	sorted := slices.Clone(values)
	slices.SortStableFunc(sorted, func(a, b domain.RawValue) int {
		switch {
		case a.Wavelength < b.Wavelength:
			return -1
		case a.Wavelength > b.Wavelength:
			return 1
		}
		return 0
	})

	out := make([]domain.RawValue, 0, len(sorted))
	for i := 0; i < len(sorted); {
		j := i + 1
		for j < len(sorted) && sorted[j].Wavelength == sorted[i].Wavelength {
			j++
		}
		if j-i == 1 {
			out = append(out, sorted[i])
			i = j
			continue
		}
		var t, step, events float64
		for _, v := range sorted[i:j] {
			t += v.Time
			step += float64(v.Step)
			events += v.Events
		}
		k := float64(j - i)
		out = append(out, domain.NewRawValue(t/k, sorted[i].Wavelength, int(math.Round(step/k)), events/k))
		i = j
	}
	return out
}
