// Package domain models Brewer spectrophotometer UV measurements and the
// calibrated irradiance spectra derived from them.
//
// # Instruments
//
// A Brewer is identified by a numeric id ("033", "158"). Every instrument
// produces one raw-measurement file and one ozone file per day, and is
// characterised by a calibration (UVR) file, an angular-response (ARF) file
// and an optional per-year parameter file. File names carry the day of year,
// the two-digit year and the brewer id:
//
//	UV12320.033   raw UV scans, day 123 of 2020, brewer 033
//	B12320.033    ozone summaries for the same day
//	UVRxxxxx.033  calibration, one per instrument
//	arf_xxx033.dat angular response
//	par_20.033    parameter overrides for 2020
//
// # Conventions
//
// Wavelengths are stored in the files in ångström and converted to nanometres
// on parse. Times inside a day are minutes since 00:00 UTC. Longitudes follow
// the instrument convention: positive West. Brewer models are written
// "mki" through "mkiv"; the model decides whether straylight correction is
// applied.
//
// Two-digit years are always read as 20yy.
//
// # Cloud cover
//
// Cloud cover is a fraction in [0, 1]. A value strictly above the diffuse
// threshold (0.9 by default) selects the diffuse cosine correction; a value
// equal to or below the threshold selects the clear-sky correction. When no
// value can be resolved no cosine correction is applied.
package domain
