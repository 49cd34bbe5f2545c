// Package domain holds the constitution classifier and the weather risk
// engine. Everything here is pure: the only package state is the clock used
// to stamp records.
//
// # Constitution
//
// Questionnaire answers are validated by [ParseAnswers], mapped onto five
// tri-state axes by [Normalize] and classified by [Classify]:
//
//	thermo:     cold -1 | neutral 0 | heat +1
//	resilience: low -1 | medium, high +1
//	qi:         deficiency -1 | balanced 0 | stagnation +1
//	blood:      deficiency -1 | balanced 0 | stasis +1
//	fluid:      deficiency -1 | balanced 0 | damp +1
//
// The core code is "<polarity>_<size>": polarity brake/steady/accel follows
// thermo; size is small for low resilience, standard when any of qi, blood
// or fluid is off balance, otherwise large. Up to two sub-labels refine it.
//
// # Weather
//
// A day is scored from the sample at the issue hour with deltas against 24 h
// earlier ([HourlySeries.DailySample]); intraday windows use 3 h deltas
// ([ScanNext24h]). [Score] yields five 0-3 factor scores:
//
//	wind (volatility): round(0.5·P + 0.3·T + 0.2·H) of |Δ| buckets
//	  pressure hPa:  <2 | <5 | <10 | ≥10
//	  temp °C:       <3 | <6 | <10 | ≥10
//	  humidity %:    <10 | <20 | <30 | ≥30
//	cold: <5 °C 2 | <10 °C 1, +1 on a 6 °C drop
//	heat: ≥30 °C 2 | ≥25 °C 1, +1 on a 6 °C rise
//	damp: ≥80 % 2 | ≥70 % 1, +1 on a 15 % rise
//	dry:  <35 % 2 | <45 % 1, +1 on a 15 % fall
//
// # Risk
//
// [Compose] sums exposure (0-6), vulnerability (0-6) and match (0-4):
//
//	risk <6 stable | <10 caution | ≥10 alert
//
// # IDs
//
// Forecast IDs are SHA-256 hashes of user|date so a recomputed day upserts
// the same row. See [generateID].
package domain
