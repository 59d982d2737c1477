// Package daterange decides whether an article is recent enough to keep.
//
// Two thresholds exist. The search threshold is derived once per run from
// the lookback window (see model.SearchThreshold). The range filter then
// recomputes an effective threshold from it with its own month arithmetic.
// Both formulas are kept as they are because exported data depends on them.
package daterange
