// Package domain models satellite index processing for coastal erosion
// monitoring: scenes, cloud masks, normalized difference indices, regional
// time series, coastline extraction, and risk classification. Everything here
// is pure computation over value types; I/O lives in the adapters.
//
// # Imagery
//
// Scenes are multispectral surface reflectance acquisitions, typically
// Sentinel-2 L2A from a STAC catalog. Each scene carries co-registered bands
// under canonical names ([BandRed], [BandGreen], [BandNIR]) and a quality
// layer: either a per-pixel scene classification (SCL) or a cloud
// probability in percent.
//
// Sentinel-2 SCL codes, in [SceneClass] order:
//
//	0 no data            6 water
//	1 saturated/defective 7 unclassified
//	2 dark area          8 cloud, medium probability
//	3 cloud shadow       9 cloud, high probability
//	4 vegetation        10 thin cirrus
//	5 not vegetated     11 snow/ice
//
// The categorical mask rejects 8, 9, 10, and 11 by default. Cloud shadow is
// kept unless configured otherwise.
//
// # Nodata
//
// [Raster] tracks nodata in a bitmap, never as NaN. A pixel becomes nodata
// when the provider flagged it, the mask rejected it, an index input was
// nodata, or the index denominator was zero. Nodata never re-becomes data.
//
// # Indices
//
//	NDVI = (NIR - Red) / (NIR + Red)      vegetation; tracked over time
//	NDWI = (Green - NIR) / (Green + NIR)  water; above 0.1 is water
//
// # Time series and risk
//
// Per-scene regional means are collected into a [TimeSeries] with one sample
// per UTC day (same-day samples are averaged) in ascending date order. The
// risk tier compares only the first and last samples:
//
//	delta <= -0.2         High
//	-0.2 < delta < -0.1   Watch
//	delta >= -0.1         Stable
//	fewer than 2 samples  Unknown
//
// # Determinism
//
// Means are computed over sorted values with compensated summation, so a
// series is bit-identical regardless of the order scenes or pixels arrive in.
package domain
