// Package domain holds the data model shared across the geolocation
// pipeline: landmark positions, raw RTT samples, batch metadata, and the
// calibration-variant tags that select a model per (batch, landmark) pair.
// Types here are immutable once constructed and are safe to share
// read-only across worker goroutines.
package domain

import "net"

// LandmarkPosition is a network host at a known location with known
// calibration parameters.
type LandmarkPosition struct {
	IPv4  net.IP `db:"ipv4" validate:"required"`
	Label string `db:"label" validate:"required"`
	// ILabel is the numeric suffix of Label (e.g. "lga-03" -> 3), or -1 if
	// Label carries no numeric suffix.
	ILabel int     `db:"ilabel"`
	Lon    float64 `db:"longitude" validate:"min=-180,max=180"`
	Lat    float64 `db:"latitude" validate:"min=-90,max=90"`
}

// Key identifies the lookup priority CalibrationStore uses: IPv4 first,
// then Label, then ILabel.
func (l LandmarkPosition) Key() LandmarkKey {
	return LandmarkKey{IPv4: l.IPv4.String(), Label: l.Label, ILabel: l.ILabel}
}

type LandmarkKey struct {
	IPv4   string
	Label  string
	ILabel int
}

// RttSample is one raw round-trip-time measurement to a landmark.
type RttSample struct {
	Batch int64   `db:"batch"`
	Dst   net.IP  `db:"dst"`
	RttMs float32 `db:"rtt_ms"`
	// Status is the errno observed by the probe: 0 (success) and 111
	// (ECONNREFUSED) are usable; anything else is filtered out.
	Status int `db:"status"`
}

// Annotation carries the free-form identity metadata the measurement
// client attached to a batch's endpoints (BatchMetadata.ClientAnno and
// BatchMetadata.ProxyAnno).
type Annotation struct {
	Label   string `json:"label,omitempty"`
	Country string `json:"country,omitempty"`
	ASN     int    `json:"asn,omitempty"`
}

// ProxyRttEstimation records how BatchPreprocessor derived the proxy
// overhead subtracted from every RTT in a proxied batch.
type ProxyRttEstimation struct {
	Method              string  `json:"method"` // "router", "there_and_back", "clamp", "<method>_clamped", or "" if not proxied
	AdjustmentMs        float64 `json:"adjustment_ms"`
	UnclampedAdjustment float64 `json:"unclamped_adjustment_ms,omitempty"`
	Identifier          string  `json:"identifier,omitempty"` // router IP or colocated host IP, when applicable
}

// BatchMetadata is the immutable input describing one measurement batch,
// augmented in place by BatchPreprocessor with proxy-estimation diagnostics
// and by BatchRunner with the final on-land flag.
type BatchMetadata struct {
	BatchID int64 `db:"id"`

	ClientLat  float64    `db:"client_lat"`
	ClientLon  float64    `db:"client_lon"`
	ClientAddr net.IP     `db:"client_addr"`
	ClientAnno Annotation `db:"-"`

	Proxied    bool       `db:"proxied"`
	ProxyLat   float64    `db:"proxy_lat"`
	ProxyLon   float64    `db:"proxy_lon"`
	ProxyAddr  net.IP     `db:"proxy_addr"`
	ProxyAnno  Annotation `db:"-"`

	Annot map[string]interface{} `db:"annot"`

	// Populated by BatchPreprocessor.
	ProxyEstimation ProxyRttEstimation `json:"proxy_estimation"`

	// Populated by BatchRunner once the final region is known.
	OnLand bool `json:"on_land"`
}

// ToProperties flattens metadata into the key/value annotation map written
// alongside each output region, per the external-interface contract.
func (m BatchMetadata) ToProperties() map[string]interface{} {
	props := map[string]interface{}{
		"batch_id":    m.BatchID,
		"client_lat":  m.ClientLat,
		"client_lon":  m.ClientLon,
		"proxied":     m.Proxied,
		"on_land":     m.OnLand,
	}
	if m.ClientAnno.Label != "" {
		props["client_label"] = m.ClientAnno.Label
	}
	if m.ClientAnno.Country != "" {
		props["client_country"] = m.ClientAnno.Country
	}
	if m.ClientAnno.ASN != 0 {
		props["client_asn"] = m.ClientAnno.ASN
	}
	if m.Proxied {
		props["proxy_lat"] = m.ProxyLat
		props["proxy_lon"] = m.ProxyLon
		props["proxy_rtt_estimation_method"] = m.ProxyEstimation.Method
		props["proxy_rtt_estimation_ms"] = m.ProxyEstimation.AdjustmentMs
		if m.ProxyEstimation.UnclampedAdjustment != 0 {
			props["proxy_rtt_estimation_unclamped"] = m.ProxyEstimation.UnclampedAdjustment
		}
		if m.ProxyEstimation.Identifier != "" {
			props["proxy_rtt_estimation_identifier"] = m.ProxyEstimation.Identifier
		}
	}
	for k, v := range m.Annot {
		if _, exists := props[k]; !exists {
			props[k] = v
		}
	}
	return props
}

// ModelKind names the calibration model family.
type ModelKind int

const (
	ModelCBG ModelKind = iota
	ModelOctant
	ModelSpotterUniform
	ModelSpotterGaussian
)

// Selector names whether a calibration variant is fit per-landmark or
// pooled across all landmarks.
type Selector int

const (
	SelectorPerLandmark Selector = iota
	SelectorPooledGlobal
)

// RangingMode names how a calibration variant turns an RTT series into a
// (min, max) radius bound.
type RangingMode int

const (
	RangingMinMax RangingMode = iota
	RangingGaussian
)

// CalibrationVariant is one of the four named, reference-configured model
// variants.
type CalibrationVariant struct {
	Tag      string
	Kind     ModelKind
	Selector Selector
	Ranging  RangingMode
}

var (
	VariantCBG             = CalibrationVariant{Tag: "cbg-m-1", Kind: ModelCBG, Selector: SelectorPerLandmark, Ranging: RangingMinMax}
	VariantOctant          = CalibrationVariant{Tag: "oct-m-1", Kind: ModelOctant, Selector: SelectorPerLandmark, Ranging: RangingMinMax}
	VariantSpotterUniform  = CalibrationVariant{Tag: "spo-m-a", Kind: ModelSpotterUniform, Selector: SelectorPooledGlobal, Ranging: RangingMinMax}
	VariantSpotterGaussian = CalibrationVariant{Tag: "spo-g-a", Kind: ModelSpotterGaussian, Selector: SelectorPooledGlobal, Ranging: RangingGaussian}
)

// ReferenceVariants is the set of calibration variants BatchRunner
// evaluates for every batch, in the reference configuration.
var ReferenceVariants = []CalibrationVariant{
	VariantCBG, VariantOctant, VariantSpotterUniform, VariantSpotterGaussian,
}
