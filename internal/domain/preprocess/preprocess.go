// Package preprocess implements BatchPreprocessor: turns the raw rows
// fetched for one measurement batch into a clean per-landmark RTT series
// plus proxy-overhead diagnostics recorded onto the batch metadata.
package preprocess

import (
	"math"
	"net"
	"sort"

	"go.uber.org/zap"

	"github.com/location-microservice/internal/domain"
)

const (
	minUsableRttMs = 0.0
	maxUsableRttMs = 5000.0
	floorRttMs     = 0.1

	routerSubtractionMs    = 5.0
	colocationToleranceDeg = 0.01

	statusSuccess           = 0
	statusConnectionRefused = 111
)

// Preprocessor applies the filtering and proxy-overhead-subtraction
// policy of §4.5 to one batch's raw measurements.
type Preprocessor struct {
	logger *zap.Logger
}

// New builds a Preprocessor that logs dropped-measurement warnings to l.
func New(l *zap.Logger) *Preprocessor {
	return &Preprocessor{logger: l}
}

// series is the per-landmark, post-filter, pre-overhead-subtraction RTT
// series for one destination address.
type series struct {
	dst  net.IP
	rtts []float32
}

// Process filters meta's raw samples, estimates and subtracts proxy
// overhead, and returns the cleaned {landmark -> sorted RTTs ms} map. meta
// is mutated in place with the proxy-estimation diagnostics. landmarks
// supplies the position lookup the there-and-back method needs to find
// hosts colocated with the client.
func (p *Preprocessor) Process(meta *domain.BatchMetadata, samples []domain.RttSample, landmarks []domain.LandmarkPosition) map[string][]float32 {
	filtered := p.filter(meta, samples)

	positions := make(map[string]domain.LandmarkPosition, len(landmarks))
	for _, l := range landmarks {
		positions[l.IPv4.String()] = l
	}

	adjustment, method, identifier, unclamped := p.estimateProxyOverhead(meta, filtered, positions)

	meta.ProxyEstimation = domain.ProxyRttEstimation{
		Method:              method,
		AdjustmentMs:        adjustment,
		UnclampedAdjustment: unclamped,
		Identifier:          identifier,
	}

	out := make(map[string][]float32, len(filtered))
	for key, s := range filtered {
		adjusted := make([]float32, len(s.rtts))
		for i, rtt := range s.rtts {
			v := float64(rtt) - adjustment
			if v < floorRttMs {
				v = floorRttMs
			}
			adjusted[i] = float32(v)
		}
		sort.Slice(adjusted, func(i, j int) bool { return adjusted[i] < adjusted[j] })
		out[key] = adjusted
	}
	return out
}

// filter applies the status/zero-RTT/self-destination/out-of-range rules
// and groups surviving samples by destination IP.
func (p *Preprocessor) filter(meta *domain.BatchMetadata, samples []domain.RttSample) map[string]series {
	out := make(map[string]series)
	loopback := net.ParseIP("127.0.0.1")

	for _, s := range samples {
		if s.Status != statusSuccess && s.Status != statusConnectionRefused {
			continue
		}
		if s.RttMs == 0 {
			continue
		}
		if s.Dst.Equal(loopback) || s.Dst.Equal(meta.ClientAddr) || (meta.Proxied && s.Dst.Equal(meta.ProxyAddr)) {
			continue
		}
		if s.RttMs < minUsableRttMs || s.RttMs >= maxUsableRttMs {
			if p.logger != nil {
				p.logger.Warn("dropping out-of-range RTT",
					zap.Int64("batch", meta.BatchID),
					zap.String("dst", s.Dst.String()),
					zap.Float32("rtt_ms", s.RttMs))
			}
			continue
		}

		key := s.Dst.String()
		entry := out[key]
		entry.dst = s.Dst
		entry.rtts = append(entry.rtts, s.RttMs)
		out[key] = entry
	}
	return out
}

// estimateProxyOverhead implements the three-tier proxy-RTT overhead
// estimation of §4.5 and returns (adjustment_ms, method, identifier,
// unclamped_adjustment_ms). unclamped is 0 unless clamping occurred.
func (p *Preprocessor) estimateProxyOverhead(meta *domain.BatchMetadata, filtered map[string]series, positions map[string]domain.LandmarkPosition) (adjustment float64, method, identifier string, unclamped float64) {
	if !meta.Proxied {
		return 0, "", "", 0
	}

	globalMin := math.Inf(1)
	for _, s := range filtered {
		for _, r := range s.rtts {
			if float64(r) < globalMin {
				globalMin = float64(r)
			}
		}
	}
	clamp := globalMin - routerSubtractionMs
	if clamp < 0 {
		clamp = 0
	}

	if routerIP, ok := routerAddress(meta.ProxyAddr); ok {
		if s, ok := filtered[routerIP.String()]; ok && len(s.rtts) > 0 {
			method = "router"
			identifier = routerIP.String()
			adjustment = minOf(s.rtts) - routerSubtractionMs
		}
	}

	if method == "" {
		if dst, minRtt, ok := smallestColocatedHost(meta, filtered, positions); ok {
			method = "there_and_back"
			identifier = dst
			adjustment = minRtt/2 - routerSubtractionMs
		}
	}

	if method == "" {
		method = "clamp"
		adjustment = clamp
		return clampToRange(adjustment, clamp), method, identifier, 0
	}

	if adjustment > clamp {
		unclamped = adjustment
		adjustment = clamp
		method = method + "_clamped"
	}

	return clampToRange(adjustment, clamp), method, identifier, unclamped
}

func clampToRange(adjustment, clamp float64) float64 {
	if adjustment < 0 {
		adjustment = 0
	}
	if adjustment > clamp {
		adjustment = clamp
	}
	return adjustment
}

// routerAddress returns the proxy's /24 network's .1 address, if
// proxyAddr is a valid IPv4 address.
func routerAddress(proxyAddr net.IP) (net.IP, bool) {
	v4 := proxyAddr.To4()
	if v4 == nil {
		return nil, false
	}
	router := net.IPv4(v4[0], v4[1], v4[2], 1)
	return router, true
}

// smallestColocatedHost finds the measured destination whose landmark
// position is within colocationToleranceDeg of the client's, and returns
// its address and minimum RTT.
//
// The source this was distilled from tests |lat| twice instead of |lat|
// and |lon|; treated here as the evident fix, testing both coordinates
// against the client's position.
func smallestColocatedHost(meta *domain.BatchMetadata, filtered map[string]series, positions map[string]domain.LandmarkPosition) (dst string, minRtt float64, ok bool) {
	best := math.Inf(1)
	var bestDst string
	for key, s := range filtered {
		pos, found := positions[key]
		if !found {
			continue
		}
		if math.Abs(pos.Lat-meta.ClientLat) >= colocationToleranceDeg || math.Abs(pos.Lon-meta.ClientLon) >= colocationToleranceDeg {
			continue
		}
		m := minOf(s.rtts)
		if m < best {
			best = m
			bestDst = key
		}
	}
	if bestDst == "" {
		return "", 0, false
	}
	return bestDst, best, true
}

func minOf(rtts []float32) float64 {
	m := math.Inf(1)
	for _, r := range rtts {
		if float64(r) < m {
			m = float64(r)
		}
	}
	return m
}
