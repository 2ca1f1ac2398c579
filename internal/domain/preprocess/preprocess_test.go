package preprocess

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/location-microservice/internal/domain"
)

func sample(dst string, rtt float32, status int) domain.RttSample {
	return domain.RttSample{Dst: net.ParseIP(dst), RttMs: rtt, Status: status}
}

func TestProcessDropsUnusableStatuses(t *testing.T) {
	p := New(nil)
	meta := &domain.BatchMetadata{ClientAddr: net.ParseIP("203.0.113.1")}
	samples := []domain.RttSample{
		sample("198.51.100.1", 10, statusSuccess),
		sample("198.51.100.2", 10, statusConnectionRefused),
		sample("198.51.100.3", 10, 110), // other errno, dropped
	}
	out := p.Process(meta, samples, nil)
	assert.Len(t, out, 2)
}

func TestProcessDropsZeroRttAndSelfDestinations(t *testing.T) {
	p := New(nil)
	meta := &domain.BatchMetadata{ClientAddr: net.ParseIP("203.0.113.1")}
	samples := []domain.RttSample{
		sample("198.51.100.1", 0, statusSuccess),
		sample("127.0.0.1", 5, statusSuccess),
		sample("203.0.113.1", 5, statusSuccess), // equals client addr
		sample("198.51.100.2", 5, statusSuccess),
	}
	out := p.Process(meta, samples, nil)
	require.Len(t, out, 1)
	assert.Contains(t, out, "198.51.100.2")
}

func TestProcessDropsOutOfRangeRtt(t *testing.T) {
	p := New(nil)
	meta := &domain.BatchMetadata{ClientAddr: net.ParseIP("203.0.113.1")}
	samples := []domain.RttSample{
		sample("198.51.100.1", 5001, statusSuccess),
		sample("198.51.100.2", 1, statusSuccess),
	}
	out := p.Process(meta, samples, nil)
	require.Len(t, out, 1)
	assert.Contains(t, out, "198.51.100.2")
}

func TestProcessNonProxiedLeavesRttsUnadjusted(t *testing.T) {
	p := New(nil)
	meta := &domain.BatchMetadata{ClientAddr: net.ParseIP("203.0.113.1"), Proxied: false}
	samples := []domain.RttSample{
		sample("198.51.100.1", 10, statusSuccess),
		sample("198.51.100.1", 20, statusSuccess),
	}
	out := p.Process(meta, samples, nil)
	require.Contains(t, out, "198.51.100.1")
	assert.Equal(t, []float32{10, 20}, out["198.51.100.1"])
	assert.Equal(t, "", meta.ProxyEstimation.Method)
}

func TestProcessProxiedRouterMethod(t *testing.T) {
	p := New(nil)
	meta := &domain.BatchMetadata{
		ClientAddr: net.ParseIP("203.0.113.1"),
		Proxied:    true,
		ProxyAddr:  net.ParseIP("10.0.0.17"),
	}
	samples := []domain.RttSample{
		sample("10.0.0.1", 8, statusSuccess),
		sample("198.51.100.50", 20, statusSuccess),
	}
	out := p.Process(meta, samples, nil)

	assert.Equal(t, "router", meta.ProxyEstimation.Method)
	assert.InDelta(t, 3.0, meta.ProxyEstimation.AdjustmentMs, 1e-9)
	require.Contains(t, out, "198.51.100.50")
	assert.InDelta(t, 17.0, float64(out["198.51.100.50"][0]), 1e-6)
}

func TestProcessProxiedRouterMethodClamped(t *testing.T) {
	p := New(nil)
	meta := &domain.BatchMetadata{
		ClientAddr: net.ParseIP("203.0.113.1"),
		Proxied:    true,
		ProxyAddr:  net.ParseIP("10.0.0.17"),
	}
	samples := []domain.RttSample{
		sample("10.0.0.1", 25, statusSuccess), // router method -> 20ms adjustment
		sample("198.51.100.50", 10, statusSuccess), // global min 10ms -> clamp at 5ms
	}
	out := p.Process(meta, samples, nil)

	assert.Equal(t, "router_clamped", meta.ProxyEstimation.Method)
	assert.InDelta(t, 5.0, meta.ProxyEstimation.AdjustmentMs, 1e-9)
	assert.InDelta(t, 20.0, meta.ProxyEstimation.UnclampedAdjustment, 1e-9)
	require.Contains(t, out, "198.51.100.50")
	assert.InDelta(t, 5.0, float64(out["198.51.100.50"][0]), 1e-6)
}

func TestProcessProxiedThereAndBackMethod(t *testing.T) {
	p := New(nil)
	meta := &domain.BatchMetadata{
		ClientAddr: net.ParseIP("203.0.113.1"),
		ClientLat:  10.0,
		ClientLon:  20.0,
		Proxied:    true,
		ProxyAddr:  net.ParseIP("198.18.0.99"), // no router candidate measured
	}
	landmarks := []domain.LandmarkPosition{
		{IPv4: net.ParseIP("198.51.100.50"), Lat: 10.001, Lon: 20.001},
	}
	samples := []domain.RttSample{
		sample("198.51.100.50", 30, statusSuccess),
	}
	out := p.Process(meta, samples, landmarks)

	assert.Equal(t, "there_and_back", meta.ProxyEstimation.Method)
	assert.InDelta(t, 10.0, meta.ProxyEstimation.AdjustmentMs, 1e-9) // 30/2 - 5
	require.Contains(t, out, "198.51.100.50")
	assert.InDelta(t, 20.0, float64(out["198.51.100.50"][0]), 1e-6)
}

func TestProcessProxiedFallsBackToClamp(t *testing.T) {
	p := New(nil)
	meta := &domain.BatchMetadata{
		ClientAddr: net.ParseIP("203.0.113.1"),
		Proxied:    true,
		ProxyAddr:  net.ParseIP("198.18.0.99"),
	}
	samples := []domain.RttSample{
		sample("198.51.100.50", 10, statusSuccess),
	}
	out := p.Process(meta, samples, nil)

	assert.Equal(t, "clamp", meta.ProxyEstimation.Method)
	assert.InDelta(t, 5.0, meta.ProxyEstimation.AdjustmentMs, 1e-9)
	require.Contains(t, out, "198.51.100.50")
	assert.InDelta(t, 5.0, float64(out["198.51.100.50"][0]), 1e-6)
}

func TestProcessFloorsAtPointOneMs(t *testing.T) {
	p := New(nil)
	meta := &domain.BatchMetadata{
		ClientAddr: net.ParseIP("203.0.113.1"),
		Proxied:    true,
		ProxyAddr:  net.ParseIP("198.18.0.99"),
	}
	samples := []domain.RttSample{
		sample("198.51.100.50", 5, statusSuccess),
	}
	out := p.Process(meta, samples, nil)
	require.Contains(t, out, "198.51.100.50")
	assert.GreaterOrEqual(t, float64(out["198.51.100.50"][0]), 0.1)
}
