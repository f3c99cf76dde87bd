package metrics

import (
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"
)

// Summary is the JSON response for the metrics endpoint.
type Summary struct {
	HTTP     httpSummary    `json:"http"`
	Auth     authInfo       `json:"auth"`
	Sessions sessionInfo    `json:"sessions"`
	DB       dbInfo         `json:"db"`
	Server   serverInfo     `json:"server"`
}

type httpSummary struct {
	TotalRequests float64 `json:"totalRequests"`
	ErrorRate     float64 `json:"errorRate"`
	P50Latency    float64 `json:"p50Latency"`
	P95Latency    float64 `json:"p95Latency"`
	P99Latency    float64 `json:"p99Latency"`
}

type authInfo struct {
	Failures             float64 `json:"failures"`
	Successes            float64 `json:"successes"`
	RateLimitRejections  float64 `json:"rateLimitRejections"`
}

type sessionInfo struct {
	Logins              float64 `json:"logins"`
	Logouts             float64 `json:"logouts"`
	ContributionMinutes float64 `json:"contributionMinutes"`
}

type dbInfo struct {
	TotalConns    float64 `json:"totalConns"`
	IdleConns     float64 `json:"idleConns"`
	AcquiredConns float64 `json:"acquiredConns"`
}

type serverInfo struct {
	StartTime     float64 `json:"startTime"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

// Handler returns an http.HandlerFunc that serves live metrics in JSON format.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.handleLive(w)
	}
}

func (m *Metrics) handleLive(w http.ResponseWriter) {
	families, err := m.registry.Gather()
	if err != nil {
		http.Error(w, "failed to gather metrics", http.StatusInternalServerError)
		return
	}

	fam := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		fam[f.GetName()] = f
	}

	startTime := gaugeValue(fam["taskora_server_start_time_seconds"])

	summary := Summary{
		HTTP: httpSummary{
			TotalRequests: sumCounter(fam["taskora_http_requests_total"]),
			ErrorRate:     computeErrorRate(fam["taskora_http_requests_total"]),
			P50Latency:    histogramPercentile(fam["taskora_http_request_duration_seconds"], 0.50),
			P95Latency:    histogramPercentile(fam["taskora_http_request_duration_seconds"], 0.95),
			P99Latency:    histogramPercentile(fam["taskora_http_request_duration_seconds"], 0.99),
		},
		Auth: authInfo{
			Failures:            counterValue(fam["taskora_auth_failures_total"]),
			Successes:           counterValue(fam["taskora_auth_successes_total"]),
			RateLimitRejections: counterValue(fam["taskora_login_ratelimit_rejections_total"]),
		},
		Sessions: sessionInfo{
			Logins:              counterValue(fam["taskora_project_session_logins_total"]),
			Logouts:             counterValue(fam["taskora_project_session_logouts_total"]),
			ContributionMinutes: counterValue(fam["taskora_contribution_minutes_total"]),
		},
		DB: dbInfo{
			TotalConns:    gaugeValue(fam["taskora_db_pool_total_conns"]),
			IdleConns:     gaugeValue(fam["taskora_db_pool_idle_conns"]),
			AcquiredConns: gaugeValue(fam["taskora_db_pool_acquired_conns"]),
		},
		Server: serverInfo{
			StartTime:     startTime,
			UptimeSeconds: float64(time.Now().Unix()) - startTime,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	_ = json.NewEncoder(w).Encode(summary)
}

// --- Prometheus metric helpers ---

func sumCounter(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	var total float64
	for _, m := range f.GetMetric() {
		if m.GetCounter() != nil {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func counterValue(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	ms := f.GetMetric()
	if len(ms) == 0 {
		return 0
	}
	if ms[0].GetCounter() != nil {
		return ms[0].GetCounter().GetValue()
	}
	return 0
}

func gaugeValue(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	ms := f.GetMetric()
	if len(ms) == 0 {
		return 0
	}
	if ms[0].GetGauge() != nil {
		return ms[0].GetGauge().GetValue()
	}
	return 0
}

func computeErrorRate(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	var total, errors float64
	for _, m := range f.GetMetric() {
		if m.GetCounter() == nil {
			continue
		}
		v := m.GetCounter().GetValue()
		total += v
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "status_code" {
				code := lp.GetValue()
				if len(code) > 0 && code[0] >= '4' {
					errors += v
				}
			}
		}
	}
	if total == 0 {
		return 0
	}
	return errors / total
}

// histogramPercentile estimates a percentile from the merged histogram
// buckets of all series in the family.
func histogramPercentile(f *dto.MetricFamily, q float64) float64 {
	if f == nil {
		return 0
	}

	merged := map[float64]uint64{}
	var totalCount uint64
	for _, m := range f.GetMetric() {
		h := m.GetHistogram()
		if h == nil {
			continue
		}
		totalCount += h.GetSampleCount()
		for _, b := range h.GetBucket() {
			merged[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}
	if totalCount == 0 {
		return 0
	}

	bounds := make([]float64, 0, len(merged))
	for ub := range merged {
		bounds = append(bounds, ub)
	}
	sort.Float64s(bounds)

	target := q * float64(totalCount)
	for _, ub := range bounds {
		if float64(merged[ub]) >= target {
			if math.IsInf(ub, 1) {
				break
			}
			return ub
		}
	}
	if len(bounds) > 0 && !math.IsInf(bounds[len(bounds)-1], 1) {
		return bounds[len(bounds)-1]
	}
	return 0
}
