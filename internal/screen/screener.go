// Package screen selects tradable pairs for one formation window. Every
// candidate passes through an ordered gate pipeline; any failing gate
// rejects the pair for that cycle only, with the gate name kept for
// diagnostics. Pair evaluation is pure and order-independent, so the
// screener fans candidates out across workers and merges results in
// candidate order.
package screen

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/spreadrun/spreadrun/internal/config"
	"github.com/spreadrun/spreadrun/internal/data"
	"github.com/spreadrun/spreadrun/internal/metrics"
	"github.com/spreadrun/spreadrun/internal/stats"
	"github.com/spreadrun/spreadrun/internal/universe"
)

// PairSpec is a screened pair's frozen hedge relationship for one cycle.
// Weight is mutable until Normalize; nothing here survives into the next
// cycle.
type PairSpec struct {
	T1          string  `json:"t1"`
	T2          string  `json:"t2"`
	Alpha       float64 `json:"alpha"`
	Beta        float64 `json:"beta"`
	SigmaSpread float64 `json:"sigma_spread"`
	SigmaDiff   float64 `json:"sigma_diff"`
	Weight      float64 `json:"weight"`
}

// Gate names, used as rejection reasons and metric labels.
const (
	GateWhitelist = "whitelist"
	GateSector    = "sector"
	GateOverlap   = "overlap"
	GateCorr      = "correlation"
	GateCoint     = "cointegration"
	GateBeta      = "beta"
	GateSigma     = "sigma_diff"
)

// Rejection records why a candidate failed screening.
type Rejection struct {
	T1     string
	T2     string
	Gate   string
	Detail string
}

// Screener evaluates candidate pairs against the gate pipeline.
type Screener struct {
	Gates        config.GateConfig
	Lookback     int
	Formation    int
	Whitelist    universe.PairSet
	Sectors      map[string]int
	WithinSector bool
	Workers      int
	Metrics      *metrics.Registry
}

// RequiredOverlap is the minimum aligned observation count for a
// formation window: at least the z-score lookback, and at least the
// configured overlap floor capped at 80% of the formation length.
func (s *Screener) RequiredOverlap() int {
	req := int(0.8 * float64(s.Formation))
	if s.Gates.MinOverlapDays < req {
		req = s.Gates.MinOverlapDays
	}
	if s.Lookback > req {
		req = s.Lookback
	}
	return req
}

// Evaluate screens every unordered pair from tickers over the formation
// window [formStart, formEnd]. Survivors come back in candidate order
// (tickers are expected sorted); rejections are counted, not returned.
func (s *Screener) Evaluate(ctx context.Context, prices map[string]data.PriceSeries, tickers []string, formStart, formEnd time.Time) []PairSpec {
	type candidate struct{ t1, t2 string }
	var cands []candidate
	for i := 0; i < len(tickers); i++ {
		for j := i + 1; j < len(tickers); j++ {
			cands = append(cands, candidate{tickers[i], tickers[j]})
		}
	}
	if len(cands) == 0 {
		return nil
	}

	workers := s.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(cands) {
		workers = len(cands)
	}

	start := time.Now()
	results := make([]*PairSpec, len(cands))
	rejections := make([]*Rejection, len(cands))

	idx := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				c := cands[i]
				spec, rej := s.evaluatePair(c.t1, c.t2, prices[c.t1], prices[c.t2], formStart, formEnd)
				results[i], rejections[i] = spec, rej
			}
		}()
	}
feed:
	for i := range cands {
		select {
		case <-ctx.Done():
			break feed
		case idx <- i:
		}
	}
	close(idx)
	wg.Wait()

	// Deterministic merge: results land at their candidate index and are
	// collected in that order.
	var chosen []PairSpec
	for i := range results {
		if results[i] != nil {
			chosen = append(chosen, *results[i])
		}
	}
	for _, rej := range rejections {
		if rej != nil {
			s.Metrics.IncRejection(rej.Gate)
			log.Debug().Str("pair", rej.T1+"/"+rej.T2).Str("gate", rej.Gate).
				Str("detail", rej.Detail).Msg("pair rejected")
		}
	}
	s.Metrics.IncEvaluated(len(cands))
	s.Metrics.IncSelected(len(chosen))
	s.Metrics.ObserveScreenSeconds(time.Since(start).Seconds())
	return chosen
}

// evaluatePair runs one candidate through the gates in order.
func (s *Screener) evaluatePair(t1, t2 string, s1, s2 data.PriceSeries, formStart, formEnd time.Time) (*PairSpec, *Rejection) {
	reject := func(gate, detail string) (*PairSpec, *Rejection) {
		return nil, &Rejection{T1: t1, T2: t2, Gate: gate, Detail: detail}
	}

	if !s.Whitelist.Contains(t1, t2) {
		return reject(GateWhitelist, "pair not whitelisted")
	}

	if s.WithinSector {
		sic1, ok1 := s.Sectors[t1]
		sic2, ok2 := s.Sectors[t2]
		if !ok1 || !ok2 {
			return reject(GateSector, "missing sector label")
		}
		if sic1 != sic2 {
			return reject(GateSector, fmt.Sprintf("sectors differ: %d vs %d", sic1, sic2))
		}
	}

	aligned := data.Align(s1.Slice(formStart, formEnd), s2.Slice(formStart, formEnd))
	if req := s.RequiredOverlap(); aligned.Len() < req {
		return reject(GateOverlap, fmt.Sprintf("%d aligned days < %d required", aligned.Len(), req))
	}

	corr := stats.PearsonCorr(aligned.LP1, aligned.LP2)
	if math.IsNaN(corr) || corr < s.Gates.MinLogCorr {
		return reject(GateCorr, fmt.Sprintf("corr %.3f < %.3f", corr, s.Gates.MinLogCorr))
	}

	pval, err := stats.EngleGranger(aligned.LP1, aligned.LP2)
	if err != nil {
		return reject(GateCoint, err.Error())
	}
	if pval > s.Gates.PValMax {
		return reject(GateCoint, fmt.Sprintf("pval %.4f > %.4f", pval, s.Gates.PValMax))
	}

	fit, err := stats.OLS(aligned.LP1, aligned.LP2)
	if err != nil {
		return reject(GateBeta, err.Error())
	}
	if fit.Beta < s.Gates.BetaMin || fit.Beta > s.Gates.BetaMax {
		return reject(GateBeta, fmt.Sprintf("beta %.3f outside [%.2f, %.2f]",
			fit.Beta, s.Gates.BetaMin, s.Gates.BetaMax))
	}

	sigmaSpread := stats.StdDev(fit.Residuals)
	sigmaDiff := stats.StdDev(stats.Diff(fit.Residuals))
	if math.IsNaN(sigmaDiff) || math.IsInf(sigmaDiff, 0) || sigmaDiff <= s.Gates.MinSigmaDiff {
		return reject(GateSigma, fmt.Sprintf("sigma_diff %.6g <= %.6g", sigmaDiff, s.Gates.MinSigmaDiff))
	}

	return &PairSpec{
		T1:          t1,
		T2:          t2,
		Alpha:       fit.Alpha,
		Beta:        fit.Beta,
		SigmaSpread: sigmaSpread,
		SigmaDiff:   sigmaDiff,
		Weight:      1.0 / sigmaDiff,
	}, nil
}

// Normalize rescales the surviving pairs' pre-weights to sum to 1,
// strictly within the current cycle. A zero or non-positive pre-weight
// sum empties the selection so the cycle contributes zero PnL.
func Normalize(specs []PairSpec) []PairSpec {
	if len(specs) == 0 {
		return nil
	}
	sum := 0.0
	for _, p := range specs {
		sum += p.Weight
	}
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil
	}
	out := make([]PairSpec, len(specs))
	for i, p := range specs {
		p.Weight /= sum
		out[i] = p
	}
	return out
}
