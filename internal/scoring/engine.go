// Package scoring ranks and classifies in-window signals. Scoring is a pure
// function of (snapshot, now): identical inputs always produce identical
// scores.
package scoring

import (
	"math"
	"sort"
	"strings"
	"time"

	"Web3Scanner/internal/domain"
)

const maxScore = 100.0

// ecosystemKeywords tag a signal with the chain family it talks about.
var ecosystemKeywords = map[string][]string{
	"ethereum_l2s": {"arbitrum", "optimism", "base", "zksync", "scroll", "starknet", "linea", "polygon", "rollup"},
	"solana":       {"solana", "spl", "jupiter", "raydium"},
	"bitcoin_l2s":  {"bitcoin l2", "bitvm", "stacks", "lightning", "babylon", "rootstock"},
}

// sectorKeywords tag a signal with a market sector.
var sectorKeywords = map[string][]string{
	"defi":           {"dex", "amm", "lending", "borrow", "perps", "derivatives", "yield", "liquidity", "tvl", "vault"},
	"infrastructure": {"rpc", "indexer", "oracle", "bridge", "sequencer", "data availability", "zk", "rollup"},
	"ai_crypto":      {"agent", "agents", " ai ", "llm", "gpu", "inference"},
	"gaming":         {"game", "gaming", "metaverse"},
	"nft":            {"nft", "collection", "mint"},
}

var ecosystemWeights = map[string]float64{
	"ethereum_l2s": 1.0,
	"solana":       0.95,
	"bitcoin_l2s":  0.95,
	"unknown":      0.7,
}

var sectorWeights = map[string]float64{
	"defi":           1.0,
	"infrastructure": 0.95,
	"ai_crypto":      0.9,
	"gaming":         0.6,
	"nft":            0.5,
	"unknown":        0.7,
}

// Engine assigns scores and category tags to signal snapshots.
type Engine struct {
	sourceWeights map[string]float64
}

// NewEngine builds an Engine with per-source weights from configuration.
func NewEngine(sourceWeights map[string]float64) *Engine {
	return &Engine{sourceWeights: sourceWeights}
}

// Rank scores every signal in the snapshot against now and returns a new
// slice; the input is never mutated. Signals without a usable summary are
// excluded and counted instead of aborting the batch.
func (e *Engine) Rank(snapshot []domain.Signal, now time.Time) (scored []domain.Signal, excluded int) {
	scored = make([]domain.Signal, 0, len(snapshot))
	for _, sig := range snapshot {
		if strings.TrimSpace(sig.Payload.Summary) == "" && strings.TrimSpace(sig.Payload.Title) == "" {
			excluded++
			continue
		}

		sig.Payload.Ecosystem = detect(sig, ecosystemKeywords, sig.Payload.Ecosystem)
		sig.Payload.Sector = detect(sig, sectorKeywords, sig.Payload.Sector)
		sig.Score = round2(e.score(sig, now))
		sig.Scored = true
		scored = append(scored, sig)
	}
	return scored, excluded
}

func (e *Engine) score(sig domain.Signal, now time.Time) float64 {
	recency := recencyWeight(sig.ObservedAt, now)
	magnitude := magnitudeWeight(sig.Payload)
	srcW := e.sourceWeight(sig.SourceID)
	ecoW := lookupWeight(ecosystemWeights, sig.Payload.Ecosystem)
	secW := lookupWeight(sectorWeights, sig.Payload.Sector)

	base := 0.45*recency + 0.35*magnitude + 0.20*srcW
	return math.Min(base*ecoW*secW*maxScore, maxScore)
}

// recencyWeight decays monotonically with age: 1.0 at zero age, ~0.37 at
// the window edge.
func recencyWeight(observedAt, now time.Time) float64 {
	hours := now.Sub(observedAt).Hours()
	if hours < 0 {
		hours = 0
	}
	return math.Exp(-hours / 24)
}

// magnitudeWeight folds engagement and funding size into a 0-1 term,
// log-scaled so whales don't dominate.
func magnitudeWeight(p domain.Payload) float64 {
	raw := 5*float64(p.Stars) + 3*float64(p.Forks) + p.AmountUSD/1e6
	w := math.Log10(raw+1) / 3
	if w > 1 {
		w = 1
	}
	return w
}

func (e *Engine) sourceWeight(sourceID string) float64 {
	if w, ok := e.sourceWeights[sourceID]; ok {
		return w
	}
	return 0.6
}

func lookupWeight(weights map[string]float64, key string) float64 {
	if w, ok := weights[key]; ok {
		return w
	}
	return weights["unknown"]
}

func detect(sig domain.Signal, keywords map[string][]string, existing string) string {
	if existing != "" {
		return existing
	}

	text := strings.ToLower(sig.Payload.Title + " " + sig.Payload.Summary)
	// Deterministic category order so re-runs tag identically.
	for _, category := range sortedKeys(keywords) {
		for _, kw := range keywords[category] {
			if strings.Contains(text, kw) {
				return category
			}
		}
	}
	return "unknown"
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
