package scoring

import (
	"testing"
	"time"

	"Web3Scanner/internal/domain"
)

var testWeights = map[string]float64{
	"news":    1.0,
	"funding": 1.0,
	"github":  0.9,
}

func TestRankDeterminism(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 26, 12, 0, 0, 0, time.UTC)
	snapshot := []domain.Signal{
		{
			SourceID:    "news",
			Fingerprint: "a",
			ObservedAt:  now.Add(-3 * time.Hour),
			Payload:     domain.Payload{Title: "Arbitrum launches new DEX incentives", Summary: "liquidity mining on arbitrum"},
		},
		{
			SourceID:    "github",
			Fingerprint: "b",
			ObservedAt:  now.Add(-10 * time.Hour),
			Payload:     domain.Payload{Title: "solana indexer toolkit", Summary: "rpc indexer", Stars: 420, Forks: 37},
		},
	}

	e := NewEngine(testWeights)
	first, _ := e.Rank(snapshot, now)
	second, _ := e.Rank(snapshot, now)

	for i := range first {
		if first[i].Score != second[i].Score {
			t.Fatalf("signal %s: score differs between runs: %v vs %v",
				first[i].Fingerprint, first[i].Score, second[i].Score)
		}
		if first[i].Payload.Ecosystem != second[i].Payload.Ecosystem ||
			first[i].Payload.Sector != second[i].Payload.Sector {
			t.Fatalf("signal %s: tags differ between runs", first[i].Fingerprint)
		}
	}

	// The input snapshot stays untouched.
	if snapshot[0].Scored || snapshot[0].Score != 0 {
		t.Fatal("Rank mutated its input")
	}
}

func TestRecencyMonotonic(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 26, 12, 0, 0, 0, time.UTC)
	e := NewEngine(testWeights)

	base := domain.Signal{
		SourceID: "news",
		Payload:  domain.Payload{Title: "Optimism bridge upgrade", Summary: "bridge security hard fork"},
	}
	fresh := base
	fresh.ObservedAt = now.Add(-time.Hour)
	aged := base
	aged.ObservedAt = now.Add(-20 * time.Hour)

	scored, _ := e.Rank([]domain.Signal{fresh, aged}, now)
	if scored[0].Score <= scored[1].Score {
		t.Fatalf("fresher signal must outscore the aged one: %v vs %v",
			scored[0].Score, scored[1].Score)
	}
}

func TestMagnitudeRaisesScore(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 26, 12, 0, 0, 0, time.UTC)
	e := NewEngine(testWeights)

	plain := domain.Signal{
		SourceID:   "funding",
		ObservedAt: now.Add(-2 * time.Hour),
		Payload:    domain.Payload{Title: "DEX seed round", Summary: "lending protocol raises"},
	}
	funded := plain
	funded.Payload.AmountUSD = 50_000_000

	scored, _ := e.Rank([]domain.Signal{plain, funded}, now)
	if scored[1].Score <= scored[0].Score {
		t.Fatalf("funding amount must raise the score: %v vs %v",
			scored[1].Score, scored[0].Score)
	}
}

func TestRankExcludesEmptySignals(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 26, 12, 0, 0, 0, time.UTC)
	e := NewEngine(testWeights)

	snapshot := []domain.Signal{
		{SourceID: "news", Fingerprint: "ok", ObservedAt: now, Payload: domain.Payload{Title: "Starknet fees drop"}},
		{SourceID: "news", Fingerprint: "empty", ObservedAt: now, Payload: domain.Payload{Summary: "   "}},
	}

	scored, excluded := e.Rank(snapshot, now)
	if excluded != 1 {
		t.Fatalf("excluded=%d, want 1", excluded)
	}
	if len(scored) != 1 || scored[0].Fingerprint != "ok" {
		t.Fatalf("unexpected scored set: %+v", scored)
	}
	if !scored[0].Scored {
		t.Fatal("surviving signal must be marked scored")
	}
}

func TestCategoryDetection(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 26, 12, 0, 0, 0, time.UTC)
	e := NewEngine(testWeights)

	cases := []struct {
		name          string
		payload       domain.Payload
		wantEcosystem string
		wantSector    string
	}{
		{
			name:          "l2 defi",
			payload:       domain.Payload{Title: "ZkSync perps venue goes live", Summary: "derivatives trading"},
			wantEcosystem: "ethereum_l2s",
			wantSector:    "defi",
		},
		{
			name:          "solana infra",
			payload:       domain.Payload{Title: "Solana RPC provider expands", Summary: "oracle capacity"},
			wantEcosystem: "solana",
			wantSector:    "infrastructure",
		},
		{
			name:          "no match",
			payload:       domain.Payload{Title: "Quarterly market commentary", Summary: "macro outlook"},
			wantEcosystem: "unknown",
			wantSector:    "unknown",
		},
		{
			name:          "preset tags win",
			payload:       domain.Payload{Title: "Solana DEX launch", Summary: "amm", Ecosystem: "bitcoin_l2s", Sector: "gaming"},
			wantEcosystem: "bitcoin_l2s",
			wantSector:    "gaming",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			scored, _ := e.Rank([]domain.Signal{{SourceID: "news", ObservedAt: now, Payload: tc.payload}}, now)
			if len(scored) != 1 {
				t.Fatalf("expected one scored signal, got %d", len(scored))
			}
			if got := scored[0].Payload.Ecosystem; got != tc.wantEcosystem {
				t.Errorf("ecosystem=%s, want %s", got, tc.wantEcosystem)
			}
			if got := scored[0].Payload.Sector; got != tc.wantSector {
				t.Errorf("sector=%s, want %s", got, tc.wantSector)
			}
		})
	}
}

func TestScoreBounds(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 26, 12, 0, 0, 0, time.UTC)
	e := NewEngine(testWeights)

	maxed := domain.Signal{
		SourceID:   "funding",
		ObservedAt: now,
		Payload: domain.Payload{
			Title:     "Arbitrum lending giant raises",
			Summary:   "dex liquidity round",
			AmountUSD: 5e9,
			Stars:     100000,
		},
	}

	scored, _ := e.Rank([]domain.Signal{maxed}, now)
	if s := scored[0].Score; s < 0 || s > 100 {
		t.Fatalf("score out of bounds: %v", s)
	}
}
