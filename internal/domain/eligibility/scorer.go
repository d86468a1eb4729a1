// Package eligibility scores how likely a wallet is to qualify for an
// opportunity on a given chain. Scoring is a pure weighted heuristic over an
// on-chain signal snapshot; it never touches the network.
package eligibility

import (
	"fmt"
	"math"
)

// Factor weights. The four base weights sum to 1.00; the allowlist bonus is
// additive on top, so a fully qualified allowlisted wallet scores 1.05.
const (
	WeightChainPresence = 0.40
	WeightWalletAge     = 0.25
	WeightTxCount       = 0.20
	WeightHoldings      = 0.15
	AllowlistBonus      = 0.05

	// Caps above which more history earns no additional credit.
	WalletAgeCapDays = 30
	TxCountCap       = 10
)

// Label thresholds on the rounded score.
const (
	LikelyThreshold = 0.70
	MaybeThreshold  = 0.40
)

// Label is the discrete eligibility verdict.
type Label string

const (
	LabelLikely   Label = "likely"
	LabelMaybe    Label = "maybe"
	LabelUnlikely Label = "unlikely"
)

// Signals is a wallet's on-chain snapshot evaluated against one required
// chain. HasActivityOnChain is supplied by the caller from whatever chain
// index it keeps; the scorer only probes the required chain.
type Signals struct {
	WalletAgeDays      int
	TxCount            int
	HoldsOnChain       bool
	HasAllowlistProof  bool
	RequiredChain      string
	HasActivityOnChain func(chain string) bool
}

// Breakdown holds the weighted contribution of each factor. The five fields
// sum to the unrounded score.
type Breakdown struct {
	ChainPresence    float64 `json:"chain_presence"`
	WalletAge        float64 `json:"wallet_age"`
	TransactionCount float64 `json:"transaction_count"`
	Holdings         float64 `json:"holdings"`
	AllowlistBonus   float64 `json:"allowlist_bonus"`
}

// Result is the scored verdict for one wallet/chain pair.
type Result struct {
	Score     float64   `json:"score"`
	Label     Label     `json:"label"`
	Breakdown Breakdown `json:"breakdown"`
	Reasons   []string  `json:"reasons"`
}

// Score evaluates the snapshot. It is total: negative counts contribute
// zero, values past the caps earn full factor weight, and a nil activity
// predicate is treated as no activity anywhere. Identical signals always
// produce an identical result.
func Score(s Signals) Result {
	var b Breakdown
	reasons := make([]string, 0, 5)

	active := s.HasActivityOnChain != nil && s.HasActivityOnChain(s.RequiredChain)
	if active {
		b.ChainPresence = WeightChainPresence
		reasons = append(reasons, fmt.Sprintf("Active on %s", s.RequiredChain))
	} else {
		reasons = append(reasons, fmt.Sprintf("No activity on %s", s.RequiredChain))
	}

	ageDays := s.WalletAgeDays
	if ageDays < 0 {
		ageDays = 0
	}
	switch {
	case ageDays >= WalletAgeCapDays:
		b.WalletAge = WeightWalletAge
		reasons = append(reasons, fmt.Sprintf("Wallet age %d+ days", WalletAgeCapDays))
	case ageDays > 0:
		b.WalletAge = float64(ageDays) / WalletAgeCapDays * WeightWalletAge
		reasons = append(reasons, fmt.Sprintf("Wallet age %d days", ageDays))
	default:
		reasons = append(reasons, fmt.Sprintf("New wallet (%d days)", ageDays))
	}

	txCount := s.TxCount
	if txCount < 0 {
		txCount = 0
	}
	switch {
	case txCount >= TxCountCap:
		b.TransactionCount = WeightTxCount
		reasons = append(reasons, fmt.Sprintf("%d+ transactions", TxCountCap))
	case txCount == 1:
		b.TransactionCount = 1.0 / TxCountCap * WeightTxCount
		reasons = append(reasons, "Only 1 transaction")
	case txCount > 1:
		b.TransactionCount = float64(txCount) / TxCountCap * WeightTxCount
		reasons = append(reasons, fmt.Sprintf("Only %d transactions", txCount))
	default:
		reasons = append(reasons, "No transactions")
	}

	if s.HoldsOnChain {
		b.Holdings = WeightHoldings
		reasons = append(reasons, "Holds qualifying token")
	} else {
		reasons = append(reasons, "No qualifying holdings")
	}

	if s.HasAllowlistProof {
		b.AllowlistBonus = AllowlistBonus
		reasons = append(reasons, "Allowlist proof found")
	} else {
		reasons = append(reasons, "No allowlist proof")
	}

	score := round2(b.ChainPresence + b.WalletAge + b.TransactionCount + b.Holdings + b.AllowlistBonus)

	return Result{
		Score:     score,
		Label:     labelFor(score),
		Breakdown: b,
		Reasons:   reasons,
	}
}

func labelFor(score float64) Label {
	switch {
	case score >= LikelyThreshold:
		return LabelLikely
	case score >= MaybeThreshold:
		return LabelMaybe
	default:
		return LabelUnlikely
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
