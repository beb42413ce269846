package gex

import (
	"math"
	"sort"
	"time"

	"github.com/vovonacci/gexray/pkg/models"
	"github.com/vovonacci/gexray/pkg/utils"
)

// TopStrikeByCall returns the strike with the maximal call mass, or nil
// for empty input. Equal masses are broken by strike proximity to spot so
// the result does not depend on the aggregator's output order.
func TopStrikeByCall(masses []models.StrikeMass, spot float64) *float64 {
	return topStrike(masses, spot, func(m models.StrikeMass) float64 { return m.Call })
}

// TopStrikeByPut returns the strike with the maximal put mass magnitude,
// or nil for empty input. Same tie-break as TopStrikeByCall.
func TopStrikeByPut(masses []models.StrikeMass, spot float64) *float64 {
	return topStrike(masses, spot, func(m models.StrikeMass) float64 { return math.Abs(m.Put) })
}

func topStrike(masses []models.StrikeMass, spot float64, value func(models.StrikeMass) float64) *float64 {
	if len(masses) == 0 {
		return nil
	}

	best := masses[0].Strike
	bestVal := value(masses[0])
	for _, m := range masses[1:] {
		v := value(m)
		switch {
		case v > bestVal:
			best, bestVal = m.Strike, v
		case v == bestVal && math.Abs(m.Strike-spot) < math.Abs(best-spot):
			best = m.Strike
		}
	}
	return &best
}

// ZeroDTEExpiry resolves the nearest same-or-future expiry: the earliest
// distinct expiry on or after the current trading day in New York.
// Returns nil when every expiry is in the past (stale chain).
func ZeroDTEExpiry(rows []models.OptionRow, now time.Time) *string {
	seen := make(map[string]bool)
	var expiries []string
	for _, r := range rows {
		if r.Expiry != "" && !seen[r.Expiry] {
			seen[r.Expiry] = true
			expiries = append(expiries, r.Expiry)
		}
	}
	sort.Strings(expiries)

	today := utils.DateNY(now)
	for _, e := range expiries {
		if e >= today {
			return &e
		}
	}
	return nil
}

// TopPutMasses ranks put gamma mass for one expiry, descending, ties by
// strike proximity to spot. Used for the put-support leaderboard table.
func TopPutMasses(rows []models.OptionRow, expiry string, spot float64, limit int) []models.StrikeMassRank {
	byStrike := make(map[float64]float64)
	for _, r := range rows {
		if r.Expiry != expiry || r.Side != models.SidePut {
			continue
		}
		byStrike[r.Strike] += math.Abs(r.Gamma * spot * spot * pctMove * contractMult * float64(r.OpenInterest))
	}

	ranks := make([]models.StrikeMassRank, 0, len(byStrike))
	for strike, mass := range byStrike {
		ranks = append(ranks, models.StrikeMassRank{Strike: strike, Mass: mass})
	}
	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].Mass != ranks[j].Mass {
			return ranks[i].Mass > ranks[j].Mass
		}
		return math.Abs(ranks[i].Strike-spot) < math.Abs(ranks[j].Strike-spot)
	})

	if limit > 0 && len(ranks) > limit {
		ranks = ranks[:limit]
	}
	return ranks
}
