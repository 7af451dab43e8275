package brackets

import "math/bits"

// BracketSize returns the smallest power of two that fits teamCount entrants,
// or 0 when teamCount < 1.
func BracketSize(teamCount int) int {
	if teamCount < 1 {
		return 0
	}
	return 1 << bits.Len(uint(teamCount-1))
}

// SeedOrder returns the classic single-elimination seed sequence for a
// bracket of the given size (a power of two >= 1). Seed 1 meets the lowest
// seed in round one, and seeds 1 and 2 cannot meet before the final:
//
//	SeedOrder(4) = [1 4 2 3]
//	SeedOrder(8) = [1 8 4 5 2 7 3 6]
func SeedOrder(bracketSize int) []int {
	if bracketSize <= 1 {
		return []int{1}
	}
	half := SeedOrder(bracketSize / 2)
	order := make([]int, 0, bracketSize)
	for _, s := range half {
		order = append(order, s, bracketSize+1-s)
	}
	return order
}

// SingleElimRoundCount is the number of rounds a single-elimination bracket
// needs for teamCount entrants: log2 of the bracket size.
func SingleElimRoundCount(teamCount int) int {
	size := BracketSize(teamCount)
	if size == 0 {
		return 0
	}
	return bits.Len(uint(size)) - 1
}

// DoubleElimRoundCounts returns the winners- and losers-bracket round counts
// for a double elimination with teamCount entrants. The grand final and its
// reset add two more rounds on top.
func DoubleElimRoundCounts(teamCount int) (winners, losers int) {
	winners = SingleElimRoundCount(teamCount)
	losers = 2*winners - 2
	return winners, losers
}

// DoubleElimRoundCount is the total round count of a double elimination,
// including the grand final and the grand final reset.
func DoubleElimRoundCount(teamCount int) int {
	winners, losers := DoubleElimRoundCounts(teamCount)
	return winners + losers + 2
}
