package intruder

// OriginalSentinel is the tuple value meaning "leave this position
// unchanged" — resolved to the position's original captured text at
// substitution time (spec.md §4.11).
const OriginalSentinel = "§ORIGINAL§"

// Strategy names the four attack-plan generators.
type Strategy string

const (
	StrategySniper        Strategy = "sniper"
	StrategyBatteringRam  Strategy = "battering_ram"
	StrategyPitchfork     Strategy = "pitchfork"
	StrategyClusterBomb   Strategy = "cluster_bomb"
)

// GeneratePlan builds the ordered list of payload tuples for strategy,
// given k positions and one payload list per position (payloadLists[0] is
// the only list Sniper and Battering Ram use). Emission order is
// deterministic, matching spec.md §4.11 exactly — callers rely on this for
// reproducible test runs.
func GeneratePlan(strategy Strategy, k int, payloadLists [][]string) ([][]string, error) {
	switch strategy {
	case StrategySniper:
		return sniperPlan(k, payloadLists), nil
	case StrategyBatteringRam:
		return batteringRamPlan(k, payloadLists), nil
	case StrategyPitchfork:
		return pitchforkPlan(k, payloadLists), nil
	case StrategyClusterBomb:
		return clusterBombPlan(k, payloadLists), nil
	default:
		return nil, &unknownStrategyError{strategy}
	}
}

type unknownStrategyError struct{ strategy Strategy }

func (e *unknownStrategyError) Error() string {
	return "intruder: unknown strategy " + string(e.strategy)
}

// sniperPlan emits, for each payload p in P[0] and each position i, a
// tuple with p at i and OriginalSentinel elsewhere. Size = |P[0]| * k.
func sniperPlan(k int, payloadLists [][]string) [][]string {
	if k == 0 || len(payloadLists) == 0 {
		return nil
	}
	payloads := payloadLists[0]
	plan := make([][]string, 0, len(payloads)*k)
	for _, p := range payloads {
		for i := 0; i < k; i++ {
			tuple := originalTuple(k)
			tuple[i] = p
			plan = append(plan, tuple)
		}
	}
	return plan
}

// batteringRamPlan emits, for each payload p in P[0], a tuple of p
// repeated k times. Size = |P[0]|.
func batteringRamPlan(k int, payloadLists [][]string) [][]string {
	if k == 0 || len(payloadLists) == 0 {
		return nil
	}
	payloads := payloadLists[0]
	plan := make([][]string, 0, len(payloads))
	for _, p := range payloads {
		tuple := make([]string, k)
		for i := range tuple {
			tuple[i] = p
		}
		plan = append(plan, tuple)
	}
	return plan
}

// pitchforkPlan walks P[0..k] in lockstep, emitting tuple
// (P[0][i], P[1][i], ...) for i in 0..min(|P[j]|). Size = the shortest
// list's length.
func pitchforkPlan(k int, payloadLists [][]string) [][]string {
	if k == 0 || len(payloadLists) < k {
		return nil
	}
	minLen := -1
	for i := 0; i < k; i++ {
		if minLen == -1 || len(payloadLists[i]) < minLen {
			minLen = len(payloadLists[i])
		}
	}
	if minLen <= 0 {
		return nil
	}
	plan := make([][]string, 0, minLen)
	for i := 0; i < minLen; i++ {
		tuple := make([]string, k)
		for j := 0; j < k; j++ {
			tuple[j] = payloadLists[j][i]
		}
		plan = append(plan, tuple)
	}
	return plan
}

// clusterBombPlan takes the Cartesian product across P[0..k] in
// odometer order — the rightmost position varies fastest. Size is the
// product of the list lengths.
func clusterBombPlan(k int, payloadLists [][]string) [][]string {
	if k == 0 || len(payloadLists) < k {
		return nil
	}
	total := 1
	for i := 0; i < k; i++ {
		if len(payloadLists[i]) == 0 {
			return nil
		}
		total *= len(payloadLists[i])
	}

	plan := make([][]string, 0, total)
	indices := make([]int, k)
	for n := 0; n < total; n++ {
		tuple := make([]string, k)
		for j := 0; j < k; j++ {
			tuple[j] = payloadLists[j][indices[j]]
		}
		plan = append(plan, tuple)

		// Odometer increment, rightmost (last position) fastest.
		for j := k - 1; j >= 0; j-- {
			indices[j]++
			if indices[j] < len(payloadLists[j]) {
				break
			}
			indices[j] = 0
		}
	}
	return plan
}

func originalTuple(k int) []string {
	tuple := make([]string, k)
	for i := range tuple {
		tuple[i] = OriginalSentinel
	}
	return tuple
}
