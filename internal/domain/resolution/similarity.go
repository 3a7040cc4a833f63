package resolution

// levenshtein counts single-rune edits between a and b.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// editRatio maps edit distance to [0,1], 1 meaning identical.
func editRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// tokenOverlap is the overlap coefficient |A∩B| / min(|A|,|B|), so a name
// fully contained in the other scores 1.
func tokenOverlap(a, b []string) float64 {
	sa, sb := tokenSet(a), tokenSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	shared := 0
	for t := range sa {
		if _, ok := sb[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(min(len(sa), len(sb)))
}

func sharesToken(a, b []string) bool {
	sb := tokenSet(b)
	for _, t := range a {
		if _, ok := sb[t]; ok {
			return true
		}
	}
	return false
}

// strictSuperset reports whether every token of sub appears in super and
// super has at least one token that sub lacks.
func strictSuperset(super, sub []string) bool {
	sp, sb := tokenSet(super), tokenSet(sub)
	if len(sb) == 0 || len(sp) <= len(sb) {
		return false
	}
	for t := range sb {
		if _, ok := sp[t]; !ok {
			return false
		}
	}
	return true
}
