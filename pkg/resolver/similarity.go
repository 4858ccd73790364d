package resolver

// Ratio scores how alike two strings are, in [0, 1]. It is the classic
// sequence-matcher measure: find the longest common block, recurse on the
// pieces to the left and right, and return 2*M/T where M is the total
// matched length and T the combined length. Two empty strings score 1.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(matchingSize(ra, rb)) / float64(total)
}

type matchBlock struct {
	aIdx, bIdx, size int
}

func matchingSize(a, b []rune) int {
	b2j := make(map[rune][]int, len(b))
	for j, r := range b {
		b2j[r] = append(b2j[r], j)
	}

	type span struct {
		alo, ahi, blo, bhi int
	}
	stack := []span{{0, len(a), 0, len(b)}}

	total := 0
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		blk := longestMatch(a, b2j, s.alo, s.ahi, s.blo, s.bhi)
		if blk.size == 0 {
			continue
		}
		total += blk.size
		if s.alo < blk.aIdx && s.blo < blk.bIdx {
			stack = append(stack, span{s.alo, blk.aIdx, s.blo, blk.bIdx})
		}
		if blk.aIdx+blk.size < s.ahi && blk.bIdx+blk.size < s.bhi {
			stack = append(stack, span{blk.aIdx + blk.size, s.ahi, blk.bIdx + blk.size, s.bhi})
		}
	}
	return total
}

// longestMatch finds the longest run of equal runes inside the given
// window. Ties go to the run starting earliest in a, then earliest in b,
// which keeps the recursion deterministic.
func longestMatch(a []rune, b2j map[rune][]int, alo, ahi, blo, bhi int) matchBlock {
	best := matchBlock{aIdx: alo, bIdx: blo}
	j2len := make(map[int]int)

	for i := alo; i < ahi; i++ {
		newj2len := make(map[int]int)
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			newj2len[j] = k
			if k > best.size {
				best = matchBlock{aIdx: i - k + 1, bIdx: j - k + 1, size: k}
			}
		}
		j2len = newj2len
	}
	return best
}
