package util

// Levenshtein holds the working rows of a bounded edit distance
// computation, so repeated calls do not allocate. The zero value is
// ready to use. A Levenshtein must not be used concurrently.
type Levenshtein struct {
	prev, cur []int
}

// BoundedLevenshtein returns the Levenshtein distance between a and b if
// it is less than limit, and limit otherwise.
func BoundedLevenshtein(a, b []byte, limit int) int {
	var l Levenshtein
	return l.Bounded(a, b, limit)
}

// Bounded returns the Levenshtein distance between a and b if it is less
// than limit, and limit otherwise.
//
// Cell (i, j) of the edit distance matrix is at least |i-j|, so only the
// diagonal band |i-j| < limit is computed; cells outside it read as
// limit. The sweep stops as soon as a whole row of the band has reached
// limit, since values never decrease along a diagonal.
func (l *Levenshtein) Bounded(a, b []byte, limit int) int {
	n, m := len(a), len(b)
	if limit <= 0 {
		return 0
	}
	if abs(n-m) >= limit {
		return limit
	}
	if cap(l.prev) < m+1 {
		l.prev = make([]int, m+1)
		l.cur = make([]int, m+1)
	}
	prev, cur := l.prev[:m+1], l.cur[:m+1]
	for j := range prev {
		prev[j] = min(j, limit)
	}
	for i := 1; i <= n; i++ {
		lo, hi := max(1, i-limit+1), min(m, i+limit-1)
		if lo == 1 {
			cur[0] = min(i, limit)
		} else {
			cur[lo-1] = limit
		}
		rowMin := cur[lo-1]
		ai := a[i-1]
		for j := lo; j <= hi; j++ {
			v := prev[j-1]
			if ai != b[j-1] {
				v++
			}
			if d := prev[j] + 1; d < v {
				v = d
			}
			if d := cur[j-1] + 1; d < v {
				v = d
			}
			if v > limit {
				v = limit
			}
			cur[j] = v
			if v < rowMin {
				rowMin = v
			}
		}
		if hi < m {
			cur[hi+1] = limit
		}
		if rowMin >= limit {
			return limit
		}
		prev, cur = cur, prev
	}
	return min(prev[m], limit)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
