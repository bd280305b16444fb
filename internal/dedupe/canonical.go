package dedupe

import "sort"

// FindMainErp selects the canonical record of a validated cluster and returns
// the remainder as duplicates. Precedence, each step applied only when it
// yields exactly one winner:
//
//  1. the only human-sourced record
//  2. the only record created by the business owner
//  3. the record with the strictly highest completion rate
//  4. the oldest record, ties broken by id
//
// The final step is a total order, so any non-empty cluster resolves to a
// single winner regardless of input ordering.
func FindMainErp(cluster []Candidate) (Candidate, []Candidate, error) {
	if err := validateCluster(cluster); err != nil {
		return Candidate{}, nil, err
	}

	if main, ok := uniqueBy(cluster, func(c Candidate) bool { return c.Erp.IsHumanSource() }); ok {
		return main, others(cluster, main), nil
	}

	if main, ok := uniqueBy(cluster, func(c Candidate) bool { return c.Erp.BusinessOwner }); ok {
		return main, others(cluster, main), nil
	}

	if main, ok := uniqueMaxCompletion(cluster); ok {
		return main, others(cluster, main), nil
	}

	main := cluster[0]
	for _, c := range cluster[1:] {
		switch {
		case c.Erp.CreatedAt.Before(main.Erp.CreatedAt):
			main = c
		case c.Erp.CreatedAt.Equal(main.Erp.CreatedAt) && c.Erp.ID < main.Erp.ID:
			main = c
		}
	}
	return main, others(cluster, main), nil
}

func uniqueBy(cluster []Candidate, pred func(Candidate) bool) (Candidate, bool) {
	var winner Candidate
	count := 0
	for _, c := range cluster {
		if pred(c) {
			winner = c
			count++
		}
	}
	return winner, count == 1
}

func uniqueMaxCompletion(cluster []Candidate) (Candidate, bool) {
	var winner Candidate
	best := -1.0
	count := 0
	for _, c := range cluster {
		r := c.Access.ComputeCompletionRate()
		switch {
		case r > best:
			best = r
			winner = c
			count = 1
		case r == best:
			count++
		}
	}
	return winner, count == 1
}

// others returns the cluster minus the canonical record, ordered by id so
// downstream processing is deterministic.
func others(cluster []Candidate, main Candidate) []Candidate {
	var out []Candidate
	for _, c := range cluster {
		if c.Erp.ID != main.Erp.ID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Erp.ID < out[j].Erp.ID })
	return out
}
