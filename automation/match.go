package automation

import "github.com/shiftlane/automation/workforce"

// CriteriaBestMatch selects the highest-scoring candidate; any other
// criteria picks the first available one.
const CriteriaBestMatch = "best_match"

const defaultRating = 4

var experienceRank = map[string]int{
	workforce.LevelEntry:  1,
	workforce.LevelMid:    2,
	workforce.LevelSenior: 3,
}

// MatchScore computes the deterministic weighted score of one candidate
// against a job. Components: skills overlap (up to 40), experience-level
// distance (up to 30), availability (20), rating (up to 10).
func MatchScore(w *workforce.Worker, job *workforce.Job) float64 {
	var score float64

	required := len(job.RequiredSkills)
	divisor := required
	if divisor == 0 {
		divisor = 1
	}
	matched := 0
	for _, need := range job.RequiredSkills {
		for _, have := range w.Skills {
			if have == need {
				matched++
				break
			}
		}
	}
	score += float64(matched) / float64(divisor) * 40

	dist := experienceRank[w.ExperienceLevel] - experienceRank[job.ExperienceLevel]
	if dist < 0 {
		dist = -dist
	}
	if exp := 30 - 10*dist; exp > 0 {
		score += float64(exp)
	}

	if w.Available {
		score += 20
	}

	rating := w.Rating
	if rating == 0 {
		rating = defaultRating
	}
	score += rating * 2

	return score
}

// SelectBest picks the candidate for a job. With CriteriaBestMatch the
// highest score wins and ties break in input order; otherwise the first
// available candidate is returned. Returns nil when no candidate qualifies.
func SelectBest(candidates []*workforce.Worker, job *workforce.Job, criteria string) *workforce.Worker {
	if len(candidates) == 0 {
		return nil
	}

	if criteria != CriteriaBestMatch {
		for _, w := range candidates {
			if w.Available {
				return w
			}
		}
		return nil
	}

	best := candidates[0]
	bestScore := MatchScore(best, job)
	for _, w := range candidates[1:] {
		if s := MatchScore(w, job); s > bestScore {
			best, bestScore = w, s
		}
	}
	return best
}
