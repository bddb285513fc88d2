package ranking

import (
	"sort"

	"github.com/google/uuid"

	"github.com/nursmen/neuralhire/internal/jobtext"
	"github.com/nursmen/neuralhire/internal/repository"
)

// Candidate is a job that survived filtering, with its score components.
type Candidate struct {
	JobID         uuid.UUID
	Job           *repository.Job
	Text          string
	VectorScore   float64
	LexicalBoost  float64
	CombinedScore float64
}

// JobText returns the composed text of a job used for lexical matching and reranking.
func JobText(j *repository.Job) string {
	return jobtext.Compose(jobtext.Fields{
		Title:     j.Title,
		Knowledge: j.Knowledge,
		City:      j.City,
		Company:   j.Company,
		Additions: j.Additions,
	})
}

// Combine drops jobs failing the tag filter and scores the rest.
func Combine(scored []Scored, tags []string, queryTokens map[string]struct{}, weight float64) []Candidate {
	out := make([]Candidate, 0, len(scored))
	for _, s := range scored {
		if !MatchesAnyTag(s.Job.Additions, tags) {
			continue
		}
		text := JobText(s.Job)
		boost := LexicalBoost(queryTokens, jobtext.Tokens(text))
		out = append(out, Candidate{
			JobID:         s.Job.ID,
			Job:           s.Job,
			Text:          text,
			VectorScore:   s.Score,
			LexicalBoost:  boost,
			CombinedScore: s.Score + weight*boost,
		})
	}
	return out
}

// SelectTop sorts by descending combined score, keeping input order on
// ties, and returns at most n candidates.
func SelectTop(cands []Candidate, n int) []Candidate {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].CombinedScore > cands[j].CombinedScore
	})
	if n >= 0 && len(cands) > n {
		cands = cands[:n]
	}
	return cands
}
