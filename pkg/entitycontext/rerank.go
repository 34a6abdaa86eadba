package entitycontext

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/graphweave/graphweave/pkg/types"
)

// Scorer assigns a relevance score to each candidate value with respect
// to a set of keywords.
type Scorer interface {
	ScoreValues(values []string, keywords []string) map[string]float64
}

var termPattern = regexp.MustCompile(`[a-z0-9]+`)

// TFIDFScorer scores values by cosine similarity between TF-IDF vectors
// built over the candidate corpus and a query vector built from the
// keywords.
type TFIDFScorer struct{}

var _ Scorer = (*TFIDFScorer)(nil)

// ScoreValues computes a TF-IDF relevance score per value, rounded to
// four decimal places.
func (TFIDFScorer) ScoreValues(values []string, keywords []string) map[string]float64 {
	if len(values) == 0 {
		return nil
	}

	docs := make([]map[string]float64, len(values))
	docFreq := make(map[string]int)
	for i, value := range values {
		tf := termFrequencies(value)
		docs[i] = tf
		for term := range tf {
			docFreq[term]++
		}
	}

	n := float64(len(values))
	idf := make(map[string]float64, len(docFreq))
	for term, df := range docFreq {
		// Smoothed inverse document frequency, never zero.
		idf[term] = math.Log((1+n)/(1+float64(df))) + 1
	}

	queryTF := termFrequencies(strings.Join(keywords, " "))
	queryVec := make(map[string]float64, len(queryTF))
	for term, tf := range queryTF {
		if w, ok := idf[term]; ok {
			queryVec[term] = tf * w
		}
	}

	scores := make(map[string]float64, len(values))
	for i, value := range values {
		vec := make(map[string]float64, len(docs[i]))
		for term, tf := range docs[i] {
			vec[term] = tf * idf[term]
		}
		scores[value] = round4(cosine(vec, queryVec))
	}
	return scores
}

func termFrequencies(text string) map[string]float64 {
	terms := termPattern.FindAllString(strings.ToLower(text), -1)
	tf := make(map[string]float64, len(terms))
	for _, term := range terms {
		tf[term]++
	}
	return tf
}

func cosine(a, b map[string]float64) float64 {
	var dot, normA, normB float64
	for term, weight := range a {
		dot += weight * b[term]
		normA += weight * weight
	}
	for _, weight := range b {
		normB += weight * weight
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// FilterEntities keeps entities whose score falls within
// [max*minFactor, max*maxFactor], where max is the highest score in the
// input, and returns them sorted by score descending. Empty input
// yields an empty result.
func FilterEntities(entities []types.ScoredEntity, minFactor, maxFactor float64) []types.ScoredEntity {
	if len(entities) == 0 {
		return nil
	}

	baseline := entities[0].Score
	for _, entity := range entities[1:] {
		if entity.Score > baseline {
			baseline = entity.Score
		}
	}

	lower := baseline * minFactor
	upper := baseline * maxFactor

	filtered := make([]types.ScoredEntity, 0, len(entities))
	for _, entity := range entities {
		if entity.Score >= lower && entity.Score <= upper {
			filtered = append(filtered, entity)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Score > filtered[j].Score
	})
	return filtered
}

// RerankEntities scores each entity's "value (classification)" token
// against the query and keywords, assigns the result as the reranking
// score, and sorts by reranking score then structural score, both
// descending. The first entity wins when several share an id.
func RerankEntities(entities []types.ScoredEntity, query types.QueryBundle, keywords []string, scorer Scorer) []types.ScoredEntity {
	if len(entities) == 0 {
		return nil
	}
	if scorer == nil {
		scorer = TFIDFScorer{}
	}

	tokens := make([]string, len(entities))
	for i := range entities {
		tokens[i] = entities[i].Token()
	}

	terms := append([]string{query.Query}, keywords...)
	tokenScores := scorer.ScoreValues(tokens, terms)

	assigned := make(map[string]struct{}, len(entities))
	reranked := make([]types.ScoredEntity, len(entities))
	copy(reranked, entities)
	for i := range reranked {
		id := reranked[i].Entity.EntityID
		if _, ok := assigned[id]; ok {
			continue
		}
		assigned[id] = struct{}{}
		reranked[i].RerankingScore = tokenScores[tokens[i]]
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		if reranked[i].RerankingScore != reranked[j].RerankingScore {
			return reranked[i].RerankingScore > reranked[j].RerankingScore
		}
		return reranked[i].Score > reranked[j].Score
	})
	return reranked
}
