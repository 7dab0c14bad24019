package domain

// RecommendationEntry is one ranked movie in a user's recommendation
// list. Lists are ordered by PredictedScore descending, ties broken by
// the movie's rating count descending, then movie ID ascending.
type RecommendationEntry struct {
	MovieID        string  `json:"movieId"`
	PredictedScore float64 `json:"predictedScore"`
}
