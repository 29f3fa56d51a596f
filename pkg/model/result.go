package model

// Direction is the predicted short-horizon price direction.
type Direction string

const (
	DirectionUp      Direction = "UP"
	DirectionDown    Direction = "DOWN"
	DirectionNeutral Direction = "NEUTRAL"
)

// MatchResult is one scored library candidate. Ephemeral: produced per
// search, never persisted.
type MatchResult struct {
	Pattern    *PatternWindow `json:"pattern"`
	Distance   float64        `json:"distance"`
	Similarity float64        `json:"similarity"`
	Outcome    *float64       `json:"outcome,omitempty"`
	Direction  Direction      `json:"direction"`
}

// SearchStatistics summarizes the outcome split of a match set for one
// horizon. Matches without an outcome for the horizon are excluded from the
// percentages, not counted as flat.
type SearchStatistics struct {
	TotalMatches   int     `json:"total_matches"`
	UpCount        int     `json:"up_count"`
	DownCount      int     `json:"down_count"`
	FlatCount      int     `json:"flat_count"`
	UpPercentage   float64 `json:"up_percentage"`
	DownPercentage float64 `json:"down_percentage"`
}

// Prediction is the aggregated directional call. Confidence is the heuristic
// distance from a coin flip; PValue is a separate statistical significance,
// exposed alongside and never substituted for Confidence.
type Prediction struct {
	Direction    Direction `json:"direction"`
	Confidence   float64   `json:"confidence"`
	ExpectedMove float64   `json:"expected_move"`
	PValue       float64   `json:"p_value"`
}
