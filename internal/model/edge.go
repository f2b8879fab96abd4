package model

// Level is the match level a field comparison falls into.
type Level string

const (
	LevelNull     Level = "null"
	LevelExact    Level = "exact"
	LevelStrong   Level = "strong"
	LevelMatch    Level = "match"
	LevelWeak     Level = "weak"
	LevelMismatch Level = "mismatch"
)

// FieldComparison is the outcome of comparing one field of a record pair.
type FieldComparison struct {
	Field  string  `json:"field"`
	Level  Level   `json:"level"`
	Weight float64 `json:"weight"` // log2 Bayes factor contributed to the score
	Detail string  `json:"detail,omitempty"`
}

// SimilarityEdge is an undirected scored pair of records. A and B are stored
// with A < B so (a,b) and (b,a) compare equal.
type SimilarityEdge struct {
	A           string            `json:"record_id_a"`
	B           string            `json:"record_id_b"`
	Probability float64           `json:"probability"`
	MatchWeight float64           `json:"match_weight"`
	Breakdown   []FieldComparison `json:"per_field_breakdown"`
}

// NewSimilarityEdge orders the endpoints so the edge has one canonical form.
func NewSimilarityEdge(a, b string) SimilarityEdge {
	if b < a {
		a, b = b, a
	}
	return SimilarityEdge{A: a, B: b}
}

// Key returns the canonical identity of the edge.
func (e SimilarityEdge) Key() [2]string {
	if e.B < e.A {
		return [2]string{e.B, e.A}
	}
	return [2]string{e.A, e.B}
}

// Comparison returns the breakdown entry for a field.
func (e SimilarityEdge) Comparison(field string) (FieldComparison, bool) {
	for _, c := range e.Breakdown {
		if c.Field == field {
			return c, true
		}
	}
	return FieldComparison{}, false
}

// Cluster is a connected component of the thresholded similarity graph.
// RecordIDs are in ingestion order; ID is the first member.
type Cluster struct {
	ID        string   `json:"cluster_id"`
	RecordIDs []string `json:"record_ids"`
}

// Size returns the number of records in the cluster.
func (c Cluster) Size() int { return len(c.RecordIDs) }
