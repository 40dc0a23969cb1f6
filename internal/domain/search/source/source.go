package source

// Source identifies which scorer produced a ranked hit.
type Source string

// Scorer source constants.
const (
	// Lexical is the BM25 keyword scorer.
	Lexical Source = "lexical"
	// Vector is the KNN embedding scorer.
	Vector Source = "vector"
)

// IsValid checks if the source is one of the supported values.
func (s Source) IsValid() bool {
	return s == Lexical || s == Vector
}
