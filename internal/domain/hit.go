package domain

// SimilarityHit is a read-only projection returned by nearest-neighbor
// search. Distance is cosine distance (0 = identical direction), hits are
// ranked ascending by it. Similarity is derived as 1 - Distance; it can
// fall outside [0,1] when stored vectors are not normalized.
type SimilarityHit struct {
	OwnerID     string
	SecondaryID string
	Distance    float64
	Similarity  float64
}

// NewSimilarityHit builds a hit from a cosine distance.
func NewSimilarityHit(ownerID, secondaryID string, distance float64) SimilarityHit {
	return SimilarityHit{
		OwnerID:     ownerID,
		SecondaryID: secondaryID,
		Distance:    distance,
		Similarity:  1 - distance,
	}
}
