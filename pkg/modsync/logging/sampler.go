package logging

// ProgressSampler thins out byte-progress logging: it lets a report through
// when the subject changes or the percentage enters a new bucket.
type ProgressSampler struct {
	bucketSize  float64
	lastSubject string
	lastBucket  int
}

// NewProgressSampler returns a sampler with buckets of bucketSize percent
// (10 when bucketSize is not positive).
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether progress for subject at percent deserves a log
// line. A negative percent means the total is unknown; only subject changes
// are reported then.
func (s *ProgressSampler) ShouldLog(subject string, percent float64) bool {
	if s == nil {
		return true
	}
	emit := false
	if subject != s.lastSubject {
		s.lastSubject = subject
		s.lastBucket = -1
		emit = true
	}
	if percent < 0 {
		return emit
	}
	if percent > 100 {
		percent = 100
	}
	if bucket := int(percent / s.bucketSize); bucket > s.lastBucket {
		s.lastBucket = bucket
		emit = true
	}
	return emit
}
