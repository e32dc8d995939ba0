package logging

// ProgressSampler thins render progress lines. It emits on the first call,
// whenever the percent enters a new bucket, and whenever the scene index
// changes. Percent is assumed to move forward; values past 100 share the
// final bucket.
type ProgressSampler struct {
	bucketSize float64
	lastBucket int
	lastScene  int
}

// NewProgressSampler constructs a sampler with the given bucket width in
// percent (default 5).
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	s := &ProgressSampler{bucketSize: bucketSize}
	s.Reset()
	return s
}

// ShouldLog reports whether progress at percent while showing scene is
// worth a line. A nil sampler logs everything.
func (s *ProgressSampler) ShouldLog(percent float64, scene int) bool {
	if s == nil {
		return true
	}
	emit := false
	if scene != s.lastScene {
		s.lastScene = scene
		emit = true
	}
	bucket := int(min(max(percent, 0), 100) / s.bucketSize)
	if bucket > s.lastBucket {
		s.lastBucket = bucket
		emit = true
	}
	return emit
}

// Reset forgets what has been logged so a new render starts from scratch.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastBucket = -1
	s.lastScene = -1
}
