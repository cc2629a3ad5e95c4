//go:build !linux

package memmon

// SystemSampler reports ErrUnsupported outside Linux.
type SystemSampler struct {
	MeminfoPath string
}

// NewSystemSampler returns a sampler for the running host.
func NewSystemSampler() *SystemSampler {
	return &SystemSampler{}
}

// Sample implements Sampler.
func (s *SystemSampler) Sample() (Sample, error) {
	return Sample{}, ErrUnsupported
}
