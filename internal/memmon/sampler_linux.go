//go:build linux

package memmon

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

const defaultMeminfoPath = "/proc/meminfo"

// SystemSampler reads host memory from procfs, falling back to sysinfo(2).
type SystemSampler struct {
	// MeminfoPath overrides /proc/meminfo.
	MeminfoPath string
	now         func() time.Time
}

// NewSystemSampler returns a sampler for the running host.
func NewSystemSampler() *SystemSampler {
	return &SystemSampler{MeminfoPath: defaultMeminfoPath, now: time.Now}
}

// Sample implements Sampler.
func (s *SystemSampler) Sample() (Sample, error) {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	path := s.MeminfoPath
	if path == "" {
		path = defaultMeminfoPath
	}
	total, available, procErr := readMeminfo(path)
	if procErr == nil {
		return newSample(total, available, now())
	}

	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return Sample{}, fmt.Errorf("sample memory: %v; sysinfo: %w", procErr, err)
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	total = uint64(info.Totalram) * unit
	available = (uint64(info.Freeram) + uint64(info.Bufferram)) * unit
	return newSample(total, available, now())
}

func readMeminfo(path string) (uint64, uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	return parseMeminfo(f)
}
