package memmon

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ErrUnsupported reports that the platform has no memory sampler.
var ErrUnsupported = errors.New("memory sampling not supported on this platform")

// Sample is a point-in-time memory snapshot.
type Sample struct {
	UsedPercent    float64
	UsedBytes      uint64
	AvailableBytes uint64
	Timestamp      time.Time
}

// Sampler takes memory snapshots.
type Sampler interface {
	Sample() (Sample, error)
}

// SamplerFunc adapts a function to Sampler.
type SamplerFunc func() (Sample, error)

// Sample implements Sampler.
func (f SamplerFunc) Sample() (Sample, error) { return f() }

func newSample(total, available uint64, now time.Time) (Sample, error) {
	if total == 0 {
		return Sample{}, errors.New("total memory reported as zero")
	}
	if available > total {
		available = total
	}
	used := total - available
	return Sample{
		UsedPercent:    float64(used) / float64(total) * 100,
		UsedBytes:      used,
		AvailableBytes: available,
		Timestamp:      now,
	}, nil
}

// parseMeminfo reads MemTotal and MemAvailable (in kB) from /proc/meminfo
// formatted input. Kernels without MemAvailable fall back to
// MemFree + Buffers + Cached.
func parseMeminfo(r io.Reader) (total, available uint64, err error) {
	fields := make(map[string]uint64, 8)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		name, rest, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		parts := strings.Fields(rest)
		if len(parts) == 0 {
			continue
		}
		value, parseErr := strconv.ParseUint(parts[0], 10, 64)
		if parseErr != nil {
			continue
		}
		if len(parts) > 1 && strings.EqualFold(parts[1], "kB") {
			value *= 1024
		}
		fields[strings.TrimSpace(name)] = value
	}
	if err := scanner.Err(); err != nil {
		return 0, 0, fmt.Errorf("read meminfo: %w", err)
	}
	total, ok := fields["MemTotal"]
	if !ok {
		return 0, 0, errors.New("meminfo: MemTotal missing")
	}
	if avail, ok := fields["MemAvailable"]; ok {
		return total, avail, nil
	}
	available = fields["MemFree"] + fields["Buffers"] + fields["Cached"]
	return total, available, nil
}
