package checks

import (
	"context"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// usageFunc returns the used percentage of a resource.
type usageFunc func(ctx context.Context) (float64, error)

// UsageBackend warns when resource usage reaches a threshold.
type UsageBackend struct {
	base
	resource   string
	maxPercent int
	usage      usageFunc
}

// NewDiskBackend checks disk usage of the filesystem holding path.
func NewDiskBackend(path string, maxPercent int) *UsageBackend {
	return &UsageBackend{
		base:       base{name: "Disk", slug: "disk", critical: true},
		resource:   "disk",
		maxPercent: maxPercent,
		usage: func(ctx context.Context) (float64, error) {
			stat, err := disk.UsageWithContext(ctx, path)
			if err != nil {
				return 0, err
			}
			return stat.UsedPercent, nil
		},
	}
}

// NewMemoryBackend checks virtual memory usage.
func NewMemoryBackend(maxPercent int) *UsageBackend {
	return &UsageBackend{
		base:       base{name: "Memory", slug: "memory", critical: true},
		resource:   "memory",
		maxPercent: maxPercent,
		usage: func(ctx context.Context) (float64, error) {
			stat, err := mem.VirtualMemoryWithContext(ctx)
			if err != nil {
				return 0, err
			}
			return stat.UsedPercent, nil
		},
	}
}

// Check implements Backend.
func (b *UsageBackend) Check(ctx context.Context) error {
	used, err := b.usage(ctx)
	if err != nil {
		return UnexpectedResult("Value Error", err)
	}

	if used >= float64(b.maxPercent) {
		hostname, _ := os.Hostname()
		return Warning(fmt.Sprintf("%s %.1f%% %s usage exceeds %d%%", hostname, used, b.resource, b.maxPercent))
	}
	return nil
}
