package output

import (
	"fmt"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
)

// HostInfo describes the machine a plan was solved on. Solve times are only
// comparable between runs on similar hosts.
type HostInfo struct {
	Hostname string `json:"hostname"`
	Platform string `json:"platform"`
	CPU      string `json:"cpu"`
	Cores    int    `json:"cores"`
	MemoryGB uint64 `json:"memory_gb"`
}

// DetectHost collects host details. Fields that cannot be read are left as unknown.
func DetectHost() *HostInfo {
	info := &HostInfo{Platform: "unknown", CPU: "unknown"}

	if h, err := host.Info(); err == nil {
		info.Hostname = h.Hostname
		info.Platform = h.Platform
		if h.PlatformVersion != "" {
			info.Platform += " " + h.PlatformVersion
		}
	}
	if c, err := cpu.Info(); err == nil && len(c) > 0 {
		info.CPU = c[0].ModelName
	}
	if n, err := cpu.Counts(true); err == nil {
		info.Cores = n
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.MemoryGB = vm.Total / 1024 / 1024 / 1024
	}
	return info
}

func (h *HostInfo) String() string {
	return fmt.Sprintf("%s | %s (%d cores) | %d GB", h.Platform, h.CPU, h.Cores, h.MemoryGB)
}
