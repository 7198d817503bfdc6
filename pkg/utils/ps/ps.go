package ps

import (
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

func CPUStatus() (CPU, error) {
	list, err := cpu.Percent(time.Millisecond*50, false)
	if err != nil {
		return CPU{}, err
	}
	res := CPU{}
	if len(list) > 0 {
		res.Percent = list[0]
	}
	if temps, err := host.SensorsTemperatures(); err == nil {
		for _, t := range temps {
			if t.Temperature > res.Temperature {
				res.Temperature = t.Temperature
			}
		}
	}

	return res, nil
}

func MemoryStatus() (Memory, error) {
	memory, err := mem.VirtualMemory()
	if err != nil {
		return Memory{}, err
	}
	swapMemory, err := mem.SwapMemory()
	if err != nil {
		return Memory{}, err
	}

	return Memory{
		Total:       memory.Total,
		Used:        memory.Used,
		UsedPercent: memory.UsedPercent,

		SwapTotal:       swapMemory.Total,
		SwapUsed:        swapMemory.Used,
		SwapUsedPercent: swapMemory.UsedPercent,
	}, nil
}

func DiskUsage(path string) (Disk, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return Disk{}, err
	}

	return Disk{
		Used:        usage.Used,
		Total:       usage.Total,
		UsedPercent: usage.UsedPercent,
		Free:        humanize.Bytes(usage.Free),
	}, nil
}

func DirDiskUsage(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return size, nil
}

// Snapshot collects the kiosk status for the capture directory dir.
func Snapshot(dir string) (Status, error) {
	var (
		st  Status
		err error
	)
	if st.CPU, err = CPUStatus(); err != nil {
		return st, err
	}
	if st.Memory, err = MemoryStatus(); err != nil {
		return st, err
	}
	if st.Disk, err = DiskUsage(dir); err != nil {
		return st, err
	}
	size, err := DirDiskUsage(dir)
	if err != nil {
		return st, err
	}
	st.Captures = humanize.Bytes(uint64(size))
	if up, err := host.Uptime(); err == nil {
		st.Uptime = (time.Duration(up) * time.Second).String()
	}

	return st, nil
}

type CPU struct {
	Percent     float64 `json:"percent"`
	Temperature float64 `json:"temperature,omitempty"`
}

type Memory struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	UsedPercent float64 `json:"usedPercent"`

	SwapTotal       uint64  `json:"swapTotal"`
	SwapUsed        uint64  `json:"swapUsed"`
	SwapUsedPercent float64 `json:"swapUsedPercent"`
}

type Disk struct {
	Used        uint64  `json:"used"`
	Total       uint64  `json:"total"`
	UsedPercent float64 `json:"usedPercent"`
	Free        string  `json:"free"`
}

type Status struct {
	CPU      CPU    `json:"cpu"`
	Memory   Memory `json:"memory"`
	Disk     Disk   `json:"disk"`
	Captures string `json:"captures"`
	Uptime   string `json:"uptime,omitempty"`
}
