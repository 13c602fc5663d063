package rootfs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	gibibyte = 1 << 30
	mebibyte = 1 << 20

	directoryFloor   = 32 * mebibyte
	defaultRegistrySz = 1 * gibibyte
)

// EstimateImageSize implements spec.md §4.3's sizing formula: tarball file
// size x3 for gzip/tgz (x1 uncompressed), recursive content size +50% with
// a 32 MiB floor for directories, and a 1 GiB default for registry images
// of unknown size.
func EstimateImageSize(imageRef string) (int64, error) {
	switch DetectKind(imageRef) {
	case KindTarball:
		info, err := os.Stat(imageRef)
		if err != nil {
			return 0, fmt.Errorf("estimate image size: %w", err)
		}
		if strings.HasSuffix(imageRef, ".tar.gz") || strings.HasSuffix(imageRef, ".tgz") {
			return info.Size() * 3, nil
		}
		return info.Size(), nil
	case KindOCILayout:
		size, err := dirContentSize(imageRef)
		if err != nil {
			return 0, fmt.Errorf("estimate image size: %w", err)
		}
		estimate := size + size/2
		if estimate < directoryFloor {
			estimate = directoryFloor
		}
		return estimate, nil
	default:
		return defaultRegistrySz, nil
	}
}

func dirContentSize(root string) (int64, error) {
	var total int64
	err := filepath.Walk(root, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// CheckAvailableMemory reads /proc/meminfo, estimates available memory,
// reserves headroom of max(10% of total, 256 MiB), and reports whether
// required bytes fit within what remains.
func CheckAvailableMemory(required int64) (ok bool, available int64, err error) {
	total, avail, err := readMemInfo()
	if err != nil {
		return false, 0, err
	}
	headroom := total / 10
	if headroom < 256*mebibyte {
		headroom = 256 * mebibyte
	}
	usable := avail - headroom
	if usable < 0 {
		usable = 0
	}
	return required <= usable, usable, nil
}

// readMemInfo extends the teacher's detectMemoryCapacity idiom
// (lib/resources/memory.go) to also read MemAvailable.
func readMemInfo() (total, available int64, err error) {
	file, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0, fmt.Errorf("read meminfo: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			total, err = parseMemInfoLine(line)
		case strings.HasPrefix(line, "MemAvailable:"):
			available, err = parseMemInfoLine(line)
		}
		if err != nil {
			return 0, 0, fmt.Errorf("read meminfo: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, 0, fmt.Errorf("read meminfo: %w", err)
	}
	if total == 0 {
		return 0, 0, fmt.Errorf("read meminfo: MemTotal not found")
	}
	return total, available, nil
}

func parseMemInfoLine(line string) (int64, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, fmt.Errorf("malformed meminfo line %q", line)
	}
	kb, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, err
	}
	return kb * 1024, nil
}
