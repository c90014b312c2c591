package ports

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/hx0day/dashprobe/internal/errors"
)

const (
	MinPort = 1
	MaxPort = 65535
)

// Parse parses a port specification like "80,443,8000-8100" into a sorted,
// deduplicated list of ports. A spec prefixed with '@' is read from the named
// file, one specification per line.
func Parse(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if strings.HasPrefix(spec, "@") {
		return LoadFile(strings.TrimPrefix(spec, "@"))
	}
	return parseSpec(spec)
}

func parseSpec(spec string) ([]int, error) {
	if spec == "" {
		return nil, errors.NewPortSpecError(errors.ErrorPortSetEmpty, "empty port specification", spec)
	}

	seen := make(map[int]bool)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if strings.Contains(part, "-") {
			lo, hi, err := parseRange(part)
			if err != nil {
				return nil, err
			}
			for p := lo; p <= hi; p++ {
				seen[p] = true
			}
			continue
		}

		p, err := parsePort(part)
		if err != nil {
			return nil, err
		}
		seen[p] = true
	}

	if len(seen) == 0 {
		return nil, errors.NewPortSpecError(errors.ErrorPortSetEmpty, "no ports in specification", spec)
	}

	out := make([]int, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Ints(out)
	return out, nil
}

func parseRange(part string) (int, int, error) {
	bounds := strings.SplitN(part, "-", 2)
	lo, err := parsePort(strings.TrimSpace(bounds[0]))
	if err != nil {
		return 0, 0, err
	}
	hi, err := parsePort(strings.TrimSpace(bounds[1]))
	if err != nil {
		return 0, 0, err
	}
	if lo > hi {
		return 0, 0, errors.NewPortSpecError(errors.ErrorPortRangeInverted,
			fmt.Sprintf("inverted port range %d-%d", lo, hi), part)
	}
	return lo, hi, nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.NewPortSpecError(errors.ErrorPortSpecInvalid,
			fmt.Sprintf("invalid port %q", s), s)
	}
	if p < MinPort || p > MaxPort {
		return 0, errors.NewPortSpecError(errors.ErrorPortOutOfRange,
			fmt.Sprintf("port %d outside %d-%d", p, MinPort, MaxPort), s)
	}
	return p, nil
}

// LoadFile reads port specifications from a file, one per line. Blank lines
// and '#' comments are skipped.
func LoadFile(filename string) ([]int, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil, errors.NewFileError(errors.ErrorFileNotFound, "port list file not found", filename, err)
	}

	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.NewFileError(errors.ErrorFileReadFailed, "failed to open port list file", filename, err)
	}
	defer file.Close()

	seen := make(map[int]bool)
	lineCount := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lineCount++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parsed, err := parseSpec(line)
		if err != nil {
			if se, ok := err.(*errors.ScanError); ok {
				return nil, se.WithDetail("line", lineCount)
			}
			return nil, err
		}
		for _, p := range parsed {
			seen[p] = true
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.NewFileError(errors.ErrorFileReadFailed, "error reading port list file", filename, err)
	}

	if len(seen) == 0 {
		if lineCount == 0 {
			return nil, errors.NewFileError(errors.ErrorFileEmpty, "port list file is empty", filename, nil)
		}
		return nil, errors.NewFileError(errors.ErrorFileInvalidFormat, "no valid ports found in file", filename, nil)
	}

	out := make([]int, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Ints(out)
	return out, nil
}
