package utils

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ReadFloatColumns reads a whitespace-separated table of ncols floats per
// line, skipping blank lines. Used for core spectra and point-source lists.
func ReadFloatColumns(filename string, ncols int) ([][]float64, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	defer file.Close()

	var result [][]float64

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		if len(parts) != ncols {
			return nil, fmt.Errorf("invalid format in line %q - expected %d numbers, got %d", scanner.Text(), ncols, len(parts))
		}
		row := make([]float64, ncols)
		for i := range parts {
			row[i], err = strconv.ParseFloat(parts[i], 64)
			if err != nil {
				return nil, fmt.Errorf("error parsing float in line %q: %w", scanner.Text(), err)
			}
		}
		result = append(result, row)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	return result, nil
}

// ReadFloatPairs reads a two-column float table.
func ReadFloatPairs(filename string) ([][]float64, error) {
	return ReadFloatColumns(filename, 2)
}

// GetFilename strips directory and extension from a path.
func GetFilename(filePath string) string {
	base := filepath.Base(filePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// OpenOutputFile creates an output file, under a subdirectory when makeDir
// is set.
func OpenOutputFile(makeDir bool, outputPath, subdir, name string) (*os.File, error) {
	if makeDir && subdir != "" && subdir != "." {
		os.MkdirAll(filepath.Join(outputPath, subdir), 0750)
		return os.Create(filepath.Join(outputPath, subdir, name+".txt"))
	}
	return os.Create(filepath.Join(outputPath, name+"_"+subdir+".txt"))
}
