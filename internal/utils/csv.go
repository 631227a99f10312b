package utils

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"

	"github.com/facette/natsort"
)

type CSV [][]string

func (data CSV) Less(i, j int) bool {
	return natsort.Compare(data[i][0], data[j][0])
}

func (data CSV) Len() int { return len(data) }

func (data CSV) Swap(i, j int) {
	data[i], data[j] = data[j], data[i]
}

// WriteAsCSV writes a header row plus the data rows in natural order.
func WriteAsCSV(data CSV, path, subdir, filename string, columns []string) error {
	f, err := OpenOutputFile(true, path, subdir, GetFilename(filename))
	if err != nil {
		return fmt.Errorf("unable to open output %s: %w", filename, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.WriteAll([][]string{columns})
	sort.Sort(data)
	w.WriteAll(data)
	w.Flush()
	if err := w.Error(); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("error writing csv %s: %w", filename, err)
	}
	return nil
}
