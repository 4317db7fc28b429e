// Package report persists finished runs: a JSON summary, the bin table as
// CSV and an SVG histogram, one directory per run.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/galtonsim/internal/analysis"
	"github.com/san-kum/galtonsim/internal/config"
	"github.com/san-kum/galtonsim/internal/viz"
)

const (
	summaryFile   = "summary.json"
	binsFile      = "bins.csv"
	histogramFile = "histogram.svg"
	boardFile     = "board.svg"
)

// Summary is everything a finished run reports about itself.
type Summary struct {
	ID         string              `json:"id"`
	Created    time.Time           `json:"created"`
	Preset     string              `json:"preset,omitempty"`
	Seed       int64               `json:"seed"`
	Config     config.Config       `json:"config"`
	Ticks      uint64              `json:"ticks"`
	Time       float64             `json:"time"`
	Settled    int                 `json:"settled"`
	Dropped    int                 `json:"dropped"`
	Clamped    int                 `json:"clamped"`
	Comparison analysis.Comparison `json:"comparison"`
	Metrics    map[string]float64  `json:"metrics"`
}

// Bin is one row of bins.csv.
type Bin struct {
	Index    int
	Count    int
	Observed float64
	Expected float64
}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// Save writes sum under a fresh run id, which it also stores in sum.ID.
func (s *Store) Save(sum *Summary) (string, error) {
	if sum.ID == "" {
		sum.ID = uuid.NewString()
	}
	if sum.Created.IsZero() {
		sum.Created = time.Now().UTC()
	}

	runDir := filepath.Join(s.baseDir, sum.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	if err := writeFile(filepath.Join(runDir, summaryFile), func(w io.Writer) error {
		return WriteJSON(w, sum)
	}); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}
	if err := writeFile(filepath.Join(runDir, binsFile), func(w io.Writer) error {
		return WriteBins(w, sum.Comparison)
	}); err != nil {
		return "", fmt.Errorf("write bins: %w", err)
	}
	if err := writeFile(filepath.Join(runDir, histogramFile), func(w io.Writer) error {
		_, err := io.WriteString(w, HistogramSVG(sum.Comparison, 640, 360))
		return err
	}); err != nil {
		return "", fmt.Errorf("write histogram: %w", err)
	}

	return sum.ID, nil
}

// SaveBoard stores a rendered frame of the board next to a saved run.
func (s *Store) SaveBoard(runID string, canvas *viz.Canvas) error {
	return os.WriteFile(filepath.Join(s.baseDir, runID, boardFile), []byte(CanvasToSVG(canvas, 4)), 0644)
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// List returns the summaries under the store, oldest first. Directories
// without a readable summary are skipped.
func (s *Store) List() ([]Summary, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Summary{}, nil
		}
		return nil, err
	}

	runs := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sum, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *sum)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Created.Before(runs[j].Created) })
	return runs, nil
}

func (s *Store) Load(runID string) (*Summary, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, summaryFile))
	if err != nil {
		return nil, err
	}

	var sum Summary
	if err := json.Unmarshal(data, &sum); err != nil {
		return nil, fmt.Errorf("decode %s: %w", summaryFile, err)
	}
	return &sum, nil
}

func (s *Store) LoadBins(runID string) ([]Bin, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, binsFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadBins(f)
}

// WriteJSON encodes v indented.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteBins writes one CSV row per bin with its count and both
// distributions.
func WriteBins(w io.Writer, cmp analysis.Comparison) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"bin", "count", "observed", "expected"}); err != nil {
		return err
	}
	for i := range cmp.Expected {
		count, observed := 0, 0.0
		if i < len(cmp.Counts) {
			count = cmp.Counts[i]
		}
		if i < len(cmp.Observed) {
			observed = cmp.Observed[i]
		}
		row := []string{
			strconv.Itoa(i),
			strconv.Itoa(count),
			strconv.FormatFloat(observed, 'f', 6, 64),
			strconv.FormatFloat(cmp.Expected[i], 'f', 6, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ReadBins(r io.Reader) ([]Bin, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []Bin{}, nil
	}

	bins := make([]Bin, 0, len(records)-1)
	for line, rec := range records[1:] {
		if len(rec) != 4 {
			return nil, fmt.Errorf("%s line %d: expected 4 fields, got %d", binsFile, line+2, len(rec))
		}
		var b Bin
		var errs [4]error
		b.Index, errs[0] = strconv.Atoi(rec[0])
		b.Count, errs[1] = strconv.Atoi(rec[1])
		b.Observed, errs[2] = strconv.ParseFloat(rec[2], 64)
		b.Expected, errs[3] = strconv.ParseFloat(rec[3], 64)
		for _, err := range errs {
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %w", binsFile, line+2, err)
			}
		}
		bins = append(bins, b)
	}
	return bins, nil
}
