package fuel

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/berarma/TinyPedal/pkg/calc"
)

const (
	// FileExt is the extension of per-combo fuel curve files.
	FileExt = ".fuel"

	// minSaveSamples guards against persisting partial or aborted laps.
	minSaveSamples = 10
)

// LoadResult tells callers whether a load hit valid data, repaired it
// on the way in, or fell back to the default curve.
type LoadResult int

const (
	Defaulted LoadResult = iota
	Loaded
	Repaired
)

func (r LoadResult) String() string {
	switch r {
	case Loaded:
		return "loaded"
	case Repaired:
		return "repaired"
	default:
		return "defaulted"
	}
}

// Store persists one fuel curve per combo identifier under a
// directory. Combo identifiers must already be sanitized of
// path-unsafe characters by the caller. Storage faults are never
// fatal: loads degrade to the default curve, save failures only cost
// the session's improved curve.
type Store struct {
	dir    string
	logger *zap.Logger
}

func NewStore(dir string, logger *zap.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

func (s *Store) path(comboID string) string {
	return filepath.Join(s.dir, comboID+FileExt)
}

// Load reads the persisted curve for a combo. Rows breaking the
// non-decreasing-distance invariant or holding non-numeric or
// non-finite values are dropped; if any row was dropped the cleaned
// curve is re-persisted immediately. Any structural problem degrades
// to the default single-sample curve.
func (s *Store) Load(comboID string) (Curve, float64, float64, LoadResult) {
	file, err := os.Open(s.path(comboID))
	if err != nil {
		s.logger.Info("MISSING: fuel data", zap.String("combo", comboID))
		return DefaultCurve(), 0, 0, Defaulted
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		s.logger.Info("MISSING: invalid fuel data", zap.String("combo", comboID), zap.Error(err))
		return DefaultCurve(), 0, 0, Defaulted
	}

	curve, dropped := sanitizeRows(rows)
	if len(curve) == 0 {
		s.logger.Info("MISSING: empty fuel data", zap.String("combo", comboID))
		return DefaultCurve(), 0, 0, Defaulted
	}
	if dropped {
		if err := s.Save(comboID, curve); err != nil {
			s.logger.Warn("fuel data repair not saved", zap.String("combo", comboID), zap.Error(err))
		}
		return curve, curve.LastUsed(), curve.LastLapTime(), Repaired
	}
	return curve, curve.LastUsed(), curve.LastLapTime(), Loaded
}

// Save persists the curve for a combo, overwriting any previous file.
// Curves with fewer than 10 samples indicate an aborted collection and
// are not written, leaving any previous file untouched. The write goes
// to a temp file first and replaces the target atomically.
func (s *Store) Save(comboID string, curve Curve) error {
	if len(curve) < minSaveSamples {
		return nil
	}
	tmp, err := os.CreateTemp(s.dir, comboID+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create fuel temp file")
	}
	tmpName := tmp.Name()

	writer := csv.NewWriter(tmp)
	for _, sample := range curve {
		row := []string{
			formatSample(sample.Distance),
			formatSample(sample.Value),
			formatSample(sample.LapTime),
		}
		if err := writer.Write(row); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return errors.Wrap(err, "write fuel row")
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "flush fuel data")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "close fuel temp file")
	}
	if err := os.Rename(tmpName, s.path(comboID)); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "replace fuel file")
	}
	s.logger.Info("USERDATA: fuel data saved", zap.String("combo", comboID), zap.Int("samples", len(curve)))
	return nil
}

func formatSample(value float64) string {
	return strconv.FormatFloat(calc.Round6(value), 'f', -1, 64)
}

// sanitizeRows parses raw csv rows into a curve, dropping malformed
// rows, and reports whether anything was dropped.
func sanitizeRows(rows [][]string) (Curve, bool) {
	curve := make(Curve, 0, len(rows))
	dropped := false
	lastDistance := math.Inf(-1)
	for _, row := range rows {
		sample, ok := parseRow(row)
		if !ok || sample.Distance < lastDistance {
			dropped = true
			continue
		}
		lastDistance = sample.Distance
		curve = append(curve, sample)
	}
	return curve, dropped
}

func parseRow(row []string) (calc.Sample, bool) {
	if len(row) != 3 {
		return calc.Sample{}, false
	}
	values := make([]float64, 3)
	for i, field := range row {
		value, err := strconv.ParseFloat(field, 64)
		if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
			return calc.Sample{}, false
		}
		values[i] = value
	}
	return calc.Sample{Distance: values[0], Value: values[1], LapTime: values[2]}, true
}
