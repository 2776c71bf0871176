// Package stats keeps lifetime driving statistics per track+class
// combo: personal best lap, meters driven, liters burned, seconds on
// track and valid/invalid lap counts.
package stats

import (
	"database/sql"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// DriverStats is the accumulated record for one combo. PersonalBest
// is zero until a valid lap has been set.
type DriverStats struct {
	Combo        string
	PersonalBest float64
	Meters       float64
	Liters       float64
	Seconds      float64
	ValidLaps    int
	InvalidLaps  int
}

// Manager owns the stats database. Loads of unknown combos return a
// zeroed record instead of an error.
type Manager struct {
	db *sql.DB
	mu sync.Mutex
}

func NewManager(dbPath string) (*Manager, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "open stats database")
	}
	if _, err := db.Exec(buildCreateDriverStatsTable()); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "init stats database")
	}
	return &Manager{db: db}, nil
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.db.Close()
}

func (m *Manager) Load(combo string) (DriverStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	query, read := buildSelectComboCommand()
	rows, err := m.db.Query(query, combo)
	if err != nil {
		return DriverStats{Combo: combo}, errors.Wrap(err, "query driver stats")
	}
	stats, err := read(rows)
	stats.Combo = combo
	if err != nil {
		return stats, errors.Wrap(err, "read driver stats")
	}
	return stats, nil
}

func (m *Manager) Save(stats DriverStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.db.Exec(buildUpsertComboCommand(),
		stats.Combo,
		stats.PersonalBest,
		stats.Meters,
		stats.Liters,
		stats.Seconds,
		stats.ValidLaps,
		stats.InvalidLaps,
	)
	return errors.Wrap(err, "save driver stats")
}
