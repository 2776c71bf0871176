package stats

import "database/sql"

func buildCreateDriverStatsTable() string {
	return `CREATE TABLE IF NOT EXISTS driver_stats (
		combo TEXT PRIMARY KEY,
		pb REAL,
		meters REAL,
		liters REAL,
		seconds REAL,
		valid INTEGER,
		invalid INTEGER);`
}

func buildSelectComboCommand() (string, func(*sql.Rows) (DriverStats, error)) {
	fields := "pb, meters, liters, seconds, valid, invalid"
	return `SELECT ` + fields + ` FROM driver_stats WHERE combo = ?`, processSelectComboRows
}

func processSelectComboRows(rows *sql.Rows) (DriverStats, error) {
	defer rows.Close()

	var stats DriverStats
	// only can be one row
	if rows.Next() {
		err := rows.Scan(
			&stats.PersonalBest,
			&stats.Meters,
			&stats.Liters,
			&stats.Seconds,
			&stats.ValidLaps,
			&stats.InvalidLaps,
		)
		return stats, err
	}
	return stats, rows.Err()
}

func buildUpsertComboCommand() string {
	fields := "combo, pb, meters, liters, seconds, valid, invalid"
	return `INSERT OR REPLACE INTO driver_stats (` + fields + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
}
