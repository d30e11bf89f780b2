package dataset

import (
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const sqliteSchema = `
CREATE TABLE attacks(
	attack_id   TEXT PRIMARY KEY,
	attack_name TEXT NOT NULL
);
CREATE TABLE d3fend(
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	attack_id TEXT NOT NULL REFERENCES attacks(attack_id),
	d3_id     TEXT NOT NULL,
	name      TEXT NOT NULL,
	type      TEXT,
	tactic_id TEXT,
	d3fend_id TEXT,
	attack_ref TEXT,
	url       TEXT
);
CREATE INDEX idx_d3f_attack ON d3fend(attack_id);
`

// WriteSQLite writes records into a SQLite artifact, replacing any file
// already at path. Row order in the d3fend table follows the record order,
// so a later ReadSQLite round-trips the countermeasure sequence.
func WriteSQLite(path string, records []Record) (err error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale db %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening db %s: %w", path, err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if _, err := db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	insAttack, err := tx.Prepare("INSERT INTO attacks(attack_id, attack_name) VALUES(?, ?)")
	if err != nil {
		return fmt.Errorf("preparing attacks insert: %w", err)
	}
	defer func() { _ = insAttack.Close() }()

	insD3, err := tx.Prepare(
		"INSERT INTO d3fend(attack_id, d3_id, name, type, tactic_id, d3fend_id, attack_ref, url) VALUES(?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing d3fend insert: %w", err)
	}
	defer func() { _ = insD3.Close() }()

	for _, rec := range records {
		if _, err := insAttack.Exec(rec.AttackID, rec.AttackName); err != nil {
			return fmt.Errorf("inserting attack %s: %w", rec.AttackID, err)
		}
		for _, cm := range rec.D3FEND {
			if _, err := insD3.Exec(rec.AttackID, cm.ID, cm.Name, cm.Type, cm.TacticID, cm.D3FENDID, cm.AttackRef, cm.URL); err != nil {
				return fmt.Errorf("inserting countermeasure %s for %s: %w", cm.ID, rec.AttackID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// ReadSQLite loads records back from a SQLite artifact produced by
// WriteSQLite, preserving countermeasure order via the rowid.
func ReadSQLite(path string) (records []Record, err error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("dataset db %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening db %s: %w", path, err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	rows, err := db.Query("SELECT attack_id, attack_name FROM attacks ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("querying attacks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[string]int)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.AttackID, &rec.AttackName); err != nil {
			return nil, fmt.Errorf("scanning attack: %w", err)
		}
		byID[rec.AttackID] = len(records)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading attacks: %w", err)
	}

	cmRows, err := db.Query(
		"SELECT attack_id, d3_id, name, type, tactic_id, d3fend_id, attack_ref, url FROM d3fend ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying d3fend: %w", err)
	}
	defer func() { _ = cmRows.Close() }()

	for cmRows.Next() {
		var attackID string
		var cm Countermeasure
		var typ, tacticID, d3fendID, attackRef, url sql.NullString
		if err := cmRows.Scan(&attackID, &cm.ID, &cm.Name, &typ, &tacticID, &d3fendID, &attackRef, &url); err != nil {
			return nil, fmt.Errorf("scanning countermeasure: %w", err)
		}
		cm.Type = typ.String
		cm.TacticID = tacticID.String
		cm.D3FENDID = d3fendID.String
		cm.AttackRef = attackRef.String
		cm.URL = url.String
		idx, ok := byID[attackID]
		if !ok {
			continue
		}
		records[idx].D3FEND = append(records[idx].D3FEND, cm)
	}
	if err := cmRows.Err(); err != nil {
		return nil, fmt.Errorf("reading d3fend rows: %w", err)
	}
	return records, nil
}
