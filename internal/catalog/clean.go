package catalog

import (
	"database/sql"
	"fmt"
)

// Clean sweeps the stats table: only the most-recent row per hashcode is
// kept, and rows no job references anymore are dropped.
func (c *Catalog) Clean() error {
	return c.withTxn(func(tx *sql.Tx) error {
		if err := deleteDups(tx); err != nil {
			return fmt.Errorf("catalog: delete_dups: %w", err)
		}
		if err := deleteStats(tx); err != nil {
			return fmt.Errorf("catalog: delete_stats: %w", err)
		}
		return nil
	})
}

// deleteDups keeps only the most-recent stats row per hashcode, ordered
// by stat_id desc.
func deleteDups(tx *sql.Tx) error {
	_, err := tx.Exec(`
		DELETE FROM stats
		WHERE stat_id NOT IN (
			SELECT stat_id FROM (
				SELECT stat_id, ROW_NUMBER() OVER (PARTITION BY hashcode ORDER BY stat_id DESC) rn
				FROM stats
			) WHERE rn = 1
		)`)
	return err
}

// deleteStats removes stats rows no job references anymore, after
// deleteDups has collapsed per-hashcode duplicates.
func deleteStats(tx *sql.Tx) error {
	_, err := tx.Exec(`DELETE FROM stats WHERE stat_id NOT IN (SELECT stat_id FROM jobs WHERE stat_id IS NOT NULL)`)
	return err
}
