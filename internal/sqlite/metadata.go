package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/rootsmith/lineage/pkg/types"
)

// MetaGet reads a metadata setting from the last-committed state.
func (e *Engine) MetaGet(key string) (string, bool, error) {
	if err := e.checkOpen(); err != nil {
		return "", false, err
	}
	var value string
	err := e.db.QueryRow("SELECT value FROM metadata WHERE setting = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading metadata %q: %w", key, err)
	}
	return value, true, nil
}

// MetaSet writes a metadata setting inside txn.
func (e *Engine) MetaSet(txn types.Txn, key, value string) error {
	t, err := e.ownTxn(txn)
	if err != nil {
		return err
	}
	if _, err := t.tx.Exec(
		"INSERT INTO metadata (setting, value) VALUES (?, ?) "+
			"ON CONFLICT(setting) DO UPDATE SET value = excluded.value",
		key, value); err != nil {
		return t.fail(fmt.Errorf("writing metadata %q: %w", key, err))
	}
	return nil
}

// NewDisplayID mints the next free display id for a kind inside txn:
// the kind's prefix plus a zero-padded counter (I0001, F0023, ...). The
// counter lives in the metadata table; ids already taken by imported
// data are skipped.
func (e *Engine) NewDisplayID(txn types.Txn, kind string) (string, error) {
	t, err := e.ownTxn(txn)
	if err != nil {
		return "", err
	}
	ks, err := e.schema(kind)
	if err != nil {
		return "", t.fail(err)
	}
	sf, ok := ks.Projected(types.FieldDisplayID)
	if !ok {
		return "", t.fail(fmt.Errorf("%w: kind %q does not project a display id",
			types.ErrSchemaMismatch, kind))
	}

	counterKey := "display_id." + kind
	next := int64(1)
	var stored string
	err = t.tx.QueryRow("SELECT value FROM metadata WHERE setting = ?", counterKey).Scan(&stored)
	if err == nil {
		if n, perr := strconv.ParseInt(stored, 10, 64); perr == nil {
			next = n
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return "", t.fail(fmt.Errorf("reading display id counter for %s: %w", kind, err))
	}

	prefix := types.DisplayIDPrefix(kind)
	probe := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = ?", ks.Kind, sf.Name)
	var id string
	for {
		id = fmt.Sprintf("%s%04d", prefix, next)
		next++
		var found int
		err := t.tx.QueryRow(probe, id).Scan(&found)
		if errors.Is(err, sql.ErrNoRows) {
			break
		}
		if err != nil {
			return "", t.fail(fmt.Errorf("probing display id %s: %w", id, err))
		}
	}

	if _, err := t.tx.Exec(
		"INSERT INTO metadata (setting, value) VALUES (?, ?) "+
			"ON CONFLICT(setting) DO UPDATE SET value = excluded.value",
		counterKey, strconv.FormatInt(next, 10)); err != nil {
		return "", t.fail(fmt.Errorf("advancing display id counter for %s: %w", kind, err))
	}
	return id, nil
}
