package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/doug-martin/goqu/v8"

	"github.com/chl3608/anchore-engine/feed"
)

// vulnerabilityTable backs the vulnerabilities feed. fixed_in and
// vulnerable_in are stored as JSON columns rather than a joined
// fixed_artifact table: the widened-flush requirement (spec.md §4.5) is
// satisfied by deleteGroupSQL against this single table, since there is no
// separate child table whose rows could outlive a deleted parent row.
var vulnerabilityTable = table{
	name:    "vulnerability",
	idCol:   "id",
	toRow:   vulnerabilityToRow,
	fromRow: vulnerabilityFromRow,
}

func vulnerabilityToRow(feedName, groupName string, entity interface{}) (goqu.Record, error) {
	v, ok := entity.(*feed.Vulnerability)
	if !ok {
		return nil, fmt.Errorf("store/postgres: expected *feed.Vulnerability, got %T", entity)
	}
	fixedIn, err := json.Marshal(v.FixedIn)
	if err != nil {
		return nil, err
	}
	vulnerableIn, err := json.Marshal(v.VulnerableIn)
	if err != nil {
		return nil, err
	}
	return goqu.Record{
		"feed_name":      feedName,
		"group_name":     groupName,
		"id":             v.ID,
		"namespace_name": v.NamespaceName,
		"description":    v.Description,
		"severity":       v.Severity,
		"link":           v.Link,
		"fixed_in":       fixedIn,
		"vulnerable_in":  vulnerableIn,
	}, nil
}

func vulnerabilityFromRow(row map[string]interface{}) (interface{}, error) {
	v := &feed.Vulnerability{
		ID:            asString(row["id"]),
		NamespaceName: asString(row["namespace_name"]),
		Description:   asString(row["description"]),
		Severity:      asString(row["severity"]),
		Link:          asString(row["link"]),
	}
	if err := json.Unmarshal(asBytes(row["fixed_in"]), &v.FixedIn); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(asBytes(row["vulnerable_in"]), &v.VulnerableIn); err != nil {
		return nil, err
	}
	return v, nil
}
