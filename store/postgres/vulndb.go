package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/doug-martin/goqu/v8"

	"github.com/chl3608/anchore-engine/feed/vulndb"
)

var vulndbTable = table{
	name:    "vulndb_entity",
	idCol:   "id",
	toRow:   vulndbToRow,
	fromRow: vulndbFromRow,
}

func vulndbToRow(feedName, groupName string, entity interface{}) (goqu.Record, error) {
	e, ok := entity.(*vulndb.Entity)
	if !ok {
		return nil, fmt.Errorf("store/postgres: expected *vulndb.Entity, got %T", entity)
	}
	cpes, err := json.Marshal(e.CPEs)
	if err != nil {
		return nil, err
	}
	return goqu.Record{
		"feed_name":      feedName,
		"group_name":     groupName,
		"id":             e.ID,
		"namespace_name": e.NamespaceName,
		"vendor_name":    e.VendorName,
		"cpes":           cpes,
		"description":    e.Description,
	}, nil
}

func vulndbFromRow(row map[string]interface{}) (interface{}, error) {
	e := &vulndb.Entity{
		ID:            asString(row["id"]),
		NamespaceName: asString(row["namespace_name"]),
		VendorName:    asString(row["vendor_name"]),
		Description:   asString(row["description"]),
	}
	if err := json.Unmarshal(asBytes(row["cpes"]), &e.CPEs); err != nil {
		return nil, err
	}
	return e, nil
}
