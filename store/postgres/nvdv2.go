package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/doug-martin/goqu/v8"

	"github.com/chl3608/anchore-engine/feed/nvdv2"
)

var nvdv2Table = table{
	name:    "nvdv2_entity",
	idCol:   "id",
	toRow:   nvdv2ToRow,
	fromRow: nvdv2FromRow,
}

func nvdv2ToRow(feedName, groupName string, entity interface{}) (goqu.Record, error) {
	e, ok := entity.(*nvdv2.Entity)
	if !ok {
		return nil, fmt.Errorf("store/postgres: expected *nvdv2.Entity, got %T", entity)
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
		"cpes":           cpes,
		"severity":       e.Severity,
		"description":    e.Description,
	}, nil
}

func nvdv2FromRow(row map[string]interface{}) (interface{}, error) {
	e := &nvdv2.Entity{
		ID:            asString(row["id"]),
		NamespaceName: asString(row["namespace_name"]),
		Severity:      asString(row["severity"]),
		Description:   asString(row["description"]),
	}
	if err := json.Unmarshal(asBytes(row["cpes"]), &e.CPEs); err != nil {
		return nil, err
	}
	return e, nil
}
