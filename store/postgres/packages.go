package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/doug-martin/goqu/v8"

	"github.com/chl3608/anchore-engine/feed/packages"
)

// packageTable backs both groups of the packages feed (gem, npm); group_name
// distinguishes rows the way separate GemMetadata/NpmMetadata tables would,
// without duplicating the table definition per group.
var packageTable = table{
	name:    "package_metadata",
	idCol:   "name",
	toRow:   packageToRow,
	fromRow: packageFromRow,
}

func packageToRow(feedName, groupName string, entity interface{}) (goqu.Record, error) {
	m, ok := entity.(*packages.Metadata)
	if !ok {
		return nil, fmt.Errorf("store/postgres: expected *packages.Metadata, got %T", entity)
	}
	versions, err := json.Marshal(m.Versions)
	if err != nil {
		return nil, err
	}
	return goqu.Record{
		"feed_name":      feedName,
		"group_name":     groupName,
		"name":           m.Name,
		"namespace_name": m.NamespaceName,
		"versions":       versions,
		"source_url":     m.SourceURL,
		"license":        m.License,
	}, nil
}

func packageFromRow(row map[string]interface{}) (interface{}, error) {
	m := &packages.Metadata{
		Name:          asString(row["name"]),
		NamespaceName: asString(row["namespace_name"]),
		SourceURL:     asString(row["source_url"]),
		License:       asString(row["license"]),
	}
	if err := json.Unmarshal(asBytes(row["versions"]), &m.Versions); err != nil {
		return nil, err
	}
	return m, nil
}
