package postgres

import (
	"strings"
	"testing"

	"github.com/chl3608/anchore-engine/feed"
	"github.com/chl3608/anchore-engine/feed/nvdv2"
	"github.com/chl3608/anchore-engine/feed/packages"
	"github.com/chl3608/anchore-engine/feed/vulndb"
)

func TestTableForKnownFeeds(t *testing.T) {
	for _, name := range []string{"vulnerabilities", "packages", "nvdv2", "vulndb"} {
		if _, ok := tableFor(name); !ok {
			t.Errorf("expected a table registered for %q", name)
		}
	}
	if _, ok := tableFor("no-such-feed"); ok {
		t.Error("expected no table registered for an unknown feed")
	}
}

func TestCountSQLScopedToFeedAndGroup(t *testing.T) {
	sql, args, err := vulnerabilityTable.countSQL("vulnerabilities", "ubuntu:20.04")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(sql, `"vulnerability"`) {
		t.Errorf("expected query against vulnerability table, got %q", sql)
	}
	if len(args) != 0 {
		t.Errorf("expected inline literal args for goqu.Ex with no placeholders, got %v", args)
	}
}

func TestDeleteGroupSQLTargetsBothFeedAndGroupColumns(t *testing.T) {
	sql, _, err := vulnerabilityTable.deleteGroupSQL("vulnerabilities", "ubuntu:20.04")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(sql, "feed_name") || !strings.Contains(sql, "group_name") {
		t.Errorf("expected delete scoped by feed_name and group_name, got %q", sql)
	}
}

func TestVulnerabilityRoundTrip(t *testing.T) {
	v := &feed.Vulnerability{
		ID:            "CVE-2024-0001",
		NamespaceName: "ubuntu:20.04",
		Description:   "test",
		Severity:      "High",
		Link:          "https://example.test/cve",
		FixedIn:       []feed.FixedIn{{Name: "openssl", Version: "1.2.3"}},
	}
	rec, err := vulnerabilityToRow("vulnerabilities", "ubuntu:20.04", v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	row := map[string]interface{}{
		"id":             rec["id"],
		"namespace_name": rec["namespace_name"],
		"description":    rec["description"],
		"severity":       rec["severity"],
		"link":           rec["link"],
		"fixed_in":       rec["fixed_in"],
		"vulnerable_in":  rec["vulnerable_in"],
	}
	got, err := vulnerabilityFromRow(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gotV, ok := got.(*feed.Vulnerability)
	if !ok {
		t.Fatalf("got %T, want *feed.Vulnerability", got)
	}
	if gotV.ID != v.ID || gotV.NamespaceName != v.NamespaceName || len(gotV.FixedIn) != 1 || gotV.FixedIn[0] != v.FixedIn[0] {
		t.Errorf("round trip mismatch: got %+v, want %+v", gotV, v)
	}
}

func TestPackageRoundTrip(t *testing.T) {
	m := &packages.Metadata{Name: "rails", NamespaceName: "gem", Versions: []string{"6.1.0", "7.0.0"}, SourceURL: "https://rubygems.org/gems/rails"}
	rec, err := packageToRow("packages", "gem", m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := packageFromRow(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gotM := got.(*packages.Metadata)
	if gotM.Name != m.Name || len(gotM.Versions) != 2 {
		t.Errorf("round trip mismatch: got %+v, want %+v", gotM, m)
	}
}

func TestNvdv2RoundTrip(t *testing.T) {
	e := &nvdv2.Entity{ID: "CVE-2024-0002", NamespaceName: "2024", CPEs: []string{"cpe:2.3:a:vendor:product"}, Severity: "Medium"}
	rec, err := nvdv2ToRow("nvdv2", "2024", e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := nvdv2FromRow(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gotE := got.(*nvdv2.Entity)
	if gotE.ID != e.ID || len(gotE.CPEs) != 1 {
		t.Errorf("round trip mismatch: got %+v, want %+v", gotE, e)
	}
}

func TestVulndbRoundTrip(t *testing.T) {
	e := &vulndb.Entity{ID: "VULNDB-1", NamespaceName: "acme", VendorName: "acme-corp", CPEs: []string{"cpe:2.3:a:acme:widget"}}
	rec, err := vulndbToRow("vulndb", "acme", e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := vulndbFromRow(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gotE := got.(*vulndb.Entity)
	if gotE.ID != e.ID || gotE.VendorName != e.VendorName {
		t.Errorf("round trip mismatch: got %+v, want %+v", gotE, e)
	}
}
