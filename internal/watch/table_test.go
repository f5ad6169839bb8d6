package watch

import "testing"

func TestSubscribeRecordsDirectTarget(t *testing.T) {
	table := NewTable()
	table.Subscribe("/a/b", "/a/b", Target{Kind: TargetContentDir})

	targets := table.TargetsFor("/a/b")
	if len(targets) != 1 || targets[0].Kind != TargetContentDir {
		t.Fatalf("targets = %+v", targets)
	}
}

func TestSubscribeRecordsAliasBothDirections(t *testing.T) {
	table := NewTable()
	table.Subscribe("/link/mods", "/real/mods", Target{Kind: TargetContentDir})

	logical := table.ExpandLogical("/link/mods")
	if !contains(logical, "/real/mods") {
		t.Errorf("ExpandLogical(/link/mods) = %v, want to contain /real/mods", logical)
	}

	logicalReverse := table.ExpandLogical("/real/mods")
	if !contains(logicalReverse, "/link/mods") {
		t.Errorf("ExpandLogical(/real/mods) = %v, want to contain /link/mods", logicalReverse)
	}
}

func TestExpandLogicalViaParentAlias(t *testing.T) {
	table := NewTable()
	// The instance root itself is reachable via a symlink; a file change
	// reported under the symlinked path should still translate to the
	// canonical path with the same filename appended.
	table.Subscribe("/link/instance", "/real/instance", Target{Kind: TargetInstanceRoot})

	logical := table.ExpandLogical("/link/instance/info_v1.json")
	if !contains(logical, "/real/instance/info_v1.json") {
		t.Errorf("ExpandLogical = %v, want to contain /real/instance/info_v1.json", logical)
	}
}

func TestTargetsForFallsBackToParent(t *testing.T) {
	table := NewTable()
	table.Subscribe("/mods", "/mods", Target{Kind: TargetContentDir})

	targets := table.TargetsFor("/mods/alpha.jar")
	if len(targets) != 1 || targets[0].Kind != TargetContentDir {
		t.Fatalf("targets = %+v", targets)
	}
}

func TestUnsubscribeRemovesTargets(t *testing.T) {
	table := NewTable()
	table.Subscribe("/mods", "/mods", Target{Kind: TargetContentDir})
	table.Unsubscribe("/mods")

	if targets := table.TargetsFor("/mods"); len(targets) != 0 {
		t.Errorf("expected no targets after Unsubscribe, got %+v", targets)
	}
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
