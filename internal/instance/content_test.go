package instance

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mutagen-io/mutagen/internal/archive"
	"github.com/mutagen-io/mutagen/internal/childstate"
	"github.com/mutagen-io/mutagen/internal/sourceindex"
	"github.com/mutagen-io/mutagen/pkg/logging"
)

func writeFabricMod(t *testing.T, path, id string) {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("fabric.mod.json")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte(`{"id":"` + id + `","name":"` + id + `","version":"1.0.0"}`)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestAcceptedFilename(t *testing.T) {
	cases := []struct {
		name    string
		enabled bool
		ok      bool
	}{
		{"mod.jar", true, true},
		{"mod.jar.disabled", false, true},
		{"resourcepack.zip", true, true},
		{"modpack.mrpack", true, true},
		{"modpack.mrpack.disabled", false, true},
		{".hidden.jar", false, false},
		{"readme.txt", false, false},
		{".mod.jar.pandorachildstate", false, false},
	}
	for _, c := range cases {
		enabled, ok := acceptedFilename(c.name)
		if enabled != c.enabled || ok != c.ok {
			t.Errorf("acceptedFilename(%q) = (%v, %v), want (%v, %v)", c.name, enabled, ok, c.enabled, c.ok)
		}
	}
}

func TestAlternateDisabledPath(t *testing.T) {
	if got := alternateDisabledPath("mod.jar"); got != "mod.jar.disabled" {
		t.Errorf("got %q, want mod.jar.disabled", got)
	}
	if got := alternateDisabledPath("mod.jar.disabled"); got != "mod.jar" {
		t.Errorf("got %q, want mod.jar", got)
	}
}

func TestLoadContentAllListsRecognizedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFabricMod(t, filepath.Join(dir, "alpha.jar"), "alpha")
	writeFabricMod(t, filepath.Join(dir, "beta.jar"), "beta")
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0600); err != nil {
		t.Fatal(err)
	}

	cache := archive.NewCache()
	idx := sourceindex.New()
	summaries := loadContentAll(dir, cache, idx, logging.RootLogger)
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2: %+v", len(summaries), summaries)
	}
}

func TestCreateContentSummaryRecordsSourceAndChildren(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alpha.jar")
	writeFabricMod(t, path, "alpha")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	summary, err := archive.Extract(data, false)
	if err != nil {
		t.Fatal(err)
	}

	idx := sourceindex.New()
	idx.Set(summary.Hash, sourceindex.Source{Kind: sourceindex.KindModrinthProject, ProjectID: "alpha-project"})

	if err := childstate.Save(path, &childstate.State{DisabledChildren: []string{"inner.jar"}}, logging.RootLogger); err != nil {
		t.Fatal(err)
	}

	cache := archive.NewCache()
	got, err := createContentSummary(path, cache, idx)
	if err != nil {
		t.Fatal(err)
	}
	if got.Archive == nil || got.Archive.ID != "alpha" {
		t.Fatalf("Archive = %+v", got.Archive)
	}
	if got.Source.Kind != sourceindex.KindModrinthProject || got.Source.ProjectID != "alpha-project" {
		t.Errorf("Source = %+v", got.Source)
	}
	if len(got.DisabledChildren) != 1 || got.DisabledChildren[0] != "inner.jar" {
		t.Errorf("DisabledChildren = %v", got.DisabledChildren)
	}
	if !got.Enabled {
		t.Error("expected Enabled=true for a non-.disabled file")
	}
}

func TestSortContentGroupsByArchiveIDThenFilenameDescending(t *testing.T) {
	summaries := []ContentSummary{
		{Filename: "alpha-1.jar", Archive: &archive.Summary{ID: "alpha"}},
		{Filename: "zeta.jar"},
		{Filename: "alpha-2.jar", Archive: &archive.Summary{ID: "alpha"}},
		{Filename: "aardvark.jar"},
	}
	sortContent(summaries)

	// Unrecognized files (empty group id "") sort before any named group,
	// ordered by filename descending among themselves.
	if summaries[0].Filename != "zeta.jar" || summaries[1].Filename != "aardvark.jar" {
		t.Errorf("unrecognized ordering = %v", names(summaries[:2]))
	}
	if summaries[2].Filename != "alpha-2.jar" || summaries[3].Filename != "alpha-1.jar" {
		t.Errorf("alpha group ordering = %v", names(summaries[2:]))
	}
}

func names(summaries []ContentSummary) []string {
	out := make([]string, len(summaries))
	for i, s := range summaries {
		out[i] = s.Filename
	}
	return out
}

func TestLoadContentFullCycleThroughTable(t *testing.T) {
	instanceRoot := t.TempDir()
	inst, err := New(instanceRoot, Configuration{}, logging.RootLogger)
	if err != nil {
		t.Fatal(err)
	}
	modsDir := filepath.Join(inst.GameRootPath, "mods")
	if err := os.MkdirAll(modsDir, 0700); err != nil {
		t.Fatal(err)
	}
	writeFabricMod(t, filepath.Join(modsDir, "alpha.jar"), "alpha")
	inst.content[ContentFolderMods].path = modsDir

	table := NewTable()
	handle := table.Insert(inst)

	cache := archive.NewCache()
	idx := sourceindex.New()

	summaries, changed, err := LoadContent(context.Background(), table, handle, ContentFolderMods, cache, idx, logging.RootLogger)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Error("expected first load to report changed=true")
	}
	if len(summaries) != 1 {
		t.Fatalf("summaries = %+v", summaries)
	}
	if summaries[0].ID.Generation != 1 {
		t.Errorf("Generation = %d, want 1", summaries[0].ID.Generation)
	}

	cached, changed, err := LoadContent(context.Background(), table, handle, ContentFolderMods, cache, idx, logging.RootLogger)
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("expected cached second load to report changed=false")
	}
	if len(cached) != 1 {
		t.Fatalf("cached = %+v", cached)
	}
}
