package library

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/mutagen-io/mutagen/internal/archive"
	"github.com/mutagen-io/mutagen/internal/instance"
	"github.com/mutagen-io/mutagen/internal/slab"
	"github.com/mutagen-io/mutagen/internal/sourceindex"
	"github.com/mutagen-io/mutagen/pkg/logging"
)

func buildZipArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, contents := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(contents)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestPathForShardsByFirstHexByte(t *testing.T) {
	hash := [20]byte{0xab, 1, 2, 3}
	got := PathFor("/root", hash, "jar")
	if filepath.Dir(got) != filepath.Join("/root", "ab") {
		t.Errorf("PathFor dir = %q, want sharded by first hex byte", filepath.Dir(got))
	}
	if filepath.Ext(got) != ".jar" {
		t.Errorf("PathFor ext = %q, want .jar", filepath.Ext(got))
	}
}

func TestParseHashRejectsBadInput(t *testing.T) {
	if _, err := ParseHash("not-hex"); err == nil {
		t.Error("expected an error for non-hex input")
	}
	if _, err := ParseHash("aabb"); err == nil {
		t.Error("expected an error for a too-short hash")
	}
}

func TestStageURLDownloadsAndVerifies(t *testing.T) {
	data := []byte("hello world")
	hash := sha1.Sum(data) //nolint:gosec

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer server.Close()

	lib := New(t.TempDir(), server.Client())
	staged, err := lib.StageURL(context.Background(), server.URL, hash, int64(len(data)), "jar", logging.RootLogger)
	if err != nil {
		t.Fatal(err)
	}
	if staged.Hash != hash {
		t.Errorf("staged hash mismatch")
	}
	contents, err := os.ReadFile(staged.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(contents) != string(data) {
		t.Errorf("staged contents = %q, want %q", contents, data)
	}
}

func TestStageURLRejectsWrongHash(t *testing.T) {
	data := []byte("hello world")
	var wrongHash [20]byte // all zero, won't match

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer server.Close()

	lib := New(t.TempDir(), server.Client())
	_, err := lib.StageURL(context.Background(), server.URL, wrongHash, int64(len(data)), "jar", logging.RootLogger)
	if err == nil {
		t.Fatal("expected a hash mismatch error")
	}
}

func TestStageURLRejectsNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	lib := New(t.TempDir(), server.Client())
	_, err := lib.StageURL(context.Background(), server.URL, [20]byte{1}, 0, "jar", logging.RootLogger)
	if err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
}

func TestStageURLSkipsDownloadWhenAlreadyPresent(t *testing.T) {
	data := []byte("cached content")
	hash := sha1.Sum(data) //nolint:gosec

	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write(data)
	}))
	defer server.Close()

	lib := New(t.TempDir(), server.Client())
	ctx := context.Background()
	if _, err := lib.StageURL(ctx, server.URL, hash, int64(len(data)), "", logging.RootLogger); err != nil {
		t.Fatal(err)
	}
	if _, err := lib.StageURL(ctx, server.URL, hash, int64(len(data)), "", logging.RootLogger); err != nil {
		t.Fatal(err)
	}
	if requests != 1 {
		t.Errorf("requests = %d, want 1 (second stage should short-circuit)", requests)
	}
}

func TestStageFileHashesAndStores(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source.jar")
	if err := os.WriteFile(source, []byte("local payload"), 0600); err != nil {
		t.Fatal(err)
	}

	lib := New(filepath.Join(dir, "library"), nil)
	staged, err := lib.StageFile(source, "jar")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(staged.Path); err != nil {
		t.Fatal("expected staged file to exist:", err)
	}
}

func buildFabricModZip(t *testing.T) []byte {
	t.Helper()
	return buildZipArchive(t, map[string]string{
		"fabric.mod.json": `{"id":"examplemod","name":"Example","version":"1.0"}`,
	})
}

func TestInstallPlacesFileViaHardLink(t *testing.T) {
	data := buildFabricModZip(t)
	hash := sha1.Sum(data) //nolint:gosec

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer server.Close()

	dir := t.TempDir()
	lib := New(filepath.Join(dir, "library"), server.Client())
	destDir := filepath.Join(dir, "instance", ".minecraft")

	idx := sourceindex.New()
	cache := archive.NewCache()

	req := Request{
		DestDir: destDir,
		Target:  Target{Kind: TargetExistingInstance},
		Files: []File{
			{
				Download: Download{Kind: DownloadURL, URL: server.URL + "/examplemod.jar", Sha1: hexEncode(hash), Size: int64(len(data))},
				Path:     InstallPath{Kind: PathAutomatic},
				Source:   sourceindex.Source{Kind: sourceindex.KindModrinthProject, ProjectID: "abc"},
			},
		},
	}

	result, err := lib.Install(context.Background(), req, nil, cache, idx, nil, "", logging.RootLogger)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Placed) != 1 {
		t.Fatalf("Placed = %v, want 1 entry", result.Placed)
	}

	placedPath := filepath.Join(destDir, "mods", "examplemod.jar")
	info, err := os.Stat(placedPath)
	if err != nil {
		t.Fatal("expected file hard-linked into mods/:", err)
	}

	libInfo, err := os.Stat(result.Placed[0].LibraryPath)
	if err != nil {
		t.Fatal(err)
	}
	if !os.SameFile(info, libInfo) {
		t.Error("expected destination to be a hard link to the library file, not a copy")
	}

	source, ok := idx.Get(hash)
	if !ok || source.Kind != sourceindex.KindModrinthProject || source.ProjectID != "abc" {
		t.Errorf("source index entry = %+v, %v; want ModrinthProject abc", source, ok)
	}
}

func TestInstallAbortsCommitOnStagingFailure(t *testing.T) {
	dir := t.TempDir()
	lib := New(filepath.Join(dir, "library"), http.DefaultClient)
	idx := sourceindex.New()

	req := Request{
		DestDir: filepath.Join(dir, "instance"),
		Files: []File{
			{Download: Download{Kind: DownloadURL, Sha1: "not-valid-hex"}, Path: InstallPath{Kind: PathRaw, Path: "mods/a.jar"}},
		},
	}

	if _, err := lib.Install(context.Background(), req, nil, nil, idx, nil, "", logging.RootLogger); err == nil {
		t.Fatal("expected Install to fail for an invalid hash")
	}
}

func TestStageModpackChildrenResolvesAndPopulatesChildSummaries(t *testing.T) {
	data := buildFabricModZip(t)
	hash := sha1.Sum(data) //nolint:gosec

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer server.Close()

	lib := New(t.TempDir(), server.Client())
	cache := archive.NewCache()

	parentHash := [20]byte{1, 2, 3}
	summary := &archive.Summary{
		Hash: parentHash,
		Kind: archive.KindModpack,
		Modpack: &archive.ModpackDetail{
			Downloads: []archive.ModpackDownload{
				{Path: "mods/child.jar", Downloads: []string{server.URL + "/child.jar"}, Sha1: hexEncode(hash), FileSize: len(data)},
			},
		},
	}

	lib.stageModpackChildren(context.Background(), summary, nil, cache, logging.RootLogger)

	if len(summary.Modpack.ChildSummaries) != 1 {
		t.Fatalf("ChildSummaries = %v, want length 1", summary.Modpack.ChildSummaries)
	}
	child := summary.Modpack.ChildSummaries[0]
	if child == nil {
		t.Fatal("expected the resolved child's Summary to be recorded")
	}
	if child.Hash != hash {
		t.Errorf("child.Hash = %x, want %x", child.Hash, hash)
	}
}

func TestStageModpackChildrenMarksMissingChildAndCacheInvalidatesOnArrival(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	lib := New(t.TempDir(), server.Client())
	cache := archive.NewCache()

	parentHash := [20]byte{9, 9, 9}
	childHash := [20]byte{4, 5, 6}

	// Simulate the parent modpack's own summary already being cached, the
	// way it would be after an earlier Install call resolved it.
	cache.Put(parentHash, &archive.Summary{Hash: parentHash, Kind: archive.KindModpack})

	summary := &archive.Summary{
		Hash: parentHash,
		Kind: archive.KindModpack,
		Modpack: &archive.ModpackDetail{
			Downloads: []archive.ModpackDownload{
				{Path: "mods/child.jar", Downloads: []string{server.URL + "/child.jar"}, Sha1: hexEncode(childHash), FileSize: 1},
			},
		},
	}

	lib.stageModpackChildren(context.Background(), summary, nil, cache, logging.RootLogger)

	if summary.Modpack.ChildSummaries[0] != nil {
		t.Fatal("expected ChildSummaries[0] to stay nil when the child can't be staged")
	}
	if _, ok := cache.Get(parentHash); !ok {
		t.Fatal("expected the parent's cache entry to remain until the child actually becomes available")
	}

	cache.NotifyChildAvailable(childHash)

	if _, ok := cache.Get(parentHash); ok {
		t.Error("expected MarkChildMissing+NotifyChildAvailable to invalidate the parent's cache entry")
	}
}

func TestInstallUpgradesExistingInstanceLoaderFromHint(t *testing.T) {
	data := buildFabricModZip(t)
	hash := sha1.Sum(data) //nolint:gosec

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer server.Close()

	dir := t.TempDir()
	lib := New(filepath.Join(dir, "library"), server.Client())
	idx := sourceindex.New()
	cache := archive.NewCache()

	instances := instance.NewTable()
	inst, err := instance.New(filepath.Join(dir, "instance"), instance.Configuration{Loader: instance.LoaderVanilla}, logging.RootLogger)
	if err != nil {
		t.Fatal(err)
	}
	handle := instances.Insert(inst)

	req := Request{
		DestDir:    inst.GameRootPath,
		Target:     Target{Kind: TargetExistingInstance, Instance: handle},
		LoaderHint: "fabric",
		Files: []File{
			{
				Download: Download{Kind: DownloadURL, URL: server.URL + "/examplemod.jar", Sha1: hexEncode(hash), Size: int64(len(data))},
				Path:     InstallPath{Kind: PathAutomatic},
			},
		},
	}

	if _, err := lib.Install(context.Background(), req, nil, cache, idx, instances, "", logging.RootLogger); err != nil {
		t.Fatal(err)
	}

	cfg, err := inst.Configuration.Get()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Loader != instance.LoaderFabric {
		t.Errorf("Loader = %v, want LoaderFabric after installing a Fabric-hinted mod", cfg.Loader)
	}
}

func TestInstallCreatesNewInstanceDirectory(t *testing.T) {
	data := buildFabricModZip(t)
	hash := sha1.Sum(data) //nolint:gosec

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer server.Close()

	dir := t.TempDir()
	lib := New(filepath.Join(dir, "library"), server.Client())
	idx := sourceindex.New()
	cache := archive.NewCache()
	instances := instance.NewTable()
	instancesDir := filepath.Join(dir, "instances")

	req := Request{
		Target:     Target{Kind: TargetNewInstance, NewInstanceName: "My Modpack", NewInstanceVersion: "1.20.1"},
		LoaderHint: "fabric",
		Files: []File{
			{
				Download: Download{Kind: DownloadURL, URL: server.URL + "/examplemod.jar", Sha1: hexEncode(hash), Size: int64(len(data))},
				Path:     InstallPath{Kind: PathAutomatic},
			},
		},
	}

	result, err := lib.Install(context.Background(), req, nil, cache, idx, instances, instancesDir, logging.RootLogger)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Placed) != 1 {
		t.Fatalf("Placed = %v, want 1 entry", result.Placed)
	}

	var found bool
	instances.Range(func(_ slab.Handle, inst *instance.Instance) {
		if inst.Name == "My Modpack" {
			found = true
			cfg, err := inst.Configuration.Get()
			if err != nil {
				t.Fatal(err)
			}
			if cfg.Loader != instance.LoaderFabric || cfg.MinecraftVersion != "1.20.1" {
				t.Errorf("Configuration = %+v, want Fabric loader and version 1.20.1", cfg)
			}
		}
	})
	if !found {
		t.Fatal("expected Install to create and register a new instance")
	}

	if _, err := os.Stat(filepath.Join(instancesDir, "My Modpack", "info_v1.json")); err != nil {
		t.Fatal("expected the new instance's configuration to be persisted to disk:", err)
	}
}

func hexEncode(h [20]byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, 40)
	for i, b := range h {
		out[i*2] = hextable[b>>4]
		out[i*2+1] = hextable[b&0xf]
	}
	return string(out)
}
