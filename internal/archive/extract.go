package archive

import (
	"archive/zip"
	"bytes"
	"crypto/sha1" //nolint:gosec // SHA-1 is the content-addressing digest used throughout the library, not a security boundary.
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
)

// fabricModJSON mirrors the subset of fabric.mod.json consumed here.
type fabricModJSON struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
	Authors []any  `json:"authors"`
	Icon    any    `json:"icon"`
}

type modsTomlEntry struct {
	ModID       string `toml:"modId"`
	DisplayName string `toml:"displayName"`
	Version     string `toml:"version"`
	Authors     string `toml:"authors"`
	LogoFile    string `toml:"logoFile"`
}

type modsTomlFile struct {
	Mods []modsTomlEntry `toml:"mods"`
}

type packMcmeta struct {
	Pack struct {
		Description string `json:"description"`
	} `json:"pack"`
}

type modrinthFile struct {
	Path      string `json:"path"`
	Hashes    struct {
		Sha1 string `json:"sha1"`
	} `json:"hashes"`
	Env       map[string]string `json:"env"`
	Downloads []string          `json:"downloads"`
	FileSize  int               `json:"fileSize"`
}

type modrinthIndexJSON struct {
	Name      string         `json:"name"`
	VersionID string         `json:"versionId"`
	Author    string         `json:"author"`
	Files     []modrinthFile `json:"files"`
}

type jarjarEntry struct {
	Path string `json:"path"`
}

type jarjarMetadata struct {
	Jars []jarjarEntry `json:"jars"`
}

// Extract parses data (the complete bytes of a jar/zip/mrpack file) and
// derives a Summary for it, following the recognition order: fabric.mod.json,
// META-INF/mods.toml, META-INF/neoforge.mods.toml, META-INF/jarjar/metadata.json,
// META-INF/MANIFEST.MF, pack.mcmeta, and (only when allowChildren is true)
// modrinth.index.json. It returns (nil, nil) when no recognizer matches.
func Extract(data []byte, allowChildren bool) (*Summary, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("unable to open archive: %w", err)
	}

	hash := sha1.Sum(data) //nolint:gosec

	entries := make(map[string]*zip.File, len(reader.File))
	for _, f := range reader.File {
		entries[f.Name] = f
	}

	switch {
	case entries["fabric.mod.json"] != nil:
		return extractFabricMod(hash, reader, entries["fabric.mod.json"])
	case entries["META-INF/mods.toml"] != nil:
		return extractForgeMod(hash, reader, entries["META-INF/mods.toml"], KindForgeMod)
	case entries["META-INF/neoforge.mods.toml"] != nil:
		return extractForgeMod(hash, reader, entries["META-INF/neoforge.mods.toml"], KindNeoForgeMod)
	case entries["META-INF/jarjar/metadata.json"] != nil:
		return extractJarJar(hash, reader, entries["META-INF/jarjar/metadata.json"])
	case entries["META-INF/MANIFEST.MF"] != nil:
		return extractJavaModule(hash, entries["META-INF/MANIFEST.MF"])
	case entries["pack.mcmeta"] != nil:
		return extractResourcePack(hash, entries["pack.mcmeta"])
	case allowChildren && entries["modrinth.index.json"] != nil:
		return extractModrinthModpack(hash, reader, entries)
	default:
		return nil, nil
	}
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func loadIconFromArchive(reader *zip.Reader, name string) []byte {
	if name == "" {
		return nil
	}
	for _, f := range reader.File {
		if f.Name != name {
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			return nil
		}
		normalized, err := normalizeIcon(data)
		if err != nil {
			return nil
		}
		return normalized
	}
	return nil
}

// fabricModIconPath resolves the "icon" field of fabric.mod.json, which is
// either a single path string or an object mapping size to path (we prefer
// the entry closest to our target normalization size).
func fabricModIconPath(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case map[string]any:
		best := ""
		bestDiff := -1
		for sizeStr, path := range v {
			pathStr, ok := path.(string)
			if !ok {
				continue
			}
			var size int
			if _, err := fmt.Sscanf(sizeStr, "%d", &size); err != nil {
				continue
			}
			diff := size - iconSize
			if diff < 0 {
				diff = -diff
			}
			if bestDiff == -1 || diff < bestDiff {
				bestDiff = diff
				best = pathStr
			}
		}
		return best
	default:
		return ""
	}
}

func joinAuthors(raw []any) string {
	var names []string
	for _, a := range raw {
		switch v := a.(type) {
		case string:
			names = append(names, v)
		case map[string]any:
			if name, ok := v["name"].(string); ok {
				names = append(names, name)
			}
		}
	}
	return strings.Join(names, ", ")
}

func extractFabricMod(hash [20]byte, reader *zip.Reader, f *zip.File) (*Summary, error) {
	data, err := readEntry(f)
	if err != nil {
		return nil, err
	}

	// Some mods ship raw newlines inside JSON string values, which violates
	// the JSON spec; replace them with spaces before parsing.
	for i, b := range data {
		if b == '\n' {
			data[i] = ' '
		}
	}

	var parsed fabricModJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("unable to parse fabric.mod.json: %w", err)
	}

	name := firstNonEmpty(parsed.Name, parsed.ID)

	return &Summary{
		Hash:          hash,
		ID:            parsed.ID,
		Name:          name,
		VersionString: "v" + parsed.Version,
		Authors:       joinAuthors(parsed.Authors),
		Icon:          loadIconFromArchive(reader, fabricModIconPath(parsed.Icon)),
		Kind:          KindFabricMod,
	}, nil
}

func extractForgeMod(hash [20]byte, reader *zip.Reader, f *zip.File, kind Kind) (*Summary, error) {
	data, err := readEntry(f)
	if err != nil {
		return nil, err
	}

	var parsed modsTomlFile
	if err := toml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("unable to parse mods.toml: %w", err)
	}
	if len(parsed.Mods) == 0 {
		return nil, nil
	}
	first := parsed.Mods[0]

	version := "v" + firstNonEmpty(first.Version, "1")
	if strings.Contains(version, "${file.jarVersion}") {
		if manifestFile, ok := find(reader, "META-INF/MANIFEST.MF"); ok {
			if manifestData, err := readEntry(manifestFile); err == nil {
				manifest := parseJavaManifest(manifestData)
				if implVersion, ok := manifest["Implementation-Version"]; ok {
					version = strings.ReplaceAll(version, "${file.jarVersion}", implVersion)
				}
			}
		}
	}

	authors := ""
	if first.Authors != "" {
		authors = "By " + first.Authors
	}

	return &Summary{
		Hash:          hash,
		ID:            first.ModID,
		Name:          firstNonEmpty(first.DisplayName, first.ModID),
		VersionString: version,
		Authors:       authors,
		Icon:          loadIconFromArchive(reader, first.LogoFile),
		Kind:          kind,
	}, nil
}

func find(reader *zip.Reader, name string) (*zip.File, bool) {
	for _, f := range reader.File {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// extractJarJar recurses into the first nested jar named by
// META-INF/jarjar/metadata.json that itself yields a Summary.
func extractJarJar(hash [20]byte, reader *zip.Reader, f *zip.File) (*Summary, error) {
	data, err := readEntry(f)
	if err != nil {
		return nil, err
	}
	var meta jarjarMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("unable to parse jarjar metadata: %w", err)
	}

	for _, jar := range meta.Jars {
		nested, ok := find(reader, jar.Path)
		if !ok {
			continue
		}
		nestedData, err := readEntry(nested)
		if err != nil {
			continue
		}
		summary, err := Extract(nestedData, false)
		if err != nil || summary == nil {
			continue
		}
		summary.Hash = hash
		return summary, nil
	}
	return nil, nil
}

func extractJavaModule(hash [20]byte, f *zip.File) (*Summary, error) {
	data, err := readEntry(f)
	if err != nil {
		return nil, err
	}
	manifest := parseJavaManifest(data)

	name := firstNonEmpty(manifest["Automatic-Module-Name"], manifest["Implementation-Title"], manifest["Specification-Title"])
	if name == "" {
		return nil, nil
	}
	author := firstNonEmpty(manifest["Implementation-Vendor"], manifest["Specification-Vendor"])
	version := firstNonEmpty(manifest["Implementation-Version"], manifest["Specification-Version"])

	return &Summary{
		Hash:          hash,
		Name:          name,
		Authors:       author,
		VersionString: version,
		Kind:          KindJavaModule,
	}, nil
}

func extractResourcePack(hash [20]byte, f *zip.File) (*Summary, error) {
	data, err := readEntry(f)
	if err != nil {
		return nil, err
	}
	var parsed packMcmeta
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("unable to parse pack.mcmeta: %w", err)
	}

	return &Summary{
		Hash:          hash,
		VersionString: parsed.Pack.Description,
		Kind:          KindResourcePack,
	}, nil
}

func extractModrinthModpack(hash [20]byte, reader *zip.Reader, entries map[string]*zip.File) (*Summary, error) {
	data, err := readEntry(entries["modrinth.index.json"])
	if err != nil {
		return nil, err
	}
	var parsed modrinthIndexJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("unable to parse modrinth.index.json: %w", err)
	}

	overrides := make(map[string]ModpackOverride)
	var overrideOrder []string
	for _, f := range reader.File {
		var prioritize bool
		var rel string
		switch {
		case strings.HasPrefix(f.Name, "client-overrides/"):
			prioritize = true
			rel = strings.TrimPrefix(f.Name, "client-overrides/")
		case strings.HasPrefix(f.Name, "overrides/"):
			prioritize = false
			rel = strings.TrimPrefix(f.Name, "overrides/")
		default:
			continue
		}
		if rel == "" || strings.HasSuffix(f.Name, "/") {
			continue
		}
		if _, exists := overrides[rel]; exists && !prioritize {
			continue
		}
		blob, err := readEntry(f)
		if err != nil {
			continue
		}
		if _, exists := overrides[rel]; !exists {
			overrideOrder = append(overrideOrder, rel)
		}
		overrides[rel] = ModpackOverride{RelativePath: rel, Data: blob}
	}

	orderedOverrides := make([]ModpackOverride, 0, len(overrideOrder))
	for _, rel := range overrideOrder {
		orderedOverrides = append(orderedOverrides, overrides[rel])
	}

	downloads := make([]ModpackDownload, 0, len(parsed.Files))
	for _, file := range parsed.Files {
		downloads = append(downloads, ModpackDownload{
			Path:        file.Path,
			Downloads:   file.Downloads,
			Sha1:        file.Hashes.Sha1,
			FileSize:    file.FileSize,
			Unsupported: file.Env["client"] == "unsupported",
		})
	}

	authors := ""
	if parsed.Author != "" {
		authors = "By " + parsed.Author
	}

	var icon []byte
	if iconFile, ok := find(reader, "icon.png"); ok {
		icon = loadIconFromArchive(reader, iconFile.Name)
	}

	return &Summary{
		Hash:          hash,
		Name:          parsed.Name,
		VersionString: "v" + parsed.VersionID,
		Authors:       authors,
		Icon:          icon,
		Kind:          KindModpack,
		Modpack: &ModpackDetail{
			Downloads: downloads,
			Overrides: orderedOverrides,
		},
	}, nil
}
