package library

import (
	"context"
	"crypto/sha1" //nolint:gosec // SHA-1 is the content-addressing digest mandated by Modrinth, not a security boundary.
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mutagen-io/mutagen/pkg/filesystem/locking"
	"github.com/mutagen-io/mutagen/pkg/logging"
)

// Library stages and serves content under a single root directory.
type Library struct {
	root   string
	client *http.Client
}

// New creates a Library rooted at dir, using client for HTTP downloads. If
// client is nil, a client tuned the way dreamdenizen/factorio-mod-updater's
// Updater configures its transport (bounded dial/idle/handshake timeouts)
// is used.
func New(dir string, client *http.Client) *Library {
	if client == nil {
		client = defaultHTTPClient()
	}
	return &Library{root: dir, client: client}
}

func defaultHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}

// StagedFile describes a file now present in the library.
type StagedFile struct {
	Path      string
	Hash      [20]byte
	Extension string
}

// acquireLock opens (creating if necessary) and blockingly locks the
// per-hash lock file for path, returning a releaser. The lock file is
// retained on disk after a successful install (see DESIGN.md's Open
// Question decision) rather than removed, so a concurrent writer always has
// a stable path to lock against.
func acquireLock(path string) (*locking.Locker, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("unable to create library directory: %w", err)
	}
	locker, err := locking.NewLocker(LockPathFor(path), 0600)
	if err != nil {
		return nil, fmt.Errorf("unable to open lock file: %w", err)
	}
	if err := locker.Lock(true); err != nil {
		return nil, fmt.Errorf("unable to acquire lock: %w", err)
	}
	return locker, nil
}

// hashFileMatches reports whether the file at path exists and its contents
// hash to expected.
func hashFileMatches(path string, expected [20]byte) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	h := sha1.New() //nolint:gosec
	if _, err := io.Copy(h, f); err != nil {
		return false
	}
	var sum [20]byte
	copy(sum[:], h.Sum(nil))
	return sum == expected
}

// StageURL downloads url, verifying its contents stream against expectedHash
// and size, and stores it at its library path. If a file already occupies
// that path with a matching hash, the download is skipped. Grounded on
// dreamdenizen/factorio-mod-updater's downloadFile/validateSHA1: stream to
// a temporary file while hashing, verify before the rename, delete the
// partial file on any mismatch.
func (l *Library) StageURL(ctx context.Context, url string, expectedHash [20]byte, size int64, extension string, logger *logging.Logger) (*StagedFile, error) {
	path := PathFor(l.root, expectedHash, extension)

	locker, err := acquireLock(path)
	if err != nil {
		return nil, err
	}
	defer locker.Unlock()

	if hashFileMatches(path, expectedHash) {
		logger.Debugf("already staged: %s", path)
		return &StagedFile{Path: path, Hash: expectedHash, Extension: extension}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to build download request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to perform download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedStatus, resp.StatusCode)
	}

	tempPath := path + ".download"
	out, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("unable to create temporary file: %w", err)
	}

	hasher := sha1.New() //nolint:gosec
	written, err := io.Copy(out, io.TeeReader(resp.Body, hasher))
	if err != nil {
		out.Close()
		os.Remove(tempPath)
		return nil, fmt.Errorf("unable to write downloaded content: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("unable to flush downloaded content: %w", err)
	}

	var actualHash [20]byte
	copy(actualHash[:], hasher.Sum(nil))

	if size > 0 && written != size {
		os.Remove(tempPath)
		return nil, ErrWrongSize
	}
	if actualHash != expectedHash {
		os.Remove(tempPath)
		return nil, ErrWrongHash
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("unable to finalize download: %w", err)
	}

	logger.Debugf("staged %s (%s)", path, humanize.Bytes(uint64(written)))

	return &StagedFile{Path: path, Hash: expectedHash, Extension: extension}, nil
}

// StageBytes stages data (already fully read into memory, as for a local
// file copy) under its own SHA-1 hash.
func (l *Library) StageBytes(data []byte, extension string) (*StagedFile, error) {
	hash := sha1.Sum(data) //nolint:gosec
	path := PathFor(l.root, hash, extension)

	locker, err := acquireLock(path)
	if err != nil {
		return nil, err
	}
	defer locker.Unlock()

	if hashFileMatches(path, hash) {
		return &StagedFile{Path: path, Hash: hash, Extension: extension}, nil
	}

	tempPath := path + ".download"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return nil, fmt.Errorf("unable to write staged content: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("unable to finalize staged content: %w", err)
	}

	return &StagedFile{Path: path, Hash: hash, Extension: extension}, nil
}

// StageFile reads the file at sourcePath and stages it by its contents'
// SHA-1 hash, writing it into the library only if absent.
func (l *Library) StageFile(sourcePath string, extension string) (*StagedFile, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("unable to read source file: %w", err)
	}
	return l.StageBytes(data, extension)
}

// ParseSha1Hex parses a hex-encoded SHA-1 digest, returning ErrInvalidHash
// on malformed input (rather than a bare decode error) so callers can
// distinguish it from I/O failures.
func ParseSha1Hex(s string) ([20]byte, error) {
	var out [20]byte
	decoded, err := hex.DecodeString(s)
	if err != nil || len(decoded) != 20 {
		return out, ErrInvalidHash
	}
	copy(out[:], decoded)
	return out, nil
}
