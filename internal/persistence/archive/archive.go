package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"stargen.ai/internal/persistence/indexdb"
	"stargen.ai/internal/persistence/snapshot"
	"stargen.ai/internal/sim/accrete"
	"stargen.ai/internal/sim/tuning"
)

// RunMeta is written next to every stored snapshot.
type RunMeta struct {
	RunID        string `json:"run_id"`
	Seed         int64  `json:"seed"`
	Digest       string `json:"digest"`
	TuningDigest string `json:"tuning_digest,omitempty"`
	Snapshot     string `json:"snapshot"`
	Planets      int    `json:"planets"`
	Moons        int    `json:"moons"`
	CreatedAt    string `json:"created_at"`
}

// Store files generated systems under <dataDir>/systems and indexes them.
// A nil index is allowed.
type Store struct {
	dir          string
	index        *indexdb.SQLiteIndex
	tuningDigest string
	mirror       Enqueuer
}

// Enqueuer receives the path of every file the store writes.
type Enqueuer interface {
	Enqueue(localPath string)
}

func NewStore(dataDir string, index *indexdb.SQLiteIndex, tuningDigest string) *Store {
	return &Store{dir: filepath.Join(dataDir, "systems"), index: index, tuningDigest: tuningDigest}
}

func (s *Store) Dir() string { return s.dir }

// SetMirror forwards written snapshot and meta files to m.
func (s *Store) SetMirror(m Enqueuer) { s.mirror = m }

// Record snapshots one finished run under a fresh run id.
func (s *Store) Record(seed int64, tu tuning.Tuning, sys *accrete.System) (RunMeta, error) {
	return s.RecordAs(uuid.NewString(), seed, tu, sys)
}

// RecordAs is Record for callers that assigned the run id before generating,
// so event logs and the snapshot share it.
func (s *Store) RecordAs(runID string, seed int64, tu tuning.Tuning, sys *accrete.System) (RunMeta, error) {
	snap := snapshot.FromSystem(runID, seed, tu, sys)
	path := filepath.Join(s.dir, runID+".snap.zst")
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return RunMeta{}, fmt.Errorf("write snapshot: %w", err)
	}

	meta := RunMeta{
		RunID:        runID,
		Seed:         seed,
		Digest:       snap.Header.Digest,
		TuningDigest: s.tuningDigest,
		Snapshot:     filepath.Base(path),
		Planets:      sys.Planets(),
		Moons:        sys.Moons(),
		CreatedAt:    time.Now().UTC().Format(time.RFC3339Nano),
	}
	metaPath := filepath.Join(s.dir, runID+".meta.json")
	if err := writeMeta(metaPath, meta); err != nil {
		return RunMeta{}, err
	}
	if s.mirror != nil {
		s.mirror.Enqueue(path)
		s.mirror.Enqueue(metaPath)
	}

	s.index.RecordSystem(indexdb.SystemRecord{
		RunID:        runID,
		Seed:         seed,
		Digest:       meta.Digest,
		TuningDigest: s.tuningDigest,
		SnapshotPath: path,
		System:       sys,
	})
	return meta, nil
}

// ArchiveSnapshot copies a snapshot into <dir>/seed_<seed>/ with a meta.json
// describing it, and returns the archived path.
func ArchiveSnapshot(dir, snapshotPath string, snap snapshot.SnapshotV1) (string, error) {
	archiveDir := filepath.Join(dir, fmt.Sprintf("seed_%d", snap.Seed))
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", err
	}

	sys := snap.System()
	meta := RunMeta{
		RunID:     snap.Header.SystemID,
		Seed:      snap.Seed,
		Digest:    snap.Header.Digest,
		Snapshot:  filepath.Base(dst),
		Planets:   sys.Planets(),
		Moons:     sys.Moons(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := writeMeta(filepath.Join(archiveDir, "meta.json"), meta); err != nil {
		return "", err
	}
	return dst, nil
}

func writeMeta(path string, meta RunMeta) error {
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
