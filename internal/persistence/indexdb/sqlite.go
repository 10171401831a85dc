// Package indexdb keeps a queryable SQLite index of frames, timeline actions
// and reclaimed chunks. The compressed frame log remains the source of
// truth; the index may drop rows when it falls behind.
package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"voxeledit.ai/internal/sim/catalogs"
	"voxeledit.ai/internal/sim/terrain/mesh"
	"voxeledit.ai/internal/sim/tuning"
	"voxeledit.ai/internal/sim/world"
)

const defaultQueueSize = 65536

type SQLiteIndex struct {
	db  *sql.DB
	log *zap.Logger

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
	// session is the started_at of the latest "start" RecordSession. Frame
	// numbers restart per process, so frame rows are keyed by it.
	session atomic.Pointer[string]

	dropFrames  atomic.Uint64
	dropSession atomic.Uint64
	written     atomic.Uint64
	failed      atomic.Uint64
}

type reqKind int

const (
	reqFrame reqKind = iota + 1
	reqSession
)

type req struct {
	kind reqKind

	frame        world.FrameReport
	frameSession string
	session      sessionRow
}

type sessionRow struct {
	WorldID   string
	StartedAt string
	Frame     uint64
	Event     string
}

// Stats are counters for the writer queue.
type Stats struct {
	QueueDepth       int    `json:"queue_depth"`
	QueueCapacity    int    `json:"queue_capacity"`
	DropFrameTotal   uint64 `json:"drop_frame_total"`
	DropSessionTotal uint64 `json:"drop_session_total"`
	WrittenTotal     uint64 `json:"written_total"`
	FailedTotal      uint64 `json:"failed_total"`
}

// OpenSQLite opens or creates the index at path. A nil log discards the
// writer's diagnostics.
func OpenSQLite(path string, log *zap.Logger) (*SQLiteIndex, error) {
	return OpenSQLiteWithQueue(path, defaultQueueSize, log)
}

func OpenSQLiteWithQueue(path string, queue int, log *zap.Logger) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if queue <= 0 {
		queue = defaultQueueSize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:  db,
		log: log,
		ch:  make(chan req, queue),
	}
	s.start()
	return s, nil
}

func (s *SQLiteIndex) start() {
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-only workload; the index is secondary, so NORMAL
	// sync is enough.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			world_id TEXT NOT NULL,
			started_at TEXT NOT NULL,
			event TEXT NOT NULL,
			frame INTEGER NOT NULL,
			PRIMARY KEY (world_id, started_at, event)
		);`,
		`CREATE TABLE IF NOT EXISTS frames (
			session TEXT NOT NULL,
			frame INTEGER NOT NULL,
			digest TEXT NOT NULL,
			edited INTEGER NOT NULL,
			dirty INTEGER NOT NULL,
			reclaimed INTEGER NOT NULL,
			compressed INTEGER NOT NULL,
			chunks INTEGER NOT NULL,
			decompressed_bytes INTEGER NOT NULL,
			compressed_bytes INTEGER NOT NULL,
			meshes_upserted INTEGER NOT NULL,
			meshes_removed INTEGER NOT NULL,
			total_ns INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (session, frame)
		);`,
		`CREATE TABLE IF NOT EXISTS actions (
			session TEXT NOT NULL,
			frame INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			action_id TEXT NOT NULL,
			PRIMARY KEY (session, frame, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_actions_action_id ON actions(action_id, frame);`,
		`CREATE TABLE IF NOT EXISTS reclaims (
			session TEXT NOT NULL,
			frame INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			PRIMARY KEY (session, frame, x, y, z)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_reclaims_pos ON reclaims(x, z, y, frame);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:       len(s.ch),
		QueueCapacity:    cap(s.ch),
		DropFrameTotal:   s.dropFrames.Load(),
		DropSessionTotal: s.dropSession.Load(),
		WrittenTotal:     s.written.Load(),
		FailedTotal:      s.failed.Load(),
	}
}

// WriteFrame queues a frame row under the current session. Idle frames are
// not indexed.
func (s *SQLiteIndex) WriteFrame(rep world.FrameReport, _ []mesh.MeshDelta) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	if rep.Dirty == 0 && len(rep.Reclaimed) == 0 && len(rep.Actions) == 0 {
		return nil
	}
	var session string
	if p := s.session.Load(); p != nil {
		session = *p
	}
	select {
	case s.ch <- req{kind: reqFrame, frame: rep, frameSession: session}:
	default:
		s.dropFrames.Add(1)
	}
	return nil
}

// RecordSession marks a daemon start or stop for worldID. A "start" also
// becomes the session later frames are recorded under.
func (s *SQLiteIndex) RecordSession(worldID string, startedAt time.Time, event string, frame uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	r := sessionRow{
		WorldID:   worldID,
		StartedAt: startedAt.UTC().Format(time.RFC3339Nano),
		Event:     event,
		Frame:     frame,
	}
	if event == "start" {
		started := r.StartedAt
		s.session.Store(&started)
	}
	select {
	case s.ch <- req{kind: reqSession, session: r}:
	default:
		s.dropSession.Add(1)
	}
}

// UpsertCatalogs stores the palette and the tuning actually applied, so a
// frame's digest can be matched to the configuration that produced it.
// It shares the single connection with the writer, so call it before the
// first frame is queued.
func (s *SQLiteIndex) UpsertCatalogs(cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if cats != nil {
		if b, _ := json.Marshal(cats.Names); len(b) > 0 {
			rows = append(rows, kv{name: "palette", digest: cats.Digest, json: b})
		}
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','2')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	var prepErrs []error
	prepare := func(query string) *sql.Stmt {
		st, err := s.db.Prepare(query)
		if err != nil {
			prepErrs = append(prepErrs, err)
			return nil
		}
		return st
	}
	insertFrame := prepare(`INSERT OR REPLACE INTO frames(session,frame,digest,edited,dirty,reclaimed,compressed,chunks,decompressed_bytes,compressed_bytes,meshes_upserted,meshes_removed,total_ns,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertAction := prepare(`INSERT OR REPLACE INTO actions(session,frame,seq,kind,action_id) VALUES(?,?,?,?,?)`)
	insertReclaim := prepare(`INSERT OR REPLACE INTO reclaims(session,frame,x,y,z) VALUES(?,?,?,?,?)`)
	insertSession := prepare(`INSERT OR REPLACE INTO sessions(world_id,started_at,event,frame) VALUES(?,?,?,?)`)
	if len(prepErrs) > 0 {
		// Writes needing a missing statement are counted as failed.
		s.log.Error("index: prepare statements", zap.Int("failed", len(prepErrs)), zap.Error(errors.Join(prepErrs...)))
	}
	defer func() {
		for _, st := range []*sql.Stmt{insertFrame, insertAction, insertReclaim, insertSession} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.failed.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.failed.Add(1)
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil {
			s.failed.Add(1)
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			s.failed.Add(1)
			continue
		}
		switch r.kind {
		case reqFrame:
			f := r.frame
			raw, _ := json.Marshal(f)
			if !exec(insertFrame,
				r.frameSession,
				int64(f.Frame),
				f.Digest,
				f.Edited,
				f.Dirty,
				len(f.Reclaimed),
				f.Compression.Compressed,
				f.Chunks,
				f.DecompressedBytes,
				f.CompressedBytes,
				f.MeshesUpserted,
				f.MeshesRemoved,
				int64(f.Durations.Total),
				string(raw),
			) {
				continue
			}
			ok := true
			for i, a := range f.Actions {
				if ok = exec(insertAction, r.frameSession, int64(f.Frame), i, string(a.Kind), a.ID); !ok {
					break
				}
			}
			for _, k := range f.Reclaimed {
				if !ok {
					break
				}
				ok = exec(insertReclaim, r.frameSession, int64(f.Frame), k.X, k.Y, k.Z)
			}
			if !ok {
				continue
			}
			s.written.Add(1)

		case reqSession:
			se := r.session
			if !exec(insertSession, se.WorldID, se.StartedAt, se.Event, int64(se.Frame)) {
				continue
			}
			s.written.Add(1)
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}
