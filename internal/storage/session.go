package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lumen-motion/avatar.track/internal/geom"
	"github.com/lumen-motion/avatar.track/internal/rig"
)

// BoneRotation is one bone's orientation inside a pose sample.
type BoneRotation struct {
	Bone     rig.BoneID `json:"bone"`
	Rotation geom.Quat  `json:"rotation"`
}

// PoseSample is one recorded tick of skeleton output: the root transform
// plus every present bone's local rotation.
type PoseSample struct {
	Seq        int               `json:"seq"`
	CapturedAt time.Time         `json:"captured_at"`
	Root       rig.RootTransform `json:"root"`
	Bones      []BoneRotation    `json:"bones"`
}

// SessionInfo summarises one recorded session.
type SessionInfo struct {
	ID        string     `json:"id"`
	Avatar    string     `json:"avatar"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Poses     int        `json:"poses"`
}

// SessionStore records and replays pose sessions.
type SessionStore struct {
	db *DB
}

// NewSessionStore wraps the database.
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

// Begin opens a new session and returns its id.
func (s *SessionStore) Begin(avatar string, startedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(`
		INSERT INTO sessions (session_id, avatar, started_at) VALUES (?, ?, ?)`,
		id, avatar, startedAt.UnixNano())
	if err != nil {
		return "", fmt.Errorf("begin session: %w", err)
	}
	return id, nil
}

// End stamps a session's end time.
func (s *SessionStore) End(id string, endedAt time.Time) error {
	res, err := s.db.Exec(`
		UPDATE sessions SET ended_at = ? WHERE session_id = ?`,
		endedAt.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendPose writes one sample to an open session.
func (s *SessionStore) AppendPose(id string, sample PoseSample) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin pose append: %w", err)
	}
	defer tx.Rollback()

	p := sample.Root.Position
	r := sample.Root.Rotation
	_, err = tx.Exec(`
		INSERT INTO poses (session_id, seq, captured_at,
			pos_x, pos_y, pos_z, rot_w, rot_x, rot_y, rot_z)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, sample.Seq, sample.CapturedAt.UnixNano(),
		p.X, p.Y, p.Z, r.Real, r.Imag, r.Jmag, r.Kmag)
	if err != nil {
		return fmt.Errorf("insert pose %d: %w", sample.Seq, err)
	}

	for _, b := range sample.Bones {
		_, err = tx.Exec(`
			INSERT INTO pose_bones (session_id, seq, bone, rot_w, rot_x, rot_y, rot_z)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, sample.Seq, int(b.Bone),
			b.Rotation.Real, b.Rotation.Imag, b.Rotation.Jmag, b.Rotation.Kmag)
		if err != nil {
			return fmt.Errorf("insert pose bone %s: %w", b.Bone, err)
		}
	}

	return tx.Commit()
}

// Sessions lists all recorded sessions, newest first.
func (s *SessionStore) Sessions() ([]SessionInfo, error) {
	rows, err := s.db.Query(`
		SELECT s.session_id, s.avatar, s.started_at, s.ended_at, COUNT(p.seq)
		FROM sessions s LEFT JOIN poses p ON p.session_id = s.session_id
		GROUP BY s.session_id
		ORDER BY s.started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var info SessionInfo
		var started int64
		var ended sql.NullInt64
		if err := rows.Scan(&info.ID, &info.Avatar, &started, &ended, &info.Poses); err != nil {
			return nil, err
		}
		info.StartedAt = time.Unix(0, started).UTC()
		if ended.Valid {
			t := time.Unix(0, ended.Int64).UTC()
			info.EndedAt = &t
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Session returns one session's summary.
func (s *SessionStore) Session(id string) (SessionInfo, error) {
	var info SessionInfo
	var started int64
	var ended sql.NullInt64
	err := s.db.QueryRow(`
		SELECT s.session_id, s.avatar, s.started_at, s.ended_at, COUNT(p.seq)
		FROM sessions s LEFT JOIN poses p ON p.session_id = s.session_id
		WHERE s.session_id = ?
		GROUP BY s.session_id`, id).
		Scan(&info.ID, &info.Avatar, &started, &ended, &info.Poses)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionInfo{}, ErrNotFound
	}
	if err != nil {
		return SessionInfo{}, err
	}
	info.StartedAt = time.Unix(0, started).UTC()
	if ended.Valid {
		t := time.Unix(0, ended.Int64).UTC()
		info.EndedAt = &t
	}
	return info, nil
}

// Poses returns a session's samples in sequence order.
func (s *SessionStore) Poses(id string) ([]PoseSample, error) {
	rows, err := s.db.Query(`
		SELECT seq, captured_at, pos_x, pos_y, pos_z, rot_w, rot_x, rot_y, rot_z
		FROM poses WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PoseSample
	index := map[int]int{}
	for rows.Next() {
		var sample PoseSample
		var captured int64
		err := rows.Scan(&sample.Seq, &captured,
			&sample.Root.Position.X, &sample.Root.Position.Y, &sample.Root.Position.Z,
			&sample.Root.Rotation.Real, &sample.Root.Rotation.Imag,
			&sample.Root.Rotation.Jmag, &sample.Root.Rotation.Kmag)
		if err != nil {
			return nil, fmt.Errorf("scan pose: %w", err)
		}
		sample.CapturedAt = time.Unix(0, captured).UTC()
		index[sample.Seq] = len(out)
		out = append(out, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	boneRows, err := s.db.Query(`
		SELECT seq, bone, rot_w, rot_x, rot_y, rot_z
		FROM pose_bones WHERE session_id = ? ORDER BY seq, bone`, id)
	if err != nil {
		return nil, err
	}
	defer boneRows.Close()

	for boneRows.Next() {
		var seq, bone int
		var rot geom.Quat
		if err := boneRows.Scan(&seq, &bone, &rot.Real, &rot.Imag, &rot.Jmag, &rot.Kmag); err != nil {
			return nil, fmt.Errorf("scan pose bone: %w", err)
		}
		i, ok := index[seq]
		if !ok {
			continue
		}
		out[i].Bones = append(out[i].Bones, BoneRotation{Bone: rig.BoneID(bone), Rotation: rot})
	}
	return out, boneRows.Err()
}

// DeleteSession removes a session and its samples.
func (s *SessionStore) DeleteSession(id string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE session_id = ?`, id)
	return err
}
