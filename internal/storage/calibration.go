package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lumen-motion/avatar.track/internal/geom"
	"github.com/lumen-motion/avatar.track/internal/rig"
)

// CalibrationStore persists calibration snapshots keyed by avatar name.
// Saving replaces the whole snapshot in one transaction, so a reader never
// sees a half-written entry set.
type CalibrationStore struct {
	db *DB
}

// NewCalibrationStore wraps the database.
func NewCalibrationStore(db *DB) *CalibrationStore {
	return &CalibrationStore{db: db}
}

// Save writes the snapshot for an avatar, replacing any prior one.
func (s *CalibrationStore) Save(avatar string, snap *rig.CalibrationSnapshot) error {
	if snap == nil || len(snap.Entries) == 0 {
		return fmt.Errorf("refusing to save empty calibration for %q", avatar)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin calibration save: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`DELETE FROM calibrations WHERE avatar = ?`, avatar)
	if err != nil {
		return fmt.Errorf("clear prior calibration: %w", err)
	}

	r := snap.RootRotation
	_, err = tx.Exec(`
		INSERT INTO calibrations (avatar, captured_at, root_w, root_x, root_y, root_z)
		VALUES (?, ?, ?, ?, ?, ?)`,
		avatar, snap.CapturedAt.UnixNano(), r.Real, r.Imag, r.Jmag, r.Kmag)
	if err != nil {
		return fmt.Errorf("insert calibration header: %w", err)
	}

	for _, e := range snap.Entries {
		_, err = tx.Exec(`
			INSERT INTO calibration_bones (
				avatar, bone, entry_kind, spine_role,
				anchor_a_kind, anchor_a_index, anchor_b_kind, anchor_b_index,
				rot_w, rot_x, rot_y, rot_z, dir_x, dir_y, dir_z
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			avatar, int(e.Bone), int(e.Kind), int(e.Role),
			int(e.AnchorA.Kind), e.AnchorA.Index, int(e.AnchorB.Kind), e.AnchorB.Index,
			e.InitialRotation.Real, e.InitialRotation.Imag, e.InitialRotation.Jmag, e.InitialRotation.Kmag,
			e.InitialDirection.X, e.InitialDirection.Y, e.InitialDirection.Z)
		if err != nil {
			return fmt.Errorf("insert calibration bone %s: %w", e.Bone, err)
		}
	}

	return tx.Commit()
}

// Load reads the snapshot for an avatar. Returns ErrNotFound when the avatar
// has never been calibrated.
func (s *CalibrationStore) Load(avatar string) (*rig.CalibrationSnapshot, error) {
	snap := &rig.CalibrationSnapshot{}

	var capturedAt int64
	err := s.db.QueryRow(`
		SELECT captured_at, root_w, root_x, root_y, root_z
		FROM calibrations WHERE avatar = ?`, avatar).
		Scan(&capturedAt, &snap.RootRotation.Real, &snap.RootRotation.Imag,
			&snap.RootRotation.Jmag, &snap.RootRotation.Kmag)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load calibration header: %w", err)
	}
	snap.CapturedAt = time.Unix(0, capturedAt).UTC()

	rows, err := s.db.Query(`
		SELECT bone, entry_kind, spine_role,
		       anchor_a_kind, anchor_a_index, anchor_b_kind, anchor_b_index,
		       rot_w, rot_x, rot_y, rot_z, dir_x, dir_y, dir_z
		FROM calibration_bones WHERE avatar = ? ORDER BY rowid`, avatar)
	if err != nil {
		return nil, fmt.Errorf("load calibration bones: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e rig.CalibrationEntry
		var bone, kind, role, aKind, bKind int
		var rot geom.Quat
		var dir geom.Vec
		err := rows.Scan(&bone, &kind, &role,
			&aKind, &e.AnchorA.Index, &bKind, &e.AnchorB.Index,
			&rot.Real, &rot.Imag, &rot.Jmag, &rot.Kmag, &dir.X, &dir.Y, &dir.Z)
		if err != nil {
			return nil, fmt.Errorf("scan calibration bone: %w", err)
		}
		e.Bone = rig.BoneID(bone)
		e.Kind = rig.EntryKind(kind)
		e.Role = rig.SpineRole(role)
		e.AnchorA.Kind = rig.AnchorKind(aKind)
		e.AnchorB.Kind = rig.AnchorKind(bKind)
		e.InitialRotation = rot
		e.InitialDirection = dir
		snap.Entries = append(snap.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calibration bones: %w", err)
	}
	return snap, nil
}

// Delete removes an avatar's calibration. Deleting a missing avatar is not
// an error.
func (s *CalibrationStore) Delete(avatar string) error {
	_, err := s.db.Exec(`DELETE FROM calibrations WHERE avatar = ?`, avatar)
	return err
}

// Avatars lists the avatar names with a stored calibration.
func (s *CalibrationStore) Avatars() ([]string, error) {
	rows, err := s.db.Query(`SELECT avatar FROM calibrations ORDER BY avatar`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
