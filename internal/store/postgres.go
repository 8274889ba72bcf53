// Package store persists MIDI-CI device and profile records across
// restarts: a Postgres table of known remote devices (via gorm), and a
// MongoDB collection caching their property resource catalogs.
package store

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// RemoteDevice is the durable record of a peer this gateway has seen a
// Discovery Reply from.
type RemoteDevice struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	MUID         uint32 `gorm:"uniqueIndex;not null" json:"muid"`
	Manufacturer []byte `gorm:"type:bytea" json:"manufacturer"`
	Family       uint16 `json:"family"`
	Model        uint16 `json:"model"`
	Revision     uint32 `json:"revision"`
	LastSeen     int64  `json:"last_seen"`
	Profiles     []RemoteProfile `gorm:"foreignKey:RemoteDeviceID" json:"profiles"`
}

// RemoteProfile is one profile entry a remote device was last known to
// advertise, kept so a reconnecting peer's capability set can be assumed
// before its first Profile Inquiry Reply arrives.
type RemoteProfile struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	RemoteDeviceID uint   `gorm:"index;not null" json:"remote_device_id"`
	ProfileID      []byte `gorm:"type:bytea;not null" json:"profile_id"`
	Group          uint8  `json:"group"`
	Addr           uint8  `json:"addr"`
	Enabled        bool   `json:"enabled"`
}

// DeviceStore wraps a gorm.DB scoped to the remote-device tables.
type DeviceStore struct {
	db *gorm.DB
}

// OpenDeviceStore connects to dsn and migrates the remote-device schema.
func OpenDeviceStore(dsn string) (*DeviceStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}
	if err := db.AutoMigrate(&RemoteDevice{}, &RemoteProfile{}); err != nil {
		return nil, fmt.Errorf("store: migrate schema: %w", err)
	}
	return &DeviceStore{db: db}, nil
}

// Upsert records or refreshes a remote device's identity.
func (s *DeviceStore) Upsert(rec *RemoteDevice) error {
	var existing RemoteDevice
	err := s.db.Where("muid = ?", rec.MUID).First(&existing).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		return s.db.Create(rec).Error
	case err != nil:
		return err
	default:
		rec.ID = existing.ID
		return s.db.Save(rec).Error
	}
}

// ByMUID loads the stored record for muid, if any.
func (s *DeviceStore) ByMUID(muid uint32) (*RemoteDevice, bool, error) {
	var rec RemoteDevice
	err := s.db.Preload("Profiles").Where("muid = ?", muid).First(&rec).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

// ReplaceProfiles overwrites the stored profile set for a remote device.
func (s *DeviceStore) ReplaceProfiles(deviceID uint, profiles []RemoteProfile) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("remote_device_id = ?", deviceID).Delete(&RemoteProfile{}).Error; err != nil {
			return err
		}
		if len(profiles) == 0 {
			return nil
		}
		return tx.Create(&profiles).Error
	})
}

// All returns every known remote device, most-recently-seen first.
func (s *DeviceStore) All() ([]RemoteDevice, error) {
	var out []RemoteDevice
	err := s.db.Preload("Profiles").Order("last_seen desc").Find(&out).Error
	return out, err
}
