package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Device is a binding between a license key and one end-user device.
// A device identifier may appear under many keys, but only once per key.
type Device struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	KeyID          snowflake.ID `gorm:"column:key_id;not null;uniqueIndex:ux_devices_key_device,priority:1"`
	DeviceID       string       `gorm:"column:device_id;type:text;not null;uniqueIndex:ux_devices_key_device,priority:2"`
	FirstConnected time.Time    `gorm:"column:first_connected;not null"`
}

// TableName sets the database table name.
func (Device) TableName() string { return "devices" }
