package models

// SystemSetting is an operational key/value setting. Reads go through a TTL
// cache that is invalidated on write.
type SystemSetting struct {
	Base
	Key   string `gorm:"uniqueIndex;not null" json:"key"`
	Value string `gorm:"not null" json:"value"`
}
