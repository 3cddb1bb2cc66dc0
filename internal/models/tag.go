package models

import "gorm.io/gorm"

const DefaultTagColor = "#3B82F6"

// Tag is a user-defined label attached to trades.
type Tag struct {
	gorm.Model
	UserID uint   `gorm:"uniqueIndex:idx_tag_user_name;not null" json:"user_id"`
	Name   string `gorm:"uniqueIndex:idx_tag_user_name;size:50;not null" json:"name"`
	Color  string `gorm:"size:7;not null" json:"color"`
}
