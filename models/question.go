package models

import (
	"gorm.io/gorm"
)

// Question はお題テンプレート。{name} がターゲットの名前に置き換えられる
type Question struct {
	gorm.Model
	Template   string `gorm:"uniqueIndex;not null"`
	Category   string `gorm:"not null;default:'general';index"`
	IsActive   bool   `gorm:"not null;default:true;index"`
	UsageCount int    `gorm:"not null;default:0;index"` // 使用回数の少ない順に選ぶ
}
