package main

import (
	"fmt"
	"os"

	"github.com/revulabs/revu/backend/internal/config"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type SystemConfig struct {
	ID    uint   `gorm:"primaryKey"`
	Key   string `gorm:"size:100;uniqueIndex"`
	Value string `gorm:"type:text"`
}

func (SystemConfig) TableName() string { return "system_configs" }

// One-off helper to reset the preprocessor lexicons to their defaults after
// a bad edit through the admin API.
func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	db, err := gorm.Open(sqlite.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		os.Exit(1)
	}

	defaults := map[string]string{
		"urgency_lexicon": "urgent,critical,immediately,asap,emergency,blocking,blocker,broken,down,crash,crashing,failed,failing,not working,stopped working,can't use,cannot use,unusable",
		"churn_lexicon":   "cancel,canceling,cancelling,switch,switching,leave,disappointed,frustrat,angry,unacceptable,terrible,worst,horrible,awful,useless,waste,regret,competitor,alternative,refund,money back,downgrade",
	}

	for key, value := range defaults {
		result := db.Model(&SystemConfig{}).Where("`key` = ?", key).Update("value", value)
		if result.Error != nil {
			fmt.Printf("Failed to update %s: %v\n", key, result.Error)
			os.Exit(1)
		}
		fmt.Printf("Updated %s (%d row)\n", key, result.RowsAffected)
	}
}
