package models

import (
	"fmt"

	"github.com/revulabs/revu/backend/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB(cfg *config.DatabaseConfig) error {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}

	DB = db
	return nil
}

func AutoMigrate() error {
	return DB.AutoMigrate(
		&User{},
		&RefreshToken{},
		&FeedbackItem{},
		&AnalysisResult{},
		&ReviewDecision{},
		&ChurnSignal{},
		&CompetitorMention{},
		&FeatureDemandEntry{},
		&ThemeRun{},
		&Theme{},
		&LLMConfig{},
		&SystemConfig{},
		&SystemLog{},
		&SchedulerLock{},
		&NotificationChannel{},
		&DailyDigest{},
	)
}

func GetDB() *gorm.DB {
	return DB
}

// SeedDefaultData creates default data if not exists. Lexicons live in
// system configs so they can be tuned at runtime without a deploy.
func SeedDefaultData() error {
	defaultConfigs := []SystemConfig{
		{
			Key: "urgency_lexicon", Type: "string", Group: "analysis", Label: "Urgency Keywords",
			Value: "urgent,critical,immediately,asap,emergency,blocking,blocker,broken,down,crash,crashing,failed,failing,not working,stopped working,can't use,cannot use,unusable",
		},
		{
			Key: "churn_lexicon", Type: "string", Group: "analysis", Label: "Churn Risk Keywords",
			Value: "cancel,canceling,cancelling,switch,switching,leave,disappointed,frustrat,angry,unacceptable,terrible,worst,horrible,awful,useless,waste,regret,competitor,alternative,refund,money back,downgrade",
		},
		{
			Key: "competitor_list", Type: "string", Group: "analysis", Label: "Known Competitors",
			Value: "salesforce,hubspot,zendesk,intercom,freshdesk,zoho,pipedrive,monday.com,asana,jira,clickup",
		},
		{
			Key: "product_terms", Type: "string", Group: "analysis", Label: "Core Product Modules",
			Value: "dashboard,reports,api,billing,integrations,mobile app,notifications,search",
		},
		{Key: "churn_negativity_threshold", Value: "0.3", Type: "string", Group: "analysis", Label: "Churn Sentiment Negativity Threshold"},
		{Key: "clustering_similarity", Value: "0.5", Type: "string", Group: "clustering", Label: "Theme Clustering Similarity Threshold"},
		{Key: "clustering_window_days", Value: "30", Type: "string", Group: "clustering", Label: "Theme Clustering Window (days)"},
		{Key: "clustering_run_time", Value: "02:00", Type: "string", Group: "clustering", Label: "Theme Clustering Daily Run Time"},
		{Key: "demand_window_hours", Value: "168", Type: "string", Group: "analysis", Label: "Feature Demand Window (hours)"},
		{Key: "keyword_cap", Value: "10", Type: "string", Group: "analysis", Label: "Max Keywords Per Item"},
		{Key: "log_retention_days", Value: "30", Type: "int", Group: "system", Label: "System Log Retention Days"},
	}

	for _, cfg := range defaultConfigs {
		var count int64
		DB.Model(&SystemConfig{}).Where("`key` = ?", cfg.Key).Count(&count)
		if count == 0 {
			if err := DB.Create(&cfg).Error; err != nil {
				return err
			}
		}
	}

	return nil
}
