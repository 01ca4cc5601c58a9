package main

import (
	"flag"
	"fmt"
	"log"

	"tg-support-relay/internal/config"
	"tg-support-relay/internal/models"
	"tg-support-relay/internal/storage"

	"gorm.io/gorm"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	action := flag.String("action", "migrate", "Action to perform (migrate, reset, status)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := storage.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	db := storage.GetDB()
	if db == nil {
		log.Fatalf("Failed to get database connection")
	}

	switch *action {
	case "migrate":
		if err := migrateDatabase(db); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migration completed successfully")
	case "reset":
		if err := resetDatabase(db); err != nil {
			log.Fatalf("Reset failed: %v", err)
		}
		log.Println("Database reset completed successfully")
	case "status":
		if err := checkStatus(db); err != nil {
			log.Fatalf("Status check failed: %v", err)
		}
	default:
		log.Fatalf("Unknown action: %s", *action)
	}
}

func migrateDatabase(db *gorm.DB) error {
	fmt.Println("Migrating database...")

	if err := db.AutoMigrate(&models.MessageLink{}); err != nil {
		return fmt.Errorf("failed to migrate MessageLink model: %w", err)
	}
	if err := db.AutoMigrate(&models.AgentAlias{}); err != nil {
		return fmt.Errorf("failed to migrate AgentAlias model: %w", err)
	}
	if err := db.AutoMigrate(&models.BotSettings{}); err != nil {
		return fmt.Errorf("failed to migrate BotSettings model: %w", err)
	}

	return nil
}

func resetDatabase(db *gorm.DB) error {
	fmt.Println("Resetting database...")

	fmt.Print("WARNING: This will delete all data! Are you sure? (y/N): ")
	var confirmation string
	fmt.Scanln(&confirmation)

	if confirmation != "y" && confirmation != "Y" {
		return fmt.Errorf("operation cancelled by user")
	}

	if err := db.Migrator().DropTable(&models.MessageLink{}, &models.AgentAlias{}, &models.BotSettings{}); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}

	return migrateDatabase(db)
}

func checkStatus(db *gorm.DB) error {
	fmt.Println("Checking database status...")

	tables := []struct {
		name  string
		model any
	}{
		{"MessageLink", &models.MessageLink{}},
		{"AgentAlias", &models.AgentAlias{}},
		{"BotSettings", &models.BotSettings{}},
	}
	for _, table := range tables {
		if db.Migrator().HasTable(table.model) {
			var count int64
			db.Model(table.model).Count(&count)
			fmt.Printf("✅ %s table exists\n", table.name)
			fmt.Printf("   - Contains %d records\n", count)
		} else {
			fmt.Printf("❌ %s table does not exist\n", table.name)
		}
	}

	return nil
}
