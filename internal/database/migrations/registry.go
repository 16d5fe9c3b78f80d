package migrations

import (
	"github.com/jmylchreest/epgnow/internal/models"
	"gorm.io/gorm"
)

// AllMigrations returns all migrations in order.
func AllMigrations() []Migration {
	return []Migration{
		migration001Schema(),
		migration002UpdateRuns(),
		migration003ChannelStartIndex(),
	}
}

// migration001Schema creates the guide tables and their time indices.
func migration001Schema() Migration {
	return Migration{
		Version:     "001",
		Description: "Create channels, programs and metadata tables",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.Channel{},
				&models.Program{},
				&models.Metadata{},
			)
		},
		Down: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				&models.Metadata{},
				&models.Program{},
				&models.Channel{},
			)
		},
	}
}

// migration002UpdateRuns adds the rebuild history table.
func migration002UpdateRuns() Migration {
	return Migration{
		Version:     "002",
		Description: "Create update_runs table",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.UpdateRun{})
		},
		Down: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&models.UpdateRun{})
		},
	}
}

// channelStartIndex serves the per-channel range lookups.
const channelStartIndex = "idx_programs_channel_start"

// migration003ChannelStartIndex adds a composite (channel_id, start_time) index.
func migration003ChannelStartIndex() Migration {
	return Migration{
		Version:     "003",
		Description: "Add composite channel/start index on programs",
		Up: func(tx *gorm.DB) error {
			if tx.Migrator().HasIndex(&models.Program{}, channelStartIndex) {
				return nil
			}
			return tx.Exec("CREATE INDEX " + channelStartIndex + " ON programs (channel_id, start_time)").Error
		},
		Down: func(tx *gorm.DB) error {
			return tx.Migrator().DropIndex(&models.Program{}, channelStartIndex)
		},
	}
}
