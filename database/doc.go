// Package database provides a GORM-based database component with
// connection pooling, health checks, transactions, and auto-migration.
//
// The component opens SQLite through gorm.io/driver/sqlite by default. A
// different dialector can be supplied with WithDialector, which tests use
// to point at a temporary database file.
//
//	db := database.NewComponent(cfg, log).WithAutoMigrate(&store.MeetingRow{})
//	registry.Register(db)
package database
