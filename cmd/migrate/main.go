package main

import (
	"fmt"
	"os"

	"github.com/nikhilbhatia/commitcanvas/internal/config"
	"github.com/nikhilbhatia/commitcanvas/internal/repository/sqlite"
	"github.com/nikhilbhatia/commitcanvas/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	db, err := sqlite.New(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Printf("Connected to %s\n", cfg.Database.Path)

	if err := sqlite.RunMigrations(db, migrations.Files); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Migrations complete")
}
