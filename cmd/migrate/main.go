// Copyright 2026 The HeraCore Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command migrate applies (or rolls back) the embedded schema
// migrations. The target database comes from DATABASE_URL or, when
// unset, from the DB_* environment the server itself uses.
//
//	migrate up
//	migrate down <steps>
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/heracore/heracore/internal/config"
	"github.com/heracore/heracore/internal/store/postgres"
)

func main() {
	ctx := context.Background()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		dsn = postgres.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Database,
			SSLMode:  cfg.Database.SSLMode,
		}.DSN()
	}

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "up":
		if err := postgres.RunMigrations(ctx, dsn); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		fmt.Println("migrations applied")
	case "down":
		steps := 1
		if len(os.Args) > 2 {
			n, err := strconv.Atoi(os.Args[2])
			if err != nil || n < 1 {
				log.Fatalf("Invalid step count %q", os.Args[2])
			}
			steps = n
		}
		if err := postgres.RollbackMigrations(ctx, dsn, steps); err != nil {
			log.Fatalf("Rollback failed: %v", err)
		}
		fmt.Printf("rolled back %d migration(s)\n", steps)
	default:
		log.Fatalf("Unknown command %q, want up or down", command)
	}
}
