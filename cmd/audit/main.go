package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"aether/internal/config"
	"aether/internal/database"
	"aether/internal/repository"
)

// The audit tool recomputes every profile's balance from its transaction
// ledger and reports any drift from the stored balance column. A clean
// run prints OK per profile and exits 0; any mismatch exits 1.
func main() {
	verbose := flag.Bool("verbose", false, "Print every profile, not just mismatches")
	flag.Parse()

	cfg := config.Load()

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	profileRepo := repository.NewProfileRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)

	profiles, err := profileRepo.ListProfiles()
	if err != nil {
		log.Fatalf("Failed to list profiles: %v", err)
	}

	mismatches := 0
	for _, profile := range profiles {
		ledgerBalance, err := ledgerRepo.LedgerSum(profile.ID)
		if err != nil {
			log.Fatalf("Failed to sum ledger for profile %d: %v", profile.ID, err)
		}

		if ledgerBalance != profile.Balance {
			mismatches++
			fmt.Printf("MISMATCH profile %d (%s): stored=%d ledger=%d drift=%d\n",
				profile.ID, profile.Username, profile.Balance, ledgerBalance, profile.Balance-ledgerBalance)
		} else if *verbose {
			fmt.Printf("OK profile %d (%s): balance=%d\n", profile.ID, profile.Username, profile.Balance)
		}
	}

	if mismatches > 0 {
		fmt.Printf("\n%d of %d profiles out of sync with their ledger\n", mismatches, len(profiles))
		os.Exit(1)
	}
	fmt.Printf("All %d profiles match their ledger\n", len(profiles))
}
