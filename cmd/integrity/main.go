package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/forcemap/internal/config"
	"github.com/onnwee/forcemap/internal/integrity"
	"github.com/onnwee/forcemap/internal/server"
)

func main() {
	checkCmd := flag.NewFlagSet("check", flag.ExitOnError)
	cleanCmd := flag.NewFlagSet("clean", flag.ExitOnError)
	statsCmd := flag.NewFlagSet("stats", flag.ExitOnError)
	bloatCmd := flag.NewFlagSet("bloat", flag.ExitOnError)

	cleanType := cleanCmd.String("type", "all", "Type of cleanup: all, links, positions, stale-runs")
	cleanDryRun := cleanCmd.Bool("dry-run", false, "Show what would be cleaned without changing anything")
	cleanOlderThan := cleanCmd.Int("older-than", 0, "Minutes before a running layout run counts as stale (default: STALE_RUN_AFTER_MIN)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found (falling back to system env)")
	}
	cfg := config.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	conn, err := server.InitDB(dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	svc := integrity.NewService(conn)
	ctx := context.Background()

	switch os.Args[1] {
	case "check":
		checkCmd.Parse(os.Args[2:])
		runCheck(ctx, svc, cfg.StaleRunAfter)
	case "clean":
		cleanCmd.Parse(os.Args[2:])
		olderThan := cfg.StaleRunAfter
		if *cleanOlderThan > 0 {
			olderThan = time.Duration(*cleanOlderThan) * time.Minute
		}
		runClean(ctx, svc, *cleanType, olderThan, *cleanDryRun)
	case "stats":
		statsCmd.Parse(os.Args[2:])
		runStats(ctx, svc)
	case "bloat":
		bloatCmd.Parse(os.Args[2:])
		runBloat(ctx, svc)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Forcemap - Data Integrity Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  integrity check                    - Run all integrity checks")
	fmt.Println("  integrity clean [options]          - Clean up data integrity issues")
	fmt.Println("  integrity stats                    - Show database statistics")
	fmt.Println("  integrity bloat                    - Analyze table bloat")
	fmt.Println()
	fmt.Println("Clean options:")
	fmt.Println("  -type string     Type of cleanup (default: all)")
	fmt.Println("                   Options: all, links, positions, stale-runs")
	fmt.Println("  -older-than int  Minutes before a running layout run counts as stale")
	fmt.Println("  -dry-run         Show what would be cleaned (default: false)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  integrity check")
	fmt.Println("  integrity clean -type links")
	fmt.Println("  integrity clean -type stale-runs -older-than 30")
	fmt.Println("  integrity clean -dry-run")
	fmt.Println("  integrity stats")
}

func runCheck(ctx context.Context, svc *integrity.Service, staleRunAfter time.Duration) {
	log.Println("Running integrity checks...")

	results, err := svc.CheckAllIntegrity(ctx, staleRunAfter)
	if err != nil {
		log.Fatalf("Failed to run integrity checks: %v", err)
	}

	fmt.Println()
	fmt.Println("=== Integrity Check Results ===")
	fmt.Println()

	hasAnyIssues := false
	for _, result := range results {
		status := "✓ OK"
		if result.HasIssues {
			status = fmt.Sprintf("⚠ ISSUES FOUND: %d", result.IssueCount)
			hasAnyIssues = true
		}

		fmt.Printf("%-30s %s\n", result.CheckName+":", status)
		fmt.Printf("  %s\n", result.Details)
		fmt.Println()
	}

	if hasAnyIssues {
		fmt.Println("Run 'integrity clean' to fix issues")
		os.Exit(1)
	} else {
		fmt.Println("All integrity checks passed!")
	}
}

func runClean(ctx context.Context, svc *integrity.Service, cleanType string, olderThan time.Duration, dryRun bool) {
	if dryRun {
		log.Println("Running in DRY-RUN mode (no changes will be made)")
		results, err := svc.CheckAllIntegrity(ctx, olderThan)
		if err != nil {
			log.Fatalf("Failed to check integrity: %v", err)
		}

		fmt.Println()
		fmt.Println("=== Dry-Run: Would Clean ===")
		for _, result := range results {
			if result.HasIssues {
				fmt.Printf("%s: %d items\n", result.CheckName, result.IssueCount)
			}
		}
		return
	}

	log.Printf("Cleaning up data integrity issues (type: %s)...", cleanType)

	startTime := time.Now()
	var totalFixed int64

	switch cleanType {
	case "links":
		count, err := svc.CleanupDanglingLinks(ctx)
		if err != nil {
			log.Fatalf("Failed to cleanup dangling links: %v", err)
		}
		fmt.Printf("Cleaned up %d dangling links\n", count)
		totalFixed = count

	case "positions":
		count, err := svc.ResetNonFinitePositions(ctx)
		if err != nil {
			log.Fatalf("Failed to reset non-finite positions: %v", err)
		}
		fmt.Printf("Reset %d nodes with non-finite positions\n", count)
		totalFixed = count

	case "stale-runs":
		count, err := svc.FailStaleRuns(ctx, olderThan)
		if err != nil {
			log.Fatalf("Failed to fail stale runs: %v", err)
		}
		fmt.Printf("Marked %d stale layout runs as failed\n", count)
		totalFixed = count

	case "all":
		log.Println("Cleaning dangling links...")
		count, err := svc.CleanupDanglingLinks(ctx)
		if err != nil {
			log.Fatalf("Failed to cleanup dangling links: %v", err)
		}
		fmt.Printf("  - Cleaned up %d dangling links\n", count)
		totalFixed += count

		log.Println("Resetting non-finite positions...")
		count, err = svc.ResetNonFinitePositions(ctx)
		if err != nil {
			log.Fatalf("Failed to reset non-finite positions: %v", err)
		}
		fmt.Printf("  - Reset %d nodes with non-finite positions\n", count)
		totalFixed += count

		log.Println("Failing stale layout runs...")
		count, err = svc.FailStaleRuns(ctx, olderThan)
		if err != nil {
			log.Fatalf("Failed to fail stale runs: %v", err)
		}
		fmt.Printf("  - Marked %d stale layout runs as failed\n", count)
		totalFixed += count

	default:
		log.Fatalf("Unknown cleanup type: %s", cleanType)
	}

	duration := time.Since(startTime)
	fmt.Printf("\nTotal items cleaned: %d\n", totalFixed)
	fmt.Printf("Time taken: %v\n", duration)
}

func runStats(ctx context.Context, svc *integrity.Service) {
	log.Println("Retrieving database statistics...")

	stats, err := svc.GetDatabaseStatistics(ctx)
	if err != nil {
		log.Fatalf("Failed to get database statistics: %v", err)
	}

	fmt.Println()
	fmt.Println("=== Database Statistics ===")
	fmt.Println()
	fmt.Printf("%-25s %12s %12s %12s %20s %20s\n",
		"Table", "Size", "Rows", "Dead Rows", "Last Vacuum", "Last Analyze")
	fmt.Println(strings.Repeat("-", 120))
	for _, stat := range stats {
		lastVacuum := "Never"
		if stat.LastVacuum != nil {
			lastVacuum = stat.LastVacuum.Format("2006-01-02 15:04")
		} else if stat.LastAutoVacuum != nil {
			lastVacuum = stat.LastAutoVacuum.Format("2006-01-02 15:04") + " (auto)"
		}

		lastAnalyze := "Never"
		if stat.LastAnalyze != nil {
			lastAnalyze = stat.LastAnalyze.Format("2006-01-02 15:04")
		} else if stat.LastAutoAnalyze != nil {
			lastAnalyze = stat.LastAutoAnalyze.Format("2006-01-02 15:04") + " (auto)"
		}

		fmt.Printf("%-25s %12s %12d %12d %20s %20s\n",
			stat.TableName, stat.Size, stat.RowCount, stat.DeadRows, lastVacuum, lastAnalyze)
	}
}

func runBloat(ctx context.Context, svc *integrity.Service) {
	log.Println("Analyzing table bloat...")

	stats, err := svc.GetBloatAnalysis(ctx)
	if err != nil {
		log.Fatalf("Failed to analyze bloat: %v", err)
	}

	fmt.Println()
	fmt.Println("=== Table Bloat Analysis ===")
	fmt.Println()
	fmt.Printf("%-25s %12s %12s %12s %10s\n",
		"Table", "Size", "Live Rows", "Dead Rows", "% Dead")
	fmt.Println(strings.Repeat("-", 80))

	for _, stat := range stats {
		percentDead := 0.0
		if stat.RowCount+stat.DeadRows > 0 {
			percentDead = float64(stat.DeadRows) / float64(stat.RowCount+stat.DeadRows) * 100
		}

		fmt.Printf("%-25s %12s %12d %12d %9.2f%%\n",
			stat.TableName, stat.Size, stat.RowCount, stat.DeadRows, percentDead)
	}

	fmt.Println()
	fmt.Println("Tables with >10% dead tuples should be vacuumed.")
	fmt.Println("Run: VACUUM ANALYZE <table_name>;")
}
