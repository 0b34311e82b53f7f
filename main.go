package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/cheggaaa/pb/v3"

	"sonar-audit/collect"
	"sonar-audit/config"
	"sonar-audit/helpers"
	"sonar-audit/history"
	"sonar-audit/model"
	"sonar-audit/report"
	"sonar-audit/sonar"
)

func main() {
	log.SetFlags(0)
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	serverURL := flag.String("url", cfg.ServerURL, "SonarQube server URL")
	token := flag.String("token", "", "admin token (falls back to SONARQUBE_ADMIN_TOKEN, then the configured token file)")
	csvPath := flag.String("csv", "", "write the branch size report to this CSV file")
	printTotal := flag.Bool("total", false, "print the total number of analyzed lines")
	topFiles := flag.String("top-files", "", "print the largest files of one branch, as project,branch,limit")
	topBranches := flag.Int("top-branches", 0, "print the n largest branches")
	projectFilter := flag.String("project", "", "restrict the audit to one project key")
	historyPath := flag.String("history", "", "append this run to a sqlite history database at this path")
	flag.Parse()

	if *csvPath == "" && !*printTotal && *topFiles == "" && *topBranches == 0 && *historyPath == "" {
		flag.Usage()
		return flag.ErrHelp
	}

	baseURL, err := helpers.NormalizeServerURL(*serverURL)
	if err != nil {
		return err
	}

	client := sonar.NewClient(baseURL, resolveToken(*token, cfg))
	client.PageSize = cfg.PageSize
	ctx := context.Background()

	if *topFiles != "" {
		target, err := helpers.ParseTopFilesTarget(*topFiles)
		if err != nil {
			return err
		}
		if target.Limit == 0 {
			target.Limit = cfg.TopFilesLimit
		}
		entries, err := client.LargestFiles(ctx, target.ProjectKey, target.Branch, target.Limit)
		if err != nil {
			return fmt.Errorf("failed to fetch largest files of %s@%s: %w", target.ProjectKey, target.Branch, err)
		}
		report.PrintLargestFiles(os.Stdout, target.ProjectKey, target.Branch, report.RankFiles(entries))
	}

	if *csvPath == "" && !*printTotal && *topBranches == 0 && *historyPath == "" {
		return nil
	}

	collector := collect.New(client)
	collector.ProjectFilter = *projectFilter
	collector.Concurrency = int64(cfg.ConcurrentRequestLimit)

	var bar *pb.ProgressBar
	collector.Progress = func(done, total int) {
		if bar == nil {
			bar = pb.Full.Start(total)
		}
		bar.SetCurrent(int64(done))
	}

	records, err := collector.Run(ctx)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	total := report.TotalLines(records)

	if *csvPath != "" {
		if err := report.WriteCSV(records, *csvPath); err != nil {
			return err
		}
		fmt.Printf("Report written to file %s\n", *csvPath)
	}

	if *printTotal {
		report.PrintTotal(os.Stdout, total)
	}

	if *topBranches > 0 {
		report.PrintLargestBranches(os.Stdout, records, *topBranches)
	}

	if *historyPath != "" {
		if err := recordHistory(*historyPath, records, total); err != nil {
			return err
		}
	}

	return nil
}

// recordHistory appends the run to the history database and reports the
// movement since the previous recorded run, if any.
func recordHistory(path string, records []model.BranchRecord, total int) error {
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	previous, ok, err := store.LastTotal()
	if err != nil {
		return err
	}

	if _, err := store.RecordRun(records, total); err != nil {
		return err
	}

	if ok {
		fmt.Printf("Total change since last recorded run: %+d\n", total-previous)
	}
	return nil
}

// resolveToken picks the admin token: flag first, then environment, then the
// token file named in the config.
func resolveToken(flagToken string, cfg config.Config) string {
	if flagToken != "" {
		return flagToken
	}
	if env := os.Getenv("SONARQUBE_ADMIN_TOKEN"); env != "" {
		return env
	}
	if cfg.TokenPath != "" {
		if data, err := os.ReadFile(cfg.TokenPath); err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	return ""
}
