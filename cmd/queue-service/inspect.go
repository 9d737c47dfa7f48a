package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/cuongbtq/recon-queue/internal/api/dto"
	"github.com/cuongbtq/recon-queue/internal/catalog"
	"github.com/cuongbtq/recon-queue/internal/queue/domain"
	"github.com/cuongbtq/recon-queue/internal/queue/store"
)

// runJobsList prints a persisted queue after recovery, without saving it.
func runJobsList(ctx context.Context, out io.Writer, flagConfigPath, variantName, state string, asJSON bool) error {
	variant, err := catalog.LookupVariant(variantName)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(flagConfigPath)
	if err != nil {
		return err
	}

	// Keep stdout for the listing
	if cfg.Logging.Output == "" || cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	st, err := openStorage(ctx, &cfg.Storage, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer st.close()

	raw, err := st.slot(variant.SlotKey).Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load %s queue: %w", variant.Name, err)
	}

	var jobs []domain.Job
	for _, job := range store.ReconcileOnLoad(raw) {
		if state == "" || string(job.State) == state {
			jobs = append(jobs, job)
		}
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(dto.FromJobs(jobs))
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tCOLLECTOR\tFROM\tTO\tSTATE\tPROGRESS\tMESSAGE")
	for _, job := range dto.FromJobs(jobs) {
		jobState := job.State
		if job.Recovered {
			jobState += " (recovered)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d%%\t%s\n",
			job.ID, job.JobType, job.Collector, job.From, job.To, jobState, job.Progress, oneLine(job.Message))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d job(s) in %s queue\n", len(jobs), variant.Name)
	return nil
}

// runCatalog prints every (job type, collector) pair.
func runCatalog(out io.Writer) error {
	cat := catalog.Default()
	if err := cat.Validate(); err != nil {
		return fmt.Errorf("invalid collector catalog: %w", err)
	}

	domains := make(map[domain.JobType]string)
	for _, v := range catalog.Variants() {
		for _, jt := range v.JobTypes {
			domains[jt] = v.Domain
		}
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB TYPE\tCOLLECTOR\tENDPOINT\tLAG (DAYS)")
	for _, e := range cat.Entries() {
		endpoint := "(not mapped)"
		if e.Mapped {
			endpoint = domains[e.JobType] + "/" + e.Endpoint
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", e.JobType, e.Collector, endpoint, e.LagDays)
	}
	return w.Flush()
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 60 {
		return s[:57] + "..."
	}
	return s
}
