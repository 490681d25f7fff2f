package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v2"

	"agentic_diligence/pkg/core/agent"
	"agentic_diligence/pkg/core/agents"
	"agentic_diligence/pkg/core/consume"
	"agentic_diligence/pkg/core/ingest"
	"agentic_diligence/pkg/core/pipeline"
	"agentic_diligence/pkg/core/registry"
	"agentic_diligence/pkg/core/report"
	"agentic_diligence/pkg/core/state"
	"agentic_diligence/pkg/core/store"
)

func loadAgentConfig(path string) agent.Config {
	cfg := agent.Config{ActiveProvider: "gemini"}
	if path == "" {
		return cfg
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Printf("Warning: agent config %s not readable, using defaults: %v", path, err)
		return cfg
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		log.Fatalf("Invalid agent config %s: %v", path, err)
	}
	return cfg
}

// buildCapability picks live LLM execution when a key is available,
// otherwise falls back to the deterministic simulation.
func buildCapability(cfg agent.Config, simulate bool) pipeline.Capability {
	hasKey := os.Getenv("GEMINI_API_KEY") != "" ||
		os.Getenv("DEEPSEEK_API_KEY") != "" ||
		os.Getenv("DASHSCOPE_API_KEY") != ""
	if simulate || !hasKey {
		if !simulate {
			fmt.Println("No LLM API key found, running in simulation mode.")
		}
		return agents.NewSimulatedCapability()
	}
	return agents.NewLLMCapability(agent.NewManager(cfg))
}

func main() {
	inputPath := flag.String("input", "", "path to job input JSON (target, statements, filings)")
	ticker := flag.String("ticker", "", "fetch target, filings, and statements from SEC EDGAR by ticker")
	configPath := flag.String("config", "agents.yaml", "path to agent provider config")
	simulate := flag.Bool("simulate", false, "use deterministic simulated agents")
	preferRaw := flag.Bool("prefer-raw", false, "prefer raw statements when a policy accepts either")
	workers := flag.Int("workers", 3, "max agents running concurrently")
	timeout := flag.Duration("timeout", 120*time.Second, "per-agent timeout")
	memoPath := flag.String("memo", "", "write the memo to this file instead of stdout")
	archiveDir := flag.String("archive", "", "directory for file-based job archive")
	flag.Parse()

	if err := godotenv.Load(); err == nil {
		fmt.Println("Loaded environment from .env")
	}

	if *inputPath == "" && *ticker == "" {
		log.Fatal("Error: one of -input or -ticker is required")
	}

	fmt.Println("🚀 Diligence Pipeline Starting...")

	ctx := context.Background()

	var in *ingest.InputFile
	var err error
	if *inputPath != "" {
		in, err = ingest.LoadInputFile(*inputPath)
	} else {
		fmt.Printf("Fetching EDGAR filings for %s...\n", *ticker)
		in, err = ingest.NewRemoteLoader().Load(ctx, *ticker)
	}
	if err != nil {
		log.Fatalf("Failed to load input: %v", err)
	}

	st := state.NewStore(in.Target)
	if err := in.Seed(st); err != nil {
		log.Fatalf("Failed to seed state: %v", err)
	}

	reg := registry.New()
	if err := agents.RegisterDefaults(reg); err != nil {
		log.Fatalf("Failed to register agents: %v", err)
	}

	capability := buildCapability(loadAgentConfig(*configPath), *simulate)

	orch := pipeline.NewOrchestrator(reg, st, capability)
	orch.SetConfig(pipeline.Config{
		WorkerLimit:  *workers,
		AgentTimeout: *timeout,
		PreferRaw:    *preferRaw,
	})

	rep, err := orch.Run(ctx)
	if err != nil {
		log.Fatalf("Pipeline failed: %v", err)
	}

	fmt.Println("\n=== Execution Summary ===")
	for _, name := range rep.Order {
		line := fmt.Sprintf("  %-20s %s", name, rep.States[name])
		if reason := rep.Reasons[name]; reason != "" {
			line += " (" + reason + ")"
		}
		fmt.Println(line)
	}
	fmt.Printf("Completeness: %.0f%%\n", rep.Completeness*100)

	adapter := consume.NewAdapter(st, rep.Order)
	memo, err := report.NewGenerator().Generate(adapter)
	if err != nil {
		log.Fatalf("Memo generation failed: %v", err)
	}
	if *memoPath != "" {
		if err := os.WriteFile(*memoPath, []byte(memo), 0o644); err != nil {
			log.Fatalf("Failed to write memo: %v", err)
		}
		fmt.Printf("Memo written to %s\n", *memoPath)
	} else {
		fmt.Println("\n" + memo)
	}

	jobID := uuid.NewString()
	if os.Getenv("DATABASE_URL") != "" {
		if err := store.InitDB(ctx); err != nil {
			log.Fatalf("Database init failed: %v", err)
		}
		defer store.Close()

		repo := store.NewJobRepo()
		if err := repo.Save(ctx, jobID, st); err != nil {
			log.Fatalf("Failed to persist job: %v", err)
		}
		if err := repo.SaveAnomalies(ctx, jobID, adapter.Anomalies()); err != nil {
			log.Printf("Warning: anomaly persistence failed: %v", err)
		}
		fmt.Printf("Job %s persisted to database.\n", jobID)
	} else {
		archive := store.NewJobArchive(*archiveDir)
		if err := archive.Save(jobID, st); err != nil {
			log.Fatalf("Failed to archive job: %v", err)
		}
		fmt.Printf("Job %s archived locally.\n", jobID)
	}
}
