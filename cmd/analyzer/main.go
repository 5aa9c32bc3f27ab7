// Command analyzer reviews saved call transcripts and writes a
// consolidated Markdown bug report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/voiceqa/patient-bot/analyzer"
	"github.com/voiceqa/patient-bot/config"
	"github.com/voiceqa/patient-bot/transcript"
)

func main() {
	file := flag.String("file", "", "analyze a single transcript file (default: all saved transcripts)")
	out := flag.String("out", "BUG_REPORT.md", "report output path")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.ValidateAnalyzer(); err != nil {
		log.Fatal(err)
	}

	files := []string{*file}
	if *file == "" {
		files, err = filepath.Glob(filepath.Join(cfg.TranscriptsDir, "call_*.json"))
		if err != nil {
			log.Fatal(err)
		}
	}
	if len(files) == 0 {
		log.Fatalf("no transcript files found in %s", cfg.TranscriptsDir)
	}
	log.Printf("analyzing %d transcript(s)", len(files))

	a := analyzer.New(openai.NewClient(cfg.OpenAIAPIKey))
	ctx := context.Background()

	var analyses []*analyzer.Analysis
	raw := map[string]*analyzer.Analysis{}
	for _, path := range files {
		rec, err := transcript.Load(path)
		if err != nil {
			log.Fatalf("load %s: %v", path, err)
		}
		analysis, err := a.Analyze(ctx, rec)
		if err != nil {
			log.Fatalf("analyze %s: %v", path, err)
		}
		analyses = append(analyses, analysis)
		raw[stem(path)] = analysis
		log.Printf("%s: quality %s, %d bugs", filepath.Base(path), analysis.OverallQuality, len(analysis.Bugs))
	}

	rawPath := filepath.Join(cfg.TranscriptsDir, "analyses.json")
	if buf, err := json.MarshalIndent(raw, "", "  "); err == nil {
		if err := os.WriteFile(rawPath, buf, 0o644); err != nil {
			log.Printf("raw analyses not saved: %v", err)
		}
	}

	if err := analyzer.WriteReport(analyses, *out, time.Now()); err != nil {
		log.Fatal(err)
	}
	log.Printf("report written: %s", *out)
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
