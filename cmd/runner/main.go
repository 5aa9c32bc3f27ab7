// Command runner dials the agent under test once per scenario and waits
// for each call to finish before starting the next.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"

	twilio "github.com/twilio/twilio-go"

	"github.com/voiceqa/patient-bot/config"
	"github.com/voiceqa/patient-bot/runner"
	"github.com/voiceqa/patient-bot/scenario"
)

func main() {
	scenarioID := flag.Int("scenario", 0, "run a single scenario id (default: all)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.ValidateRunner(); err != nil {
		log.Fatal(err)
	}

	scenarios := scenario.All()
	if *scenarioID > 0 {
		sc, err := scenario.Get(*scenarioID)
		if err != nil {
			log.Fatal(err)
		}
		scenarios = []scenario.Scenario{sc}
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.TwilioAccountSid,
		Password: cfg.TwilioAuthToken,
	})
	r := runner.New(client.Api, runner.Config{
		From:      cfg.TwilioFromNumber,
		To:        cfg.TargetNumber,
		PublicURL: cfg.PublicURL,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results := r.RunAll(ctx, scenarios)

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			log.Printf("scenario %d (%s): %v", res.Scenario.ID, res.Scenario.Name, res.Err)
			continue
		}
		log.Printf("scenario %d (%s): %s, call %s", res.Scenario.ID, res.Scenario.Name, res.Status, res.CallSid)
	}
	log.Printf("%d/%d scenarios completed", len(results)-failed, len(scenarios))
	if failed > 0 || len(results) < len(scenarios) {
		os.Exit(1)
	}
}
