// Package runner dials the agent under test over the telephone network
// and drives scenarios back to back, one call at a time.
package runner

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/pkg/errors"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/voiceqa/patient-bot/scenario"
)

// terminal call statuses per the Twilio voice API.
var terminalStatuses = map[string]bool{
	"completed": true,
	"failed":    true,
	"busy":      true,
	"no-answer": true,
	"canceled":  true,
}

// callAPI is the slice of the Twilio REST client the runner uses.
type callAPI interface {
	CreateCall(params *openapi.CreateCallParams) (*openapi.ApiV2010Call, error)
	FetchCall(sid string, params *openapi.FetchCallParams) (*openapi.ApiV2010Call, error)
}

type Config struct {
	From      string
	To        string
	PublicURL string // https base the webhook is served from

	TimeLimit    int           // hard per-call cap in seconds
	PollInterval time.Duration // status poll cadence
	RunGap       time.Duration // pause between consecutive scenarios
}

type Result struct {
	Scenario scenario.Scenario
	CallSid  string
	Status   string
	Err      error
}

type Runner struct {
	api callAPI
	cfg Config
}

func New(api callAPI, cfg Config) *Runner {
	if cfg.TimeLimit <= 0 {
		cfg.TimeLimit = 300
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.RunGap <= 0 {
		cfg.RunGap = 5 * time.Second
	}
	return &Runner{api: api, cfg: cfg}
}

// RunScenario dials one call for the scenario and blocks until the call
// reaches a terminal status.
func (r *Runner) RunScenario(ctx context.Context, sc scenario.Scenario) Result {
	log.Printf("[runner] dialing scenario %d: %s", sc.ID, sc.Name)

	params := &openapi.CreateCallParams{}
	params.SetTo(r.cfg.To)
	params.SetFrom(r.cfg.From)
	params.SetUrl(fmt.Sprintf("%s/incoming-call/%d", strings.TrimRight(r.cfg.PublicURL, "/"), sc.ID))
	params.SetMethod("POST")
	params.SetTimeLimit(r.cfg.TimeLimit)

	resp, err := r.api.CreateCall(params)
	if err != nil {
		return Result{Scenario: sc, Err: errors.Wrap(err, "create call")}
	}
	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	log.Printf("[runner] call initiated: %s", sid)

	status, err := r.awaitTerminal(ctx, sid)
	return Result{Scenario: sc, CallSid: sid, Status: status, Err: err}
}

// awaitTerminal polls call status until it goes terminal. The poll is
// bounded by the call's time limit plus slack so a stuck status can
// never hang a run.
func (r *Runner) awaitTerminal(ctx context.Context, sid string) (string, error) {
	deadline := time.Now().Add(time.Duration(r.cfg.TimeLimit)*time.Second + time.Minute)
	last := ""
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}

		call, err := r.api.FetchCall(sid, &openapi.FetchCallParams{})
		if err != nil {
			log.Printf("[runner] status poll failed: %v", err)
			continue
		}
		status := ""
		if call.Status != nil {
			status = *call.Status
		}
		if status != last {
			log.Printf("[runner] call %s status: %s", sid, status)
			last = status
		}
		if terminalStatuses[status] {
			return status, nil
		}
		if time.Now().After(deadline) {
			return last, errors.Errorf("call %s never reached a terminal status", sid)
		}
	}
}

// RunAll drives the scenarios sequentially with a gap between calls. A
// failed call does not stop the remaining scenarios.
func (r *Runner) RunAll(ctx context.Context, scenarios []scenario.Scenario) []Result {
	results := make([]Result, 0, len(scenarios))
	for i, sc := range scenarios {
		if i > 0 {
			select {
			case <-time.After(r.cfg.RunGap):
			case <-ctx.Done():
				return results
			}
		}
		res := r.RunScenario(ctx, sc)
		if res.Err != nil {
			log.Printf("[runner] scenario %d failed: %v", sc.ID, res.Err)
		} else {
			log.Printf("[runner] scenario %d finished: %s", sc.ID, res.Status)
		}
		results = append(results, res)
		if ctx.Err() != nil {
			return results
		}
	}
	return results
}
