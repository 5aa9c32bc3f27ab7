package main

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	openai "github.com/sashabaranov/go-openai"

	"github.com/voiceqa/patient-bot/call"
	"github.com/voiceqa/patient-bot/config"
	"github.com/voiceqa/patient-bot/llm"
	"github.com/voiceqa/patient-bot/scenario"
	"github.com/voiceqa/patient-bot/stt"
	"github.com/voiceqa/patient-bot/transcript"
	"github.com/voiceqa/patient-bot/tts"
)

// twiml tells the telephony side to open a bidirectional media stream
// back to this server for the given scenario.
func twiml(publicURL string, scenarioID int) string {
	wsURL := strings.Replace(publicURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
    <Connect>
        <Stream url="%s/media-stream/%d" />
    </Connect>
</Response>`, wsURL, scenarioID)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatal(err)
	}

	oa := openai.NewClient(cfg.OpenAIAPIKey)
	sink := transcript.FileSink{Dir: cfg.TranscriptsDir}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Twilio webhook, hit when the outbound call connects.
	app.Post("/incoming-call/:scenario", func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("scenario")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid scenario id"})
		}
		if _, err := scenario.Get(id); err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		log.Printf("[server] incoming call for scenario %d", id)
		c.Type("xml")
		return c.SendString(twiml(cfg.PublicURL, id))
	})

	app.Use("/media-stream", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/media-stream/:scenario", websocket.New(func(ws *websocket.Conn) {
		defer ws.Close()

		id, err := strconv.Atoi(ws.Params("scenario"))
		if err != nil {
			log.Printf("[server] bad scenario id on stream: %v", err)
			return
		}
		sc, err := scenario.Get(id)
		if err != nil {
			log.Printf("[server] %v", err)
			return
		}
		log.Printf("[server] media stream open, scenario %d: %s", sc.ID, sc.Name)
		runCall(ws, sc, cfg, oa, sink)
	}))

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("[server] listening on %s", addr)
	log.Fatal(app.Listen(addr))
}

func runCall(ws *websocket.Conn, sc scenario.Scenario, cfg *config.Config, oa *openai.Client, sink transcript.Sink) {
	deps := call.Deps{
		NewTranscriber: func(h stt.EventHandler) call.Transcriber {
			return stt.NewSession(stt.Config{APIKey: cfg.DeepgramAPIKey}, h)
		},
		Replies: llm.NewPatientAgent(oa, "", sc.SystemPrompt),
		Synth:   tts.NewSynthesizer(oa),
		Sink:    sink,
	}
	if err := call.New(ws, sc, deps).Run(context.Background()); err != nil {
		log.Printf("[server] call for scenario %d failed: %v", sc.ID, err)
	}
}
