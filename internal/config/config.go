package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress       string
	TwilioAuthToken   string
	DeepgramAPIKey    string
	AgentURL          string
	ElevenLabsVoiceID string
	StreamAPIKey      string
	PublicHost        string
	SchedulingBaseURL string
	SchedulingAPIKey  string
	SupabaseURL       string
	SupabaseKey       string
	SupabaseBucket    string
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	authToken := os.Getenv("TWILIO_AUTH_TOKEN")
	if authToken == "" {
		log.Println("Warning: TWILIO_AUTH_TOKEN not set - webhook signature validation will reject all requests")
	}

	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	if deepgramKey == "" {
		log.Println("Warning: DEEPGRAM_API_KEY not set - voice agent sessions will not work")
	}

	agentURL := os.Getenv("DEEPGRAM_AGENT_URL")
	if agentURL == "" {
		agentURL = "wss://agent.deepgram.com/agent"
	}

	voiceID := os.Getenv("ELEVEN_LABS_VOICE_ID")
	if voiceID == "" {
		log.Println("Warning: ELEVEN_LABS_VOICE_ID not set - the agent will use the provider default voice")
	}

	schedulingURL := os.Getenv("SCHEDULING_API_URL")
	if schedulingURL == "" {
		schedulingURL = "https://api.example.com"
	}

	supabaseBucket := os.Getenv("SUPABASE_BUCKET")
	if supabaseBucket == "" {
		supabaseBucket = "call-transcripts"
	}

	log.Printf("config: HTTP_ADDRESS=%s", addr)
	return Config{
		HTTPAddress:       addr,
		TwilioAuthToken:   authToken,
		DeepgramAPIKey:    deepgramKey,
		AgentURL:          agentURL,
		ElevenLabsVoiceID: voiceID,
		StreamAPIKey:      os.Getenv("STREAM_API_KEY"),
		PublicHost:        os.Getenv("PUBLIC_HOST"),
		SchedulingBaseURL: schedulingURL,
		SchedulingAPIKey:  os.Getenv("SCHEDULING_API_KEY"),
		SupabaseURL:       os.Getenv("SUPABASE_URL"),
		SupabaseKey:       os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseBucket:    supabaseBucket,
	}
}
