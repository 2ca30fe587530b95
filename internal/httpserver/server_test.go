package httpserver

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/BuckyMcYolo/ai-call-center-voice-server/internal/config"
)

const testAuthToken = "twilio-test-token"

func newTestServer() *Server {
	cfg := config.Config{
		TwilioAuthToken: testAuthToken,
		PublicHost:      "calls.example.com",
		StreamAPIKey:    "stream-key",
	}
	return New(cfg, nil)
}

// twilioSign computes the signature Twilio would send for a form-encoded POST.
func twilioSign(authToken, fullURL string, params url.Values) string {
	data := fullURL
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		data += k + params.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer()

	for _, path := range []string{"/", "/healthz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.E.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestVoiceWebhookRequiresSignature(t *testing.T) {
	s := newTestServer()

	form := url.Values{"From": {"+15550001111"}, "To": {"+15550002222"}}
	req := httptest.NewRequest(http.MethodPost, "/twilio/voice", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.E.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without signature, got %d", rec.Code)
	}
}

func TestVoiceWebhookReturnsStreamTwiML(t *testing.T) {
	s := newTestServer()

	form := url.Values{"From": {"+15550001111"}, "To": {"+15550002222"}}
	req := httptest.NewRequest(http.MethodPost, "/twilio/voice", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Host = "calls.example.com"
	sig := twilioSign(testAuthToken, "https://calls.example.com/twilio/voice", form)
	req.Header.Set("X-Twilio-Signature", sig)

	rec := httptest.NewRecorder()
	s.E.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid signature, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<Connect>") {
		t.Fatalf("expected Connect verb in TwiML, got %s", body)
	}
	if !strings.Contains(body, "wss://calls.example.com"+StreamPath) {
		t.Fatalf("expected stream URL in TwiML, got %s", body)
	}
	if !strings.Contains(body, `name="apiKey"`) || !strings.Contains(body, "stream-key") {
		t.Fatalf("expected apiKey parameter in TwiML, got %s", body)
	}
}

func TestVoiceWebhookRejectsTamperedSignature(t *testing.T) {
	s := newTestServer()

	form := url.Values{"From": {"+15550001111"}}
	req := httptest.NewRequest(http.MethodPost, "/twilio/voice", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Host = "calls.example.com"
	req.Header.Set("X-Twilio-Signature", "bm90IGEgcmVhbCBzaWduYXR1cmU=")

	rec := httptest.NewRecorder()
	s.E.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", rec.Code)
	}
}

func TestStreamUpgradeRequiresSignatureHeader(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, StreamPath, nil)
	rec := httptest.NewRecorder()
	s.E.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unsigned stream request, got %d", rec.Code)
	}
}
