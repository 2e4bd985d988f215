package smallwebrtc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSignalingClientOffer(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/offer" {
			http.NotFound(w, r)
			return
		}
		var offer SessionDescription
		if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if offer.Type != "offer" || offer.SDP != "v=0 offer" {
			http.Error(w, "bad offer", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(SessionDescription{SDP: "v=0 answer", Type: "answer", PCID: "pc-7"})
	}))
	defer server.Close()

	client := NewSignalingClient(server.URL+"/", time.Second)
	answer, err := client.Offer(context.Background(), SessionDescription{SDP: "v=0 offer", Type: "offer"})
	if err != nil {
		t.Fatalf("offer failed: %v", err)
	}
	if answer.SDP != "v=0 answer" || answer.Type != "answer" || answer.PCID != "pc-7" {
		t.Fatalf("unexpected answer: %+v", answer)
	}
}

func TestSignalingClientOfferRejected(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "pipeline not ready", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewSignalingClient(server.URL, time.Second)
	if _, err := client.Offer(context.Background(), SessionDescription{SDP: "v=0", Type: "offer"}); err == nil {
		t.Fatalf("expected rejection error")
	}
}

func TestSignalingClientOfferWithoutSDP(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"type":"answer"}`))
	}))
	defer server.Close()

	client := NewSignalingClient(server.URL, time.Second)
	if _, err := client.Offer(context.Background(), SessionDescription{SDP: "v=0", Type: "offer"}); err == nil {
		t.Fatalf("expected missing sdp error")
	}
}

func TestSignalingClientProviders(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/providers/available" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"stt":[{"value":"deepgram","label":"Deepgram"}],"llm":[{"value":"anthropic","label":"Anthropic"},{"value":"openai","label":"OpenAI"}]}`))
	}))
	defer server.Close()

	providers, err := NewSignalingClient(server.URL, time.Second).Providers(context.Background())
	if err != nil {
		t.Fatalf("providers failed: %v", err)
	}
	if len(providers.STT) != 1 || providers.STT[0].Value != "deepgram" || len(providers.LLM) != 2 {
		t.Fatalf("unexpected providers: %+v", providers)
	}
}

func TestSignalingClientWithoutURL(t *testing.T) {
	t.Parallel()

	client := NewSignalingClient("", 0)
	if _, err := client.Providers(context.Background()); err == nil {
		t.Fatalf("expected configuration error")
	}
}
