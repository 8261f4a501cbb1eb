package eta

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/models"
)

var (
	origin = models.Coord{Lat: 14.56, Lng: 120.99}
	dest   = models.Coord{Lat: 14.5649, Lng: 120.9933}
)

func TestRoutingClientParsesMatrix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("origins"); got != "14.560000,120.990000" {
			t.Errorf("unexpected origins param %q", got)
		}
		fmt.Fprint(w, `{"status":"OK","rows":[{"elements":[{"status":"OK","duration":{"value":300},"distance":{"value":2500}}]}]}`)
	}))
	defer srv.Close()

	c := NewRoutingClient(srv.URL, "test-key", time.Second)
	etaMin, distKm, err := c.Estimate(context.Background(), origin, dest)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if etaMin != 5 {
		t.Fatalf("eta = %f, want 5", etaMin)
	}
	if distKm != 2.5 {
		t.Fatalf("dist = %f, want 2.5", distKm)
	}
}

func TestRoutingClientErrorCases(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"http 500": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"bad status field": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status":"OVER_QUERY_LIMIT","rows":[]}`)
		},
		"empty rows": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status":"OK","rows":[]}`)
		},
		"element not ok": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status":"OK","rows":[{"elements":[{"status":"ZERO_RESULTS"}]}]}`)
		},
		"malformed body": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{not json`)
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()
			c := NewRoutingClient(srv.URL, "", time.Second)
			if _, _, err := c.Estimate(context.Background(), origin, dest); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

// The provider must absorb routing failures and return exactly the haversine
// estimate for the same coordinate pair.
func TestProviderFallbackMatchesHaversine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewProvider(NewRoutingClient(srv.URL, "", time.Second), nil, nil)
	etaMin, distKm, err := p.Estimate(context.Background(), origin, dest)
	if err != nil {
		t.Fatalf("provider must never return an error, got %v", err)
	}

	wantDist := geo.DistanceKm(origin, dest)
	wantEta := geo.EtaMinutes(wantDist)
	if distKm != wantDist {
		t.Fatalf("dist = %f, want haversine %f", distKm, wantDist)
	}
	if etaMin != wantEta {
		t.Fatalf("eta = %f, want %f", etaMin, wantEta)
	}
}

func TestProviderWithoutRoutingUsesFallback(t *testing.T) {
	p := NewProvider(nil, nil, nil)
	etaMin, distKm, err := p.Estimate(context.Background(), origin, dest)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if distKm != geo.DistanceKm(origin, dest) {
		t.Fatalf("dist = %f, want haversine", distKm)
	}
	if etaMin != geo.EtaMinutes(distKm) {
		t.Fatalf("eta = %f, want %f", etaMin, geo.EtaMinutes(distKm))
	}
}

func TestProviderUsesCache(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"status":"OK","rows":[{"elements":[{"status":"OK","duration":{"value":600},"distance":{"value":4000}}]}]}`)
	}))
	defer srv.Close()

	p := NewProvider(NewRoutingClient(srv.URL, "", time.Second), NewCache(time.Minute), nil)
	for i := 0; i < 3; i++ {
		etaMin, distKm, err := p.Estimate(context.Background(), origin, dest)
		if err != nil {
			t.Fatalf("estimate: %v", err)
		}
		if etaMin != 10 || distKm != 4 {
			t.Fatalf("got (%f, %f), want (10, 4)", etaMin, distKm)
		}
	}
	if calls != 1 {
		t.Fatalf("routing called %d times, want 1", calls)
	}
}
