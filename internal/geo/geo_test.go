package geo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Adilonapsh/exif-watermark-app/pkg/logger"
)

func TestOpenCageGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/geocode/v1/json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("q") != "Monas, Jakarta" || q.Get("key") != "k" || q.Get("language") != "id" {
			t.Errorf("query = %v", q)
		}
		w.Write([]byte(`{"results":[{"formatted":"Monumen Nasional, Jakarta","geometry":{"lat":-6.1754,"lng":106.8272}}]}`))
	}))
	defer srv.Close()

	oc := NewOpenCage(OpenCageConfig{BaseURL: srv.URL, Key: "k", Language: "id"}, logger.Nop())
	res, err := oc.Geocode(context.Background(), "Monas, Jakarta")
	if err != nil {
		t.Fatalf("Geocode failed: %v", err)
	}
	if res.FormattedAddress != "Monumen Nasional, Jakarta" || res.Lat != -6.1754 || res.Lng != 106.8272 {
		t.Errorf("result = %+v", res)
	}
}

func TestOpenCageFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"empty results", http.StatusOK, `{"results":[]}`},
		{"bad status", http.StatusPaymentRequired, `{}`},
		{"bad json", http.StatusOK, `{"results":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			oc := NewOpenCage(OpenCageConfig{BaseURL: srv.URL}, logger.Nop())
			if _, err := oc.Geocode(context.Background(), "x"); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNominatimGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing User-Agent")
		}
		w.Write([]byte(`[{"lat":"-6.4817","lon":"106.837","display_name":"Cibinong, Bogor"}]`))
	}))
	defer srv.Close()

	n := NewNominatim(NominatimConfig{BaseURL: srv.URL}, logger.Nop())
	res, err := n.Geocode(context.Background(), "Cibinong")
	if err != nil {
		t.Fatalf("Geocode failed: %v", err)
	}
	if res.FormattedAddress != "Cibinong, Bogor" || res.Lat != -6.4817 || res.Lng != 106.837 {
		t.Errorf("result = %+v", res)
	}
}

func TestNominatimGeocodeNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	n := NewNominatim(NominatimConfig{BaseURL: srv.URL}, logger.Nop())
	if _, err := n.Geocode(context.Background(), "nowhere"); !errors.Is(err, ErrNoResults) {
		t.Errorf("err = %v, want ErrNoResults", err)
	}
}

func TestNominatimReverseGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"display_name":"ignored","address":{"road":"Jalan Cikempong","suburb":"Pakansari","town":"Cibinong","state":"Jawa Barat","country":"Indonesia"}}`))
	}))
	defer srv.Close()

	n := NewNominatim(NominatimConfig{BaseURL: srv.URL}, logger.Nop())
	got, err := n.ReverseGeocode(context.Background(), -6.4817, 106.837)
	if err != nil {
		t.Fatalf("ReverseGeocode failed: %v", err)
	}
	want := "Jalan Cikempong\nPakansari\nCibinong\nJawa Barat\nIndonesia"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestAddressLinesFallsBackToDisplayName(t *testing.T) {
	p := place{DisplayName: "Somewhere"}
	if got := p.multiline(); got != "Somewhere" {
		t.Errorf("multiline = %q", got)
	}
}
