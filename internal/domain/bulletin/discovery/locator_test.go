package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2025-07-28 09:00 in Manila.
var fixedNow = time.Date(2025, 7, 28, 1, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func TestBuildURL(t *testing.T) {
	day := time.Date(2025, 7, 4, 0, 0, 0, 0, Manila)
	assert.Equal(t,
		"https://www.da.gov.ph/wp-content/uploads/2025/07/Price-Monitoring-July-04-2025.pdf",
		BuildURL(DefaultURLTemplate, day),
	)
}

func TestDateFromURL(t *testing.T) {
	d, ok := DateFromURL("https://www.da.gov.ph/wp-content/uploads/2025/07/Price-Monitoring-July-26-2025.pdf")
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 7, 26, 0, 0, 0, 0, time.UTC), d)

	d, ok = DateFromURL("https://x/Price-Monitoring-September-3-2024.pdf")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 9, 3, 0, 0, 0, 0, time.UTC), d)

	_, ok = DateFromURL("https://x/weekly-prices.pdf")
	assert.False(t, ok)
}

func TestLocator_ProbePicksMostRecent(t *testing.T) {
	published := map[string]bool{
		"/2025/07/Price-Monitoring-July-26-2025.pdf": true,
		"/2025/07/Price-Monitoring-July-24-2025.pdf": true,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if published[r.URL.Path] {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	l := NewLocator(testClient(),
		WithStrategy(StrategyProbe),
		WithURLTemplate(srv.URL+"/{YYYY}/{MM}/Price-Monitoring-{Month}-{DD}-{YYYY}.pdf"),
		WithClock(clock),
	)

	b, err := l.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/2025/07/Price-Monitoring-July-26-2025.pdf", b.URL)
	assert.Equal(t, time.Date(2025, 7, 26, 0, 0, 0, 0, time.UTC), b.Date)
	assert.Equal(t, StrategyProbe, b.Strategy)
}

func TestLocator_ProbeRespectsWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/2025/07/Price-Monitoring-July-20-2025.pdf" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	l := NewLocator(testClient(),
		WithStrategy(StrategyProbe),
		WithURLTemplate(srv.URL+"/{YYYY}/{MM}/Price-Monitoring-{Month}-{DD}-{YYYY}.pdf"),
		WithMaxDaysBack(7),
		WithClock(clock),
	)

	// July 28 back to July 22 only.
	_, err := l.Probe(context.Background())
	assert.ErrorIs(t, err, ErrNoBulletin)

	l = NewLocator(testClient(),
		WithStrategy(StrategyProbe),
		WithURLTemplate(srv.URL+"/{YYYY}/{MM}/Price-Monitoring-{Month}-{DD}-{YYYY}.pdf"),
		WithMaxDaysBack(9),
		WithClock(clock),
	)
	b, err := l.Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, b.Date.Day())
}

func TestLocator_FromListing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/price-monitoring/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<a href="/about/">About</a>
			<a href="/wp-content/uploads/2025/07/cover.jpg">Cover</a>
			<a href="/wp-content/uploads/2025/07/Price-Monitoring-July-25-2025.pdf">Latest</a>
			<a href="/wp-content/uploads/2025/07/Price-Monitoring-July-24-2025.pdf">Older</a>
		</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	l := NewLocator(testClient(),
		WithStrategy(StrategyListing),
		WithListingURL(srv.URL+"/price-monitoring/"),
		WithClock(clock),
	)

	b, err := l.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/wp-content/uploads/2025/07/Price-Monitoring-July-25-2025.pdf", b.URL)
	assert.Equal(t, 25, b.Date.Day())
	assert.Equal(t, StrategyListing, b.Strategy)
}

func TestLocator_FromListingUndatedLinkUsesToday(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<a href="https://cdn.example/wp-content/uploads/2025/07/weekly.PDF">x</a>`)
	}))
	defer srv.Close()

	l := NewLocator(testClient(), WithListingURL(srv.URL), WithClock(clock))
	b, err := l.FromListing(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/wp-content/uploads/2025/07/weekly.PDF", b.URL)
	assert.Equal(t, time.Date(2025, 7, 28, 0, 0, 0, 0, time.UTC), b.Date)
}

func TestLocator_AutoFallsBackToListing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/listing", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<a href="/wp-content/uploads/2025/06/Price-Monitoring-June-30-2025.pdf">x</a>`)
	})
	mux.HandleFunc("/", http.NotFound)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	l := NewLocator(testClient(),
		WithURLTemplate(srv.URL+"/probe/{YYYY}-{MM}-{DD}.pdf"),
		WithListingURL(srv.URL+"/listing"),
		WithClock(clock),
	)

	b, err := l.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StrategyListing, b.Strategy)
	assert.Equal(t, time.June, b.Date.Month())
}

func TestLocator_NothingFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `<p>no links today</p>`)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	l := NewLocator(testClient(),
		WithURLTemplate(srv.URL+"/{YYYY}/{MM}/{DD}.pdf"),
		WithListingURL(srv.URL),
		WithClock(clock),
	)
	_, err := l.Locate(context.Background())
	assert.ErrorIs(t, err, ErrNoBulletin)
}

func TestLocator_UnknownStrategy(t *testing.T) {
	_, err := NewLocator(testClient(), WithStrategy("guess")).Locate(context.Background())
	assert.Error(t, err)
}
