package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
)

// ErrNoBulletin is returned when no bulletin could be located.
var ErrNoBulletin = errors.New("no bulletin found")

// Strategies for Locate.
const (
	StrategyProbe   = "probe"
	StrategyListing = "listing"
	StrategyAuto    = "auto"
)

const (
	DefaultListingURL  = "https://www.da.gov.ph/price-monitoring/"
	DefaultURLTemplate = "https://www.da.gov.ph/wp-content/uploads/{YYYY}/{MM}/Price-Monitoring-{Month}-{DD}-{YYYY}.pdf"
	DefaultMaxDaysBack = 7
)

// Manila is the bulletin publisher's time zone. A fixed offset avoids a
// dependency on the host's tzdata.
var Manila = time.FixedZone("PHT", 8*60*60)

var (
	uploadLink = regexp.MustCompile(`(?i)/wp-content/uploads/.+\.pdf$`)
	urlDate    = regexp.MustCompile(`(January|February|March|April|May|June|July|August|September|October|November|December)-(\d{1,2})-(\d{4})`)
)

// Bulletin is a located bulletin document.
type Bulletin struct {
	URL      string    `json:"url"`
	Date     time.Time `json:"date"`
	Strategy string    `json:"strategy"`
}

// Locator finds the most recent bulletin.
type Locator struct {
	client      *Client
	logger      *slog.Logger
	strategy    string
	listingURL  string
	urlTemplate string
	maxDaysBack int
	parallelism int
	now         func() time.Time
}

// LocatorOption configures a Locator.
type LocatorOption func(*Locator)

// NewLocator creates a locator using client for every request.
func NewLocator(client *Client, opts ...LocatorOption) *Locator {
	l := &Locator{
		client:      client,
		logger:      slog.Default(),
		strategy:    StrategyAuto,
		listingURL:  DefaultListingURL,
		urlTemplate: DefaultURLTemplate,
		maxDaysBack: DefaultMaxDaysBack,
		parallelism: 4,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// WithStrategy selects probe, listing or auto.
func WithStrategy(s string) LocatorOption {
	return func(l *Locator) {
		l.strategy = s
	}
}

// WithListingURL sets the page scraped by the listing strategy.
func WithListingURL(u string) LocatorOption {
	return func(l *Locator) {
		l.listingURL = u
	}
}

// WithURLTemplate sets the template used by the probe strategy.
// Placeholders: {YYYY} {MM} {DD} {Month}.
func WithURLTemplate(t string) LocatorOption {
	return func(l *Locator) {
		l.urlTemplate = t
	}
}

// WithMaxDaysBack sets how many days, today included, the probe covers.
func WithMaxDaysBack(n int) LocatorOption {
	return func(l *Locator) {
		l.maxDaysBack = n
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) LocatorOption {
	return func(l *Locator) {
		l.now = now
	}
}

// WithLocatorLogger sets the logger.
func WithLocatorLogger(logger *slog.Logger) LocatorOption {
	return func(l *Locator) {
		l.logger = logger
	}
}

// Locate runs the configured strategy.
func (l *Locator) Locate(ctx context.Context) (*Bulletin, error) {
	switch l.strategy {
	case StrategyProbe:
		return l.Probe(ctx)
	case StrategyListing:
		return l.FromListing(ctx)
	case StrategyAuto, "":
		b, err := l.Probe(ctx)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, ErrNoBulletin) {
			l.logger.Warn("bulletin probe failed, trying listing page", slog.Any("error", err))
		}
		return l.FromListing(ctx)
	default:
		return nil, fmt.Errorf("unknown discovery strategy %q", l.strategy)
	}
}

// Probe checks the dated upload URL for each of the last maxDaysBack days and
// returns the most recent one that exists.
func (l *Locator) Probe(ctx context.Context) (*Bulletin, error) {
	today := l.now().In(Manila)
	found := make([]bool, l.maxDaysBack)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.parallelism)
	for offset := range l.maxDaysBack {
		day := today.AddDate(0, 0, -offset)
		g.Go(func() error {
			ok, err := l.client.Exists(gctx, BuildURL(l.urlTemplate, day))
			if err != nil {
				return fmt.Errorf("probe %s: %w", day.Format("2006-01-02"), err)
			}
			found[offset] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for offset, ok := range found {
		if !ok {
			continue
		}
		day := today.AddDate(0, 0, -offset)
		return &Bulletin{
			URL:      BuildURL(l.urlTemplate, day),
			Date:     calendarDay(day),
			Strategy: StrategyProbe,
		}, nil
	}
	return nil, ErrNoBulletin
}

// FromListing scrapes the price monitoring page for the first uploaded PDF.
func (l *Locator) FromListing(ctx context.Context) (*Bulletin, error) {
	body, err := l.client.Get(ctx, l.listingURL)
	if err != nil {
		return nil, fmt.Errorf("fetch listing page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	base, err := url.Parse(l.listingURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listing url: %w", err)
	}

	var link string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return true
		}
		abs := base.ResolveReference(ref)
		if !uploadLink.MatchString(abs.Path) {
			return true
		}
		link = abs.String()
		return false
	})
	if link == "" {
		return nil, ErrNoBulletin
	}

	date, ok := DateFromURL(link)
	if !ok {
		date = calendarDay(l.now().In(Manila))
	}
	return &Bulletin{URL: link, Date: date, Strategy: StrategyListing}, nil
}

// BuildURL fills a URL template for the given day.
func BuildURL(template string, day time.Time) string {
	return strings.NewReplacer(
		"{YYYY}", strconv.Itoa(day.Year()),
		"{MM}", fmt.Sprintf("%02d", int(day.Month())),
		"{DD}", fmt.Sprintf("%02d", day.Day()),
		"{Month}", day.Month().String(),
	).Replace(template)
}

// DateFromURL extracts a Month-DD-YYYY date from a bulletin file name.
func DateFromURL(u string) (time.Time, bool) {
	m := urlDate.FindStringSubmatch(u)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.Parse("January-2-2006", m[1]+"-"+m[2]+"-"+m[3])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
