// Package widgets fetches the dashboard's daily quote and current weather.
// Every failure degrades to fixed fallback text; callers never see an error.
package widgets

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"sync"
	"time"

	"kairon/internal/cache"
	"kairon/internal/ratelimit"
	"kairon/internal/utils"
)

const (
	DefaultQuoteURL   = "https://api.quotable.io/random?maxLength=100"
	DefaultWeatherURL = "https://api.openweathermap.org/data/2.5/weather"

	QuoteFallback   = "Could not load quote."
	WeatherFallback = "N/A"

	weatherTTL = 10 * time.Minute
)

// unitSuffix maps the OpenWeatherMap units parameter to its temperature suffix.
var unitSuffix = map[string]string{
	"metric":   "°C",
	"imperial": "°F",
	"standard": "K",
}

// Config configures the widget client.
type Config struct {
	QuoteURL   string        `yaml:"quote_url"`
	WeatherURL string        `yaml:"weather_url"`
	Units      string        `yaml:"units"`
	Timeout    time.Duration `yaml:"timeout"`
	// APIKey is resolved at runtime and never read from the config file.
	APIKey string `yaml:"-"`
}

// Quote is the daily quote.
type Quote struct {
	Content  string `json:"content"`
	Author   string `json:"author"`
	Fallback bool   `json:"fallback"`
}

// Text renders the quote for display.
func (q Quote) Text() string {
	if q.Fallback || q.Author == "" {
		return q.Content
	}
	return fmt.Sprintf("%q - %s", q.Content, q.Author)
}

// Weather is the current weather at a location.
type Weather struct {
	Location  string  `json:"location"`
	Condition string  `json:"condition"`
	Icon      string  `json:"icon"`
	Temp      float64 `json:"temp"`
	Unit      string  `json:"unit"`
	Text      string  `json:"text"`
	Fallback  bool    `json:"fallback"`
}

// ServiceError describes why a widget fell back.
type ServiceError struct {
	Service string
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s widget unavailable: %v", e.Service, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

var errBreakerOpen = errors.New("circuit open")

var icons = map[string]string{
	"Clear":        "☀️",
	"Clouds":       "☁️",
	"Rain":         "🌧️",
	"Snow":         "❄️",
	"Thunderstorm": "⛈️",
	"Drizzle":      "🌦️",
	"Mist":         "🌫️",
}

// Icon maps an OpenWeatherMap condition group to an emoji.
func Icon(condition string) string {
	if icon, ok := icons[condition]; ok {
		return icon
	}
	return "🌤️"
}

// Client fetches widgets through a rate-limited HTTP client, a circuit
// breaker per service and an optional cache.
type Client struct {
	cfg     Config
	http    *ratelimit.Client
	cache   *cache.Store
	now     func() time.Time
	quotes  *Breaker
	weather *Breaker

	mu      sync.Mutex
	lastErr error
}

// Option configures a Client.
type Option func(*Client)

// WithCache stores successful responses.
func WithCache(c *cache.Store) Option {
	return func(cl *Client) { cl.cache = c }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(cl *Client) { cl.now = now }
}

// WithHTTP replaces the rate-limited transport.
func WithHTTP(c *ratelimit.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// New creates a widget client.
func New(cfg Config, opts ...Option) *Client {
	if cfg.QuoteURL == "" {
		cfg.QuoteURL = DefaultQuoteURL
	}
	if cfg.WeatherURL == "" {
		cfg.WeatherURL = DefaultWeatherURL
	}
	if _, ok := unitSuffix[cfg.Units]; !ok {
		if cfg.Units != "" {
			utils.Warnf("Unknown weather units %q, using metric", cfg.Units)
		}
		cfg.Units = "metric"
	}
	c := &Client{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = ratelimit.NewClient(ratelimit.Config{
			Service:   "widgets",
			Timeout:   cfg.Timeout,
			Jitter:    true,
			UserAgent: "kairon",
		})
	}
	c.quotes = NewBreaker(0, 0, c.now)
	c.weather = NewBreaker(0, 0, c.now)
	return c
}

// LastError returns the most recent ServiceError, or nil.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Client) fail(service string, err error) {
	serr := &ServiceError{Service: service, Err: err}
	c.mu.Lock()
	c.lastErr = serr
	c.mu.Unlock()
	utils.Debugf("%v", serr)
}

type quotePayload struct {
	Content string `json:"content"`
	Author  string `json:"author"`
}

// Quote returns today's quote, or the fallback.
func (c *Client) Quote(ctx context.Context) Quote {
	key := "quote:" + c.now().Format("2006-01-02")
	var cached Quote
	if c.cache != nil {
		if ok, _ := c.cache.Get(key, &cached); ok {
			return cached
		}
	}
	fallback := Quote{Content: QuoteFallback, Fallback: true}
	if !c.quotes.Allow() {
		c.fail("quote", errBreakerOpen)
		return fallback
	}

	// The endpoint returns an object, some mirrors return a one-element array.
	var raw any
	if err := c.http.GetJSON(ctx, c.cfg.QuoteURL, &raw); err != nil {
		c.quotes.Failure()
		c.fail("quote", err)
		return fallback
	}
	p, err := decodeQuote(raw)
	if err != nil {
		c.quotes.Failure()
		c.fail("quote", err)
		return fallback
	}
	c.quotes.Success()
	q := Quote{Content: p.Content, Author: p.Author}
	if c.cache != nil {
		midnight := time.Date(c.now().Year(), c.now().Month(), c.now().Day()+1, 0, 0, 0, 0, c.now().Location())
		if err := c.cache.Put(key, q, midnight.Sub(c.now())); err != nil {
			utils.Debugf("cache quote: %v", err)
		}
	}
	return q
}

func decodeQuote(raw any) (quotePayload, error) {
	if list, ok := raw.([]any); ok {
		if len(list) == 0 {
			return quotePayload{}, errors.New("empty quote list")
		}
		raw = list[0]
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return quotePayload{}, errors.New("unexpected quote payload")
	}
	content, _ := obj["content"].(string)
	author, _ := obj["author"].(string)
	if strings.TrimSpace(content) == "" {
		return quotePayload{}, errors.New("quote has no content")
	}
	return quotePayload{Content: content, Author: author}, nil
}

type weatherPayload struct {
	Weather []struct {
		Main string `json:"main"`
	} `json:"weather"`
	Main *struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
}

// Weather returns current conditions for location, or the fallback.
// An empty location never issues a request.
func (c *Client) Weather(ctx context.Context, location string) Weather {
	location = strings.TrimSpace(location)
	fallback := Weather{Location: location, Icon: Icon(""), Text: WeatherFallback, Fallback: true}
	if location == "" {
		return fallback
	}
	if c.cfg.APIKey == "" {
		c.fail("weather", utils.ErrWeatherKeyMissing())
		return fallback
	}
	key := "weather:" + strings.ToLower(location)
	var cached Weather
	if c.cache != nil {
		if ok, _ := c.cache.Get(key, &cached); ok {
			return cached
		}
	}
	if !c.weather.Allow() {
		c.fail("weather", errBreakerOpen)
		return fallback
	}

	q := url.Values{}
	q.Set("q", location)
	q.Set("appid", c.cfg.APIKey)
	q.Set("units", c.cfg.Units)
	var p weatherPayload
	if err := c.http.GetJSON(ctx, c.cfg.WeatherURL+"?"+q.Encode(), &p); err != nil {
		c.weather.Failure()
		c.fail("weather", err)
		return fallback
	}
	if p.Main == nil || len(p.Weather) == 0 {
		c.weather.Failure()
		c.fail("weather", errors.New("incomplete weather payload"))
		return fallback
	}
	c.weather.Success()
	w := Weather{
		Location:  location,
		Condition: p.Weather[0].Main,
		Icon:      Icon(p.Weather[0].Main),
		Temp:      p.Main.Temp,
		Unit:      unitSuffix[c.cfg.Units],
		Text:      fmt.Sprintf("%d%s", int(math.Round(p.Main.Temp)), unitSuffix[c.cfg.Units]),
	}
	if c.cache != nil {
		if err := c.cache.Put(key, w, weatherTTL); err != nil {
			utils.Debugf("cache weather: %v", err)
		}
	}
	return w
}
