package owm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"weatherfav/internal/logger"
	"weatherfav/internal/weather"
)

const (
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"
	DefaultTimeout = 30 * time.Second

	endpointCurrent  = "weather"
	endpointForecast = "forecast"
)

// Doer performs a fully-formed request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RetryPolicy retries transport failures only. Attempts is the number of
// extra tries; zero disables retrying.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

type Config struct {
	BaseURL string
	APIKey  string
	Lang    string
	Timeout time.Duration
	Retry   RetryPolicy
}

type Client struct {
	baseURL string
	apiKey  string
	lang    string
	timeout time.Duration
	retry   RetryPolicy
	http    Doer
	metrics *Metrics
	log     *zap.SugaredLogger
}

// NewClient builds a gateway. A nil doer means a plain *http.Client; a nil
// metrics value records nothing.
func NewClient(cfg Config, doer Doer, metrics *Metrics) *Client {
	log := logger.GetLogger().Named("owm")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if doer == nil {
		doer = &http.Client{}
	}
	lang := ""
	if cfg.Lang != "" {
		l, err := NormalizeLang(cfg.Lang)
		if err != nil {
			log.Warnw("ignoring unsupported language", "lang", cfg.Lang, "error", err)
		} else {
			lang = l
		}
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		lang:    lang,
		timeout: cfg.Timeout,
		retry:   cfg.Retry,
		http:    doer,
		metrics: metrics,
		log:     log,
	}
}

// LoadCurrentWeather calls /weather for the coordinate pair.
func (c *Client) LoadCurrentWeather(ctx context.Context, lat, lon float64) (*CurrentWeather, error) {
	var out CurrentWeather
	if err := c.fetch(ctx, endpointCurrent, lat, lon, &out, out.validate); err != nil {
		return nil, err
	}
	return &out, nil
}

// LoadForecast calls /forecast for the coordinate pair.
func (c *Client) LoadForecast(ctx context.Context, lat, lon float64) (*Forecast, error) {
	var out Forecast
	if err := c.fetch(ctx, endpointForecast, lat, lon, &out, out.validate); err != nil {
		return nil, err
	}
	return &out, nil
}

// ForecastSeries adapts LoadForecast for weather.ForecastService.
func (c *Client) ForecastSeries(ctx context.Context, lat, lon float64) (weather.City, []weather.Snapshot, error) {
	fc, err := c.LoadForecast(ctx, lat, lon)
	if err != nil {
		return weather.City{}, nil, err
	}
	return fc.CityInfo(), fc.Snapshots(), nil
}

// CurrentReport adapts LoadCurrentWeather for weather.ForecastService.
func (c *Client) CurrentReport(ctx context.Context, lat, lon float64) (weather.Report, error) {
	cw, err := c.LoadCurrentWeather(ctx, lat, lon)
	if err != nil {
		return weather.Report{}, err
	}
	report, ok := cw.Report()
	if !ok {
		c.log.Warnw("current weather has no condition", "lat", lat, "lon", lon)
		report = weather.Report{ConditionName: "-"}
		if cw.Main != nil {
			report.Temperature = weather.Round(cw.Main.Temp)
		}
	}
	return report, nil
}

func (c *Client) buildRequest(ctx context.Context, endpoint string, lat, lon float64) (*http.Request, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadBaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", errBadBaseURL, c.baseURL)
	}

	u := base.JoinPath(endpoint)
	q := url.Values{
		"lat":   {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":   {strconv.FormatFloat(lon, 'f', -1, 64)},
		"appid": {c.apiKey},
		"units": {"metric"},
	}
	if c.lang != "" {
		q.Set("lang", c.lang)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	return req, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string, lat, lon float64, out any, validate func() error) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.observe(endpoint, err, time.Since(start))
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(ctx, endpoint, lat, lon)
	if err != nil {
		return &RequestError{Kind: KindBadRequest, Endpoint: endpoint, Err: err}
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return &RequestError{Kind: KindTransport, Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RequestError{Kind: KindTransport, Endpoint: endpoint, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Debugw("non-2xx response", "endpoint", endpoint, "status", resp.StatusCode, "body", truncate(body, 256))
		return &RequestError{Kind: KindServer, Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &RequestError{Kind: KindDecoding, Endpoint: endpoint, Err: err}
	}
	if err := validate(); err != nil {
		return &RequestError{Kind: KindDecoding, Endpoint: endpoint, Err: err}
	}
	return nil
}

func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := c.http.Do(req)
		if err == nil {
			return resp, nil
		}
		if attempt >= c.retry.Attempts || ctx.Err() != nil {
			return nil, err
		}

		delay := c.retry.Delay << attempt
		c.log.Debugw("retrying after transport failure", "url", redact(req.URL), "attempt", attempt+1, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// NormalizeLang canonicalises a BCP 47 tag into the provider's language code
// ("fr", "pt_br", "zh_cn").
func NormalizeLang(s string) (string, error) {
	tag, err := language.Parse(strings.ReplaceAll(s, "_", "-"))
	if err != nil {
		return "", err
	}
	base, _ := tag.Base()
	code := base.String()
	if code == "zh" || code == "pt" {
		if region, conf := tag.Region(); conf == language.Exact {
			return code + "_" + strings.ToLower(region.String()), nil
		}
	}
	return code, nil
}

func redact(u *url.URL) string {
	c := *u
	q := c.Query()
	if q.Has("appid") {
		q.Set("appid", logger.MaskSecret(q.Get("appid")))
	}
	c.RawQuery = q.Encode()
	return c.String()
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
