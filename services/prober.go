package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"quickflare/internal/logger"

	"github.com/cenkalti/backoff"
)

// PreconfiguredURL is reported for named/config tunnels, their metrics carry no URL
const PreconfiguredURL = "preconfigured tunnel URL"

var ErrEdgeConnectFailed = errors.New("can't connect to Cloudflare edge")

var (
	quickURLPattern     = regexp.MustCompile(`https://[A-Za-z0-9.-]+\.trycloudflare\.com`)
	haConnectionPattern = regexp.MustCompile(`cloudflared_tunnel_ha_connections\s\d`)
	errNoReadiness      = errors.New("readiness signal not found")
)

// ExtractReadiness looks for the mode's readiness signal in a metrics payload
func ExtractReadiness(mode TunnelMode, payload string) (string, bool) {
	if mode.Preconfigured() {
		if haConnectionPattern.MatchString(payload) {
			return PreconfiguredURL, true
		}
		return "", false
	}
	url := quickURLPattern.FindString(payload)
	return url, url != ""
}

/**
 * ReadinessProber polls the cloudflared metrics endpoint until the tunnel is up
 * @property {*http.Client} Client - Client used for each fetch, its timeout bounds one attempt
 * @property {int} Attempts - Maximum number of fetches
 * @property {time.Duration} Interval - Fixed pause between fetches
 */
type ReadinessProber struct {
	Client   *http.Client
	Attempts int
	Interval time.Duration
}

/**
 * Poll metricsURL until the readiness signal of mode shows up
 * @param {context.Context} ctx - Cancels the wait between attempts
 * @param {string} metricsURL - cloudflared metrics endpoint
 * @param {TunnelMode} mode - Decides which signal is expected
 * @returns {(string, error)} Returns the public URL, or PreconfiguredURL
 * @description
 * - Attempts are sequential with a constant interval, no exponential growth
 * - A fetch in flight is not interrupted, it ends at the client timeout
 * @throws
 * - ErrEdgeConnectFailed once all attempts are used
 */
func (p *ReadinessProber) Probe(ctx context.Context, metricsURL string, mode TunnelMode) (string, error) {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var (
		publicURL string
		attempt   int
	)
	operation := func() error {
		attempt++
		readinessAttempts.Inc()
		payload, err := p.fetch(metricsURL)
		if err != nil {
			logger.Debugf("Readiness attempt %d/%d: %v", attempt, attempts, err)
			return err
		}
		url, ok := ExtractReadiness(mode, payload)
		if !ok {
			logger.Debugf("Readiness attempt %d/%d: %v", attempt, attempts, errNoReadiness)
			return errNoReadiness
		}
		publicURL = url
		return nil
	}

	// WithMaxRetries treats 0 as unlimited
	var policy backoff.BackOff = &backoff.StopBackOff{}
	if attempts > 1 {
		policy = backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Interval), uint64(attempts-1))
	}
	// backoff stops early when a deadline is nearer than the next interval,
	// it only gets to see the cancellation
	retryCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	defer context.AfterFunc(ctx, cancel)()

	if err := backoff.Retry(operation, backoff.WithContext(policy, retryCtx)); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("readiness probe cancelled after %d attempts: %w", attempt, ctx.Err())
		}
		return "", fmt.Errorf("%w after %d attempts: %v", ErrEdgeConnectFailed, attempt, err)
	}
	return publicURL, nil
}

func (p *ReadinessProber) fetch(metricsURL string) (string, error) {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	rsp, err := client.Get(metricsURL)
	if err != nil {
		return "", err
	}
	defer rsp.Body.Close()

	body, err := io.ReadAll(rsp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read metrics: %w", err)
	}
	if rsp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("metrics endpoint returned status code: %d", rsp.StatusCode)
	}
	return string(body), nil
}
