// Package browser drives the single shared Chrome instance used for
// interactive LinkedIn flows: credential login, verification codes, manual
// login and people search.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/davidR-jmd/fb-leads/internal/interfaces"
	"github.com/davidR-jmd/fb-leads/internal/models"
	"github.com/ternarybob/arbor"
)

const (
	targetAttr     = "data-fbl-target"
	targetSelector = `[data-fbl-target="1"]`
)

var (
	codeInputSelectors = []string{
		`input[name="pin"]`,
		`input[id="input__email_verification_pin"]`,
		`input#input__email_verification_pin`,
		`input.input_verification_pin`,
		`input[type="text"][name="pin"]`,
		`input[aria-label*="verification"]`,
		`input[aria-label*="code"]`,
		`#captcha-internal input`,
		`input.verification-code-input`,
		// any visible text input as a last resort
		`input[type="text"]`,
		`input:not([type])`,
	}

	verificationPinSelectors = []string{`input[name="pin"]`, `input#input__email_verification_pin`}

	submitSelectors = []string{
		`button[type="submit"]`,
		`button.btn__primary--large`,
		`button[data-litms-control-urn*="submit"]`,
		`#email-pin-submit-button`,
	}
	submitTexts = []string{"Submit", "Valider", "Verify"}

	continueSelectors = []string{
		`button[type="submit"]`,
		`button.btn__primary--large`,
		`a.btn__primary--large`,
		`[data-litms-control-urn*="continue"]`,
		`[data-litms-control-urn*="done"]`,
	}
	continueTexts  = []string{"Continue", "Continuer", "Done", "Terminé", "Confirm", "Confirmer"}
	errorSelectors = []string{`.form__label--error`, `.alert-error`, `[role="alert"]`}

	resultsSelectors = []string{
		`.search-results-container`,
		`.reusable-search__result-container`,
		`[data-view-name='search-entity-result-universal-template']`,
		`.scaffold-finite-scroll__content`,
		`ul.reusable-search__entity-result-list`,
		`.search-results__list`,
	}
)

// Config configures the shared browser
type Config struct {
	BaseURL           string
	ProfileDir        string
	UserAgent         string
	Locale            string
	Timezone          string
	Headless          bool
	NavigationTimeout time.Duration
}

// Driver implements interfaces.BrowserDriver on top of chromedp. One Driver
// is created by the composition root and shared by every caller.
type Driver struct {
	mu            sync.Mutex
	busy          atomic.Bool
	config        Config
	pacer         *Pacer
	logger        arbor.ILogger
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	headless      bool

	// runner is chromedp.Run, replaced in tests
	runner func(ctx context.Context, actions ...chromedp.Action) error
}

var _ interfaces.BrowserDriver = (*Driver)(nil)

// NewDriver creates a driver. The browser itself starts on first use.
func NewDriver(config Config, pacer *Pacer, logger arbor.ILogger) *Driver {
	if config.BaseURL == "" {
		config.BaseURL = siteOrigin
	}
	if config.NavigationTimeout <= 0 {
		config.NavigationTimeout = 30 * time.Second
	}
	if pacer == nil {
		pacer = NewPacer()
	}
	return &Driver{
		config: config,
		pacer:  pacer,
		logger: logger,
		runner: chromedp.Run,
	}
}

func (d *Driver) loginURL() string { return d.config.BaseURL + "/login" }
func (d *Driver) feedURL() string  { return d.config.BaseURL + "/feed/" }

func (d *Driver) searchURL(query string) string {
	return d.config.BaseURL + "/search/results/people/?keywords=" + url.QueryEscape(query) + "&origin=GLOBAL_SEARCH_HEADER"
}

// IsRunning reports whether a browser is up
func (d *Driver) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.runningLocked()
}

func (d *Driver) runningLocked() bool {
	return d.browserCtx != nil && d.browserCtx.Err() == nil
}

// IsBusy reports whether an interactive operation is in flight
func (d *Driver) IsBusy() bool {
	return d.busy.Load()
}

// TryAcquire takes the busy flag
func (d *Driver) TryAcquire() bool {
	return d.busy.CompareAndSwap(false, true)
}

// Release frees the busy flag
func (d *Driver) Release() {
	d.busy.Store(false)
}

// acquire takes the busy flag for one interactive call. A ctx marked with
// interfaces.WithBrowserHeld belongs to a caller already holding it.
func (d *Driver) acquire(ctx context.Context) (func(), bool) {
	if interfaces.BrowserHeld(ctx) {
		return func() {}, true
	}
	if !d.TryAcquire() {
		return nil, false
	}
	return d.Release, true
}

// Launch starts the browser. A running browser in the other display mode is
// restarted; visible forces a headed window regardless of configuration.
func (d *Driver) Launch(ctx context.Context, visible bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.launchLocked(ctx, visible)
}

func (d *Driver) launchLocked(ctx context.Context, visible bool) error {
	headless := d.config.Headless && !visible

	if d.runningLocked() {
		if d.headless == headless {
			return nil
		}
		d.logger.Info().Bool("from_headless", d.headless).Bool("to_headless", headless).Msg("Restarting browser in new display mode")
		d.closeLocked()
	}

	startTime := time.Now()

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", d.config.Locale),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(d.config.UserAgent),
	)
	if d.config.ProfileDir != "" {
		allocatorOpts = append(allocatorOpts, chromedp.UserDataDir(d.config.ProfileDir))
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	// The first Run allocates Chrome and binds the process to its ctx, so it
	// must be the long-lived browser ctx and never a timeout child.
	if err := d.runner(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		d.logger.Error().Err(err).Msg("Failed to allocate browser")
		return fmt.Errorf("%w: browser failed to start: %v", models.ErrConnection, err)
	}

	probeCtx, probeCancel := context.WithTimeout(browserCtx, d.config.NavigationTimeout)
	defer probeCancel()
	stop := context.AfterFunc(ctx, probeCancel)
	defer stop()

	err := d.runner(probeCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if d.config.Timezone != "" {
				if err := emulation.SetTimezoneOverride(d.config.Timezone).Do(ctx); err != nil {
					return err
				}
			}
			if d.config.Locale != "" {
				return emulation.SetLocaleOverride().WithLocale(d.config.Locale).Do(ctx)
			}
			return nil
		}),
	)
	if err != nil {
		browserCancel()
		allocatorCancel()
		d.logger.Error().Err(err).Msg("Failed to launch browser")
		return fmt.Errorf("%w: browser failed startup: %v", models.ErrConnection, err)
	}

	d.browserCtx = browserCtx
	d.browserCancel = browserCancel
	d.allocCancel = allocatorCancel
	d.headless = headless

	d.logger.Info().
		Bool("headless", headless).
		Str("profile", d.config.ProfileDir).
		Dur("startup_time", time.Since(startTime)).
		Msg("LinkedIn browser launched")

	return nil
}

// Close tears the browser down and clears the busy flag
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeLocked()
	return nil
}

func (d *Driver) closeLocked() {
	if d.browserCancel != nil {
		d.browserCancel()
	}
	if d.allocCancel != nil {
		d.allocCancel()
	}
	wasRunning := d.browserCtx != nil
	d.browserCtx = nil
	d.browserCancel = nil
	d.allocCancel = nil
	d.busy.Store(false)
	if wasRunning {
		d.logger.Info().Msg("LinkedIn browser closed")
	}
}

func (d *Driver) ensureRunning(ctx context.Context, visible bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.runningLocked() && !visible {
		return nil
	}
	return d.launchLocked(ctx, visible)
}

// run executes actions with the per-call navigation timeout, also stopping
// when the caller's ctx ends
func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	d.mu.Lock()
	browserCtx := d.browserCtx
	d.mu.Unlock()
	if browserCtx == nil || browserCtx.Err() != nil {
		return models.ErrBrowserNotRunning
	}

	runCtx, cancel := context.WithTimeout(browserCtx, d.config.NavigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (d *Driver) currentURL(ctx context.Context) (string, error) {
	var location string
	if err := d.run(ctx, chromedp.Location(&location)); err != nil {
		return "", err
	}
	return location, nil
}

func (d *Driver) navigate(ctx context.Context, target string) error {
	return d.run(ctx, chromedp.Navigate(target), chromedp.WaitReady("body", chromedp.ByQuery))
}

func jsList(values []string) string {
	encoded, _ := json.Marshal(values)
	return string(encoded)
}

func jsString(value string) string {
	encoded, _ := json.Marshal(value)
	return string(encoded)
}

// exists reports whether any selector matches
func (d *Driver) exists(ctx context.Context, selectors []string) (bool, error) {
	var found bool
	expr := fmt.Sprintf(`%s.some(s => document.querySelector(s) !== null)`, jsList(selectors))
	if err := d.run(ctx, chromedp.Evaluate(expr, &found)); err != nil {
		return false, err
	}
	return found, nil
}

// markTarget tags the first visible element matching selectors, or a visible
// button/link whose text contains one of texts, so it can be addressed as targetSelector
func (d *Driver) markTarget(ctx context.Context, selectors, texts []string) (bool, error) {
	expr := fmt.Sprintf(`(() => {
	const sels = %s;
	const texts = %s.map(t => t.toLowerCase());
	const visible = el => !!(el.offsetWidth || el.offsetHeight || el.getClientRects().length);
	let found = null;
	for (const s of sels) {
		const el = Array.from(document.querySelectorAll(s)).find(visible);
		if (el) { found = el; break; }
	}
	if (!found && texts.length) {
		found = Array.from(document.querySelectorAll('button, a')).find(el => {
			const t = (el.textContent || '').trim().toLowerCase();
			return visible(el) && texts.some(x => t.includes(x));
		}) || null;
	}
	document.querySelectorAll('[%s]').forEach(el => el.removeAttribute('%s'));
	if (!found) return false;
	found.setAttribute('%s', '1');
	return true;
})()`, jsList(selectors), jsList(texts), targetAttr, targetAttr, targetAttr)

	var marked bool
	if err := d.run(ctx, chromedp.Evaluate(expr, &marked)); err != nil {
		return false, err
	}
	return marked, nil
}

// humanType clicks the field and types text one key at a time
func (d *Driver) humanType(ctx context.Context, selector, text string) error {
	if err := d.run(ctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return err
	}
	if err := d.pacer.Pause(ctx, 100*time.Millisecond, 300*time.Millisecond); err != nil {
		return err
	}
	delays := d.pacer.KeystrokeDelays(text)
	for i, r := range []rune(text) {
		if err := d.pacer.Sleep(ctx, delays[i]); err != nil {
			return err
		}
		if err := d.run(ctx, chromedp.SendKeys(selector, string(r), chromedp.ByQuery)); err != nil {
			return err
		}
	}
	return nil
}

// moveMouseTo glides the pointer to the centre of the element, if present
func (d *Driver) moveMouseTo(ctx context.Context, selector string) error {
	var box []float64
	expr := fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) return [];
	const r = el.getBoundingClientRect();
	return [r.x, r.y, r.width, r.height];
})()`, jsString(selector))
	if err := d.run(ctx, chromedp.Evaluate(expr, &box)); err != nil || len(box) != 4 {
		return err
	}

	target := Point{X: box[0] + box[2]/2, Y: box[1] + box[3]/2}
	for _, p := range d.pacer.MousePath(d.pacer.MouseStart(), target) {
		if err := d.run(ctx, chromedp.MouseEvent(input.MouseMoved, p.X, p.Y)); err != nil {
			return err
		}
		if err := d.pacer.Sleep(ctx, d.pacer.MouseStepDelay()); err != nil {
			return err
		}
	}
	return nil
}

// scroll moves the page in small steps, then pauses
func (d *Driver) scroll(ctx context.Context, amount int, up bool) error {
	for _, step := range d.pacer.ScrollPlan(amount, up) {
		if err := d.run(ctx, chromedp.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", step), nil)); err != nil {
			return err
		}
		if err := d.pacer.Sleep(ctx, d.pacer.ScrollStepDelay()); err != nil {
			return err
		}
	}
	return d.pacer.Sleep(ctx, d.pacer.ScrollSettleDelay())
}

// simulateReading lingers on the page, sometimes nudging it down a little
func (d *Driver) simulateReading(ctx context.Context, min, max time.Duration) error {
	readFor, nudge := d.pacer.ReadingPlan(min, max)
	if nudge {
		if err := d.scroll(ctx, d.pacer.Intn(100, 200), false); err != nil {
			return err
		}
	}
	return d.pacer.Sleep(ctx, readFor)
}

// Login drives the credential form and classifies where the site lands
func (d *Driver) Login(ctx context.Context, email, password string) (models.ConnectionStatus, error) {
	release, ok := d.acquire(ctx)
	if !ok {
		return models.ConnectionStatusError, models.ErrBrowserBusy
	}
	defer release()

	if err := d.ensureRunning(ctx, false); err != nil {
		return models.ConnectionStatusError, err
	}

	status, err := d.login(ctx, email, password)
	if err != nil {
		d.logger.Error().Err(err).Msg("LinkedIn login failed")
		return models.ConnectionStatusError, fmt.Errorf("%w: login: %v", models.ErrConnection, err)
	}
	return status, nil
}

func (d *Driver) login(ctx context.Context, email, password string) (models.ConnectionStatus, error) {
	if err := d.navigate(ctx, d.loginURL()); err != nil {
		return "", err
	}
	if err := d.pacer.Wait(ctx, 2000, 5000); err != nil {
		return "", err
	}

	if err := d.humanType(ctx, "#username", email); err != nil {
		return "", err
	}
	if err := d.pacer.Wait(ctx, 800, 1500); err != nil {
		return "", err
	}
	if err := d.humanType(ctx, "#password", password); err != nil {
		return "", err
	}
	if err := d.pacer.Wait(ctx, 500, 1000); err != nil {
		return "", err
	}

	if err := d.moveMouseTo(ctx, `button[type="submit"]`); err != nil {
		return "", err
	}
	if err := d.pacer.Pause(ctx, 100*time.Millisecond, 300*time.Millisecond); err != nil {
		return "", err
	}
	if err := d.run(ctx, chromedp.Click(`button[type="submit"]`, chromedp.ByQuery), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return "", err
	}
	if err := d.pacer.Wait(ctx, 2000, 5000); err != nil {
		return "", err
	}

	location, err := d.currentURL(ctx)
	if err != nil {
		return "", err
	}
	hasCodeInput, err := d.exists(ctx, verificationPinSelectors)
	if err != nil {
		return "", err
	}

	status := ClassifyLoginOutcome(location, hasCodeInput)
	d.logger.Info().Str("status", string(status)).Str("url", location).Msg("LinkedIn login outcome")
	return status, nil
}

// InjectSessionToken installs the li_at cookie in the browser profile
func (d *Driver) InjectSessionToken(ctx context.Context, token string) (bool, error) {
	release, ok := d.acquire(ctx)
	if !ok {
		return false, models.ErrBrowserBusy
	}
	defer release()

	if err := d.ensureRunning(ctx, false); err != nil {
		return false, err
	}

	if err := d.navigate(ctx, d.config.BaseURL); err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrConnection, err)
	}
	if err := d.pacer.Wait(ctx, 1000, 2000); err != nil {
		return false, err
	}

	err := d.run(ctx,
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return network.SetCookie("li_at", token).
				WithDomain(".linkedin.com").
				WithPath("/").
				WithSecure(true).
				WithHTTPOnly(true).
				WithSameSite(network.CookieSameSiteNone).
				Do(ctx)
		}),
		chromedp.Reload(),
	)
	if err != nil {
		d.logger.Error().Err(err).Msg("Failed to inject session cookie")
		return false, fmt.Errorf("%w: inject cookie: %v", models.ErrConnection, err)
	}

	d.logger.Info().Int("cookie_length", len(token)).Msg("LinkedIn session cookie injected")
	return true, d.pacer.Wait(ctx, 2000, 3000)
}

// NavigateToManualLogin opens the login page in a visible window
func (d *Driver) NavigateToManualLogin(ctx context.Context) error {
	release, ok := d.acquire(ctx)
	if !ok {
		return models.ErrBrowserBusy
	}
	defer release()

	if err := d.ensureRunning(ctx, true); err != nil {
		return err
	}
	if err := d.navigate(ctx, d.loginURL()); err != nil {
		return fmt.Errorf("%w: %v", models.ErrConnection, err)
	}

	d.logger.Info().Msg("Opened LinkedIn login page for manual login")
	return nil
}

// SubmitVerificationCode enters the emailed code and classifies the outcome
func (d *Driver) SubmitVerificationCode(ctx context.Context, code string) (models.ConnectionStatus, error) {
	if !d.IsRunning() {
		return models.ConnectionStatusError, models.ErrBrowserNotRunning
	}
	release, ok := d.acquire(ctx)
	if !ok {
		return models.ConnectionStatusError, models.ErrBrowserBusy
	}
	defer release()

	status, err := d.submitCode(ctx, code)
	if err != nil {
		d.logger.Error().Err(err).Msg("Verification code submission failed")
		return models.ConnectionStatusError, err
	}
	return status, nil
}

func (d *Driver) submitCode(ctx context.Context, code string) (models.ConnectionStatus, error) {
	found, err := d.markTarget(ctx, codeInputSelectors, nil)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("verification code input not found")
	}

	if err := d.run(ctx, chromedp.Click(targetSelector, chromedp.ByQuery), chromedp.SetValue(targetSelector, "", chromedp.ByQuery)); err != nil {
		return "", err
	}
	if err := d.pacer.Wait(ctx, 300, 500); err != nil {
		return "", err
	}
	if err := d.run(ctx, chromedp.SendKeys(targetSelector, code, chromedp.ByQuery)); err != nil {
		return "", err
	}
	if err := d.pacer.Wait(ctx, 500, 1000); err != nil {
		return "", err
	}

	hasButton, err := d.markTarget(ctx, submitSelectors, submitTexts)
	if err != nil {
		return "", err
	}
	if hasButton {
		err = d.run(ctx, chromedp.Click(targetSelector, chromedp.ByQuery))
	} else {
		if _, err := d.markTarget(ctx, codeInputSelectors, nil); err != nil {
			return "", err
		}
		err = d.run(ctx, chromedp.SendKeys(targetSelector, kb.Enter, chromedp.ByQuery))
	}
	if err != nil {
		return "", err
	}

	if err := d.run(ctx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return "", err
	}
	if err := d.pacer.Wait(ctx, 2000, 3000); err != nil {
		return "", err
	}

	location, err := d.currentURL(ctx)
	if err != nil {
		return "", err
	}

	if lower := strings.ToLower(location); strings.Contains(lower, "/verify") || strings.Contains(lower, "/challenge") {
		if err := d.pacer.Wait(ctx, 2000, 3000); err != nil {
			return "", err
		}
		if clicked, _ := d.markTarget(ctx, continueSelectors, continueTexts); clicked {
			if err := d.run(ctx, chromedp.Click(targetSelector, chromedp.ByQuery), chromedp.WaitReady("body", chromedp.ByQuery)); err == nil {
				_ = d.pacer.Wait(ctx, 2000, 3000)
				if next, err := d.currentURL(ctx); err == nil {
					location = next
				}
			}
		}

		if IsFeedURL(location) || IsLoggedInURL(location) {
			return models.ConnectionStatusConnected, nil
		}

		if err := d.navigate(ctx, d.feedURL()); err != nil {
			d.logger.Warn().Err(err).Msg("Could not navigate to feed after verification")
		} else if next, err := d.currentURL(ctx); err == nil {
			location = next
		}
	}

	hasError, err := d.exists(ctx, errorSelectors)
	if err != nil {
		return "", err
	}
	hasPin, err := d.exists(ctx, []string{`input[name="pin"]`})
	if err != nil {
		return "", err
	}

	status := ClassifyVerificationOutcome(location, hasError, hasPin)
	d.logger.Info().Str("status", string(status)).Str("url", location).Msg("Verification outcome")
	return status, nil
}

// ValidateSession checks that the browser profile is still signed in
func (d *Driver) ValidateSession(ctx context.Context) (bool, error) {
	if !d.IsRunning() {
		return false, nil
	}
	release, ok := d.acquire(ctx)
	if !ok {
		return false, models.ErrBrowserBusy
	}
	defer release()

	location, err := d.currentURL(ctx)
	if err == nil && (IsFeedURL(location) || IsLoggedInURL(location)) {
		return true, nil
	}

	if err := d.navigate(ctx, d.feedURL()); err != nil {
		d.logger.Warn().Err(err).Msg("Session validation navigation failed")
		return false, nil
	}
	location, err = d.currentURL(ctx)
	if err != nil {
		return false, nil
	}

	valid := IsFeedURL(location) || IsLoggedInURL(location)
	d.logger.Info().Bool("valid", valid).Str("url", location).Msg("Browser session validated")
	return valid, nil
}

// SearchPeople runs a people search in the browser, browsing the results like
// a person before extracting them
func (d *Driver) SearchPeople(ctx context.Context, query string, limit int) ([]models.ContactRecord, error) {
	if !d.IsRunning() {
		return nil, models.ErrBrowserNotRunning
	}
	release, ok := d.acquire(ctx)
	if !ok {
		return nil, models.ErrBrowserBusy
	}
	defer release()

	contacts, err := d.searchPeople(ctx, query)
	if err != nil {
		d.logger.Error().Err(err).Str("query", query).Msg("Browser search failed")
		return nil, fmt.Errorf("%w: search: %v", models.ErrConnection, err)
	}
	if limit > 0 && len(contacts) > limit {
		contacts = contacts[:limit]
	}
	return contacts, nil
}

func (d *Driver) searchPeople(ctx context.Context, query string) ([]models.ContactRecord, error) {
	if err := d.navigate(ctx, d.searchURL(query)); err != nil {
		return nil, err
	}
	if err := d.pacer.Wait(ctx, 3000, 5000); err != nil {
		return nil, err
	}

	pollExpr := fmt.Sprintf(`%s.some(s => document.querySelector(s) !== null)`, jsList(resultsSelectors))
	if err := d.run(ctx, chromedp.Poll(pollExpr, nil, chromedp.WithPollingTimeout(15*time.Second))); err != nil {
		d.logger.Warn().Str("query", query).Msg("No results container found, extracting anyway")
	}

	if err := d.simulateReading(ctx, 1500*time.Millisecond, 3*time.Second); err != nil {
		return nil, err
	}
	for i := d.pacer.Intn(2, 4); i > 0; i-- {
		if err := d.scroll(ctx, 0, false); err != nil {
			return nil, err
		}
		if err := d.simulateReading(ctx, 500*time.Millisecond, 1500*time.Millisecond); err != nil {
			return nil, err
		}
	}
	if err := d.scroll(ctx, d.pacer.Intn(200, 400), true); err != nil {
		return nil, err
	}
	if err := d.pacer.Wait(ctx, 1000, 2000); err != nil {
		return nil, err
	}

	var html string
	if err := d.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, err
	}

	contacts, strategy, err := ExtractContacts(html)
	if err != nil {
		return nil, err
	}

	d.logger.Info().Str("query", query).Str("strategy", strategy).Int("contacts", len(contacts)).Msg("Browser search extracted contacts")
	return contacts, nil
}
