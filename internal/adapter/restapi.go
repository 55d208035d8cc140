package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/caselaw-cli/internal/config"
	"github.com/sells-group/caselaw-cli/internal/model"
	"github.com/sells-group/caselaw-cli/internal/resilience"
)

// RESTAPI talks to a JSON case-law API: token login, query search, per-case
// fetch, and year listings. A per-host courtesy limiter caps request rate
// below whatever the daily budget allows, and a circuit breaker stops the
// adapter from hammering a source that is clearly down.
type RESTAPI struct {
	client  *resty.Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker

	username string
	password string
}

// restSession carries the bearer token issued at login.
type restSession struct {
	token string
}

func (restSession) Adapter() string { return "restapi" }

// errNotFoundStatus marks a 404 from the source; FetchCase translates it
// into a NotFoundError carrying the case id.
var errNotFoundStatus = eris.New("restapi: resource not found")

// NewRESTAPI builds the adapter from config. BaseURL is required.
func NewRESTAPI(cfg config.AdapterConfig) (*RESTAPI, error) {
	if cfg.BaseURL == "" {
		return nil, eris.New("restapi: adapter.base_url not configured")
	}

	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 1
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json")

	return &RESTAPI{
		client:   client,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		breaker:  resilience.NewCircuitBreaker(5, 30*time.Second),
		username: cfg.Username,
		password: cfg.Password,
	}, nil
}

func (a *RESTAPI) Name() string { return "restapi" }

func (a *RESTAPI) Authenticate(ctx context.Context) (Session, error) {
	var body struct {
		Token string `json:"token"`
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"username": a.username, "password": a.password}).
		SetResult(&body).
		Post("/api/login")
	if err != nil {
		// Unreachable host is an auth failure at the job level: the run
		// cannot proceed and retrying the login will not fix credentials
		// or DNS.
		return nil, &resilience.AuthError{Adapter: a.Name(), Err: err}
	}
	if resp.IsError() {
		return nil, &resilience.AuthError{
			Adapter: a.Name(),
			Err:     eris.Errorf("login returned %s", resp.Status()),
		}
	}
	if body.Token == "" {
		return nil, &resilience.AuthError{Adapter: a.Name(), Err: eris.New("login response missing token")}
	}
	return restSession{token: body.Token}, nil
}

func (a *RESTAPI) Search(ctx context.Context, sess Session, query string, opts SearchOptions) ([]model.CaseSummary, error) {
	var body struct {
		Results []model.CaseSummary `json:"results"`
	}

	params := map[string]string{"q": query}
	if opts.Court != "" {
		params["court"] = opts.Court
	}
	if opts.Year > 0 {
		params["year"] = fmt.Sprintf("%d", opts.Year)
	}
	if opts.Limit > 0 {
		params["limit"] = fmt.Sprintf("%d", opts.Limit)
	}

	err := a.do(ctx, sess, "search", func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParams(params).SetResult(&body).Get("/api/search")
	})
	if err != nil {
		return nil, err
	}
	return body.Results, nil
}

// caseDoc is the wire form of a full case. Sources return the judgment body
// either as plain text or as HTML.
type caseDoc struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Citation string   `json:"citation"`
	Court    string   `json:"court"`
	Date     string   `json:"date"`
	Year     int      `json:"year"`
	Judges   []string `json:"judges"`
	Text     string   `json:"text"`
	BodyHTML string   `json:"body_html"`
	Headnote string   `json:"headnote"`
}

func (a *RESTAPI) FetchCase(ctx context.Context, sess Session, caseID string) (*model.CaseRecord, error) {
	var doc caseDoc

	err := a.do(ctx, sess, "fetch_case", func(r *resty.Request) (*resty.Response, error) {
		return r.SetResult(&doc).SetPathParam("id", caseID).Get("/api/cases/{id}")
	})
	if err != nil {
		if errors.Is(err, errNotFoundStatus) {
			return nil, &resilience.NotFoundError{CaseID: caseID}
		}
		return nil, err
	}

	text := doc.Text
	if text == "" && doc.BodyHTML != "" {
		extracted, err := htmlToText(doc.BodyHTML)
		if err != nil {
			return nil, eris.Wrapf(err, "restapi: extract body of %s", caseID)
		}
		text = extracted
	}

	return &model.CaseRecord{
		ID:       doc.ID,
		Title:    doc.Title,
		Citation: doc.Citation,
		Court:    doc.Court,
		Date:     doc.Date,
		Year:     doc.Year,
		Judges:   doc.Judges,
		Text:     text,
		Headnote: doc.Headnote,
		Source:   a.Name(),
	}, nil
}

func (a *RESTAPI) EnumerateByYear(ctx context.Context, sess Session, year int) ([]string, error) {
	var body struct {
		Cases []struct {
			ID string `json:"id"`
		} `json:"cases"`
	}

	err := a.do(ctx, sess, "enumerate_by_year", func(r *resty.Request) (*resty.Response, error) {
		return r.SetResult(&body).SetPathParam("year", fmt.Sprintf("%d", year)).Get("/api/cases/year/{year}")
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(body.Cases))
	for _, c := range body.Cases {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (a *RESTAPI) Close() error {
	// resty keeps idle connections in its transport.
	a.client.GetClient().CloseIdleConnections()
	return nil
}

// do runs one authenticated request through the courtesy limiter and circuit
// breaker, then classifies the outcome into the engine's error taxonomy.
func (a *RESTAPI) do(ctx context.Context, sess Session, op string, fn func(*resty.Request) (*resty.Response, error)) error {
	rs, ok := sess.(restSession)
	if !ok {
		return eris.Errorf("restapi: invalid session for %s (call Authenticate first)", op)
	}

	if err := a.breaker.Allow(); err != nil {
		return resilience.NewTransientError(err, 0)
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}

	req := a.client.R().SetContext(ctx).SetAuthToken(rs.token)
	resp, err := fn(req)
	err = a.classify(op, resp, err)
	a.breaker.Record(err)
	return err
}

// classify maps transport and HTTP-status failures onto the taxonomy the
// engine understands.
func (a *RESTAPI) classify(op string, resp *resty.Response, err error) error {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &resilience.TimeoutError{Op: op, Err: err}
		}
		if resilience.IsTransient(err) {
			return resilience.NewTransientError(err, 0)
		}
		return eris.Wrapf(err, "restapi: %s", op)
	}
	if resp == nil || !resp.IsError() {
		return nil
	}

	status := resp.StatusCode()
	switch {
	case status == 401 || status == 403:
		return resilience.ErrSessionExpired
	case status == 404:
		return eris.Wrapf(errNotFoundStatus, "restapi: %s", op)
	case resilience.IsTransientHTTPStatus(status):
		return resilience.NewTransientError(eris.Errorf("restapi: %s returned %s", op, resp.Status()), status)
	default:
		return eris.Errorf("restapi: %s returned %s", op, resp.Status())
	}
}

// htmlToText flattens an HTML judgment body to readable plain text,
// paragraph per line.
func htmlToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", eris.Wrap(err, "parse html")
	}
	doc.Find("script, style").Remove()

	var paras []string
	doc.Find("p, h1, h2, h3, li, blockquote").Each(func(_ int, sel *goquery.Selection) {
		if t := strings.TrimSpace(sel.Text()); t != "" {
			paras = append(paras, t)
		}
	})
	if len(paras) == 0 {
		return strings.TrimSpace(doc.Text()), nil
	}
	return strings.Join(paras, "\n\n"), nil
}
