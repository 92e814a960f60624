package sheets

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"fritz-bot/internal/domain"
)

const (
	defaultBaseURL = "https://docs.google.com"
	topicsSheet    = "Sheet1"
	wordsSheet     = "Sheet2"
)

// Getter is the subset of paramstore.Getter used to resolve the spreadsheet id.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx responses from the export endpoint.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("sheets: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// IDSource yields the spreadsheet id.
type IDSource func(ctx context.Context) (string, error)

// FixedID serves a configured id.
func FixedID(id string) IDSource {
	return func(context.Context) (string, error) {
		if strings.TrimSpace(id) == "" {
			return "", errors.New("sheets: spreadsheet id is empty")
		}
		return strings.TrimSpace(id), nil
	}
}

// ParamID reads the id from Parameter Store.
func ParamID(getter Getter, name string) IDSource {
	return func(ctx context.Context) (string, error) {
		if getter == nil {
			return "", errors.New("sheets: paramstore getter is nil")
		}
		id, err := getter.GetParameter(ctx, name)
		if err != nil {
			return "", fmt.Errorf("sheets: fetch spreadsheet id: %w", err)
		}
		id = strings.TrimSpace(id)
		if id == "" {
			return "", errors.New("sheets: spreadsheet id is empty")
		}
		return id, nil
	}
}

// Client reads vocabulary from a public Google spreadsheet through its CSV
// export. Sheet1 lists topics; Sheet2 lists words with the columns
// topic, german, english, speech_part.
type Client struct {
	baseURL    string
	httpClient *http.Client
	ids        IDSource

	mu            sync.Mutex
	spreadsheetID string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(ids IDSource, opts ...Option) (*Client, error) {
	if ids == nil {
		return nil, errors.New("sheets: id source must not be nil")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		ids:        ids,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListTopics returns the distinct topics of Sheet1 in sheet order.
func (c *Client) ListTopics(ctx context.Context) ([]string, error) {
	rows, err := c.readSheet(ctx, topicsSheet)
	if err != nil {
		return nil, err
	}
	col, ok := rows.column("topic")
	if !ok {
		return nil, errors.New("sheets: Sheet1 has no topic column")
	}
	return distinct(lo.Map(rows.records, func(r []string, _ int) string { return cell(r, col) })), nil
}

// ListSpeechParts returns the distinct parts of speech used by words of the topic.
func (c *Client) ListSpeechParts(ctx context.Context, topic string) ([]string, error) {
	rows, err := c.readSheet(ctx, wordsSheet)
	if err != nil {
		return nil, err
	}
	cols, err := rows.wordColumns()
	if err != nil {
		return nil, err
	}
	matching := lo.Filter(rows.records, func(r []string, _ int) bool {
		return cell(r, cols.topic) == topic
	})
	return distinct(lo.Map(matching, func(r []string, _ int) string { return cell(r, cols.part) })), nil
}

// ListWords returns the words of one topic and part of speech, all ToPractice.
// Duplicate source texts keep the first row.
func (c *Client) ListWords(ctx context.Context, topic, speechPart string) ([]domain.Word, error) {
	rows, err := c.readSheet(ctx, wordsSheet)
	if err != nil {
		return nil, err
	}
	cols, err := rows.wordColumns()
	if err != nil {
		return nil, err
	}
	words := lo.FilterMap(rows.records, func(r []string, _ int) (domain.Word, bool) {
		if cell(r, cols.topic) != topic || cell(r, cols.part) != speechPart {
			return domain.Word{}, false
		}
		w := domain.Word{
			SourceText:   cell(r, cols.source),
			TargetText:   cell(r, cols.target),
			PartOfSpeech: speechPart,
			Status:       domain.StatusToPractice,
		}
		return w, w.SourceText != "" && w.TargetText != ""
	})
	return lo.UniqBy(words, func(w domain.Word) string { return w.SourceText }), nil
}

func (c *Client) resolveSpreadsheetID(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.spreadsheetID != "" {
		return c.spreadsheetID, nil
	}
	id, err := c.ids(ctx)
	if err != nil {
		return "", err
	}
	c.spreadsheetID = id
	return id, nil
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func exportURL(baseURL, spreadsheetID, sheet string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	q := url.Values{}
	q.Set("tqx", "out:csv")
	q.Set("sheet", sheet)
	return base + "/spreadsheets/d/" + url.PathEscape(spreadsheetID) + "/gviz/tq?" + q.Encode()
}

func (c *Client) readSheet(ctx context.Context, sheet string) (*table, error) {
	id, err := c.resolveSpreadsheetID(ctx)
	if err != nil {
		return nil, err
	}
	u := exportURL(c.baseURL, id, sheet)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("sheets: create request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	raw, err := c.doRequest(req, u)
	if err != nil {
		return nil, fmt.Errorf("sheets: read %s: %w", sheet, err)
	}
	t, err := parseTable(raw)
	if err != nil {
		return nil, fmt.Errorf("sheets: parse %s: %w", sheet, err)
	}
	return t, nil
}

func (c *Client) doRequest(req *http.Request, u string) (io.Reader, error) {
	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{StatusCode: res.StatusCode, URL: u, Body: string(buf)}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return bytes.NewReader(buf), nil
}

type table struct {
	header  map[string]int
	records [][]string
}

type wordColumns struct {
	topic, source, target, part int
}

func parseTable(r io.Reader) (*table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	all, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, errors.New("empty sheet")
	}
	header := make(map[string]int, len(all[0]))
	for i, h := range all[0] {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, seen := header[key]; !seen {
			header[key] = i
		}
	}
	return &table{header: header, records: all[1:]}, nil
}

func (t *table) column(name string) (int, bool) {
	i, ok := t.header[name]
	return i, ok
}

func (t *table) wordColumns() (wordColumns, error) {
	var cols wordColumns
	for name, dst := range map[string]*int{
		"topic":       &cols.topic,
		"german":      &cols.source,
		"english":     &cols.target,
		"speech_part": &cols.part,
	} {
		i, ok := t.column(name)
		if !ok {
			return wordColumns{}, fmt.Errorf("sheets: Sheet2 has no %s column", name)
		}
		*dst = i
	}
	return cols, nil
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func distinct(values []string) []string {
	return lo.Uniq(lo.Compact(values))
}
