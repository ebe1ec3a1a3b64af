package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/faciam-dev/docform/pkg/metrics"
	"github.com/faciam-dev/docform/pkg/schema"
	sdk "github.com/faciam-dev/docform/sdk"
)

const (
	defaultTimeout = 30 * time.Second
	pathGetDocType = "/api/method/frappe.desk.form.load.getdoctype"
	pathGetList    = "/api/method/frappe.client.get_list"
	pathResource   = "/api/resource/"
	pathLoggedUser = "/api/method/frappe.auth.get_logged_user"
)

// ErrUnauthorized is returned when the server rejects the credentials.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx response. Message is the server's own explanation
// when it sent one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// Client is a document backend together with the company lookup used to
// seed new documents.
type Client interface {
	sdk.Transport
	sdk.CompanyLookup
	Mode() string
}

type httpClient struct {
	base string
	http *resty.Client
}

type Option func(*httpClient)

// WithToken authenticates with an API key pair.
func WithToken(key, secret string) Option {
	return func(c *httpClient) {
		if key != "" {
			c.http.SetHeader("Authorization", "token "+key+":"+secret)
		}
	}
}

// WithTimeout overrides the 30s request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// NewHTTP returns a Client for the server at base.
func NewHTTP(base string, opts ...Option) Client {
	c := &httpClient{
		base: strings.TrimRight(base, "/"),
		http: resty.New().SetTimeout(defaultTimeout).SetHeader("Accept", "application/json"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Mode() string { return "http" }

func resource(docType string, name ...string) string {
	p := pathResource + url.PathEscape(docType)
	for _, n := range name {
		p += "/" + url.PathEscape(n)
	}
	return p
}

func (c *httpClient) GetDocTypeMetadata(ctx context.Context, docType string) (s *schema.Schema, err error) {
	defer func(start time.Time) { metrics.ObserveTransport("metadata", start, err) }(time.Now())
	var out struct {
		Docs []schema.Schema `json:"docs"`
	}
	resp, err := c.http.R().SetContext(ctx).SetQueryParam("doctype", docType).SetResult(&out).Get(c.base + pathGetDocType)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, restyErr(resp)
	}
	if len(out.Docs) == 0 {
		return nil, fmt.Errorf("doctype %s: no metadata in response", docType)
	}
	s = &out.Docs[0]
	if s.DocType == "" {
		s.DocType = docType
	}
	return s, nil
}

type dataEnvelope struct {
	Data map[string]any `json:"data"`
}

func (c *httpClient) GetDocument(ctx context.Context, docType, name string) (r schema.Record, err error) {
	defer func(start time.Time) { metrics.ObserveTransport("get", start, err) }(time.Now())
	var out dataEnvelope
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get(c.base + resource(docType, name))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, restyErr(resp)
	}
	return schema.Record(out.Data), nil
}

func (c *httpClient) CreateDocument(ctx context.Context, _ schema.Identity, docType string, values map[string]any) (r schema.Record, err error) {
	defer func(start time.Time) { metrics.ObserveTransport("create", start, err) }(time.Now())
	var out dataEnvelope
	resp, err := c.http.R().SetContext(ctx).SetBody(values).SetResult(&out).Post(c.base + resource(docType))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, restyErr(resp)
	}
	return schema.Record(out.Data), nil
}

func (c *httpClient) UpdateDocument(ctx context.Context, _ schema.Identity, docType, name string, values map[string]any) (r schema.Record, err error) {
	defer func(start time.Time) { metrics.ObserveTransport("update", start, err) }(time.Now())
	var out dataEnvelope
	resp, err := c.http.R().SetContext(ctx).SetBody(values).SetResult(&out).Put(c.base + resource(docType, name))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, restyErr(resp)
	}
	return schema.Record(out.Data), nil
}

func (c *httpClient) DeleteDocument(ctx context.Context, _ schema.Identity, docType, name string) (err error) {
	defer func(start time.Time) { metrics.ObserveTransport("delete", start, err) }(time.Now())
	resp, err := c.http.R().SetContext(ctx).Delete(c.base + resource(docType, name))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return restyErr(resp)
	}
	return nil
}

// SearchDocuments lists documents through frappe.client.get_list, newest
// first unless q says otherwise.
func (c *httpClient) SearchDocuments(ctx context.Context, docType string, q sdk.SearchQuery) (rs []schema.Record, err error) {
	defer func(start time.Time) { metrics.ObserveTransport("search", start, err) }(time.Now())
	fields := q.Fields
	if len(fields) == 0 {
		fields = DefaultListFields
	}
	filters := make([][]any, 0, len(q.Filters))
	for _, f := range q.Filters {
		filters = append(filters, []any{f.Field, f.Op, f.Value})
	}
	fj, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	filj, err := json.Marshal(filters)
	if err != nil {
		return nil, err
	}
	order := q.OrderBy
	if order == "" {
		order = "modified desc"
	}
	params := map[string]string{
		"doctype":  docType,
		"fields":   string(fj),
		"filters":  string(filj),
		"order_by": order,
	}
	if q.Limit > 0 {
		params["limit_page_length"] = fmt.Sprint(q.Limit)
	}
	var out struct {
		Message []map[string]any `json:"message"`
	}
	resp, err := c.http.R().SetContext(ctx).SetQueryParams(params).SetResult(&out).Get(c.base + pathGetList)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, restyErr(resp)
	}
	rs = make([]schema.Record, len(out.Message))
	for i, m := range out.Message {
		rs[i] = schema.Record(m)
	}
	return rs, nil
}

// CompanyCurrency reads default_currency of a Company document.
func (c *httpClient) CompanyCurrency(ctx context.Context, company string) (string, error) {
	doc, err := c.GetDocument(ctx, "Company", company)
	if err != nil {
		return "", fmt.Errorf("company %s: %w", company, err)
	}
	cur, _ := doc["default_currency"].(string)
	return cur, nil
}

// Ping returns the user the credentials belong to.
func Ping(ctx context.Context, base string, opts ...Option) (string, error) {
	c := NewHTTP(base, opts...).(*httpClient)
	var out struct {
		Message string `json:"message"`
	}
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get(c.base + pathLoggedUser)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", restyErr(resp)
	}
	return out.Message, nil
}

// DefaultListFields are the columns a search returns when none are asked for.
var DefaultListFields = []string{schema.KeyName, schema.KeyModified, schema.KeyOwner}

// ListFields returns the default columns plus every in_list_view field of s.
func ListFields(s *schema.Schema) []string {
	out := append([]string(nil), DefaultListFields...)
	seen := map[string]bool{}
	for _, f := range out {
		seen[f] = true
	}
	for _, f := range s.Ordered() {
		if bool(f.InListView) && f.HasValue() && !seen[f.FieldName] {
			seen[f.FieldName] = true
			out = append(out, f.FieldName)
		}
	}
	return out
}

func restyErr(resp *resty.Response) error {
	return &APIError{Status: resp.StatusCode(), Message: serverMessage(resp.Body())}
}

// serverMessage digs the human readable message out of an error body:
// _server_messages first, then exception, then message.
func serverMessage(body []byte) string {
	var env struct {
		ServerMessages string `json:"_server_messages"`
		Exception      string `json:"exception"`
		Message        any    `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return strings.TrimSpace(string(body))
	}
	if env.ServerMessages != "" {
		var msgs []string
		if json.Unmarshal([]byte(env.ServerMessages), &msgs) == nil && len(msgs) > 0 {
			var m struct {
				Message string `json:"message"`
			}
			if json.Unmarshal([]byte(msgs[0]), &m) == nil && m.Message != "" {
				return m.Message
			}
			return msgs[0]
		}
	}
	if env.Exception != "" {
		return env.Exception
	}
	if s, ok := env.Message.(string); ok {
		return s
	}
	return ""
}
