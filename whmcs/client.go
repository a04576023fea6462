// Package whmcs is the client for the WHMCS billing API. All calls are
// form-encoded POSTs authenticated with an identifier/secret pair; a
// non-success result envelope becomes an error carrying the action name,
// HTTP status and response body.
package whmcs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/atendai/atendai/cache"
	"github.com/atendai/atendai/errors"
	"github.com/atendai/atendai/internal/mylog"
)

type (
	API interface {
		FindClient(ctx context.Context, identifier string) (*Client, error)
		GetInvoices(ctx context.Context, params InvoicesParams) ([]Invoice, error)
		GetServices(ctx context.Context, params ServicesParams) ([]Service, error)
		CreateTicket(ctx context.Context, params TicketParams) (*TicketResult, error)
	}

	client struct {
		apiURL     string
		identifier string
		secret     string
		http       *http.Client
		store      cache.Store
		logger     *mylog.Logger
	}
)

var _ API = (*client)(nil)

func NewClient(apiURL, identifier, secret string, store cache.Store, logger *mylog.Logger) API {
	return &client{
		apiURL:     apiURL,
		identifier: identifier,
		secret:     secret,
		http:       &http.Client{Timeout: 15 * time.Second},
		store:      store,
		logger:     logger,
	}
}

// flexInt tolerates WHMCS returning numeric fields as either numbers or
// quoted strings depending on the endpoint.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return errors.Wrapf(err, "invalid numeric value %q", s)
	}
	*f = flexInt(n)
	return nil
}

func (c *client) call(ctx context.Context, action string, params url.Values) (json.RawMessage, error) {
	form := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			form.Add(k, v)
		}
	}
	form.Set("action", action)
	form.Set("identifier", c.identifier)
	form.Set("secret", c.secret)
	form.Set("responsetype", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create request for %s", action)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to call whmcs action %s", action)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read whmcs response for %s", action)
	}

	var env struct {
		Result  string `json:"result"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		c.logger.Error("whmcs returned non-json response", "action", action, "status", resp.StatusCode, "body", truncate(string(body), 512))
		return nil, errors.Wrapf(errors.ErrUpstream, "whmcs %s: invalid response (status %d)", action, resp.StatusCode)
	}

	if env.Result != "success" {
		c.logger.Error("whmcs returned error envelope", "action", action, "status", resp.StatusCode, "message", env.Message, "body", truncate(string(body), 512))
		return nil, errors.Wrapf(errors.ErrUpstream, "whmcs %s: %s", action, env.Message)
	}

	return body, nil
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "not found")
}

func (c *client) FindClient(ctx context.Context, identifier string) (*Client, error) {
	key := "whmcs:client:" + strings.ToLower(strings.TrimSpace(identifier))

	return cache.GetOrSetJSON(ctx, c.store, key, cache.ClientTTL, func(ctx context.Context) (*Client, error) {
		return c.findClient(ctx, identifier)
	})
}

func (c *client) findClient(ctx context.Context, identifier string) (*Client, error) {
	kind := DetectIdentifier(identifier)
	c.logger.Debug("resolving client identifier", "identifier", identifier, "kind", kind)

	switch kind {
	case KindEmail:
		return c.clientDetails(ctx, url.Values{"email": {identifier}})
	case KindClientID:
		return c.clientDetails(ctx, url.Values{"clientid": {identifier}})
	case KindCPF, KindCNPJ:
		return c.searchClient(ctx, Digits(identifier))
	case KindDomain, KindUnknown:
		return c.searchClient(ctx, strings.TrimSpace(identifier))
	}
	return nil, nil
}

func (c *client) clientDetails(ctx context.Context, params url.Values) (*Client, error) {
	body, err := c.call(ctx, "GetClientsDetails", params)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var resp struct {
		Client *struct {
			ID          flexInt `json:"id"`
			FirstName   string  `json:"firstname"`
			LastName    string  `json:"lastname"`
			CompanyName string  `json:"companyname"`
			Email       string  `json:"email"`
			Status      string  `json:"status"`
		} `json:"client"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Client == nil {
		return nil, errors.Wrapf(errors.ErrUpstream, "whmcs GetClientsDetails: malformed client payload")
	}

	return &Client{
		ID:          int(resp.Client.ID),
		FirstName:   resp.Client.FirstName,
		LastName:    resp.Client.LastName,
		CompanyName: resp.Client.CompanyName,
		Email:       resp.Client.Email,
		Status:      resp.Client.Status,
	}, nil
}

func (c *client) searchClient(ctx context.Context, term string) (*Client, error) {
	body, err := c.call(ctx, "GetClients", url.Values{
		"search":   {term},
		"limitnum": {"1"},
	})
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var resp struct {
		NumReturned flexInt `json:"numreturned"`
		Clients     struct {
			Client []struct {
				ID          flexInt `json:"id"`
				FirstName   string  `json:"firstname"`
				LastName    string  `json:"lastname"`
				CompanyName string  `json:"companyname"`
				Email       string  `json:"email"`
				Status      string  `json:"status"`
			} `json:"client"`
		} `json:"clients"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrapf(err, "whmcs GetClients: malformed payload")
	}
	if len(resp.Clients.Client) == 0 {
		return nil, nil
	}

	found := resp.Clients.Client[0]
	return &Client{
		ID:          int(found.ID),
		FirstName:   found.FirstName,
		LastName:    found.LastName,
		CompanyName: found.CompanyName,
		Email:       found.Email,
		Status:      found.Status,
	}, nil
}

func (c *client) GetInvoices(ctx context.Context, params InvoicesParams) ([]Invoice, error) {
	if params.Status == "" {
		params.Status = "Unpaid"
	}
	if params.Limit <= 0 {
		params.Limit = 10
	}

	key := fmt.Sprintf("whmcs:invoices:%d:%s:%d:%d", params.ClientID, strings.ToLower(params.Status), params.Limit, params.Offset)
	cached, err := cache.GetOrSetJSON(ctx, c.store, key, cache.LookupTTL, func(ctx context.Context) (*[]Invoice, error) {
		invoices, err := c.getInvoices(ctx, params)
		if err != nil {
			return nil, err
		}
		return &invoices, nil
	})
	if err != nil {
		return nil, err
	}
	if cached == nil {
		return nil, nil
	}
	return *cached, nil
}

func (c *client) getInvoices(ctx context.Context, params InvoicesParams) ([]Invoice, error) {
	query := url.Values{
		"userid":   {strconv.Itoa(params.ClientID)},
		"limitnum": {strconv.Itoa(params.Limit)},
	}
	// "all" means no server-side status filter.
	if !strings.EqualFold(params.Status, "all") {
		query.Set("status", params.Status)
	}
	if params.Offset > 0 {
		query.Set("limitstart", strconv.Itoa(params.Offset))
	}

	body, err := c.call(ctx, "GetInvoices", query)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Invoices struct {
			Invoice []struct {
				ID      flexInt `json:"id"`
				Date    string  `json:"date"`
				DueDate string  `json:"duedate"`
				Total   string  `json:"total"`
				Balance string  `json:"balance"`
				Status  string  `json:"status"`
			} `json:"invoice"`
		} `json:"invoices"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrapf(err, "whmcs GetInvoices: malformed payload")
	}

	invoices := make([]Invoice, 0, len(resp.Invoices.Invoice))
	for _, inv := range resp.Invoices.Invoice {
		invoices = append(invoices, Invoice{
			ID:      int(inv.ID),
			Date:    inv.Date,
			DueDate: inv.DueDate,
			Total:   inv.Total,
			Balance: inv.Balance,
			Status:  inv.Status,
		})
	}
	return invoices, nil
}

func (c *client) GetServices(ctx context.Context, params ServicesParams) ([]Service, error) {
	key := fmt.Sprintf("whmcs:services:%d:%s:%d:%s", params.ClientID, strings.ToLower(params.Domain), params.ServiceID, strings.ToLower(params.Status))
	cached, err := cache.GetOrSetJSON(ctx, c.store, key, cache.LookupTTL, func(ctx context.Context) (*[]Service, error) {
		services, err := c.getServices(ctx, params)
		if err != nil {
			return nil, err
		}
		return &services, nil
	})
	if err != nil {
		return nil, err
	}
	if cached == nil {
		return nil, nil
	}
	return *cached, nil
}

func (c *client) getServices(ctx context.Context, params ServicesParams) ([]Service, error) {
	// Filters the API supports are pushed server-side; only the status
	// filter has to be applied after the fetch.
	query := url.Values{
		"clientid": {strconv.Itoa(params.ClientID)},
	}
	if params.Domain != "" {
		query.Set("domain", params.Domain)
	}
	if params.ServiceID > 0 {
		query.Set("serviceid", strconv.Itoa(params.ServiceID))
	}

	body, err := c.call(ctx, "GetClientsProducts", query)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Products struct {
			Product []struct {
				ID              flexInt `json:"id"`
				Name            string  `json:"name"`
				Domain          string  `json:"domain"`
				Status          string  `json:"status"`
				RecurringAmount string  `json:"recurringamount"`
				NextDueDate     string  `json:"nextduedate"`
				BillingCycle    string  `json:"billingcycle"`
			} `json:"product"`
		} `json:"products"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrapf(err, "whmcs GetClientsProducts: malformed payload")
	}

	services := make([]Service, 0, len(resp.Products.Product))
	for _, p := range resp.Products.Product {
		if params.Status != "" && !strings.EqualFold(params.Status, p.Status) {
			continue
		}
		services = append(services, Service{
			ID:          int(p.ID),
			ProductName: p.Name,
			Domain:      p.Domain,
			Status:      p.Status,
			Amount:      p.RecurringAmount,
			NextDueDate: p.NextDueDate,
			BillingCycle: p.BillingCycle,
		})
	}
	return services, nil
}

func (c *client) CreateTicket(ctx context.Context, params TicketParams) (*TicketResult, error) {
	query := url.Values{
		"clientid": {strconv.Itoa(params.ClientID)},
		"subject":  {params.Subject},
		"message":  {params.Message},
		"priority": {params.Priority},
	}
	if params.DepartmentID > 0 {
		query.Set("deptid", strconv.Itoa(params.DepartmentID))
	}

	body, err := c.call(ctx, "OpenTicket", query)
	if err != nil {
		return nil, err
	}

	var resp struct {
		ID  flexInt `json:"id"`
		TID string  `json:"tid"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrapf(err, "whmcs OpenTicket: malformed payload")
	}

	return &TicketResult{
		ID:     int(resp.ID),
		TID:    resp.TID,
		Status: "Open",
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
