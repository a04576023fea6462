package whmcs_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atendai/atendai/cache"
	"github.com/atendai/atendai/internal/mylog"
	"github.com/atendai/atendai/whmcs"
)

func testLogger() *mylog.Logger {
	return mylog.NewLogger("error", "json")
}

func newTestServer(t *testing.T, calls *atomic.Int64, handler func(action string, r *http.Request, w http.ResponseWriter)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "ident", r.PostForm.Get("identifier"))
		require.Equal(t, "secret", r.PostForm.Get("secret"))
		require.Equal(t, "json", r.PostForm.Get("responsetype"))
		if calls != nil {
			calls.Add(1)
		}
		handler(r.PostForm.Get("action"), r, w)
	}))
}

func TestFindClientByEmail(t *testing.T) {
	var calls atomic.Int64
	ts := newTestServer(t, &calls, func(action string, r *http.Request, w http.ResponseWriter) {
		require.Equal(t, "GetClientsDetails", action)
		require.Equal(t, "cliente@email.com", r.PostForm.Get("email"))
		w.Write([]byte(`{"result":"success","client":{"id":"7","firstname":"Maria","lastname":"Souza","email":"cliente@email.com","status":"Active"}}`))
	})
	defer ts.Close()

	c := whmcs.NewClient(ts.URL, "ident", "secret", cache.NewMemory(), testLogger())

	client, err := c.FindClient(context.TODO(), "cliente@email.com")
	require.NoError(t, err)
	require.NotNil(t, client)
	require.Equal(t, 7, client.ID)
	require.Equal(t, "Maria Souza", client.FullName())

	// Second lookup for the same identifier is served from cache.
	client, err = c.FindClient(context.TODO(), "cliente@email.com")
	require.NoError(t, err)
	require.NotNil(t, client)
	require.EqualValues(t, 1, calls.Load())
}

func TestFindClientNotFound(t *testing.T) {
	ts := newTestServer(t, nil, func(action string, r *http.Request, w http.ResponseWriter) {
		w.Write([]byte(`{"result":"error","message":"Client Not Found"}`))
	})
	defer ts.Close()

	c := whmcs.NewClient(ts.URL, "ident", "secret", cache.NewMemory(), testLogger())

	client, err := c.FindClient(context.TODO(), "naoexiste@email.com")
	require.NoError(t, err, "not found must not surface as an error")
	require.Nil(t, client)
}

func TestFindClientBySearchZeroMatches(t *testing.T) {
	ts := newTestServer(t, nil, func(action string, r *http.Request, w http.ResponseWriter) {
		require.Equal(t, "GetClients", action)
		w.Write([]byte(`{"result":"success","numreturned":"0","clients":{"client":[]}}`))
	})
	defer ts.Close()

	c := whmcs.NewClient(ts.URL, "ident", "secret", cache.NewMemory(), testLogger())

	client, err := c.FindClient(context.TODO(), "52998224725")
	require.NoError(t, err)
	require.Nil(t, client)
}

func TestGetInvoicesDefaultsToUnpaid(t *testing.T) {
	ts := newTestServer(t, nil, func(action string, r *http.Request, w http.ResponseWriter) {
		require.Equal(t, "GetInvoices", action)
		require.Equal(t, "Unpaid", r.PostForm.Get("status"))
		require.Equal(t, "7", r.PostForm.Get("userid"))
		w.Write([]byte(`{"result":"success","invoices":{"invoice":[
			{"id":"101","date":"2025-08-01","duedate":"2025-08-10","total":"150.00","balance":"150.00","status":"Unpaid"},
			{"id":"102","date":"2025-08-15","duedate":"2025-08-25","total":"89.90","balance":"89.90","status":"Unpaid"}
		]}}`))
	})
	defer ts.Close()

	c := whmcs.NewClient(ts.URL, "ident", "secret", cache.NewMemory(), testLogger())

	invoices, err := c.GetInvoices(context.TODO(), whmcs.InvoicesParams{ClientID: 7})
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	require.Equal(t, 101, invoices[0].ID)
	require.Equal(t, "150.00", invoices[0].Total)
}

func TestGetServicesPushesFiltersServerSide(t *testing.T) {
	ts := newTestServer(t, nil, func(action string, r *http.Request, w http.ResponseWriter) {
		require.Equal(t, "GetClientsProducts", action)
		require.Equal(t, "example.com", r.PostForm.Get("domain"))
		w.Write([]byte(`{"result":"success","products":{"product":[
			{"id":"3","name":"Hospedagem Pro","domain":"example.com","status":"Active","recurringamount":"49.90","nextduedate":"2025-10-01","billingcycle":"Monthly"}
		]}}`))
	})
	defer ts.Close()

	c := whmcs.NewClient(ts.URL, "ident", "secret", cache.NewMemory(), testLogger())

	services, err := c.GetServices(context.TODO(), whmcs.ServicesParams{ClientID: 7, Domain: "example.com"})
	require.NoError(t, err)
	require.Len(t, services, 1)
	require.Equal(t, "Hospedagem Pro", services[0].ProductName)
	require.Equal(t, "Active", services[0].Status)
}

func TestCreateTicket(t *testing.T) {
	ts := newTestServer(t, nil, func(action string, r *http.Request, w http.ResponseWriter) {
		require.Equal(t, "OpenTicket", action)
		require.Equal(t, "7", r.PostForm.Get("clientid"))
		require.Equal(t, "Site fora do ar", r.PostForm.Get("subject"))
		require.Equal(t, "High", r.PostForm.Get("priority"))
		w.Write([]byte(`{"result":"success","id":555,"tid":"ABC-123"}`))
	})
	defer ts.Close()

	c := whmcs.NewClient(ts.URL, "ident", "secret", cache.NewMemory(), testLogger())

	ticket, err := c.CreateTicket(context.TODO(), whmcs.TicketParams{
		ClientID: 7,
		Subject:  "Site fora do ar",
		Message:  "O site parou de responder",
		Priority: "High",
	})
	require.NoError(t, err)
	require.Equal(t, 555, ticket.ID)
	require.Equal(t, "ABC-123", ticket.TID)
	require.Equal(t, "Open", ticket.Status)
}

func TestUpstreamErrorEnvelope(t *testing.T) {
	ts := newTestServer(t, nil, func(action string, r *http.Request, w http.ResponseWriter) {
		w.Write([]byte(`{"result":"error","message":"Invalid IP"}`))
	})
	defer ts.Close()

	c := whmcs.NewClient(ts.URL, "ident", "secret", cache.NewMemory(), testLogger())

	_, err := c.GetInvoices(context.TODO(), whmcs.InvoicesParams{ClientID: 7})
	require.Error(t, err)
	require.Contains(t, err.Error(), "Invalid IP")
}
