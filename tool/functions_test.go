package tool_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atendai/atendai/internal/mylog"
	"github.com/atendai/atendai/tool"
	"github.com/atendai/atendai/whmcs"
)

// fakeBilling is a scripted whmcs.API double.
type fakeBilling struct {
	client      *whmcs.Client
	findErr     error
	invoices    []whmcs.Invoice
	services    []whmcs.Service
	ticket      *whmcs.TicketResult
	findCalls   int
	lookupCalls int
}

func (f *fakeBilling) FindClient(ctx context.Context, identifier string) (*whmcs.Client, error) {
	f.findCalls++
	return f.client, f.findErr
}

func (f *fakeBilling) GetInvoices(ctx context.Context, params whmcs.InvoicesParams) ([]whmcs.Invoice, error) {
	f.lookupCalls++
	return f.invoices, nil
}

func (f *fakeBilling) GetServices(ctx context.Context, params whmcs.ServicesParams) ([]whmcs.Service, error) {
	f.lookupCalls++
	return f.services, nil
}

func (f *fakeBilling) CreateTicket(ctx context.Context, params whmcs.TicketParams) (*whmcs.TicketResult, error) {
	f.lookupCalls++
	return f.ticket, nil
}

func logger() *mylog.Logger {
	return mylog.NewLogger("error", "json")
}

func TestInvoicesFunctionValidation(t *testing.T) {
	billing := &fakeBilling{}
	fn := tool.NewInvoicesFunction(billing, logger())

	result := fn.Execute(context.TODO(), json.RawMessage(`{}`), tool.CallContext{})
	require.False(t, result.Success)
	require.Contains(t, result.Message, "identificador")
	require.Zero(t, billing.findCalls, "validation failure must never reach the billing client")
}

func TestInvoicesFunctionClientNotFound(t *testing.T) {
	billing := &fakeBilling{client: nil}
	fn := tool.NewInvoicesFunction(billing, logger())

	result := fn.Execute(context.TODO(), json.RawMessage(`{"identificador":"cliente@email.com"}`), tool.CallContext{})
	require.False(t, result.Success)
	require.Contains(t, result.Message, "não encontrado")
}

func TestInvoicesFunctionHappyPath(t *testing.T) {
	billing := &fakeBilling{
		client: &whmcs.Client{ID: 7, FirstName: "Maria", LastName: "Souza"},
		invoices: []whmcs.Invoice{
			{ID: 101, DueDate: "2025-08-10", Total: "150.00", Status: "Unpaid"},
		},
	}
	fn := tool.NewInvoicesFunction(billing, logger())

	result := fn.Execute(context.TODO(), json.RawMessage(`{"identificador":"7"}`), tool.CallContext{})
	require.True(t, result.Success)
	require.Contains(t, result.Message, "101")
	require.Contains(t, result.Message, "R$ 150,00")
	require.Contains(t, result.Message, "10/08/2025")

	data := result.Data.(map[string]any)
	require.Equal(t, 1, data["count"])
}

func TestInvoicesFunctionWeaklyTypedArguments(t *testing.T) {
	billing := &fakeBilling{
		client: &whmcs.Client{ID: 7, FirstName: "Maria"},
	}
	fn := tool.NewInvoicesFunction(billing, logger())

	// The model sometimes sends numbers as strings.
	result := fn.Execute(context.TODO(), json.RawMessage(`{"identificador":"7","limite":"3"}`), tool.CallContext{})
	require.True(t, result.Success)
}

func TestServicesFunctionNoResults(t *testing.T) {
	billing := &fakeBilling{
		client: &whmcs.Client{ID: 7, CompanyName: "Empresa X"},
	}
	fn := tool.NewServicesFunction(billing, logger())

	result := fn.Execute(context.TODO(), json.RawMessage(`{"identificador":"empresa.com.br"}`), tool.CallContext{})
	require.True(t, result.Success)
	require.Contains(t, result.Message, "Empresa X")

	data := result.Data.(map[string]any)
	require.Equal(t, 0, data["count"])
}

func TestServicesFunctionHappyPath(t *testing.T) {
	billing := &fakeBilling{
		client: &whmcs.Client{ID: 7, FirstName: "Maria"},
		services: []whmcs.Service{
			{ID: 3, ProductName: "Hospedagem Pro", Domain: "example.com", Status: "Active", Amount: "49.90", NextDueDate: "2025-10-01"},
		},
	}
	fn := tool.NewServicesFunction(billing, logger())

	result := fn.Execute(context.TODO(), json.RawMessage(`{"identificador":"7"}`), tool.CallContext{})
	require.True(t, result.Success)
	require.Contains(t, result.Message, "Hospedagem Pro")
	require.Contains(t, result.Message, "example.com")

	data := result.Data.(map[string]any)
	require.Equal(t, 1, data["active"])
}

func TestTicketFunctionValidation(t *testing.T) {
	billing := &fakeBilling{}
	fn := tool.NewTicketFunction(billing, 0, logger())

	result := fn.Execute(context.TODO(), json.RawMessage(`{"identificador":"7"}`), tool.CallContext{})
	require.False(t, result.Success)
	require.Contains(t, result.Message, "assunto")
	require.Zero(t, billing.findCalls)
}

func TestTicketFunctionInvalidPriority(t *testing.T) {
	billing := &fakeBilling{}
	fn := tool.NewTicketFunction(billing, 0, logger())

	result := fn.Execute(context.TODO(), json.RawMessage(
		`{"identificador":"7","assunto":"x","mensagem":"y","prioridade":"Urgente"}`), tool.CallContext{})
	require.False(t, result.Success)
	require.Contains(t, result.Message, "Prioridade")
}

func TestTicketFunctionHappyPath(t *testing.T) {
	billing := &fakeBilling{
		client: &whmcs.Client{ID: 7, FirstName: "Maria"},
		ticket: &whmcs.TicketResult{ID: 555, TID: "ABC-123", Status: "Open"},
	}
	fn := tool.NewTicketFunction(billing, 0, logger())

	result := fn.Execute(context.TODO(), json.RawMessage(
		`{"identificador":"7","assunto":"Site fora do ar","mensagem":"parou tudo"}`), tool.CallContext{})
	require.True(t, result.Success)
	require.Contains(t, result.Message, "ABC-123")

	data := result.Data.(map[string]any)
	ticket := data["ticket"].(*whmcs.TicketResult)
	require.Equal(t, "Open", ticket.Status)
}

func TestFunctionSchemasExported(t *testing.T) {
	billing := &fakeBilling{}
	for _, fn := range []tool.Function{
		tool.NewInvoicesFunction(billing, logger()),
		tool.NewServicesFunction(billing, logger()),
		tool.NewTicketFunction(billing, 0, logger()),
	} {
		require.NotEmpty(t, fn.Name())
		require.NotEmpty(t, fn.Description())

		var schema map[string]any
		require.NoError(t, json.Unmarshal(fn.Parameters(), &schema))
		require.Equal(t, "object", schema["type"])
		props := schema["properties"].(map[string]any)
		require.Contains(t, props, "identificador")
	}
}
