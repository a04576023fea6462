package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/atendai/atendai/internal/mylog"
	"github.com/atendai/atendai/whmcs"
)

type (
	InvoicesArgs struct {
		Identificador string `json:"identificador" jsonschema:"required,description=Identificador do cliente: e-mail, CPF, CNPJ, código do cliente ou domínio"`
		Status        string `json:"status,omitempty" jsonschema:"description=Filtro de status da fatura,enum=Unpaid,enum=Paid,enum=Overdue,enum=Cancelled,enum=all"`
		Limite        int    `json:"limite,omitempty" jsonschema:"description=Quantidade máxima de faturas a retornar (padrão 5)"`
	}

	invoicesFunction struct {
		billing whmcs.API
		logger  *mylog.Logger
	}
)

func NewInvoicesFunction(billing whmcs.API, logger *mylog.Logger) Function {
	return &invoicesFunction{billing: billing, logger: logger}
}

func (f *invoicesFunction) Name() string { return "consultar_faturas" }

func (f *invoicesFunction) Description() string {
	return "Consulta as faturas de um cliente no sistema de cobrança. Por padrão retorna apenas faturas em aberto."
}

func (f *invoicesFunction) Parameters() json.RawMessage {
	return reflectSchema(&InvoicesArgs{})
}

func (f *invoicesFunction) Execute(ctx context.Context, raw json.RawMessage, cc CallContext) Result {
	var args InvoicesArgs
	if err := decodeArgs(raw, &args); err != nil {
		return FailErr("Não consegui entender os dados informados para consultar faturas.", err.Error())
	}
	if strings.TrimSpace(args.Identificador) == "" {
		return Fail("Preciso de um identificador do cliente (e-mail, CPF/CNPJ, código ou domínio) para consultar as faturas.")
	}
	if args.Limite <= 0 || args.Limite > 20 {
		args.Limite = 5
	}

	client, err := f.billing.FindClient(ctx, args.Identificador)
	if err != nil {
		f.logger.Error("invoice lookup failed at client resolution", "error", err, "request_id", cc.RequestID)
		return FailErr("Não consegui consultar o cadastro agora. Tente novamente em instantes.", err.Error())
	}
	if client == nil {
		return Fail("Cliente não encontrado com o identificador informado.")
	}

	invoices, err := f.billing.GetInvoices(ctx, whmcs.InvoicesParams{
		ClientID: client.ID,
		Status:   args.Status,
		Limit:    args.Limite,
	})
	if err != nil {
		f.logger.Error("invoice lookup failed", "error", err, "client_id", client.ID, "request_id", cc.RequestID)
		return FailErr("Não consegui consultar as faturas agora. Tente novamente em instantes.", err.Error())
	}

	status := args.Status
	if status == "" {
		status = "Unpaid"
	}

	if len(invoices) == 0 {
		return OK(
			fmt.Sprintf("Boa notícia, %s! Não encontrei nenhuma fatura %s no seu cadastro. 🎉", client.FullName(), statusPT(status)),
			map[string]any{
				"client": map[string]any{"id": client.ID, "name": client.FullName()},
				"count":  0,
				"status": status,
			},
		)
	}

	var b strings.Builder
	var total float64
	fmt.Fprintf(&b, "Encontrei %d fatura(s) %s para %s:\n", len(invoices), statusPT(status), client.FullName())
	for _, inv := range invoices {
		fmt.Fprintf(&b, "\n📄 Fatura #%d\n• Valor: %s\n• Vencimento: %s\n• Situação: %s\n",
			inv.ID, FormatCurrency(inv.Total), FormatDate(inv.DueDate), statusPT(inv.Status))
		total += parseAmount(inv.Total)
	}
	if len(invoices) > 1 {
		fmt.Fprintf(&b, "\nTotal: %s", FormatCurrency(fmt.Sprintf("%.2f", total)))
	}

	return OK(b.String(), map[string]any{
		"client":   map[string]any{"id": client.ID, "name": client.FullName()},
		"count":    len(invoices),
		"total":    total,
		"status":   status,
		"invoices": invoices,
	})
}

func statusPT(status string) string {
	switch strings.ToLower(status) {
	case "unpaid":
		return "em aberto"
	case "paid":
		return "paga(s)"
	case "overdue":
		return "vencida(s)"
	case "cancelled":
		return "cancelada(s)"
	case "all":
		return "de qualquer situação"
	default:
		return strings.ToLower(status)
	}
}

func parseAmount(v string) float64 {
	var f float64
	_, _ = fmt.Sscanf(strings.TrimSpace(v), "%f", &f)
	return f
}
