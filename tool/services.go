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
	ServicesArgs struct {
		Identificador string `json:"identificador" jsonschema:"required,description=Identificador do cliente: e-mail, CPF, CNPJ, código do cliente ou domínio"`
		Dominio       string `json:"dominio,omitempty" jsonschema:"description=Filtrar por domínio específico"`
		ServicoID     int    `json:"servico_id,omitempty" jsonschema:"description=Filtrar por código de um serviço específico"`
	}

	servicesFunction struct {
		billing whmcs.API
		logger  *mylog.Logger
	}
)

func NewServicesFunction(billing whmcs.API, logger *mylog.Logger) Function {
	return &servicesFunction{billing: billing, logger: logger}
}

func (f *servicesFunction) Name() string { return "consultar_servicos" }

func (f *servicesFunction) Description() string {
	return "Consulta os serviços e produtos contratados de um cliente, com situação e data de renovação."
}

func (f *servicesFunction) Parameters() json.RawMessage {
	return reflectSchema(&ServicesArgs{})
}

func (f *servicesFunction) Execute(ctx context.Context, raw json.RawMessage, cc CallContext) Result {
	var args ServicesArgs
	if err := decodeArgs(raw, &args); err != nil {
		return FailErr("Não consegui entender os dados informados para consultar serviços.", err.Error())
	}
	if strings.TrimSpace(args.Identificador) == "" {
		return Fail("Preciso de um identificador do cliente (e-mail, CPF/CNPJ, código ou domínio) para consultar os serviços.")
	}

	client, err := f.billing.FindClient(ctx, args.Identificador)
	if err != nil {
		f.logger.Error("service lookup failed at client resolution", "error", err, "request_id", cc.RequestID)
		return FailErr("Não consegui consultar o cadastro agora. Tente novamente em instantes.", err.Error())
	}
	if client == nil {
		return Fail("Cliente não encontrado com o identificador informado.")
	}

	services, err := f.billing.GetServices(ctx, whmcs.ServicesParams{
		ClientID:  client.ID,
		Domain:    args.Dominio,
		ServiceID: args.ServicoID,
	})
	if err != nil {
		f.logger.Error("service lookup failed", "error", err, "client_id", client.ID, "request_id", cc.RequestID)
		return FailErr("Não consegui consultar os serviços agora. Tente novamente em instantes.", err.Error())
	}

	if len(services) == 0 {
		return OK(
			fmt.Sprintf("Não encontrei serviços contratados para %s com esses filtros.", client.FullName()),
			map[string]any{
				"client": map[string]any{"id": client.ID, "name": client.FullName()},
				"count":  0,
			},
		)
	}

	active := 0
	var b strings.Builder
	fmt.Fprintf(&b, "Encontrei %d serviço(s) para %s:\n", len(services), client.FullName())
	for _, svc := range services {
		fmt.Fprintf(&b, "\n🖥️ %s", svc.ProductName)
		if svc.Domain != "" {
			fmt.Fprintf(&b, " (%s)", svc.Domain)
		}
		fmt.Fprintf(&b, "\n• Situação: %s\n• Valor: %s\n• Próximo vencimento: %s\n",
			serviceStatusPT(svc.Status), FormatCurrency(svc.Amount), FormatDate(svc.NextDueDate))
		if strings.EqualFold(svc.Status, "Active") {
			active++
		}
	}

	return OK(b.String(), map[string]any{
		"client":   map[string]any{"id": client.ID, "name": client.FullName()},
		"count":    len(services),
		"active":   active,
		"services": services,
	})
}

func serviceStatusPT(status string) string {
	switch strings.ToLower(status) {
	case "active":
		return "Ativo ✅"
	case "suspended":
		return "Suspenso ⚠️"
	case "terminated":
		return "Encerrado"
	case "cancelled":
		return "Cancelado"
	case "pending":
		return "Pendente"
	default:
		return status
	}
}
