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
	TicketArgs struct {
		Identificador string `json:"identificador" jsonschema:"required,description=Identificador do cliente: e-mail, CPF, CNPJ, código do cliente ou domínio"`
		Assunto       string `json:"assunto" jsonschema:"required,description=Assunto resumido do chamado"`
		Mensagem      string `json:"mensagem" jsonschema:"required,description=Descrição completa do problema relatado pelo cliente"`
		Prioridade    string `json:"prioridade,omitempty" jsonschema:"description=Prioridade do chamado,enum=Low,enum=Medium,enum=High"`
	}

	ticketFunction struct {
		billing      whmcs.API
		departmentID int
		logger       *mylog.Logger
	}
)

func NewTicketFunction(billing whmcs.API, departmentID int, logger *mylog.Logger) Function {
	return &ticketFunction{billing: billing, departmentID: departmentID, logger: logger}
}

func (f *ticketFunction) Name() string { return "abrir_chamado" }

func (f *ticketFunction) Description() string {
	return "Abre um chamado de suporte em nome do cliente quando o assistente não consegue resolver o problema."
}

func (f *ticketFunction) Parameters() json.RawMessage {
	return reflectSchema(&TicketArgs{})
}

func (f *ticketFunction) Execute(ctx context.Context, raw json.RawMessage, cc CallContext) Result {
	var args TicketArgs
	if err := decodeArgs(raw, &args); err != nil {
		return FailErr("Não consegui entender os dados informados para abrir o chamado.", err.Error())
	}

	var missing []string
	if strings.TrimSpace(args.Identificador) == "" {
		missing = append(missing, "identificador do cliente")
	}
	if strings.TrimSpace(args.Assunto) == "" {
		missing = append(missing, "assunto")
	}
	if strings.TrimSpace(args.Mensagem) == "" {
		missing = append(missing, "descrição do problema")
	}
	if len(missing) > 0 {
		return Fail("Para abrir o chamado preciso de: " + strings.Join(missing, ", ") + ".")
	}

	switch args.Prioridade {
	case "Low", "Medium", "High":
	case "":
		args.Prioridade = "Medium"
	default:
		return Fail("Prioridade inválida. Use Low, Medium ou High.")
	}

	client, err := f.billing.FindClient(ctx, args.Identificador)
	if err != nil {
		f.logger.Error("ticket creation failed at client resolution", "error", err, "request_id", cc.RequestID)
		return FailErr("Não consegui consultar o cadastro agora. Tente novamente em instantes.", err.Error())
	}
	if client == nil {
		return Fail("Cliente não encontrado com o identificador informado.")
	}

	ticket, err := f.billing.CreateTicket(ctx, whmcs.TicketParams{
		ClientID:     client.ID,
		Subject:      args.Assunto,
		Message:      args.Mensagem,
		Priority:     args.Prioridade,
		DepartmentID: f.departmentID,
	})
	if err != nil {
		f.logger.Error("ticket creation failed", "error", err, "client_id", client.ID, "request_id", cc.RequestID)
		return FailErr("Não consegui abrir o chamado agora. Tente novamente em instantes.", err.Error())
	}

	reference := ticket.TID
	if reference == "" {
		reference = fmt.Sprintf("%d", ticket.ID)
	}

	return OK(
		fmt.Sprintf("Prontinho, %s! Abri o chamado #%s com prioridade %s. Nossa equipe vai te responder em breve. 🙂",
			client.FullName(), reference, priorityPT(args.Prioridade)),
		map[string]any{
			"client": map[string]any{"id": client.ID, "name": client.FullName()},
			"ticket": ticket,
		},
	)
}

func priorityPT(priority string) string {
	switch priority {
	case "Low":
		return "baixa"
	case "High":
		return "alta"
	default:
		return "média"
	}
}
