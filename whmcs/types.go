package whmcs

type (
	Client struct {
		ID          int    `json:"id"`
		FirstName   string `json:"firstname"`
		LastName    string `json:"lastname"`
		CompanyName string `json:"companyname"`
		Email       string `json:"email"`
		Status      string `json:"status"`
	}

	Invoice struct {
		ID      int    `json:"id"`
		Date    string `json:"date"`
		DueDate string `json:"duedate"`
		Total   string `json:"total"`
		Balance string `json:"balance"`
		Status  string `json:"status"`
	}

	Service struct {
		ID           int    `json:"id"`
		ProductName  string `json:"name"`
		Domain       string `json:"domain"`
		Status       string `json:"status"`
		Amount       string `json:"recurringamount"`
		NextDueDate  string `json:"nextduedate"`
		BillingCycle string `json:"billingcycle"`
	}

	TicketResult struct {
		ID     int    `json:"id"`
		TID    string `json:"tid"`
		Status string `json:"status"`
	}

	InvoicesParams struct {
		ClientID int
		Status   string
		Limit    int
		Offset   int
	}

	ServicesParams struct {
		ClientID  int
		Domain    string
		ServiceID int
		Status    string
	}

	TicketParams struct {
		ClientID     int
		Subject      string
		Message      string
		Priority     string
		DepartmentID int
	}
)

// FullName renders the name WHMCS shows for the client, preferring the
// person over the company.
func (c *Client) FullName() string {
	name := c.FirstName
	if c.LastName != "" {
		if name != "" {
			name += " "
		}
		name += c.LastName
	}
	if name == "" {
		name = c.CompanyName
	}
	return name
}
