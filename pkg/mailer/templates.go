package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/shopspring/decimal"
)

var istLocation = time.FixedZone("IST", 5*60*60+30*60)

const layoutHTML = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background: #f4f4f4; padding: 24px;">
  <table width="600" align="center" style="background: #ffffff; padding: 24px;">
    <tr><td><h2>{{.Header}}</h2><p style="color: #888888;">{{.Date}}</p></td></tr>
    <tr><td><h3>Hi {{.Name}}!</h3></td></tr>
    {{range .Rows}}<tr><td><p style="font-size: 14px; line-height: 170%;">{{.}}</p></td></tr>
    {{end}}
  </table>
</body>
</html>`

var layout = template.Must(template.New("layout").Parse(layoutHTML))

type layoutData struct {
	Header string
	Date   string
	Name   string
	Rows   []string
}

func render(header, name string, at time.Time, rows ...string) (string, error) {
	var buf bytes.Buffer
	data := layoutData{
		Header: header,
		Date:   at.In(istLocation).Format("2 Jan 2006"),
		Name:   name,
		Rows:   rows,
	}
	if err := layout.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s mail: %w", header, err)
	}
	return buf.String(), nil
}

// OrderConfirmation renders the mail sent once payment is captured and stock is committed.
func OrderConfirmation(to, name, orderToken string, total decimal.Decimal, at time.Time) (Message, error) {
	html, err := render("Order Confirmation", name, at,
		fmt.Sprintf("Your order with order id %s has been confirmed.", orderToken),
		fmt.Sprintf("Total amount: ₹%s", total.StringFixed(2)),
	)
	if err != nil {
		return Message{}, err
	}
	return Message{To: []string{to}, Subject: "Order Confirmation", HTML: html}, nil
}

// RefundConfirmation renders the mail sent when the gateway reports a processed refund.
func RefundConfirmation(to, name, orderToken string, amount decimal.Decimal, at time.Time) (Message, error) {
	html, err := render("Refund Processed", name, at,
		fmt.Sprintf("The refund for your order with order id %s has been processed.", orderToken),
		fmt.Sprintf("Refund amount: ₹%s", amount.StringFixed(2)),
		"It may take 5-7 working days to reflect in your account.",
	)
	if err != nil {
		return Message{}, err
	}
	return Message{To: []string{to}, Subject: "Refund processed successfully", HTML: html}, nil
}

// ShippingStarted renders the mail sent when an order enters the shipping state.
func ShippingStarted(to, name, orderToken string, trackingID *string, at time.Time) (Message, error) {
	rows := []string{fmt.Sprintf("Your order with order id %s has been shipped.", orderToken)}
	if trackingID != nil && *trackingID != "" {
		rows = append(rows, fmt.Sprintf("Tracking id: %s", *trackingID))
	}
	html, err := render("Shipping Started", name, at, rows...)
	if err != nil {
		return Message{}, err
	}
	return Message{To: []string{to}, Subject: "Shipping Started", HTML: html}, nil
}

// OperatorAlert renders a plain alert for the store operator.
func OperatorAlert(to, subject string, at time.Time, rows ...string) (Message, error) {
	html, err := render(subject, "operator", at, rows...)
	if err != nil {
		return Message{}, err
	}
	return Message{To: []string{to}, Subject: "[ALERT] " + subject, HTML: html}, nil
}
