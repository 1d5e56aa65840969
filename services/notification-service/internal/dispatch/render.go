package dispatch

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/md-rashed-zaman/salonbook/libs/events"
	"github.com/md-rashed-zaman/salonbook/services/notification-service/internal/email"
)

var pageTmpl = template.Must(template.New("page").Parse(`<!doctype html>
<html><body style="font-family:sans-serif">
<h2>{{.Heading}}</h2>
{{range .Paragraphs}}<p>{{.}}</p>
{{end}}{{if .Rows}}<table cellpadding="4">
{{range .Rows}}<tr><td>{{index . 0}}</td><td align="right">{{index . 1}}</td></tr>
{{end}}</table>
{{end}}<p style="color:#777">{{.Footer}}</p>
</body></html>
`))

type page struct {
	Heading    string
	Paragraphs []string
	Rows       [][2]string
	Footer     string
}

func (p page) message(to, subject string) (email.Message, error) {
	var html bytes.Buffer
	if err := pageTmpl.Execute(&html, p); err != nil {
		return email.Message{}, err
	}
	var text strings.Builder
	text.WriteString(p.Heading + "\n\n")
	for _, para := range p.Paragraphs {
		text.WriteString(para + "\n\n")
	}
	for _, row := range p.Rows {
		fmt.Fprintf(&text, "%-32s %s\n", row[0], row[1])
	}
	if len(p.Rows) > 0 {
		text.WriteString("\n")
	}
	text.WriteString(p.Footer + "\n")
	return email.Message{To: to, Subject: subject, Text: text.String(), HTML: html.String()}, nil
}

func appointmentRows(r events.Reservation) [][2]string {
	return [][2]string{
		{"Service", r.ServiceName},
		{"With", r.StaffName},
		{"Date", r.Date},
		{"Time", r.Time},
		{"Reference", r.ReservationID},
	}
}

func (d *Dispatcher) renderReservationCreated(p events.ReservationCreatedPayload) ([]email.Message, error) {
	customer, err := page{
		Heading: fmt.Sprintf("Thanks, %s!", p.CustomerName),
		Paragraphs: []string{
			"We have received your reservation. We will email you again once the salon confirms it.",
		},
		Rows:   appointmentRows(p.Reservation),
		Footer: d.salonName,
	}.message(p.CustomerEmail, "Reservation received: "+p.ServiceName+" on "+p.Date)
	if err != nil {
		return nil, err
	}
	out := []email.Message{customer}
	if d.salonInbox == "" {
		return out, nil
	}
	rows := append(appointmentRows(p.Reservation), [2]string{"Customer", p.CustomerName + " <" + p.CustomerEmail + ">"})
	staff, err := page{
		Heading:    "New reservation",
		Paragraphs: []string{"A new reservation is waiting for confirmation."},
		Rows:       rows,
		Footer:     d.salonName,
	}.message(d.salonInbox, "New reservation: "+p.Date+" "+p.Time+" with "+p.StaffName)
	if err != nil {
		return nil, err
	}
	return append(out, staff), nil
}

func (d *Dispatcher) renderStatusChanged(p events.ReservationStatusChangedPayload) ([]email.Message, error) {
	var (
		subject string
		pg      page
	)
	switch p.Status {
	case "confirmed":
		subject = "Reservation confirmed: " + p.ServiceName + " on " + p.Date
		pg = page{
			Heading:    "See you soon, " + p.CustomerName,
			Paragraphs: []string{"Your reservation is confirmed."},
		}
	case "cancelled":
		subject = "Reservation cancelled: " + p.ServiceName + " on " + p.Date
		paras := []string{"Your reservation has been cancelled."}
		if p.Reason != "" {
			paras = append(paras, "Reason: "+p.Reason)
		}
		pg = page{Heading: "Hello " + p.CustomerName, Paragraphs: paras}
	default:
		return nil, nil
	}
	pg.Rows = appointmentRows(p.Reservation)
	pg.Footer = d.salonName
	m, err := pg.message(p.CustomerEmail, subject)
	if err != nil {
		return nil, err
	}
	return []email.Message{m}, nil
}

func (d *Dispatcher) renderOrderPaid(p events.OrderPaidPayload) ([]email.Message, error) {
	rows := make([][2]string, 0, len(p.Lines)+4)
	for _, l := range p.Lines {
		rows = append(rows, [2]string{
			fmt.Sprintf("%d x %s", l.Quantity, l.Name),
			money(l.UnitPriceCents*int64(l.Quantity), p.Currency),
		})
	}
	rows = append(rows,
		[2]string{"Subtotal", money(p.SubtotalCents, p.Currency)},
		[2]string{"Shipping", money(p.ShippingCents, p.Currency)},
		[2]string{"Tax", money(p.TaxCents, p.Currency)},
		[2]string{"Total", money(p.TotalCents, p.Currency)},
	)
	m, err := page{
		Heading:    "Thank you for your order, " + p.CustomerName,
		Paragraphs: []string{"We received your payment. Order reference: " + p.OrderID},
		Rows:       rows,
		Footer:     d.salonName,
	}.message(p.CustomerEmail, "Receipt for order "+shortID(p.OrderID))
	if err != nil {
		return nil, err
	}
	return []email.Message{m}, nil
}

func money(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, strings.ToUpper(currency))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
