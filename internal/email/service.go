package email

import (
	"fmt"
	"net/smtp"
)

// Service sends storefront mail via SMTP.
type Service struct {
	host string
	port string
	from string
}

func NewService(host, port, from string) *Service {
	return &Service{
		host: host,
		port: port,
		from: from,
	}
}

// SendOrderConfirmation sends an order confirmation email.
func (s *Service) SendOrderConfirmation(to, orderNumber, customerName string, total int, items []OrderItem) error {
	subject := fmt.Sprintf("Thank you for your order (%s)", orderNumber)
	body := BuildOrderConfirmationBody(orderNumber, customerName, total, items)
	return s.send(to, subject, body)
}

func (s *Service) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return smtp.SendMail(addr, nil, s.from, []string{to}, []byte(msg))
}
