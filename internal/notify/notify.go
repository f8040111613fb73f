// Package notify delivers user notifications off the request path.
package notify

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"sync"
	"time"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender performs the actual delivery of one message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// Dispatcher queues messages and sends them from a single worker. When the
// queue is full the message is dropped and logged; callers never block.
type Dispatcher struct {
	sender  Sender
	queue   chan Message
	timeout time.Duration

	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

func NewDispatcher(sender Sender, queueSize int) *Dispatcher {
	if queueSize < 1 {
		queueSize = 64
	}
	d := &Dispatcher{
		sender:  sender,
		queue:   make(chan Message, queueSize),
		timeout: 10 * time.Second,
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Notify enqueues a message for delivery.
func (d *Dispatcher) Notify(to, subject, body string) {
	if strings.TrimSpace(to) == "" {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		log.Printf("[NOTIFY] [ERROR] dispatcher closed, dropping message to %s", to)
		return
	}
	select {
	case d.queue <- Message{To: to, Subject: subject, Body: body}:
	default:
		log.Printf("[NOTIFY] [ERROR] queue full, dropping message to %s", to)
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for m := range d.queue {
		d.deliver(m)
	}
}

func (d *Dispatcher) deliver(m Message) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[NOTIFY] [ERROR] panic recovered: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.sender.Send(ctx, m); err != nil {
		log.Printf("[NOTIFY] [ERROR] send to %s failed: %v", m.To, err)
	}
}

// Close stops accepting messages and waits for queued ones to be sent.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

// LogSender only logs messages. Used when no SMTP relay is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, m Message) error {
	log.Printf("[NOTIFY] [INFO] mail to %s: %s", m.To, m.Subject)
	return nil
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// SMTPSender relays plain text mail through an SMTP server.
type SMTPSender struct {
	cfg      SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, sendMail: smtp.SendMail}
}

func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	return s.sendMail(addr, auth, s.cfg.From, []string{m.To}, buildMessage(s.cfg.From, m))
}

func buildMessage(from string, m Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + m.To + "\r\n")
	b.WriteString("Subject: " + sanitizeHeader(m.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(m.Body)
	b.WriteString("\r\n")
	return []byte(b.String())
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
