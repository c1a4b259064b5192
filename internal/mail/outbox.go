package mail

import "github.com/sirupsen/logrus"

// Outbox renders a template and queues the result.
type Outbox struct {
	tpl   *Templates
	queue *Queue
	log   logrus.FieldLogger
	// AdminEmail receives reports and contact form messages.
	AdminEmail string
}

func NewOutbox(tpl *Templates, queue *Queue, adminEmail string, log logrus.FieldLogger) *Outbox {
	return &Outbox{tpl: tpl, queue: queue, AdminEmail: adminEmail, log: log}
}

// Deliver renders template name for to and queues it. Failures are logged;
// mail never fails the action that triggered it.
func (o *Outbox) Deliver(name, to string, data any) {
	o.deliver(name, to, "", data)
}

// DeliverAdmin sends template name to the admin address with an optional
// Reply-To.
func (o *Outbox) DeliverAdmin(name, replyTo string, data any) {
	if o.AdminEmail == "" {
		o.log.WithField("template", name).Warn("admin email not configured")
		return
	}
	o.deliver(name, o.AdminEmail, replyTo, data)
}

func (o *Outbox) deliver(name, to, replyTo string, data any) {
	if to == "" {
		return
	}
	msg, err := o.tpl.Render(name, to, data)
	if err != nil {
		o.log.WithError(err).WithField("template", name).Error("mail render failed")
		return
	}
	msg.ReplyTo = replyTo
	o.queue.Enqueue(msg)
}
