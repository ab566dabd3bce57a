package notifier

import (
	"fmt"
	"io"
	"os"
)

type StdoutNotifier struct {
	name string
	out  io.Writer
}

func NewStdoutNotifier(name string) (*StdoutNotifier, error) {
	return &StdoutNotifier{name: name, out: os.Stdout}, nil
}

func (sout *StdoutNotifier) Name() string {
	return sout.name
}

func (sout *StdoutNotifier) Send(data NotificationData, templates NotificationTemplates) error {
	msg, err := renderTemplate("stdout_message", templates.forState(data.State), data)
	if err != nil {
		return fmt.Errorf("failed to render stdout template for '%s': %w", data.Title, err)
	}
	_, err = fmt.Fprintln(sout.out, msg)
	return err
}
