// Package notification sends fishing condition alerts through shoutrrr
// service URLs (ntfy, Telegram, Discord, Pushover, SMTP and so on).
package notification

import (
	"context"
	"io"
	"log"
	"regexp"
	"slices"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/trolltrack/trolltrack/internal/errors"
)

// DefaultSendTimeout bounds one delivery to all services.
const DefaultSendTimeout = 15 * time.Second

// Sender delivers a titled message.
type Sender interface {
	Send(ctx context.Context, title, message string) error
}

// ShoutrrrSender fans a message out to every configured service URL.
type ShoutrrrSender struct {
	urls   []string
	sender *router.ServiceRouter
}

// NewShoutrrrSender validates urls and builds one router for all of them.
func NewShoutrrrSender(urls []string, timeout time.Duration) (*ShoutrrrSender, error) {
	if len(urls) == 0 {
		return nil, errors.Newf("at least one notification URL is required").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, errors.New(sanitize(err)).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Context("url_count", len(urls)).
			Build()
	}
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	sender.Timeout = timeout
	sender.SetLogger(log.New(io.Discard, "", 0))

	return &ShoutrrrSender{urls: slices.Clone(urls), sender: sender}, nil
}

// Send delivers to all services and returns the first failure.
func (s *ShoutrrrSender) Send(ctx context.Context, title, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := stypes.Params{}
	if title != "" {
		params.SetTitle(title)
	}
	for _, err := range s.sender.Send(message, &params) {
		if err != nil {
			return errors.New(sanitize(err)).
				Component("notification").
				Category(errors.CategoryConnectivity).
				Build()
		}
	}
	return nil
}

// Service URLs carry tokens and passwords.
var serviceURLPattern = regexp.MustCompile(`[a-z][a-z0-9+.-]*://[^\s"']+`)

func sanitize(err error) error {
	if err == nil {
		return nil
	}
	return errors.NewStd(serviceURLPattern.ReplaceAllStringFunc(err.Error(), redactURL))
}

func redactURL(u string) string {
	scheme, _, _ := strings.Cut(u, "://")
	return scheme + "://[redacted]"
}
