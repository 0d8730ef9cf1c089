package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailingest/dto"
	"github.com/customeros/mailingest/interfaces"
	mailerrors "github.com/customeros/mailingest/internal/errors"
	"github.com/customeros/mailingest/internal/logger"
	"github.com/customeros/mailingest/internal/tracing"
)

const (
	defaultConnectTimeout = 30 * time.Second
	fetchTimeout          = 60 * time.Second
	logoutTimeout         = 5 * time.Second
)

type mailboxClient struct {
	log            logger.Logger
	connectTimeout time.Duration
}

func NewMailboxClient(log logger.Logger, connectTimeout time.Duration) interfaces.MailboxClient {
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	return &mailboxClient{log: log, connectTimeout: connectTimeout}
}

// Connect dials and logs in. The returned session owns the connection.
func (m *mailboxClient) Connect(ctx context.Context, config dto.MailboxConfig) (interfaces.MailboxSession, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxClient.Connect")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, config.AccountID)
	span.SetTag("server", config.Host)
	span.SetTag("port", config.Port)
	span.SetTag("tls", config.TLS)

	serverAddr := fmt.Sprintf("%s:%d", config.Host, config.Port)

	timeout := m.connectTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}

	var c *client.Client
	var err error
	if config.TLS {
		tlsConfig := &tls.Config{
			ServerName: config.Host,
		}
		c, err = client.DialWithDialerTLS(dialer, serverAddr, tlsConfig)
	} else {
		c, err = client.DialWithDialer(dialer, serverAddr)
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(mailerrors.ErrMailboxConnection, "dial %s: %v", serverAddr, err)
	}

	c.Timeout = m.connectTimeout
	if err := c.Login(config.Username, config.Password); err != nil {
		_ = c.Logout()
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(mailerrors.ErrMailboxConnection, "login as %s: %v", config.Username, err)
	}
	c.Timeout = 0

	m.log.Infof("[%s] Connected to %s", config.AccountID, serverAddr)
	return &session{client: c, accountID: config.AccountID, log: m.log}, nil
}
