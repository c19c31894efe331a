package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ridoystarlord/mongrato/config"
	"github.com/ridoystarlord/mongrato/database"
	"github.com/ridoystarlord/mongrato/events"
	"github.com/ridoystarlord/mongrato/ledger"
	"github.com/ridoystarlord/mongrato/runner"
	"github.com/ridoystarlord/mongrato/utils"
)

// session bundles the connections a database command needs.
type session struct {
	gateway   *database.MongoGateway
	ledger    ledger.Ledger
	publisher events.Publisher
}

func (s *session) Close(ctx context.Context) {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			log.Warnw("closing event publisher", "error", err)
		}
	}
	if s.ledger != nil {
		s.ledger.Close(ctx)
	}
	database.CloseGateway(ctx)
}

// openSession connects to MongoDB, the configured ledger and, when
// NATS_URL is set, the event bus.
func openSession(ctx context.Context) (*session, error) {
	gw, err := database.GetGateway(cfg)
	if err != nil {
		return nil, err
	}
	s := &session{gateway: gw}

	s.ledger, err = openLedger(ctx, gw)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}

	s.publisher, err = events.New(cfg.NATSURL)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}
	return s, nil
}

func openLedger(ctx context.Context, gw *database.MongoGateway) (ledger.Ledger, error) {
	switch cfg.Ledger {
	case config.LedgerPostgres:
		l, err := ledger.NewPostgres(ctx, cfg.LedgerURL)
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		return l, nil
	case config.LedgerOff:
		return ledger.Noop{}, nil
	default:
		return ledger.NewMongo(gw.Database(), cfg.LedgerNamespace), nil
	}
}

func (s *session) runner(out io.Writer, concurrency int, force bool) *runner.Runner {
	if concurrency < 1 {
		concurrency = cfg.Concurrency
	}
	return runner.New(s.gateway, cfg.Layout(), runner.Options{
		Ledger:      s.ledger,
		Publisher:   s.publisher,
		Logger:      log,
		Concurrency: concurrency,
		Force:       force,
		Out:         out,
		User:        utils.CurrentUser(),
	})
}

// commandContext is cancelled on interrupt. Each driver call carries the
// configured client timeout on its own.
func commandContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
