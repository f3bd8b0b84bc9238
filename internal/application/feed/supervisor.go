package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"pricealert/internal/application/port"
	"pricealert/internal/domain"
	"pricealert/internal/infrastructure/metrics"
)

var ErrSupervisorStopped = errors.New("feed supervisor stopped")

const (
	DefaultQueryTimeout = 5 * time.Second
	defaultDialRate     = rate.Limit(1)
	defaultDialBurst    = 3
)

// InstrumentSource lists instruments with at least one active alert.
type InstrumentSource interface {
	InstrumentsWithActiveAlerts(ctx context.Context) ([]domain.Instrument, error)
}

type SupervisorConfig struct {
	Transport port.MarketFeedTransport
	Decoder   port.TickDecoder
	Alerts    port.StorageAlertQuery
	Source    InstrumentSource
	OnTick    TickHandler

	ConnectTimeout time.Duration
	QueryTimeout   time.Duration
	// 每个品种的重连速率，防止抖动时打爆交易所
	DialRate  rate.Limit
	DialBurst int
}

// FeedStatus is a point-in-time view of one tracked connection.
type FeedStatus struct {
	Instrument domain.Instrument `json:"symbol"`
	State      domain.FeedState  `json:"state"`
}

// Supervisor keeps at most one live connection per instrument and decides,
// on every close, whether the instrument still deserves a stream.
type Supervisor struct {
	cfg SupervisorConfig

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	conns    map[domain.Instrument]*Connection
	limiters map[domain.Instrument]*rate.Limiter
	stopped  bool
	cron     *cron.Cron

	wg sync.WaitGroup
}

func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.DialRate == 0 {
		cfg.DialRate = defaultDialRate
	}
	if cfg.DialBurst <= 0 {
		cfg.DialBurst = defaultDialBurst
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		conns:    make(map[domain.Instrument]*Connection),
		limiters: make(map[domain.Instrument]*rate.Limiter),
	}
}

// EnsureSubscribed starts a connection for inst unless a non-Closed one is
// already tracked. Returns true when a new connection was created.
func (s *Supervisor) EnsureSubscribed(ctx context.Context, inst domain.Instrument) (bool, error) {
	if !inst.Valid() {
		return false, fmt.Errorf("%w: %q", domain.ErrUnsupportedInstrument, string(inst))
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false, ErrSupervisorStopped
	}
	if c, ok := s.conns[inst]; ok && c.State() != domain.FeedClosed {
		s.mu.Unlock()
		return false, nil
	}
	c := NewConnection(ConnectionConfig{
		Instrument:     inst,
		Transport:      s.cfg.Transport,
		Decoder:        s.cfg.Decoder,
		ConnectTimeout: s.cfg.ConnectTimeout,
		Limiter:        s.limiterLocked(inst),
		OnTick:         s.cfg.OnTick,
		OnClose:        s.handleClose,
	})
	s.conns[inst] = c
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		c.Run(s.ctx)
	}()
	log.Info().Str("instrument", inst.String()).Msg("feed subscribed")
	return true, nil
}

func (s *Supervisor) limiterLocked(inst domain.Instrument) *rate.Limiter {
	l, ok := s.limiters[inst]
	if !ok {
		l = rate.NewLimiter(s.cfg.DialRate, s.cfg.DialBurst)
		s.limiters[inst] = l
	}
	return l
}

// StartAll subscribes every instrument that currently has active alerts.
func (s *Supervisor) StartAll(ctx context.Context) error {
	return s.subscribeAll(ctx, "startup")
}

// Reconcile re-runs the startup scan. It picks up alerts created by other
// processes that never called EnsureSubscribed here.
func (s *Supervisor) Reconcile(ctx context.Context) error {
	return s.subscribeAll(ctx, "reconcile")
}

func (s *Supervisor) subscribeAll(ctx context.Context, reason string) error {
	if s.cfg.Source == nil {
		return nil
	}
	qctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()
	insts, err := s.cfg.Source.InstrumentsWithActiveAlerts(qctx)
	if err != nil {
		return err
	}
	created := 0
	for _, inst := range insts {
		ok, err := s.EnsureSubscribed(ctx, inst)
		if err != nil {
			if errors.Is(err, ErrSupervisorStopped) {
				return err
			}
			log.Warn().Str("instrument", inst.String()).Err(err).Msg("skip instrument")
			continue
		}
		if ok {
			created++
		}
	}
	log.Info().Str("reason", reason).Int("instruments", len(insts)).Int("created", created).Msg("feeds reconciled")
	return nil
}

// StartReconcile schedules Reconcile with a cron spec ("@every 1m", "*/5 * * * *").
func (s *Supervisor) StartReconcile(spec string) error {
	if spec == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrSupervisorStopped
	}
	if s.cron != nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if err := s.Reconcile(s.ctx); err != nil && !errors.Is(err, ErrSupervisorStopped) {
			log.Error().Err(err).Msg("feed reconcile failed")
		}
	}); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	return nil
}

// Unsubscribe closes the tracked connection. Its close event still runs the
// usual active-alert check, so an instrument with live alerts comes back.
func (s *Supervisor) Unsubscribe(inst domain.Instrument) bool {
	s.mu.Lock()
	c, ok := s.conns[inst]
	s.mu.Unlock()
	if !ok {
		return false
	}
	c.Close()
	return true
}

func (s *Supervisor) handleClose(c *Connection, cause error) {
	inst := c.Instrument()

	s.mu.Lock()
	if cur, ok := s.conns[inst]; ok && cur == c {
		delete(s.conns, inst)
	}
	stopped := s.stopped
	s.mu.Unlock()

	if stopped {
		metrics.RecordClose(inst.String(), "stopped")
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.QueryTimeout)
	defer cancel()
	alerts, err := s.cfg.Alerts.FindActive(ctx, inst)
	if err != nil {
		serr := &domain.StorageError{Op: "find_active", Err: err}
		log.Error().Str("instrument", inst.String()).Err(serr).Msg("close check failed, not reconnecting")
		metrics.RecordClose(inst.String(), "error")
		return
	}
	if len(alerts) == 0 {
		log.Info().Str("instrument", inst.String()).Msg("no active alerts, feed unsubscribed")
		metrics.RecordClose(inst.String(), "unsubscribe")
		return
	}

	log.Info().Str("instrument", inst.String()).Int("active", len(alerts)).Msg("feed reconnecting")
	metrics.RecordClose(inst.String(), "reconnect")
	if _, err := s.EnsureSubscribed(s.ctx, inst); err != nil && !errors.Is(err, ErrSupervisorStopped) {
		log.Error().Str("instrument", inst.String()).Err(err).Msg("reconnect failed")
	}
}

// State reports the tracked connection's state, if any.
func (s *Supervisor) State(inst domain.Instrument) (domain.FeedState, bool) {
	s.mu.Lock()
	c, ok := s.conns[inst]
	s.mu.Unlock()
	if !ok {
		return domain.FeedClosed, false
	}
	return c.State(), true
}

// Instruments returns the tracked instruments, sorted.
func (s *Supervisor) Instruments() []domain.Instrument {
	s.mu.Lock()
	out := make([]domain.Instrument, 0, len(s.conns))
	for inst := range s.conns {
		out = append(out, inst)
	}
	s.mu.Unlock()
	domain.SortInstruments(out)
	return out
}

// Feeds lists tracked connections sorted by instrument.
func (s *Supervisor) Feeds() []FeedStatus {
	s.mu.Lock()
	out := make([]FeedStatus, 0, len(s.conns))
	for inst, c := range s.conns {
		out = append(out, FeedStatus{Instrument: inst, State: c.State()})
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })
	return out
}

// Stop closes every connection without reconnecting and waits for them.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	conns := make([]*Connection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	cr := s.cron
	s.mu.Unlock()

	if cr != nil {
		<-cr.Stop().Done()
	}
	s.cancel()
	for _, c := range conns {
		c.Close()
	}
	s.wg.Wait()
	log.Info().Int("closed", len(conns)).Msg("feed supervisor stopped")
}
