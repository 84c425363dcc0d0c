package settlement

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"payment-gateway/internal/config"
	"payment-gateway/internal/metrics"
	"payment-gateway/internal/model"

	"github.com/pkg/errors"
)

var (
	ErrAlreadyScheduled = errors.New("settlement already scheduled")
	ErrShuttingDown     = errors.New("settlement simulator is shutting down")
)

// ApplyFunc receives the decision for a payment once its delay has elapsed.
type ApplyFunc func(ctx context.Context, decision model.Decision) error

// Simulator stands in for the settlement network. Each scheduled payment
// waits its method's delay, draws its outcome and is applied exactly once.
// Parallelism bounds how many outcomes are applied at the same time; delays
// always run concurrently.
type Simulator struct {
	cfg    config.Settlement
	logger *slog.Logger

	mu      sync.Mutex
	rand    *rand.Rand
	seed    uint64
	pending map[string]struct{}
	closed  bool

	sem chan struct{}
	wg  sync.WaitGroup
}

func NewSimulator(cfg config.Settlement, logger *slog.Logger) *Simulator {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	parallelism := cfg.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	return &Simulator{
		cfg:     cfg,
		logger:  logger,
		rand:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		seed:    seed,
		pending: make(map[string]struct{}),
		sem:     make(chan struct{}, parallelism),
	}
}

func (s *Simulator) Seed() uint64 {
	return s.seed
}

// Delay is the processing time a payment of the given method waits.
func (s *Simulator) Delay(method model.Method) time.Duration {
	if s.cfg.TestMode {
		return s.cfg.TestDelay
	}
	if method == model.MethodUPI {
		return s.cfg.UPIDelay
	}
	return s.cfg.CardDelay
}

func (s *Simulator) probability(method model.Method) float64 {
	if method == model.MethodUPI {
		return s.cfg.UPISuccessRate
	}
	return s.cfg.CardSuccessRate
}

// Schedule starts the settlement of payment in the background. The returned
// channel is closed after apply has returned.
func (s *Simulator) Schedule(ctx context.Context, payment *model.Payment, apply ApplyFunc) (<-chan struct{}, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrShuttingDown
	}
	if _, ok := s.pending[payment.ID]; ok {
		s.mu.Unlock()
		return nil, ErrAlreadyScheduled
	}
	s.pending[payment.ID] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	done := make(chan struct{})
	delay := s.Delay(payment.Method)
	start := time.Now()

	time.AfterFunc(delay, func() {
		defer s.wg.Done()
		defer close(done)
		defer s.release(payment.ID)

		s.sem <- struct{}{}
		defer func() { <-s.sem }()

		decision := s.decide(payment, delay)
		s.logger.InfoContext(ctx, "Settlement decided",
			"paymentId", decision.PaymentID,
			"method", decision.Method,
			"success", decision.Success,
			"forced", decision.Forced,
			"probability", decision.Probability,
			"draw", decision.Draw,
			"delay", decision.Delay.String(),
			"seed", decision.Seed)

		if err := apply(ctx, decision); err != nil {
			s.logger.ErrorContext(ctx, "Error applying settlement", "paymentId", payment.ID, "error", err)
		}
		metrics.SettlementDuration(string(payment.Method)).UpdateDuration(start)
	})

	return done, nil
}

func (s *Simulator) decide(payment *model.Payment, delay time.Duration) model.Decision {
	decision := model.Decision{
		PaymentID: payment.ID,
		Method:    payment.Method,
		Delay:     delay,
		Seed:      s.seed,
	}

	if s.cfg.TestMode {
		decision.Forced = true
		decision.Success = s.cfg.TestSuccess
		if decision.Success {
			decision.Probability = 1
		}
		return decision
	}

	s.mu.Lock()
	decision.Draw = s.rand.Float64()
	s.mu.Unlock()

	decision.Probability = s.probability(payment.Method)
	decision.Success = decision.Draw < decision.Probability
	return decision
}

func (s *Simulator) release(paymentID string) {
	s.mu.Lock()
	delete(s.pending, paymentID)
	s.mu.Unlock()
}

// Pending reports how many settlements have not been applied yet.
func (s *Simulator) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Shutdown rejects new work and waits for in-flight settlements to be
// applied or for ctx to end, whichever comes first.
func (s *Simulator) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "settlement drain")
	}
}
