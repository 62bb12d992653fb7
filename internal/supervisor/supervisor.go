package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alvesfc/openbotx/internal/gateway"
	"github.com/alvesfc/openbotx/internal/model"
	"github.com/rs/zerolog/log"
)

// maxRestartBackoff caps the linear backoff applied between a failed run
// loop and the supervisor's next start_gateway attempt.
const maxRestartBackoff = 10 * time.Second

// restartBackoff grows linearly with the restart count already spent on a
// gateway, capped at maxRestartBackoff.
func restartBackoff(restartCount int) time.Duration {
	d := time.Duration(restartCount+1) * time.Second
	if d > maxRestartBackoff {
		return maxRestartBackoff
	}
	return d
}

type entry struct {
	info        model.GatewayInfo
	provider    gateway.Provider
	initialized bool
	cancel      context.CancelFunc
	done        chan struct{}
}

// Supervisor owns every registered gateway's GatewayInfo and live run-task
// handle. Zero value is not usable; build with New.
type Supervisor struct {
	// Dispatch receives every inbound message a gateway's Run loop
	// produces, forwarded unchanged (e.g. to the message bus).
	Dispatch func(model.InboundMessage)
	// AutoRestart enables automatic restart after an unhandled run-loop
	// failure, capped at MaxRestarts per gateway.
	AutoRestart bool
	MaxRestarts int
	// FanOutConcurrency bounds how many gateways StartAll/StopAll touch
	// at once; <= 0 means unbounded.
	FanOutConcurrency int

	mu      sync.Mutex
	entries map[string]*entry
}

// New builds an empty Supervisor.
func New(dispatch func(model.InboundMessage)) *Supervisor {
	return &Supervisor{Dispatch: dispatch, entries: make(map[string]*entry), MaxRestarts: 5}
}

// Register adds a named, not-yet-started provider. Fails if the name is
// already registered.
func (s *Supervisor) Register(name string, provider gateway.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("supervisor: gateway %q already registered", name)
	}
	s.entries[name] = &entry{
		info:     model.GatewayInfo{Name: name, Status: model.GatewayRegistered},
		provider: provider,
	}
	return nil
}

// Info returns a snapshot of one gateway's bookkeeping record.
func (s *Supervisor) Info(name string) (model.GatewayInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return model.GatewayInfo{}, false
	}
	return e.info, true
}

// Names lists every registered gateway name.
func (s *Supervisor) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

// StartGateway transitions a registered|stopped|error|restarting gateway through starting
// to running: initialize (if not already), start, then spawn Run as an
// independent task.
func (s *Supervisor) StartGateway(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("supervisor: gateway %q not registered", name)
	}
	switch e.info.Status {
	case model.GatewayRegistered, model.GatewayStopped, model.GatewayError, model.GatewayRestarting:
	default:
		s.mu.Unlock()
		return fmt.Errorf("supervisor: gateway %q cannot start from status %s", name, e.info.Status)
	}
	e.info.Status = model.GatewayStarting
	s.mu.Unlock()

	if !e.initialized {
		if err := e.provider.Initialize(ctx); err != nil {
			s.setError(name, err)
			return fmt.Errorf("supervisor: initialize %q: %w", name, err)
		}
		e.initialized = true
	}
	if err := e.provider.Start(ctx); err != nil {
		s.setError(name, err)
		return fmt.Errorf("supervisor: start %q: %w", name, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	e.cancel = cancel
	e.done = done
	e.info.Status = model.GatewayRunning
	e.info.StartedAt = time.Now().UTC()
	s.mu.Unlock()

	go s.runTask(name, e, runCtx, done)
	return nil
}

func (s *Supervisor) runTask(name string, e *entry, ctx context.Context, done chan struct{}) {
	defer close(done)

	failed := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("gateway %q run loop panicked: %v", name, r)
			}
		}()
		e.provider.Run(ctx, s.dispatch)
		return nil
	}()

	if failed == nil {
		return
	}

	log.Error().Err(failed).Str("gateway", name).Msg("supervisor_gateway_run_failed")
	s.setError(name, failed)
	s.maybeAutoRestart(name)
}

func (s *Supervisor) dispatch(msg model.InboundMessage) {
	if s.Dispatch != nil {
		s.Dispatch(msg)
	}
}

func (s *Supervisor) setError(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return
	}
	e.info.Status = model.GatewayError
	e.info.LastError = err.Error()
}

func (s *Supervisor) maybeAutoRestart(name string) {
	if !s.AutoRestart {
		return
	}
	s.mu.Lock()
	e, ok := s.entries[name]
	if !ok || e.info.RestartCount >= s.MaxRestarts {
		s.mu.Unlock()
		return
	}
	restartCount := e.info.RestartCount
	s.mu.Unlock()

	go func() {
		time.Sleep(restartBackoff(restartCount))
		s.mu.Lock()
		e, ok := s.entries[name]
		if !ok {
			s.mu.Unlock()
			return
		}
		e.info.RestartCount++
		e.info.Status = model.GatewayRestarting
		s.mu.Unlock()

		if err := s.StartGateway(context.Background(), name); err != nil {
			log.Warn().Err(err).Str("gateway", name).Msg("supervisor_auto_restart_failed")
		}
	}()
}

// StopGateway transitions a running gateway to stopping, calls Stop on the
// provider, cancels the run task, and awaits it up to timeout.
func (s *Supervisor) StopGateway(ctx context.Context, name string, timeout time.Duration) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("supervisor: gateway %q not registered", name)
	}
	if e.info.Status != model.GatewayRunning {
		s.mu.Unlock()
		return nil
	}
	e.info.Status = model.GatewayStopping
	cancel := e.cancel
	done := e.done
	s.mu.Unlock()

	stopErr := e.provider.Stop(ctx)
	if cancel != nil {
		cancel()
	}

	if done != nil {
		select {
		case <-done:
		case <-time.After(timeout):
			log.Warn().Str("gateway", name).Msg("supervisor_stop_timed_out")
		}
	}

	s.mu.Lock()
	e.info.Status = model.GatewayStopped
	e.info.StoppedAt = time.Now().UTC()
	s.mu.Unlock()

	if stopErr != nil {
		return fmt.Errorf("supervisor: stop %q: %w", name, stopErr)
	}
	return nil
}

// RestartGateway stops then starts name, bumping its restart count.
func (s *Supervisor) RestartGateway(ctx context.Context, name string, timeout time.Duration) error {
	if err := s.StopGateway(ctx, name, timeout); err != nil {
		return err
	}
	s.mu.Lock()
	if e, ok := s.entries[name]; ok {
		e.info.RestartCount++
	}
	s.mu.Unlock()
	return s.StartGateway(ctx, name)
}

// StartAll starts every registered gateway, fanning out with bounded
// concurrency, and returns each gateway's outcome.
func (s *Supervisor) StartAll(ctx context.Context) map[string]error {
	return s.fanOut(s.Names(), func(name string) error {
		return s.StartGateway(ctx, name)
	})
}

// StopAll stops every registered gateway, fanning out with bounded
// concurrency, and returns each gateway's outcome.
func (s *Supervisor) StopAll(ctx context.Context, timeout time.Duration) map[string]error {
	return s.fanOut(s.Names(), func(name string) error {
		return s.StopGateway(ctx, name, timeout)
	})
}

func (s *Supervisor) fanOut(names []string, op func(name string) error) map[string]error {
	limit := s.FanOutConcurrency
	if limit <= 0 || limit > len(names) {
		limit = len(names)
	}
	if limit == 0 {
		return map[string]error{}
	}

	sem := make(chan struct{}, limit)
	results := make(map[string]error, len(names))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, name := range names {
		wg.Add(1)
		sem <- struct{}{}
		go func(name string) {
			defer wg.Done()
			defer func() { <-sem }()
			err := op(name)
			mu.Lock()
			results[name] = err
			mu.Unlock()
		}(name)
	}
	wg.Wait()
	return results
}
