package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/tranvictor/vestingscope/common"
	"github.com/tranvictor/vestingscope/metrics"
	"github.com/tranvictor/vestingscope/vesting"
)

const DefaultCallTimeout = 15 * time.Second

type Dispatcher struct {
	registry    *Registry
	callTimeout time.Duration
	l           logrus.FieldLogger
	metrics     *metrics.Metrics
}

func NewDispatcher(registry *Registry, callTimeout time.Duration, l logrus.FieldLogger, m *metrics.Metrics) *Dispatcher {
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	return &Dispatcher{
		registry:    registry,
		callTimeout: callTimeout,
		l:           l,
		metrics:     m,
	}
}

func (d *Dispatcher) StrategyFor(contractAddress string) Strategy {
	return d.registry.StrategyFor(contractAddress)
}

// FetchRawEntries runs the strategy registered for contractAddress against
// h. An empty, non nil result means the beneficiary has no vestings.
func (d *Dispatcher) FetchRawEntries(ctx context.Context, h ContractHandle, contractAddress, beneficiary string) ([]vesting.RawVestingEntry, error) {
	s := d.registry.StrategyFor(contractAddress)
	l := d.l.WithFields(logrus.Fields{
		"contract":    contractAddress,
		"beneficiary": beneficiary,
		"strategy":    s.Kind.String(),
	})
	bounded := &timeoutHandle{ContractHandle: h, timeout: d.callTimeout}
	holder := gethcommon.HexToAddress(beneficiary)

	if s.Kind == KindDirectMethod {
		return d.runDirect(ctx, l, s, bounded, holder)
	}
	return d.runSequence(ctx, l, s.Attempts, bounded, holder, s.Kind == KindGenericFallback)
}

func (d *Dispatcher) try(ctx context.Context, l logrus.FieldLogger, a Attempt, h ContractHandle, holder gethcommon.Address) ([]vesting.RawVestingEntry, error) {
	entries, err := a.Fetch(ctx, h, holder)
	switch {
	case errors.Is(err, ErrTimeout):
		d.metrics.StrategyAttempt(a.Kind(), "timeout")
		l.WithField("attempt", a.Name()).WithError(err).Warn("attempt timed out")
	case errors.Is(err, common.ErrMethodNotInABI):
		d.metrics.StrategyAttempt(a.Kind(), "unsupported")
		l.WithField("attempt", a.Name()).Debug("attempt not supported by contract abi")
	case err != nil:
		d.metrics.StrategyAttempt(a.Kind(), "error")
		l.WithField("attempt", a.Name()).WithError(err).Info("attempt failed")
	case len(entries) == 0:
		d.metrics.StrategyAttempt(a.Kind(), "empty")
		l.WithField("attempt", a.Name()).Debug("attempt returned no schedules")
	default:
		d.metrics.StrategyAttempt(a.Kind(), "found")
		l.WithFields(logrus.Fields{
			"attempt":   a.Name(),
			"schedules": len(entries),
		}).Debug("attempt returned schedules")
	}
	return entries, err
}

func (d *Dispatcher) runDirect(ctx context.Context, l logrus.FieldLogger, s Strategy, h ContractHandle, holder gethcommon.Address) ([]vesting.RawVestingEntry, error) {
	if len(s.Attempts) == 0 {
		return nil, fmt.Errorf("direct strategy without a method")
	}
	entries, err := d.try(ctx, l, s.Attempts[0], h, holder)
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		return entries, nil
	}
	timeouts := []error{}
	for _, a := range s.OnEmpty {
		alt, err := d.try(ctx, l, a, h, holder)
		if errors.Is(err, ErrTimeout) {
			timeouts = append(timeouts, fmt.Errorf("%s: %w", a.Name(), err))
			continue
		}
		if err == nil && len(alt) > 0 {
			return alt, nil
		}
	}
	if len(timeouts) > 0 {
		return nil, errors.Join(timeouts...)
	}
	return []vesting.RawVestingEntry{}, nil
}

func (d *Dispatcher) runSequence(ctx context.Context, l logrus.FieldLogger, attempts []Attempt, h ContractHandle, holder gethcommon.Address, giveUpEmpty bool) ([]vesting.RawVestingEntry, error) {
	errs := []error{}
	sawEmpty := false
	timedOut := false
	for _, a := range attempts {
		entries, err := d.try(ctx, l, a, h, holder)
		if err != nil {
			timedOut = timedOut || errors.Is(err, ErrTimeout)
			errs = append(errs, fmt.Errorf("%s: %w", a.Name(), err))
			continue
		}
		if len(entries) == 0 {
			sawEmpty = true
			continue
		}
		return entries, nil
	}
	switch {
	case timedOut:
		return nil, errors.Join(errs...)
	case sawEmpty, len(errs) == 0, giveUpEmpty:
		return []vesting.RawVestingEntry{}, nil
	}
	return nil, fmt.Errorf("every attempt failed: %w", errors.Join(errs...))
}

// timeoutHandle bounds every read of the wrapped handle and reports
// deadline errors as ErrTimeout.
type timeoutHandle struct {
	ContractHandle
	timeout time.Duration
}

func (th *timeoutHandle) wrap(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w after %s: %v", ErrTimeout, th.timeout, err)
	}
	return err
}

func (th *timeoutHandle) Call(ctx context.Context, method string, args ...interface{}) (common.CallResult, error) {
	cctx, cancel := context.WithTimeout(ctx, th.timeout)
	defer cancel()
	res, err := th.ContractHandle.Call(cctx, method, args...)
	return res, th.wrap(cctx, err)
}

func (th *timeoutHandle) CallRaw(ctx context.Context, data []byte) ([]byte, error) {
	cctx, cancel := context.WithTimeout(ctx, th.timeout)
	defer cancel()
	out, err := th.ContractHandle.CallRaw(cctx, data)
	return out, th.wrap(cctx, err)
}
