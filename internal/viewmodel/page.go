package viewmodel

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/logger"
)

// page is the shared plumbing of every page state object.
type page struct {
	title string
	log   logger.Logger

	gate BusyGate
	errs ErrorState

	initialized atomic.Bool

	statusMu      sync.RWMutex
	refreshStatus string
}

func (p *page) setup(title string, log logger.Logger) {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	p.title = title
	p.log = log.Module("viewmodel")
}

// initialize runs load the first time a page appears. A load that did not
// run or failed leaves the page uninitialized so the next appearance
// retries.
func (p *page) initialize(ctx context.Context, load func(context.Context) bool) bool {
	if !p.initialized.CompareAndSwap(false, true) {
		return true
	}
	if !load(ctx) {
		p.initialized.Store(false)
		return false
	}
	return true
}

// Disappear marks the page hidden; the next Initialize loads again.
func (p *page) Disappear() {
	p.initialized.Store(false)
}

// Busy reports whether an operation is running.
func (p *page) Busy() bool {
	return p.gate.IsBusy()
}

// ErrorMessage returns the current user-facing error, or "".
func (p *page) ErrorMessage() string {
	return p.errs.Message()
}

// Err returns the error behind ErrorMessage, if any.
func (p *page) Err() error {
	return p.errs.Err()
}

// Failure returns why the last operation did not complete. Input checks
// that only set a message come back as validation errors.
func (p *page) Failure() error {
	if err := p.errs.Err(); err != nil {
		return err
	}
	msg := p.errs.Message()
	if msg == "" {
		if !p.gate.IsBusy() {
			return nil
		}
		msg = p.title + " is busy, try again"
	}
	return errors.New(errors.NewStd(msg)).
		Component("viewmodel").
		Category(errors.CategoryValidation).
		Context("page", p.title).
		Build()
}

func (p *page) run(ctx context.Context, op func(context.Context) error) bool {
	ok := ExecuteSafely(ctx, &p.gate, &p.errs, op)
	if !ok && p.errs.HasError() {
		p.log.Debug("page operation failed",
			logger.String("page", p.title),
			logger.String("message", p.errs.Message()))
	}
	return ok
}

func (p *page) setRefreshStatus(s string) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.refreshStatus = s
}

func (p *page) status() PageStatus {
	p.statusMu.RLock()
	defer p.statusMu.RUnlock()
	return PageStatus{
		Title:         p.title,
		Busy:          p.gate.IsBusy(),
		Initialized:   p.initialized.Load(),
		Error:         p.errs.Message(),
		RefreshStatus: p.refreshStatus,
	}
}
