package alarm

import (
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/alarmsvc/api"
	"github.com/momentics/alarmsvc/control"
	"github.com/momentics/alarmsvc/internal/clock"
	"github.com/momentics/alarmsvc/internal/concurrency"
	"github.com/momentics/alarmsvc/internal/queue"
	"github.com/momentics/alarmsvc/internal/semaphore"
	"github.com/momentics/alarmsvc/internal/wakelock"
	"github.com/momentics/alarmsvc/internal/worker"
)

// DefaultWakelockThresholdMs is TIMER_INTERVAL_FOR_WAKELOCK_IN_MS: deadlines
// closer than this are armed on the in-process timer (holding a wake lock);
// deadlines farther out go through the kernel wake-alarm callout. Externally
// writable per Service so test suites can shrink it; production code should
// leave it alone.
const DefaultWakelockThresholdMs int64 = 3000

// ConfigKeyWakelockThresholdMs is the ConfigStore key backing the wakelock
// threshold tunable.
const ConfigKeyWakelockThresholdMs = "wakelock_threshold_ms"

// Service is the process-wide alarm engine: the monitor, pending list, wake
// policy, dispatcher, and default worker queue.
// Most callers use the package-level New/NewPeriodic, which lazily
// initialize a single process-wide Service; tests construct their own with
// NewService for isolation and a shrinkable threshold.
type Service struct {
	mu      sync.Mutex // the monitor
	pending *pendingList

	clockSrc  clock.Source
	scheduler *concurrency.Scheduler
	wake      wakelock.Callout
	expSignal *semaphore.Semaphore

	defaultQueue  *queue.Queue
	defaultWorker *worker.Thread
	queues        map[*queue.Queue]*worker.Thread
	alarmsByQueue map[*queue.Queue]map[*Alarm]struct{}
	alarms        map[*Alarm]struct{}

	cfg     *control.ConfigStore
	metrics *control.MetricsRegistry
	probes  *control.DebugProbes

	timerCancelable api.Cancelable
	timerSet        bool

	thresholdMs int64

	dispatcherCPUID int

	dispatchStop chan struct{}
	dispatchDone chan struct{}
	closeOnce    sync.Once
	closed       bool
}

// Option configures a Service at construction time.
type Option func(*Service)

// WithDispatcherAffinity pins the dispatcher goroutine's OS thread to the
// given logical CPU, keeping the time-critical dispatcher off a busy
// scheduler run queue. Best-effort: platforms without affinity support log
// and continue.
func WithDispatcherAffinity(cpuID int) Option {
	return func(s *Service) { s.dispatcherCPUID = cpuID }
}

// WithClock substitutes the monotonic clock source. Test-only; production
// code uses the platform CLOCK_BOOTTIME source.
func WithClock(src clock.Source) Option {
	return func(s *Service) { s.clockSrc = src }
}

// WithWakeCallout substitutes the wake-alarm callout, letting tests observe
// acquire/release balance and long-horizon arm requests without a kernel
// timer.
func WithWakeCallout(c wakelock.Callout) Option {
	return func(s *Service) { s.wake = c }
}

// NewService constructs a fully wired alarm engine: pending list, in-process
// scheduler, wake-lock callout, expiration signal, default worker queue and
// thread, and dispatcher goroutine. The package-level API performs this
// lazily on first use; tests construct Services eagerly for isolation.
func NewService(opts ...Option) *Service {
	s := &Service{
		pending:         newPendingList(),
		clockSrc:        clock.Default,
		scheduler:       concurrency.NewScheduler(),
		wake:            wakelock.New(),
		expSignal:       semaphore.New(1),
		defaultQueue:    queue.New(),
		queues:          make(map[*queue.Queue]*worker.Thread),
		alarmsByQueue:   make(map[*queue.Queue]map[*Alarm]struct{}),
		alarms:          make(map[*Alarm]struct{}),
		cfg:             control.NewConfigStore(),
		metrics:         control.NewMetricsRegistry(),
		probes:          control.NewDebugProbes(),
		thresholdMs:     DefaultWakelockThresholdMs,
		dispatcherCPUID: -1,
		dispatchStop:    make(chan struct{}),
		dispatchDone:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cfg.SetConfig(map[string]any{ConfigKeyWakelockThresholdMs: s.thresholdMs})
	s.cfg.OnReload(s.refreshConfig)
	s.registerProbes()

	s.defaultWorker = worker.NewThread(s.defaultQueue, s.queueHandler, false, 0)
	s.queues[s.defaultQueue] = s.defaultWorker
	s.alarmsByQueue[s.defaultQueue] = make(map[*Alarm]struct{})
	s.defaultWorker.Start()
	go s.dispatchLoop()
	return s
}

// refreshConfig pulls tunables back out of the config store into their hot
// fields. Registered as the store's reload listener, so external SetConfig
// pushes take effect without restarting the dispatcher.
func (s *Service) refreshConfig() {
	if v, ok := s.cfg.GetInt64(ConfigKeyWakelockThresholdMs); ok {
		atomic.StoreInt64(&s.thresholdMs, v)
	}
}

func (s *Service) registerProbes() {
	s.probes.RegisterProbe("alarms.total", func() any {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.alarms)
	})
	s.probes.RegisterProbe("alarms.pending", func() any {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.pending.Len()
	})
	s.probes.RegisterProbe("wakelock.held", func() any {
		return s.wake.HeldCount()
	})
	control.RegisterPlatformProbes(s.probes)
}

var (
	defaultOnce sync.Once
	defaultSvc  atomic.Pointer[Service]
)

// defaultService returns the process-wide Service, constructing it on first
// use behind a one-shot guard.
func defaultService() *Service {
	defaultOnce.Do(func() {
		s := NewService()
		control.RegisterReloadHook(s.refreshConfig)
		defaultSvc.Store(s)
	})
	return defaultSvc.Load()
}

// New allocates a one-shot alarm on the process-wide default Service.
func New(name string) *Alarm { return defaultService().New(name) }

// NewPeriodic allocates a periodic alarm on the process-wide default Service.
func NewPeriodic(name string) *Alarm { return defaultService().NewPeriodic(name) }

// DefaultQueue returns the process-wide default Service's default queue.
func DefaultQueue() *queue.Queue { return defaultService().DefaultQueue() }

// Default returns the process-wide Service itself, for callers that need the
// full API surface (RegisterProcessingQueue, DumpStats, Cleanup, ...).
func Default() *Service { return defaultService() }

// Cleanup tears down the process-wide default Service, if it was ever
// initialized.
func Cleanup() {
	if s := defaultSvc.Load(); s != nil {
		s.Cleanup()
	}
}

// New allocates a one-shot alarm bound to this Service. The alarm exists but
// is not armed until Set/SetOnQueue.
func (s *Service) New(name string) *Alarm {
	a := &Alarm{
		svc:          s,
		name:         name,
		callbackLock: newReentrantMutex(),
		heapIndex:    -1,
	}
	s.mu.Lock()
	s.alarms[a] = struct{}{}
	s.mu.Unlock()
	return a
}

// free implements Alarm.Free: cancel plus removal from the stats registry.
func (s *Service) free(a *Alarm) {
	s.Cancel(a)
	s.mu.Lock()
	delete(s.alarms, a)
	s.mu.Unlock()
}

// NewPeriodic allocates a periodic alarm bound to this Service.
func (s *Service) NewPeriodic(name string) *Alarm {
	a := s.New(name)
	a.isPeriodic = true
	return a
}

// DefaultQueue returns this Service's default worker queue, the target used
// by Set (as opposed to SetOnQueue).
func (s *Service) DefaultQueue() *queue.Queue {
	return s.defaultQueue
}

// SetThresholdMs overrides TIMER_INTERVAL_FOR_WAKELOCK_IN_MS for this
// Service. Intended for tests that need to force the short- or long-horizon
// wake-policy branch deterministically.
func (s *Service) SetThresholdMs(ms int64) {
	atomic.StoreInt64(&s.thresholdMs, ms)
	s.cfg.SetConfig(map[string]any{ConfigKeyWakelockThresholdMs: ms})
}

func (s *Service) thresholdMsValue() int64 {
	return atomic.LoadInt64(&s.thresholdMs)
}

// Set arms a to fire once (or on its first period, if periodic) intervalMs
// from now, invoking cb(data) on this Service's default queue. Equivalent to
// SetOnQueue(a, intervalMs, cb, data, DefaultQueue()).
func (s *Service) Set(a *Alarm, intervalMs int64, cb Callback, data any) error {
	return s.SetOnQueue(a, intervalMs, cb, data, s.defaultQueue)
}

// SetOnQueue arms a to fire intervalMs from now (or on its first period, if
// periodic), invoking cb(data) on q's worker thread. Re-arms a in place if
// it was already scheduled.
func (s *Service) SetOnQueue(a *Alarm, intervalMs int64, cb Callback, data any, q *queue.Queue) error {
	if cb == nil {
		return api.ErrNilCallback
	}
	if q == nil {
		return api.ErrNilQueue
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return api.ErrServiceClosed
	}

	// Sweep stale posted copies off the alarm's *current* queue before
	// switching it to q; scheduleNextInstanceLocked only sweeps the queue
	// recorded on the alarm at that point, which is about to become q.
	if a.queue != nil && a.queue != q {
		a.queue.TryRemoveFromQueue(func(item any) bool {
			qa, ok := item.(*Alarm)
			return ok && qa == a
		})
	}
	s.unbindFromQueueLocked(a)

	now := s.clockSrc.NowMs()
	a.creationTimeMs = now
	a.periodMs = intervalMs
	a.queue = q
	a.callback = cb
	a.data = data
	a.scheduled.set(true)
	a.stats.ScheduledCount++
	a.stats.TotalUpdates++
	a.stats.LastUpdateMs = now

	s.bindToQueueLocked(a, q)
	s.scheduleNextInstanceLocked(a)
	return nil
}

// Cancel removes a from the pending list and its worker queue, then waits
// for any in-flight callback on a to finish before returning: the
// cancel-drains-callback guarantee.
func (s *Service) Cancel(a *Alarm) {
	s.mu.Lock()
	wasFront := s.pending.Front() == a
	s.pending.Remove(a)
	if a.queue != nil {
		a.queue.TryRemoveFromQueue(func(item any) bool {
			qa, ok := item.(*Alarm)
			return ok && qa == a
		})
	}
	s.unbindFromQueueLocked(a)
	a.queue = nil
	a.callback = nil
	a.data = nil
	a.deadlineMs = 0
	a.scheduled.set(false)
	a.stats.CanceledCount++
	a.stats.LastUpdateMs = s.clockSrc.NowMs()
	if wasFront {
		s.rescheduleRootAlarmLocked()
	}
	s.mu.Unlock()

	// Drain any in-flight callback: acquiring and releasing callback_lock
	// blocks until a callback that was already running completes. Safe to
	// call from inside a's own callback because callback_lock is re-entrant.
	a.callbackLock.Lock()
	a.callbackLock.Unlock()
}

// GetRemainingMs returns the milliseconds until a's next deadline, or zero
// if a is not armed or has already passed its deadline.
func (s *Service) GetRemainingMs(a *Alarm) int64 {
	return s.getRemainingMs(a)
}

func (s *Service) getRemainingMs(a *Alarm) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.deadlineMs == 0 {
		return 0
	}
	remaining := a.deadlineMs - s.clockSrc.NowMs()
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// RegisterProcessingQueue binds q to a new dedicated worker thread running
// this Service's queue handler, and starts that thread. pin/cpuID are
// forwarded to the worker for best-effort CPU affinity.
func (s *Service) RegisterProcessingQueue(q *queue.Queue, pin bool, cpuID int) (*worker.Thread, error) {
	if q == nil {
		return nil, api.ErrNilQueue
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, api.ErrServiceClosed
	}
	if _, exists := s.queues[q]; exists {
		return nil, api.ErrAlreadyExists
	}

	t := worker.NewThread(q, s.queueHandler, pin, cpuID)
	s.queues[q] = t
	s.alarmsByQueue[q] = make(map[*Alarm]struct{})
	t.Start()
	return t, nil
}

// UnregisterProcessingQueue stops q's worker thread and cancels every alarm
// currently bound to q.
func (s *Service) UnregisterProcessingQueue(q *queue.Queue) error {
	s.mu.Lock()
	t, ok := s.queues[q]
	if !ok {
		s.mu.Unlock()
		return api.ErrNotFound
	}
	delete(s.queues, q)
	bound := s.alarmsByQueue[q]
	delete(s.alarmsByQueue, q)
	toCancel := make([]*Alarm, 0, len(bound))
	for a := range bound {
		toCancel = append(toCancel, a)
	}
	s.mu.Unlock()

	t.Stop()
	for _, a := range toCancel {
		s.Cancel(a)
	}
	return nil
}

// Cleanup shuts the Service down: stops the dispatcher, drains and stops the
// default worker, releases the wake lock if held, and disarms both timers.
// After Cleanup returns, the Service must not be used again.
func (s *Service) Cleanup() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		close(s.dispatchStop)
		s.expSignal.Post()
		<-s.dispatchDone

		for {
			item, ok := s.defaultQueue.TryDequeue()
			if !ok {
				break
			}
			s.queueHandler(item)
		}
		s.defaultWorker.Stop()

		s.mu.Lock()
		if s.timerSet {
			s.wake.ReleaseWakeLock("alarmsvc")
			s.timerSet = false
		}
		if s.timerCancelable != nil {
			s.scheduler.Cancel(s.timerCancelable)
			s.timerCancelable = nil
		}
		s.pending = newPendingList()
		s.alarms = make(map[*Alarm]struct{})
		s.mu.Unlock()

		s.scheduler.Close()
		if err := s.wake.Close(); err != nil {
			log.Printf("alarm: wake callout close failed: %v", err)
		}
	})
}

// Shutdown implements api.GracefulShutdown over Cleanup.
func (s *Service) Shutdown() error {
	s.Cleanup()
	return nil
}

var (
	_ api.GracefulShutdown = (*Service)(nil)
	_ api.Control          = (*Service)(nil)
	_ api.Debug            = (*Service)(nil)
)

// GetConfig implements api.Control: a snapshot of the dynamic tunables.
func (s *Service) GetConfig() map[string]any {
	return s.cfg.GetSnapshot()
}

// SetConfig implements api.Control: merges cfg into the store and applies
// recognized tunables immediately.
func (s *Service) SetConfig(cfg map[string]any) error {
	s.cfg.SetConfig(cfg)
	s.refreshConfig()
	return nil
}

// Stats implements api.Control: the service-level counters maintained by the
// dispatcher and queue handlers.
func (s *Service) Stats() map[string]any {
	return s.metrics.GetSnapshot()
}

// OnReload implements api.Control.
func (s *Service) OnReload(fn func()) {
	s.cfg.OnReload(fn)
}

// RegisterDebugProbe implements api.Control and api.Debug's RegisterProbe.
func (s *Service) RegisterDebugProbe(name string, fn func() any) {
	s.probes.RegisterProbe(name, fn)
}

// RegisterProbe implements api.Debug.
func (s *Service) RegisterProbe(name string, fn func() any) {
	s.probes.RegisterProbe(name, fn)
}

// DumpState implements api.Debug: the output of every registered probe.
func (s *Service) DumpState() map[string]any {
	return s.probes.DumpState()
}

// DumpStats returns a bugreport-style snapshot of every live alarm's
// counters, sorted by name. Values for an alarm whose callback is currently
// in flight may be mid-update, the same caveat all stats reads carry.
func (s *Service) DumpStats() []AlarmSnapshot {
	s.mu.Lock()
	out := make([]AlarmSnapshot, 0, len(s.alarms))
	for a := range s.alarms {
		out = append(out, AlarmSnapshot{
			Name:       a.name,
			IsPeriodic: a.isPeriodic,
			Scheduled:  a.scheduled.get(),
			DeadlineMs: a.deadlineMs,
			Stats:      a.stats.Snapshot(),
		})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Service) bindToQueueLocked(a *Alarm, q *queue.Queue) {
	set, ok := s.alarmsByQueue[q]
	if !ok {
		set = make(map[*Alarm]struct{})
		s.alarmsByQueue[q] = set
	}
	set[a] = struct{}{}
}

func (s *Service) unbindFromQueueLocked(a *Alarm) {
	if a.queue == nil {
		return
	}
	if set, ok := s.alarmsByQueue[a.queue]; ok {
		delete(set, a)
	}
}

// scheduleNextInstanceLocked computes the alarm's next absolute deadline
// and re-inserts it into the pending list, re-arming the wake policy when
// the front changes. Caller must hold s.mu.
func (s *Service) scheduleNextInstanceLocked(a *Alarm) {
	wasFront := s.pending.Front() == a
	if a.heapIndex >= 0 {
		s.pending.Remove(a)
		if a.queue != nil {
			a.queue.TryRemoveFromQueue(func(item any) bool {
				qa, ok := item.(*Alarm)
				return ok && qa == a
			})
		}
	}

	now := s.clockSrc.NowMs()
	var msIntoPeriod int64
	if a.isPeriodic && a.periodMs > 0 {
		msIntoPeriod = (now - a.creationTimeMs) % a.periodMs
		if msIntoPeriod < 0 {
			msIntoPeriod += a.periodMs
		}
	}
	a.deadlineMs = now + (a.periodMs - msIntoPeriod)
	s.pending.Insert(a)

	if wasFront || s.pending.Front() == a {
		s.rescheduleRootAlarmLocked()
	}
}

// rescheduleRootAlarmLocked re-evaluates the wake policy against the
// pending list's front: short horizons arm the in-process timer under a
// wake lock, long horizons go to the kernel wake alarm. Caller must hold
// s.mu.
func (s *Service) rescheduleRootAlarmLocked() {
	if s.timerCancelable != nil {
		s.scheduler.Cancel(s.timerCancelable)
		s.timerCancelable = nil
	}

	if s.pending.Empty() {
		if s.timerSet {
			if err := s.wake.ReleaseWakeLock("alarmsvc"); err != nil {
				log.Printf("alarm: release_wake_lock failed: %v", err)
			}
			s.timerSet = false
		}
		return
	}

	next := s.pending.Front()
	now := s.clockSrc.NowMs()
	delta := next.deadlineMs - now
	threshold := s.thresholdMsValue()

	if delta < threshold {
		if !s.timerSet {
			if err := s.wake.AcquireWakeLock("alarmsvc"); err != nil {
				log.Printf("alarm: acquire_wake_lock failed: %v", err)
			}
		}
		s.timerSet = true

		delayNanos := delta * int64(time.Millisecond)
		if delayNanos < 0 {
			delayNanos = 0
		}
		cancelable, err := s.scheduler.Schedule(delayNanos, func() { s.expSignal.Post() })
		if err != nil {
			log.Printf("alarm: in-process timer arm failed: %v", err)
		} else {
			s.timerCancelable = cancelable
		}

		// Self-heal: a deadline already at or past now may
		// have elapsed in the time it took to arm the scheduler. Rather
		// than read back the scheduler's internal state, post directly
		// whenever we observe delta <= 0; a double-post is harmless
		// because the dispatcher re-validates the pending list's front
		// against now_ms before firing.
		if delta <= 0 {
			s.expSignal.Post()
		}
	} else {
		if s.timerSet {
			if err := s.wake.ReleaseWakeLock("alarmsvc"); err != nil {
				log.Printf("alarm: release_wake_lock failed: %v", err)
			}
			s.timerSet = false
		}
		if !s.wake.SetWakeAlarm(delta, true, func() { s.expSignal.Post() }) {
			log.Printf("alarm: set_wake_alarm refused for a deadline %dms out", delta)
		}
	}
}
