// Package kernel is the runtime core: it owns the service registry, module
// and driver lifecycles, and the sequential event dispatch loop.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"memebot/pkg/memebot"
)

// moduleRecord tracks one registered module and the handler names bound for it.
type moduleRecord struct {
	name   string
	module memebot.Module
}

// handlerBinding is one routed handler owned by a module.
type handlerBinding struct {
	moduleName string
	spec       memebot.HandlerSpec
}

// commandRegistration records command ownership for the catalog and routing.
type commandRegistration struct {
	moduleName string
	spec       memebot.CommandSpec
}

// Kernel orchestrates modules, drivers, and event dispatch.
//
// Events from every driver funnel into one queue consumed by a single
// dispatch goroutine, so handlers run strictly one at a time. Registry and
// ledger mutations therefore never race and need no locking of their own.
type Kernel struct {
	cfg config

	services *ServiceRegistry

	mu              sync.RWMutex
	modules         map[string]*moduleRecord
	moduleOrder     []string
	commands        map[string]commandRegistration
	commandHandlers map[string]*handlerBinding
	kindHandlers    map[memebot.EventKind][]*handlerBinding
	fallback        *handlerBinding
	drivers         map[string]memebot.Driver
	driverOrder     []string

	queue chan *memebot.Event

	runMu   sync.Mutex
	running bool
}

// New creates a new kernel runtime.
func New(options ...Option) *Kernel {
	cfg := defaultConfig()
	for _, option := range options {
		option(&cfg)
	}

	kernelRuntime := &Kernel{
		cfg:             cfg,
		services:        NewServiceRegistry(),
		modules:         make(map[string]*moduleRecord),
		moduleOrder:     make([]string, 0),
		commands:        make(map[string]commandRegistration),
		commandHandlers: make(map[string]*handlerBinding),
		kindHandlers:    make(map[memebot.EventKind][]*handlerBinding),
		drivers:         make(map[string]memebot.Driver),
		driverOrder:     make([]string, 0),
		queue:           make(chan *memebot.Event, cfg.queueSize),
	}
	if err := kernelRuntime.services.Register(
		memebot.ServiceCommandCatalog,
		&kernelCommandCatalog{kernel: kernelRuntime},
	); err != nil {
		cfg.onAsyncError(context.Background(), "register command catalog service", err)
	}

	return kernelRuntime
}

// Services exposes the kernel service registry.
func (k *Kernel) Services() memebot.ServiceRegistry {
	return k.services
}

// RegisterService registers a runtime service singleton.
func (k *Kernel) RegisterService(name string, service any) error {
	if err := k.services.Register(name, service); err != nil {
		return fmt.Errorf("register service %s: %w", name, err)
	}

	return nil
}

// RegisterModule registers a lifecycle-aware module, runs its registration
// hook, and wires its declared handlers into the dispatch tables.
func (k *Kernel) RegisterModule(ctx context.Context, module memebot.Module) error {
	if module == nil {
		return fmt.Errorf("register module: nil module")
	}
	name := module.Name()
	if name == "" {
		return fmt.Errorf("register module: empty module name")
	}
	moduleSpec := module.Spec()
	if err := validateModuleSpec(moduleSpec); err != nil {
		return fmt.Errorf("register module %s: %w", name, err)
	}

	record := &moduleRecord{name: name, module: module}

	k.mu.Lock()
	if _, exists := k.modules[name]; exists {
		k.mu.Unlock()
		return fmt.Errorf("register module %s: %w", name, memebot.ErrModuleAlreadyRegistered)
	}
	k.modules[name] = record
	k.moduleOrder = append(k.moduleOrder, name)
	k.mu.Unlock()

	if err := k.bindModuleSpec(name, moduleSpec); err != nil {
		k.rollbackModuleRegistration(name)
		return fmt.Errorf("register module %s: %w", name, err)
	}

	hookCtx, cancel := context.WithTimeout(ctx, k.cfg.moduleHookTimeout)
	defer cancel()

	runtime := &moduleRuntime{services: k.services}
	if err := runSafely("module "+name+" OnRegister", func() error {
		return module.OnRegister(hookCtx, runtime)
	}); err != nil {
		k.rollbackModuleRegistration(name)
		return fmt.Errorf("register module %s: %w", name, err)
	}

	return nil
}

// RegisterDriver registers a platform driver.
func (k *Kernel) RegisterDriver(driver memebot.Driver) error {
	if driver == nil {
		return fmt.Errorf("register driver: nil driver")
	}
	name := driver.Name()
	if name == "" {
		return fmt.Errorf("register driver: empty name")
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if _, exists := k.drivers[name]; exists {
		return fmt.Errorf("register driver %s: %w", name, memebot.ErrDriverAlreadyRegistered)
	}

	k.drivers[name] = driver
	k.driverOrder = append(k.driverOrder, name)

	return nil
}

// Run starts modules, runs drivers and the dispatch loop, and blocks until
// cancellation or fatal driver error.
func (k *Kernel) Run(ctx context.Context) error {
	if err := k.startRun(); err != nil {
		return err
	}
	defer k.finishRun()

	if err := k.startModules(ctx); err != nil {
		return err
	}

	runCtx, runCancel := context.WithCancel(ctx)

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		k.dispatchLoop(runCtx)
	}()

	driverErr, waitDrivers := k.startDrivers(runCtx)

	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case err := <-driverErr:
		runErr = err
	}

	runCancel()
	waitDrivers()
	<-dispatchDone

	shutdownErr := k.shutdownAll(ctx)

	if isContextCancellation(runErr) {
		runErr = nil
	}
	if runErr != nil && shutdownErr != nil {
		return errors.Join(runErr, shutdownErr)
	}
	if runErr != nil {
		return runErr
	}

	return shutdownErr
}

// startRun serializes Run invocations and rejects concurrent starts.
func (k *Kernel) startRun() error {
	k.runMu.Lock()
	defer k.runMu.Unlock()

	if k.running {
		return fmt.Errorf("kernel run: already running")
	}
	k.running = true

	return nil
}

// finishRun releases the single-run guard set by startRun.
func (k *Kernel) finishRun() {
	k.runMu.Lock()
	k.running = false
	k.runMu.Unlock()
}

// dispatchLoop consumes queued events one at a time until cancellation. It
// drains events already queued at cancellation so accepted commands are not
// silently dropped.
func (k *Kernel) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			drainCtx := context.WithoutCancel(ctx)
			for {
				select {
				case event := <-k.queue:
					k.dispatch(drainCtx, event)
				default:
					return
				}
			}
		case event := <-k.queue:
			k.dispatch(ctx, event)
		}
	}
}

// dispatch validates and routes one event to its handler.
func (k *Kernel) dispatch(ctx context.Context, event *memebot.Event) {
	if err := event.Validate(); err != nil {
		k.cfg.onAsyncError(ctx, "dispatch", err)
		return
	}

	binding := k.route(event)
	if binding == nil {
		k.cfg.logger.DebugContext(ctx, "no handler for event", "kind", event.Kind)
		return
	}

	scope := fmt.Sprintf("module %s handler %s", binding.moduleName, binding.spec.Name)
	handlerCtx, cancel := context.WithTimeout(ctx, k.cfg.handlerTimeout)
	err := runSafely(scope, func() error {
		return binding.spec.Handler(handlerCtx, event)
	})
	cancel()
	if err == nil {
		return
	}

	k.cfg.onAsyncError(ctx, scope, err)
	if isPanic(err) && k.cfg.notifier != nil {
		alertCtx, alertCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		if notifyErr := k.cfg.notifier.Notify(alertCtx, "memebot handler panic", err.Error()); notifyErr != nil {
			k.cfg.onAsyncError(ctx, "notify panic", notifyErr)
		}
		alertCancel()
	}
}

// route selects the handler for an event: command events match their named
// handler or fall back to the unresolved-command handler, other kinds match
// the first handler registered for the kind.
func (k *Kernel) route(event *memebot.Event) *handlerBinding {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if event.Kind == memebot.EventKindCommandReceived {
		if binding, exists := k.commandHandlers[strings.ToLower(event.Command.Name)]; exists {
			return binding
		}
		return k.fallback
	}

	bindings := k.kindHandlers[event.Kind]
	if len(bindings) == 0 {
		return nil
	}

	return bindings[0]
}

// Sink returns the event sink drivers publish into.
func (k *Kernel) Sink() memebot.EventSink {
	return &kernelSink{kernel: k}
}

type kernelSink struct {
	kernel *Kernel
}

// Publish validates the event and enqueues it for sequential dispatch. It
// blocks while the queue is full so inbound pressure backs up into the
// driver instead of dropping commands.
func (s *kernelSink) Publish(ctx context.Context, event *memebot.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}

	select {
	case s.kernel.queue <- event:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish event: %w", ctx.Err())
	}
}

// bindModuleSpec wires a validated module spec into the dispatch tables.
func (k *Kernel) bindModuleSpec(moduleName string, spec memebot.ModuleSpec) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, command := range spec.Commands {
		key := strings.ToLower(command.Name)
		if owner, exists := k.commands[key]; exists {
			return fmt.Errorf("command %s already owned by module %s", command.Name, owner.moduleName)
		}
		k.commands[key] = commandRegistration{moduleName: moduleName, spec: command}
	}

	for idx := range spec.Handlers {
		handler := spec.Handlers[idx]
		if handler.Name == "" {
			handler.Name = fmt.Sprintf("%s-handler-%d", moduleName, idx+1)
		}
		binding := &handlerBinding{moduleName: moduleName, spec: handler}

		for _, commandName := range handler.Commands {
			key := strings.ToLower(commandName)
			if existing, exists := k.commandHandlers[key]; exists {
				return fmt.Errorf("command %s already handled by module %s", commandName, existing.moduleName)
			}
			k.commandHandlers[key] = binding
		}
		if handler.Fallback {
			if k.fallback != nil {
				return fmt.Errorf("fallback handler already owned by module %s", k.fallback.moduleName)
			}
			k.fallback = binding
		}
		for _, kind := range handler.Kinds {
			k.kindHandlers[kind] = append(k.kindHandlers[kind], binding)
		}
	}

	return nil
}

// rollbackModuleRegistration removes a partially registered module after a
// bind or OnRegister failure.
func (k *Kernel) rollbackModuleRegistration(name string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	delete(k.modules, name)
	k.moduleOrder = removeOrderedName(k.moduleOrder, name)

	for key, registration := range k.commands {
		if registration.moduleName == name {
			delete(k.commands, key)
		}
	}
	for key, binding := range k.commandHandlers {
		if binding.moduleName == name {
			delete(k.commandHandlers, key)
		}
	}
	if k.fallback != nil && k.fallback.moduleName == name {
		k.fallback = nil
	}
	for kind, bindings := range k.kindHandlers {
		kept := bindings[:0]
		for _, binding := range bindings {
			if binding.moduleName != name {
				kept = append(kept, binding)
			}
		}
		if len(kept) == 0 {
			delete(k.kindHandlers, kind)
			continue
		}
		k.kindHandlers[kind] = kept
	}
}

// startModules invokes OnStart in registration order with per-module timeouts.
func (k *Kernel) startModules(ctx context.Context) error {
	k.mu.RLock()
	order := append([]string(nil), k.moduleOrder...)
	modules := make(map[string]*moduleRecord, len(k.modules))
	for name, module := range k.modules {
		modules[name] = module
	}
	k.mu.RUnlock()

	for _, name := range order {
		record, exists := modules[name]
		if !exists {
			continue
		}
		hookCtx, cancel := context.WithTimeout(ctx, k.cfg.moduleHookTimeout)
		err := runSafely("module "+name+" OnStart", func() error {
			return record.module.OnStart(hookCtx)
		})
		cancel()
		if err != nil {
			return fmt.Errorf("start module %s: %w", name, err)
		}
	}

	return nil
}

// startDrivers runs all registered drivers concurrently and returns:
// - an error channel delivering the first fatal driver error, and
// - a wait function that blocks for driver completion up to shutdown timeout.
func (k *Kernel) startDrivers(ctx context.Context) (<-chan error, func()) {
	errChannel := make(chan error, 1)
	done := make(chan struct{})
	workerWG := &sync.WaitGroup{}

	k.mu.RLock()
	order := append([]string(nil), k.driverOrder...)
	drivers := make(map[string]memebot.Driver, len(k.drivers))
	for name, driver := range k.drivers {
		drivers[name] = driver
	}
	k.mu.RUnlock()

	sink := k.Sink()

	for _, name := range order {
		driver := drivers[name]
		if driver == nil {
			continue
		}

		workerWG.Add(1)
		go func(driverName string, adapter memebot.Driver) {
			defer workerWG.Done()
			err := runSafely("driver "+driverName+" Start", func() error {
				return adapter.Start(ctx, sink)
			})
			if err == nil || isContextCancellation(err) {
				return
			}
			select {
			case errChannel <- fmt.Errorf("run driver %s: %w", driverName, err):
			default:
			}
		}(name, driver)
	}

	go func() {
		workerWG.Wait()
		close(done)
	}()

	wait := func() {
		select {
		case <-done:
		case <-time.After(k.cfg.shutdownTimeout):
		}
	}

	go func() {
		<-done
		select {
		case errChannel <- context.Canceled:
		default:
		}
	}()

	return errChannel, wait
}

// shutdownAll tears down drivers then modules in a bounded timeout window.
// It uses WithoutCancel to ensure cleanup still runs after parent cancellation.
func (k *Kernel) shutdownAll(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), k.cfg.shutdownTimeout)
	defer cancel()

	var shutdownErr error
	if err := k.shutdownDrivers(shutdownCtx); err != nil {
		shutdownErr = errors.Join(shutdownErr, err)
	}
	if err := k.shutdownModules(shutdownCtx); err != nil {
		shutdownErr = errors.Join(shutdownErr, err)
	}

	if shutdownErr != nil {
		return fmt.Errorf("kernel shutdown: %w", shutdownErr)
	}

	return nil
}

// shutdownDrivers executes driver Shutdown in reverse registration order.
func (k *Kernel) shutdownDrivers(ctx context.Context) error {
	k.mu.RLock()
	order := append([]string(nil), k.driverOrder...)
	drivers := make(map[string]memebot.Driver, len(k.drivers))
	for name, driver := range k.drivers {
		drivers[name] = driver
	}
	k.mu.RUnlock()

	var shutdownErr error
	for idx := len(order) - 1; idx >= 0; idx-- {
		name := order[idx]
		driver := drivers[name]
		if driver == nil {
			continue
		}
		err := runSafely("driver "+name+" Shutdown", func() error {
			return driver.Shutdown(ctx)
		})
		if err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown driver %s: %w", name, err))
		}
	}

	return shutdownErr
}

// shutdownModules invokes OnShutdown in reverse registration order.
func (k *Kernel) shutdownModules(ctx context.Context) error {
	k.mu.RLock()
	order := append([]string(nil), k.moduleOrder...)
	modules := make(map[string]*moduleRecord, len(k.modules))
	for name, module := range k.modules {
		modules[name] = module
	}
	k.mu.RUnlock()

	var shutdownErr error
	for idx := len(order) - 1; idx >= 0; idx-- {
		name := order[idx]
		record := modules[name]
		if record == nil {
			continue
		}
		hookCtx, cancel := context.WithTimeout(ctx, k.cfg.moduleHookTimeout)
		err := runSafely("module "+name+" OnShutdown", func() error {
			return record.module.OnShutdown(hookCtx)
		})
		cancel()
		if err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown module %s: %w", name, err))
		}
	}

	return shutdownErr
}

// moduleRuntime provides kernel facilities to modules during registration.
type moduleRuntime struct {
	services *ServiceRegistry
}

func (r *moduleRuntime) Services() memebot.ServiceRegistry {
	return r.services
}

// validateModuleSpec ensures declarative module definitions are coherent.
func validateModuleSpec(spec memebot.ModuleSpec) error {
	seenHandlers := make(map[string]struct{}, len(spec.Handlers))
	seenCommands := make(map[string]struct{}, len(spec.Commands))
	fallbacks := 0

	for idx, handler := range spec.Handlers {
		if handler.Handler == nil {
			return fmt.Errorf("module handler %d: nil handler", idx)
		}
		if len(handler.Commands) == 0 && !handler.Fallback && len(handler.Kinds) == 0 {
			return fmt.Errorf("module handler %d: no routing declared", idx)
		}
		if handler.Name != "" {
			if _, exists := seenHandlers[handler.Name]; exists {
				return fmt.Errorf("module handler %d: duplicate handler name %s", idx, handler.Name)
			}
			seenHandlers[handler.Name] = struct{}{}
		}
		if handler.Fallback {
			fallbacks++
		}
	}
	if fallbacks > 1 {
		return fmt.Errorf("module declares %d fallback handlers", fallbacks)
	}

	for idx, command := range spec.Commands {
		if command.Name == "" {
			return fmt.Errorf("module command %d: empty name", idx)
		}
		key := strings.ToLower(command.Name)
		if _, exists := seenCommands[key]; exists {
			return fmt.Errorf("module command %d: duplicate command %s", idx, command.Name)
		}
		seenCommands[key] = struct{}{}
	}

	return nil
}

// removeOrderedName removes one name while preserving remaining order.
func removeOrderedName(ordered []string, target string) []string {
	filtered := make([]string, 0, len(ordered))
	for _, item := range ordered {
		if item != target {
			filtered = append(filtered, item)
		}
	}

	return filtered
}

// isContextCancellation reports whether err is a context-driven termination signal.
func isContextCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
