package handlers

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"options-flow-tracker/models"
)

// HandlerManager decodes stream frames and routes them to the handlers registered for their kind
type HandlerManager struct {
	decoder  *Decoder
	handlers map[models.EventKind][]namedHandler
	log      *logrus.Entry
	mu       sync.RWMutex
}

type namedHandler struct {
	name    string
	handler MessageHandler
}

// NewHandlerManager creates a new HandlerManager
func NewHandlerManager(logger *logrus.Logger) *HandlerManager {
	return &HandlerManager{
		decoder:  NewDecoder(),
		handlers: make(map[models.EventKind][]namedHandler),
		log:      logger.WithField("component", "handlers"),
	}
}

// RegisterHandler registers a handler under a name for every kind it declares
func (hm *HandlerManager) RegisterHandler(name string, handler MessageHandler) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	for _, kind := range handler.Kinds() {
		hm.handlers[kind] = append(hm.handlers[kind], namedHandler{name: name, handler: handler})
	}
	hm.log.Infof("📦 Registered handler: %s (kinds: %v)", name, handler.Kinds())
}

// UnregisterHandler removes the named handler from every kind
func (hm *HandlerManager) UnregisterHandler(name string) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	for kind, list := range hm.handlers {
		kept := list[:0]
		for _, nh := range list {
			if nh.name != name {
				kept = append(kept, nh)
			}
		}
		hm.handlers[kind] = kept
	}
}

// HandleFrame decodes one frame and dispatches it.
// Malformed frames are logged and returned as errors; they never reach a handler.
func (hm *HandlerManager) HandleFrame(binary bool, data []byte) error {
	var (
		msg Message
		err error
	)
	if binary {
		msg, err = hm.decoder.DecodeBinary(data)
	} else {
		msg, err = hm.decoder.DecodeText(data)
	}
	if err != nil {
		if errors.Is(err, ErrUnsupportedType) {
			hm.log.Debugf("Ignoring frame: %v", err)
		} else {
			hm.log.Warnf("⚠️  Dropping frame: %v", err)
		}
		return err
	}
	return hm.Dispatch(msg)
}

// Dispatch routes an already decoded message to its handlers
func (hm *HandlerManager) Dispatch(msg Message) error {
	hm.mu.RLock()
	targets := append([]namedHandler(nil), hm.handlers[msg.Kind()]...)
	hm.mu.RUnlock()

	if len(targets) == 0 {
		return fmt.Errorf("no handler for message kind %s", msg.Kind())
	}

	var errs []error
	for _, nh := range targets {
		if err := nh.handler.Handle(msg); err != nil {
			hm.log.Errorf("Handler %s failed on %s: %v", nh.name, msg.Kind(), err)
			errs = append(errs, fmt.Errorf("%s: %w", nh.name, err))
		}
	}
	return errors.Join(errs...)
}

// ListHandlers returns the registered handler names per kind
func (hm *HandlerManager) ListHandlers() map[models.EventKind][]string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	out := make(map[models.EventKind][]string, len(hm.handlers))
	for kind, list := range hm.handlers {
		for _, nh := range list {
			out[kind] = append(out[kind], nh.name)
		}
	}
	return out
}
