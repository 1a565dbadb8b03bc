package core

import (
	"context"
	"log/slog"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
)

// OptionListener observes options created during a run.
// Satisfied by *catalog.TypeCache.
type OptionListener interface {
	OptionCreated(ev catalog.OptionCreated)
}

// OptionRequest asks the registrar to create one option.
type OptionRequest struct {
	AttributeCode string
	Option        catalog.Option
	ProductType   string // product type of the triggering row, passed to listeners
}

// OptionRegistrar submits new options to the catalog and announces successes.
//
// Each call reaches the backend exactly once; there is no retry. Callers are
// responsible for not asking twice for a label that was already created.
type OptionRegistrar struct {
	creator   catalog.OptionCreator
	listeners []OptionListener
	recorder  Recorder
	logger    *slog.Logger

	created  int
	failures int
}

// NewOptionRegistrar wraps creator. Listeners are notified in order after each success.
func NewOptionRegistrar(creator catalog.OptionCreator, listeners ...OptionListener) *OptionRegistrar {
	return &OptionRegistrar{
		creator:   creator,
		listeners: listeners,
		recorder:  nopRecorder{},
		logger:    slog.Default(),
	}
}

// Subscribe adds a listener.
func (r *OptionRegistrar) Subscribe(l OptionListener) {
	r.listeners = append(r.listeners, l)
}

// Ensure submits the option and reports whether it was persisted.
func (r *OptionRegistrar) Ensure(ctx context.Context, req OptionRequest) bool {
	err := r.creator.AddOption(ctx, req.AttributeCode, req.Option)
	r.recorder.OptionAttempt(req.AttributeCode, err == nil)
	if err != nil {
		r.failures++
		r.logger.Warn("option creation failed",
			"attribute", req.AttributeCode,
			"label", req.Option.Label,
			"error", err,
		)
		return false
	}

	r.created++
	r.logger.Info("option created",
		"attribute", req.AttributeCode,
		"label", req.Option.Label,
		"product_type", req.ProductType,
	)

	ev := catalog.OptionCreated{
		AttributeCode: req.AttributeCode,
		Label:         req.Option.Label,
		ProductType:   req.ProductType,
	}
	for _, l := range r.listeners {
		l.OptionCreated(ev)
	}
	return true
}

// Created returns the number of successful creations.
func (r *OptionRegistrar) Created() int { return r.created }

// Failures returns the number of failed creation attempts.
func (r *OptionRegistrar) Failures() int { return r.failures }
