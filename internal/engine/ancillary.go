package engine

import (
	"context"
	"errors"

	"medgame/internal/session"
	"medgame/internal/validation"
)

// AncillaryKind names a one-shot consultation aid. Values match the perk
// action names in the content tables.
type AncillaryKind string

const (
	KindLab            AncillaryKind = "lab"
	KindImaging        AncillaryKind = "imaging"
	KindHint           AncillaryKind = "hint"
	KindHistory        AncillaryKind = "history"
	KindDifferential   AncillaryKind = "differential"
	KindTrialTreatment AncillaryKind = "trial-treatment"
	KindPhoto          AncillaryKind = "photo"
)

// AncillaryKinds lists every kind in menu order
var AncillaryKinds = []AncillaryKind{
	KindHistory, KindLab, KindImaging, KindPhoto, KindHint, KindDifferential, KindTrialTreatment,
}

// Ancillary is the outcome of an ancillary request
type Ancillary struct {
	Kind    AncillaryKind
	Content string
	// ImageURL is set for a successful photo
	ImageURL string
	// AlreadyUsed is set when the cached outcome of an earlier call is returned
	AlreadyUsed bool
	// Failed is set when Content is an error message
	Failed bool
}

// Available reports whether kind is unlocked at the level being played
func (e *Engine) Available(kind AncillaryKind) bool {
	perk, ok := e.catalog.PerkForAction(string(kind))
	if !ok {
		return true
	}
	return perk.UnlockLevel <= e.Level().ID
}

// Used reports whether kind was already consumed in this consultation
func (e *Engine) Used(kind AncillaryKind) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.ancillary[kind]
	return ok
}

// RequestAncillary performs a one-shot aid. A second request for the same kind
// returns the first outcome with AlreadyUsed set, without calling the server.
// Upstream failures are returned as a short message in Content and leave the
// aid unspent. arg is the medication for KindTrialTreatment.
func (e *Engine) RequestAncillary(ctx context.Context, kind AncillaryKind, arg string) (Ancillary, error) {
	switch kind {
	case KindLab, KindImaging, KindHint, KindHistory, KindDifferential, KindTrialTreatment, KindPhoto:
	default:
		return Ancillary{}, ErrUnknownKind
	}

	e.mu.Lock()
	if cached, ok := e.ancillary[kind]; ok {
		e.mu.Unlock()
		cached.AlreadyUsed = true
		return cached, nil
	}
	e.mu.Unlock()

	if !e.Available(kind) {
		return Ancillary{}, ErrPerkLocked
	}
	if kind == KindTrialTreatment {
		medication, err := validation.ValidateMedication(arg)
		if err != nil {
			return Ancillary{}, err
		}
		arg = medication
	}

	sessionID, err := e.begin()
	if err != nil {
		return Ancillary{}, err
	}

	e.emit(TypingChanged{Typing: true})
	out, err := e.fetch(ctx, sessionID, kind, arg)
	e.emit(TypingChanged{Typing: false})

	e.mu.Lock()
	e.busy = false
	switch {
	case errors.Is(err, session.ErrPerkUsed):
		out = Ancillary{Kind: kind, Content: ancillaryUsedOnSrv, AlreadyUsed: true}
	case err != nil:
		e.mu.Unlock()
		e.emit(ErrorOccurred{Op: string(kind), Err: err})
		return Ancillary{Kind: kind, Content: ancillaryFailed, Failed: true}, nil
	}
	e.ancillary[kind] = out
	e.mu.Unlock()
	return out, nil
}

func (e *Engine) fetch(ctx context.Context, sessionID string, kind AncillaryKind, arg string) (Ancillary, error) {
	out := Ancillary{Kind: kind}
	var err error

	switch kind {
	case KindHistory:
		out.Content = e.Patient().Antecedents
	case KindLab, KindImaging:
		out.Content, err = e.backend.Exam(ctx, sessionID, string(kind))
	case KindHint:
		out.Content, err = e.backend.Hint(ctx, sessionID)
	case KindDifferential:
		out.Content, err = e.backend.Differential(ctx, sessionID)
	case KindTrialTreatment:
		out.Content, err = e.backend.TrialTreatment(ctx, sessionID, arg)
	case KindPhoto:
		out.ImageURL, err = e.backend.Photo(ctx, sessionID)
		out.Content = out.ImageURL
	}
	return out, err
}
